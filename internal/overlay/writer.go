package overlay

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Writer reads page sizes and stamps placements into a copy of a document
type Writer interface {
	PageDims(path string) ([]Dim, error)
	Write(src, dst string, dims []Dim, placements []Placement) error
}

// PDFCPUWriter stamps text with pdfcpu watermarks
type PDFCPUWriter struct {
	Font  string
	Color string
}

var disableConfigDir sync.Once

// NewPDFCPUWriter creates a writer using Helvetica in black
func NewPDFCPUWriter() *PDFCPUWriter {
	// pdfcpu would otherwise create a configuration directory under $HOME
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPUWriter{Font: "Helvetica", Color: "#000000"}
}

// PageDims returns the size of every page of the document at path
func (w *PDFCPUWriter) PageDims(path string) ([]Dim, error) {
	raw, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions of %s: %w", path, err)
	}
	dims := make([]Dim, len(raw))
	for i, d := range raw {
		dims[i] = Dim{Width: d.Width, Height: d.Height}
	}
	return dims, nil
}

// Write stamps every placement on its page and saves the result to dst. The
// top-left y of a placement is converted to pdfcpu's bottom-left offset.
func (w *PDFCPUWriter) Write(src, dst string, dims []Dim, placements []Placement) error {
	byPage := make(map[int][]*model.Watermark)
	for _, p := range placements {
		if p.Page < 0 || p.Page >= len(dims) {
			return fmt.Errorf("placement %s on page %d outside document with %d pages", p.Field, p.Page, len(dims))
		}
		wm, err := api.TextWatermark(p.Text, w.description(p, dims[p.Page]), true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to build stamp for %s: %w", p.Field, err)
		}
		// pdfcpu numbers pages from 1
		byPage[p.Page+1] = append(byPage[p.Page+1], wm)
	}

	if len(byPage) == 0 {
		return copyFile(src, dst)
	}
	if err := api.AddWatermarksSliceMapFile(src, dst, byPage, nil); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", src, err)
	}
	return nil
}

func (w *PDFCPUWriter) description(p Placement, page Dim) string {
	return fmt.Sprintf("font:%s, points:%d, pos:bl, off:%.2f %.2f, scale:1 abs, rot:0, fillcolor:%s, opacity:1",
		w.Font, int(p.FontSize+0.5), p.X, page.Height-p.Y, w.Color)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
