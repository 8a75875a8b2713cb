// Package extraction turns account statements and annex documents into typed
// records by asking the model and validating what it answers.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bybot/pagare-worker/internal/llm"
	"github.com/bybot/pagare-worker/internal/schemas"
	"github.com/bybot/pagare-worker/internal/types"
)

// Oracle analyzes documents with an LLM client
type Oracle struct {
	client llm.Client
	tier   llm.ModelTier
	logger *slog.Logger
}

// New creates an oracle over client
func New(client llm.Client, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{client: client, tier: llm.TierStandard, logger: logger}
}

// AnalyzeStatement extracts the figures of an account statement. The usage is
// returned even when the response cannot be interpreted, since the tokens were spent.
func (o *Oracle) AnalyzeStatement(ctx context.Context, path string) (*types.EstadoCuenta, types.TokenUsage, error) {
	raw, usage, err := o.ask(ctx, llm.EstadoCuentaSchema(), schemas.EstadoCuenta, []string{path})
	if err != nil {
		return nil, usage, err
	}
	ec, err := types.NormalizeStatement(raw)
	if err != nil {
		return nil, usage, err
	}
	o.logger.Info("statement analyzed",
		"saldo_capital", ec.SaldoCapital != nil,
		"tea", ec.TasaInteresEfectivaAnual != nil,
		"tokens_total", usage.Total,
	)
	return ec, usage, nil
}

// AnalyzeAnexos extracts debtor and co-debtor data from all annexes in one request
func (o *Oracle) AnalyzeAnexos(ctx context.Context, paths []string) (*types.AnexosResult, types.TokenUsage, error) {
	if len(paths) == 0 {
		return nil, types.TokenUsage{}, &types.DataError{Field: "anexos", Message: "no annex documents to analyze"}
	}
	raw, usage, err := o.ask(ctx, llm.AnexosSchema(), schemas.Anexos, paths)
	if err != nil {
		return nil, usage, err
	}
	res, err := types.NormalizeAnexos(raw)
	if err != nil {
		return nil, usage, err
	}
	o.logger.Info("annexes analyzed",
		"files", len(paths),
		"deudor", res.Deudor != nil,
		"codeudor", res.Codeudor != nil,
		"tokens_total", usage.Total,
	)
	return res, usage, nil
}

// Analyze runs statement then annex analysis and merges the results
func (o *Oracle) Analyze(ctx context.Context, statement string, anexos []string) (types.Datos, types.TokenUsage, error) {
	ec, usage, err := o.AnalyzeStatement(ctx, statement)
	if err != nil {
		return types.Datos{}, usage, err
	}
	ax, more, err := o.AnalyzeAnexos(ctx, anexos)
	usage = usage.Add(more)
	if err != nil {
		return types.Datos{}, usage, err
	}
	return types.Merge(ec, ax), usage, nil
}

func (o *Oracle) ask(ctx context.Context, schema llm.ExtractionSchema, name schemas.Name, files []string) (map[string]any, types.TokenUsage, error) {
	prompt := llm.BuildExtractionPrompt(schema)
	o.logger.Debug("sending extraction request", "schema", schema.Name, "files", len(files))

	resp, err := o.client.GenerateJSONFromFiles(ctx, prompt, files, o.tier)
	if err != nil {
		return nil, types.TokenUsage{}, &APICallError{
			Message: fmt.Sprintf("failed to analyze %s", schema.Name),
			Cause:   err,
		}
	}

	usage := types.TokenUsage{
		Input:  resp.Usage.Prompt,
		Output: resp.Usage.Candidates,
		Total:  resp.Usage.Total,
		Model:  resp.Model,
	}
	if usage.Model == "" {
		usage.Model = o.client.GetModel(o.tier)
	}
	o.logger.Debug("extraction response", "schema", schema.Name, "response", resp.Text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &raw); err != nil {
		return nil, usage, &types.DataError{
			Field:   schema.Name,
			Message: "model response is not a JSON object",
			Cause:   err,
		}
	}
	if err := schemas.Validate(name, []byte(resp.Text)); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return nil, usage, &types.DataError{Field: schema.Name, Message: "model response does not match schema", Cause: err}
		}
		return nil, usage, err
	}
	return raw, usage, nil
}
