package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bybot/pagare-worker/internal/logging"
	"github.com/bybot/pagare-worker/internal/types"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	kind       string
	durable    bool
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	c.declared = append(c.declared, name)
	c.kind, c.durable = kind, durable
	return c.declareErr
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.sent = append(c.sent, published{exchange, key, msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestNewPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	_, err := NewPublisher(ch, "", logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultExchange}, ch.declared)
	assert.Equal(t, "topic", ch.kind)
	assert.True(t, ch.durable)
}

func TestNewPublisher_DeclareError(t *testing.T) {
	_, err := NewPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "x", logging.Discard())
	assert.ErrorContains(t, err, "access refused")
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "bybot.test", logging.Discard())
	require.NoError(t, err)

	err = p.Publish(context.Background(), Event{
		Name:      AnalysisRetry,
		ProcesoID: 42,
		Codigo:    "PAG-42",
		Estado:    types.StateCreated,
		Intentos:  1,
		Error:     "statement download failed",
	})
	require.NoError(t, err)

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "bybot.test", sent.exchange)
	assert.Equal(t, "proceso.analysis_retry", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.NotEmpty(t, sent.msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, "analysis_retry", body["event"])
	assert.Equal(t, float64(42), body["proceso_id"])
	assert.Equal(t, "creado", body["estado"])
	assert.Equal(t, float64(1), body["intentos_analisis"])
	assert.Equal(t, sent.msg.MessageId, body["id"])
}

func TestPublish_KeepsGivenIDAndTimestamp(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "", logging.Discard())
	require.NoError(t, err)

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), Event{ID: "evt-1", Name: Filled, Timestamp: ts}))

	assert.Equal(t, "evt-1", ch.sent[0].msg.MessageId)
	assert.Equal(t, ts, ch.sent[0].msg.Timestamp)
	assert.Equal(t, "proceso.filled", ch.sent[0].key)
}

func TestPublish_Error(t *testing.T) {
	p, err := NewPublisher(&fakeChannel{publishErr: amqp.ErrClosed}, "", logging.Discard())
	require.NoError(t, err)

	err = p.Publish(context.Background(), Event{Name: Analyzed})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "", logging.Discard())
	require.NoError(t, err)

	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Name: Analyzed}))
	assert.NoError(t, p.Close())
}
