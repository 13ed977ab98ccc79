// Package publish announces finished engine results on the message bus.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quant-lab/internal/infrastructure"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher delivers one result document. kind names the operation ("backtest",
// "monte-carlo", ...).
type Publisher interface {
	Publish(ctx context.Context, kind, symbol string, payload any) error
}

// Envelope is the message body written to the bus
type Envelope struct {
	Kind        string          `json:"kind"`
	Symbol      string          `json:"symbol"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// JetStream publishes to lab.result.<kind>.<symbol> in the LAB_RESULTS stream.
type JetStream struct {
	js     streamPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewJetStream(js nats.JetStreamContext, logger *zap.Logger) *JetStream {
	return &JetStream{js: js, logger: logger, now: time.Now}
}

// Subject builds the subject for a result. Tokens are sanitized so that a
// symbol such as BRK.B cannot add subject levels.
func Subject(kind, symbol string) string {
	return fmt.Sprintf("lab.result.%s.%s", token(kind), token(symbol))
}

func token(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

func (p *JetStream) Publish(ctx context.Context, kind, symbol string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s result: %w", kind, err)
	}
	data, err := json.Marshal(Envelope{
		Kind:        kind,
		Symbol:      symbol,
		PublishedAt: p.now().UTC(),
		Payload:     body,
	})
	if err != nil {
		return err
	}

	subject := Subject(kind, symbol)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	p.logger.Debug("result published",
		zap.String("subject", subject),
		zap.String("stream", infrastructure.ResultStream),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Noop drops every result; used when publishing is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
