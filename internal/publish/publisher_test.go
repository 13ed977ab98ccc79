package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingStream struct {
	subject string
	data    []byte
	err     error
}

func (r *recordingStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.subject, r.data = subj, data
	return &nats.PubAck{Stream: "LAB_RESULTS", Sequence: 1}, nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "lab.result.backtest.AAPL", Subject("backtest", "AAPL"))
	assert.Equal(t, "lab.result.monte-carlo.BRK_B", Subject("monte-carlo", "BRK.B"))
	assert.Equal(t, "lab.result.predict._", Subject("predict", ""))
}

func TestJetStreamPublish(t *testing.T) {
	stream := &recordingStream{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &JetStream{js: stream, logger: zap.NewNop(), now: func() time.Time { return fixed }}

	err := p.Publish(context.Background(), "backtest", "AAPL", map[string]float64{"sharpe": 1.5})
	require.NoError(t, err)
	assert.Equal(t, "lab.result.backtest.AAPL", stream.subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(stream.data, &env))
	assert.Equal(t, "backtest", env.Kind)
	assert.Equal(t, "AAPL", env.Symbol)
	assert.Equal(t, fixed, env.PublishedAt)
	assert.JSONEq(t, `{"sharpe":1.5}`, string(env.Payload))
}

func TestJetStreamPublish_Errors(t *testing.T) {
	p := &JetStream{js: &recordingStream{err: errors.New("no responders")}, logger: zap.NewNop(), now: time.Now}
	err := p.Publish(context.Background(), "stress-test", "AAPL", struct{}{})
	assert.ErrorContains(t, err, "lab.result.stress-test.AAPL")

	err = p.Publish(context.Background(), "backtest", "AAPL", make(chan int))
	assert.Error(t, err)

	assert.NoError(t, Noop{}.Publish(context.Background(), "backtest", "AAPL", nil))
}
