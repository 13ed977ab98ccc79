package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	ResultStream   = "LAB_RESULTS"
	ResultSubjects = "lab.result.*.*"
)

func InitNATS(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url, nats.Name("quant-lab"))
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	cfg := &nats.StreamConfig{
		Name:     ResultStream,
		Subjects: []string{ResultSubjects},
	}
	// Create stream if it doesn't exist
	if _, err = js.AddStream(cfg); err != nil {
		if _, err = js.UpdateStream(cfg); err != nil {
			logger.Warn("failed to create or update stream", zap.String("stream", ResultStream), zap.Error(err))
		}
	}

	return nc, js, nil
}
