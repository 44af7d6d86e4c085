package kafka

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type OutboxRelaySuite struct {
	suite.Suite
}

func TestOutboxRelaySuite(t *testing.T) {
	suite.Run(t, new(OutboxRelaySuite))
}

func (s *OutboxRelaySuite) TestRunStopsCleanlyOnCancel() {
	relay := NewOutboxRelay(nil, nil, "vigia.audit", slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("relay did not stop after cancellation")
	}
}
