package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
)

func TestInit_DisabledWithoutDSN(t *testing.T) {
	flush := Init(Config{}, logging.Discard())
	require.NotNil(t, flush)
	flush()
}

func TestStartSpan_WithoutSentryIsSafe(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "chat.ask", SpanAttributes{UserID: "u1", Operation: "ask"})
	require.NotNil(t, ctx)
	span.SetError(errors.New("boom"))
	span.End()

	var nilSpan Span
	assert.NotPanics(t, func() {
		nilSpan.SetError(errors.New("x"))
		nilSpan.End()
	})
}
