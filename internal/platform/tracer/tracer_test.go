package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miriesgo/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, "report.build", tracer.String("k", "v"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Int("loans", 2))
	span.AddEvent("loaded")
	span.End(errors.New("boom"))
}

func TestOTelTracerWithoutProvider(t *testing.T) {
	_, span := tracer.NewOTel().Start(context.Background(), "scoring.call",
		tracer.Bool("configured", true),
		tracer.Int64("bytes", 10),
	)
	require.NotNil(t, span)
	assert.NotPanics(t, func() { span.End(nil) })
}

func TestHashIdentifier(t *testing.T) {
	assert.Empty(t, tracer.HashIdentifier(""))
	h := tracer.HashIdentifier("123456780")
	assert.Len(t, h, 16)
	assert.Equal(t, h, tracer.HashIdentifier("123456780"))
	assert.NotEqual(t, h, tracer.HashIdentifier("987654321"))
}
