package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")

	log, err := initLogger(LogConfig{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)
	log.Info("sale recorded")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"sale recorded"`)
	assert.Contains(t, string(data), `"service":"pos-service"`)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	_, err := initLogger(LogConfig{Level: "loud"})

	assert.Error(t, err)
}

func TestNoopTelemetryFallbacks(t *testing.T) {
	tracer := tracerOrNoop(nil)
	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	counter := newCounter(otel.Meter(serviceName), "pos_test_total", "test counter")
	counter.Add(context.Background(), 1)
}
