package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "STDOUT")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")

	settings := SettingsFromEnv("dogwalk-test")
	require.Equal(t, "dogwalk-test", settings.ServiceName)
	require.Equal(t, ExporterStdout, settings.Exporter)
	require.Equal(t, slog.LevelDebug, settings.LogLevel)
	require.Equal(t, "staging", settings.Environment)
	require.False(t, settings.OTLPInsecure)

	t.Setenv("OTEL_TRACES_EXPORTER", "zipkin")
	require.Equal(t, ExporterOTLP, SettingsFromEnv("x").Exporter)
}

func TestSetup_WithoutExporter(t *testing.T) {
	ctx := context.Background()
	instruments, shutdown, err := Setup(ctx, Settings{ServiceName: "dogwalk-test", LogLevel: slog.LevelError, Exporter: ExporterNone})
	require.NoError(t, err)
	require.NotNil(t, instruments.Logger)
	require.NotNil(t, instruments.Tracer("test"))
	require.NotNil(t, instruments.Meter("test"))
	require.NoError(t, shutdown(ctx))
}

func TestInstruments_NilFallbacks(t *testing.T) {
	var instruments *Instruments
	require.NotNil(t, instruments.Tracer("test"))
	require.NotNil(t, instruments.Meter("test"))
}
