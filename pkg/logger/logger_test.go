package logger_test

import (
	"context"
	"qrshield/pkg/logger"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		debug       bool
	}{
		{name: "development", environment: logger.DevelopmentEnvironment, debug: true},
		{name: "production", environment: logger.ProductionEnvironment, debug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				logger.Setup(tt.environment)
			})

			require.NotNil(t, logger.Get(context.Background()))
			require.Equal(t, tt.debug, logger.IsDebug(context.Background()))
		})
	}
}

func TestSetupWithLevel(t *testing.T) {
	require.NoError(t, logger.SetupWithLevel(logger.DevelopmentEnvironment, "warn"))
	require.False(t, logger.IsDebug(context.Background()))

	require.Error(t, logger.SetupWithLevel(logger.DevelopmentEnvironment, "chatty"))
}

func TestGetPrefersContextLogger(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment)

	custom, _ := zap.NewDevelopment()
	ctx := logger.WithLogger(context.Background(), custom)
	require.Equal(t, custom, logger.Get(ctx))
}

func TestWithFieldsAttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(context.Background(), zap.New(core))

	ctx = logger.WithFields(ctx, zap.String("url", "https://bit.ly/x"))
	logger.Info(ctx, "resolving")
	logger.Warn(ctx, "feed unavailable", zap.Int("attempt", 1))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "https://bit.ly/x", entries[0].ContextMap()["url"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.EqualValues(t, 1, entries[1].ContextMap()["attempt"])
}
