package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/weddingdesk/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(logger.ReplaceGlobal(zap.NewNop()))

	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: "DEBUG"}))
	require.True(t, logger.Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, ConfigureLogging(ServerConfig{LogFormat: "console"}))
	require.False(t, logger.Logger().Core().Enabled(zap.DebugLevel))
}
