package system

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	require.NotNil(t, logger)

	logger.Errorw("expected failure", "error", "boom")
	logger.Debugw("test message with fields", "key", "value")
}
