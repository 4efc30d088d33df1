// SPDX-FileCopyrightText: 2025 emma contributors
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the CLI logger. Output goes to stderr so stdout stays
// reserved for command output. Verbose switches to the human readable
// development encoding at debug level; otherwise only warnings and errors are
// written, JSON encoded.
func NewLogger(verbose bool) *zap.SugaredLogger {
	return newLogger(verbose, zapcore.Lock(os.Stderr))
}

func newLogger(verbose bool, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	if verbose {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zapcore.DebugLevel
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		level = zapcore.WarnLevel
	}
	return zap.New(zapcore.NewCore(encoder, sink, level)).Sugar()
}
