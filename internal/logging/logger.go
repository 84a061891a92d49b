// Package logging builds the process zap logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"followmate/internal/config"
)

// New returns a JSON production logger, or a console logger in development.
// The logger writes to stdout and, when LOG_FILE is set, to a rotated file.
// The returned close function flushes and closes the file sink.
func New(cfg config.Config) (*zap.Logger, func(), error) {
	var (
		encoder zapcore.Encoder
		level   zapcore.Level
	)
	if cfg.Development() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
		level = zapcore.DebugLevel
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	closeFn := func() {}
	if cfg.Log.File != "" {
		writer, err := NewRotatingFileWriter(cfg.Log.File, cfg.Log.MaxSizeMB*1024*1024, cfg.Log.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(writer), level))
		closeFn = func() { _ = writer.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, func() {
		_ = logger.Sync()
		closeFn()
	}, nil
}
