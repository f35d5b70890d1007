package logger

import (
	"os"

	"github.com/eaglebank/identity-service/shared/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a JSON logger writing to stdout and, when cfg.Filename is set,
// to a rotating log file.
func New(cfg config.Log) (*zap.Logger, error) {
	level := new(zapcore.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(), newWriteSyncer(cfg), level)
	return zap.New(core, zap.AddCaller()), nil
}

func newEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func newWriteSyncer(cfg config.Log) zapcore.WriteSyncer {
	stdout := zapcore.AddSync(os.Stdout)
	if cfg.Filename == "" {
		return stdout
	}

	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewMultiWriteSyncer(stdout, file)
}
