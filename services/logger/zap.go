package logsvc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hoopdesk/hoopdesk/core"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

// Standard field names.
const (
	FieldService = "service"
	FieldError   = "error"
	FieldUserID  = "user_id"
)

// NewZap builds the local log sink from LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT.
func NewZap(conf core.LogConfig, serviceName string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if strings.ToLower(conf.Format) == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := parseLevel(conf.Level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	switch conf.Output {
	case "", "stdout":
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	case "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	default:
		zapConfig.OutputPaths = []string{conf.Output}
		zapConfig.ErrorOutputPaths = []string{conf.Output}
	}

	l, err := zapConfig.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return l.With(zap.String(FieldService, serviceName)), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InfoLevel, errors.Wrap(ErrInvalidLogLevel, fmt.Sprintf("%q", level))
}
