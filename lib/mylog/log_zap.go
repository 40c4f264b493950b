package mylog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newZapLogger
	}
}

var rootLogger = zap.Must(zap.NewProduction(zap.WithCaller(false)))

type zapLogger struct {
	componentName string
	logger        *zap.SugaredLogger
}

func newZapLogger(componentName string) Logger {
	return zapLogger{
		componentName: componentName,
		logger:        rootLogger.Sugar().With("component", componentName),
	}
}

func (l zapLogger) Log(ctx context.Context, traceLabel string, severity Severity, format string, a ...interface{}) {
	logger := l.logger
	if traceLabel != "" {
		logger = logger.With("aggregate", traceLabel)
	}

	msg := fmt.Sprintf(format, a...)
	switch severity {
	case SeverityDebug:
		logger.Debug(msg)
	case SeverityWarn:
		logger.Warn(msg)
	case SeverityError:
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}
