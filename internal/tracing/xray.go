// Package tracing provides AWS X-Ray distributed tracing for optimization
// runs.
package tracing

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/aws/aws-xray-sdk-go/xraylog"
	"github.com/sirupsen/logrus"
)

// Config contains X-Ray configuration.
type Config struct {
	ServiceName  string
	Enabled      bool
	SamplingRate float64
	DaemonAddr   string
}

type xrayLoggerAdapter struct {
	logger *logrus.Logger
}

func (l *xrayLoggerAdapter) Log(level xraylog.LogLevel, msg fmt.Stringer) {
	switch level {
	case xraylog.LogLevelDebug:
		l.logger.Debug(msg)
	case xraylog.LogLevelInfo:
		l.logger.Info(msg)
	case xraylog.LogLevelWarn:
		l.logger.Warn(msg)
	case xraylog.LogLevelError:
		l.logger.Error(msg)
	}
}

// Initialize initializes AWS X-Ray with the given configuration.
func Initialize(cfg Config, logger *logrus.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	xray.SetLogger(&xrayLoggerAdapter{logger: logger})
	xray.Configure(xray.Config{
		DaemonAddr:   cfg.DaemonAddr,
		SamplingRate: cfg.SamplingRate,
	})

	logger.WithFields(logrus.Fields{
		"daemon_addr":   cfg.DaemonAddr,
		"sampling_rate": cfg.SamplingRate,
		"service_name":  cfg.ServiceName,
	}).Info("AWS X-Ray initialized")
	return nil
}

// StartRun opens the root segment for one optimization run and annotates it
// with the run id.
func StartRun(ctx context.Context, runID string) (context.Context, *xray.Segment) {
	ctx, seg := xray.BeginSegment(ctx, "optimization-run")
	if seg != nil {
		seg.AddAnnotation("run_id", runID)
	}
	return ctx, seg
}

// Stage wraps one pipeline stage (grid, evaluation, selection, validation,
// persistence) in a subsegment. Errors are recorded on the subsegment and
// returned unchanged. With tracing disabled the wrapper is a passthrough.
func Stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, name, fn)
}

// AddAnnotation adds an annotation to the current segment.
func AddAnnotation(ctx context.Context, key string, value interface{}) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}
