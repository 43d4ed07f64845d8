package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

// LogSink escribe el evento como log estructurado (nivel warn).
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) LoginFailed(ctx context.Context, ev LoginFailed) error {
	log := logger.OrFrom(ctx, s.Logger)
	log.Warn("unknown user, can not create new accounts",
		logger.Component("events"),
		logger.String("event", "user_login_failed"),
		logger.Username(ev.Username),
		logger.Reason(ev.Reason),
		logger.RemoteAddr(ev.RemoteAddr),
		logger.UserAgent(ev.UserAgent),
		logger.String("site", ev.SiteURL),
	)
	return nil
}
