package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes audit events as structured log records under the "audit" group.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.WithGroup("audit")}
}

func (s *SlogSink) Record(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.Time("timestamp", event.Timestamp),
		slog.String("action", event.Action),
		slog.String("resource", event.Resource),
		slog.String("result", event.Result),
		slog.Duration("duration", event.Duration),
		slog.String("request_id", event.RequestID),
	}
	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}
	for k, v := range event.Parameters {
		attrs = append(attrs, slog.Any("param."+k, v))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String("meta."+k, v))
	}

	level := slog.LevelInfo
	if event.Result == ResultFailure {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "Command audited", attrs...)
	return nil
}

func (s *SlogSink) Close() error {
	return nil
}
