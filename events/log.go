package events

import (
	"context"
	"log/slog"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, event interfaces.Event) error {
	attrs := []any{
		slog.Uint64("seq", event.Seq),
		slog.String("kind", string(event.Kind)),
		slog.String("name", event.Name),
		slog.String("address", event.Address.Hex()),
	}
	if event.Amount != nil {
		attrs = append(attrs, slog.String("amount", event.Amount.String()))
	}
	if !event.EndDate.IsZero() {
		attrs = append(attrs, slog.Time("end_date", event.EndDate))
	}

	s.log.InfoContext(ctx, "Registrar event", attrs...)
	return nil
}
