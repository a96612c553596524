package app

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	sessions metric.Int64Counter
	intents  metric.Int64Counter
	ignored  metric.Int64Counter
}

func newMetrics(meter metric.Meter, log *slog.Logger) *metrics {
	return &metrics{
		sessions: counter(meter, log, "tictactoe.sessions.created", "Sessions started"),
		intents:  counter(meter, log, "tictactoe.intents.accepted", "Intents that changed a session"),
		ignored:  counter(meter, log, "tictactoe.intents.ignored", "Clicks left without effect"),
	}
}

// counter falls back to a no-op instrument so a misconfigured meter never
// stops the game.
func counter(meter metric.Meter, log *slog.Logger, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Warn("metric instrument unavailable", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}
