package workers

import (
	"context"
	"log/slog"
	"time"

	"roomcast/contract"
	"roomcast/domain/event"
)

// FanoutWorker drains the service-wide event channel and hands each event
// to every permanent sink (search index, telemetry). Connection sinks get
// their events synchronously from the broadcast path; this worker only
// serves the sinks that outlive connections.
type FanoutWorker struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewFanoutWorker(
	log *slog.Logger,
	events <-chan event.DomainEvent,
	sinkTimeout time.Duration,
	sinks ...contract.EventSink,
) *FanoutWorker {
	return &FanoutWorker{
		log:         log,
		events:      events,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
	}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	w.log.Info("Starting event fanout worker", "sinks", len(w.sinks))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				return nil
			}
			w.deliver(ctx, e)
		}
	}
}

// deliver pushes one event through every sink, each under its own
// deadline. A slow or failing sink costs its own events only.
func (w *FanoutWorker) deliver(ctx context.Context, e event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			w.log.Warn("Sink failed to consume event",
				"room", e.RoomID(),
				"error", err)
		}
		cancel()
	}
}
