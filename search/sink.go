package search

import (
	"context"
	"log/slog"

	"roomcast/domain/event"
)

// IndexSink mirrors message lifecycle events into the full-text index.
// It runs behind the fanout worker, off the send path.
type IndexSink struct {
	index *MessageIndex
	log   *slog.Logger
}

func NewIndexSink(index *MessageIndex, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return s.index.Index(evt.Message)
	case event.MessageEdited:
		return s.index.Index(evt.Message)
	case event.MessageRemoved:
		return s.index.Delete(evt.ID)
	default:
		// Roster churn is not searchable content.
		return nil
	}
}
