// Package search maintains a full-text index of chat messages alongside
// the primary store. The index is a projection: it can always be rebuilt
// from the message repository, so indexing failures never fail a send.
package search

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"roomcast/domain"
)

type Hit struct {
	MessageID uuid.UUID
	RoomID    domain.RoomID
	AuthorID  string
	Content   string
	Score     float64
	CreatedAt time.Time
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index upserts a message document. Keyed by message ID, so re-indexing
// an edited message replaces the previous version.
func (i *MessageIndex) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("room", string(msg.RoomID)).StoreValue()).
		AddField(bluge.NewKeywordField("author", msg.AuthorID).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("at", msg.CreatedAt.UTC().Format(time.RFC3339Nano)).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Delete(id uuid.UUID) error {
	return i.writer.Delete(bluge.Identifier(id.String()))
}

// Search runs a match query over message content, scoped to one room, and
// returns the best hits with the total match count.
func (i *MessageIndex) Search(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]Hit, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "err", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room"))

	request := bluge.NewTopNSearch(limit, query).WithStandardAggregations()
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}

		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = uuid.Parse(string(value))
			case "room":
				hit.RoomID = domain.RoomID(value)
			case "author":
				hit.AuthorID = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				hit.CreatedAt, _ = time.Parse(time.RFC3339Nano, string(value))
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}

	total := iterator.Aggregations().Count()
	i.log.Debug("Search completed",
		"room", roomID,
		"terms", terms,
		"total", strconv.FormatUint(total, 10))
	return hits, total, nil
}
