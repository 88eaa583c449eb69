// This file defines Message entities and related rules.
// Messages are immutable once persisted, except for explicit edit and
// delete operations issued by their author.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted chat message. The ID and timestamps are
// assigned by the storage layer on persist; Lang is the detected ISO 639-1
// language code of the content, empty when detection is inconclusive.
type Message struct {
	ID        uuid.UUID
	RoomID    RoomID
	AuthorID  string
	Content   string
	Lang      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
