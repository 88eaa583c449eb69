package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roomcast/domain"
	"roomcast/domain/event"
)

func TestToOutbound_RosterUpdated(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()

	env, err := toOutbound(event.RosterUpdated{
		Room: "room-1",
		Members: []domain.Member{
			{UserID: "user-1", Name: "Alice"},
			{UserID: "user-2", Name: "Bob"},
		},
		At: now,
	})

	req.NoError(err)
	req.Equal(EventUsersInRoom, env.Event)

	var out RosterOut
	req.NoError(json.Unmarshal(env.Payload, &out))
	req.Equal("room-1", out.Room)
	req.Len(out.Members, 2)
	req.Equal("Alice", out.Members[0].Name)
}

func TestToOutbound_MessagePosted(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    "room-1",
		AuthorID:  "user-1",
		Content:   "hello",
		Lang:      "en",
		CreatedAt: now,
		UpdatedAt: now,
	}

	env, err := toOutbound(event.MessagePosted{Message: msg})

	req.NoError(err)
	req.Equal(EventNewMessage, env.Event)

	var out MessageOut
	req.NoError(json.Unmarshal(env.Payload, &out))
	req.Equal(msg.ID.String(), out.ID)
	req.Equal("hello", out.Content)
	req.Equal("en", out.Lang)
	// A message that was never edited carries no updated_at
	req.Nil(out.UpdatedAt)
}

func TestToOutbound_MessageEdited(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    "room-1",
		AuthorID:  "user-1",
		Content:   "hello again",
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}

	env, err := toOutbound(event.MessageEdited{Message: msg})

	req.NoError(err)
	req.Equal(EventMessageEdited, env.Event)

	var out MessageOut
	req.NoError(json.Unmarshal(env.Payload, &out))
	req.NotNil(out.UpdatedAt)
	req.True(out.UpdatedAt.After(out.CreatedAt))
}

func TestToOutbound_MessageRemoved(t *testing.T) {
	req := require.New(t)
	id := uuid.New()

	env, err := toOutbound(event.MessageRemoved{Room: "room-1", ID: id})

	req.NoError(err)
	req.Equal(EventMessageRemoved, env.Event)

	var out MessageRemovedOut
	req.NoError(json.Unmarshal(env.Payload, &out))
	req.Equal("room-1", out.Room)
	req.Equal(id.String(), out.ID)
}

func TestToOutbound_UnknownEventIsSkipped(t *testing.T) {
	env, err := toOutbound(fakeEvent{})

	require.NoError(t, err)
	require.Empty(t, env.Event)
}

type fakeEvent struct{}

func (fakeEvent) RoomID() domain.RoomID { return "room-1" }

func TestEnvelope_RoundTrip(t *testing.T) {
	req := require.New(t)

	env, err := NewEnvelope(EventSendMessage, SendMessageIn{Room: "room-1", Content: "hi"})
	req.NoError(err)

	data, err := json.Marshal(env)
	req.NoError(err)

	var decoded Envelope
	req.NoError(json.Unmarshal(data, &decoded))
	req.Equal(EventSendMessage, decoded.Event)

	var in SendMessageIn
	req.NoError(json.Unmarshal(decoded.Payload, &in))
	req.Equal("hi", in.Content)
}
