package test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"roomcast/auth"
	"roomcast/domain/event"
	"roomcast/moderation"
	"roomcast/repositories"
	"roomcast/runtime"
	"roomcast/runtime/workers"
	"roomcast/search"
	"roomcast/server"
	"roomcast/services"
	"roomcast/transport/ws"
)

const testPassword = "Str0ng&Secret!"

// stack is the full service wired against throwaway storage, listening on
// an ephemeral port.
type stack struct {
	srv *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, writer.Close()) })

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	require.NoError(t, err)

	users := repositories.NewUserRepository(db)
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)

	registry := runtime.NewRegistry(log)
	tokens := auth.NewTokenManager("test-secret", "roomcast", "roomcast-clients", time.Hour)
	authenticator := auth.NewAuthenticator(tokens, users, time.Second, log)

	events := make(chan event.DomainEvent, 64)
	index := search.NewMessageIndex(writer, log)
	indexSink := search.NewIndexSink(index, log)

	supervisor := workers.NewSupervisor(log)
	supervisor.Add(workers.NewFanoutWorker(log, events, time.Second, indexSink))
	go supervisor.Run(t.Context())
	t.Cleanup(supervisor.Stop)

	authService := services.NewAuthService(users, tokens, log)
	roomService := services.NewRoomService(rooms, registry, log)
	messageService := services.NewMessageService(messages, rooms, registry, moderator, index, events, 4096, log)

	router := ws.NewRouter(roomService, messageService, log)
	wsHandler := ws.NewHandler(authenticator, router, roomService, 16, log)

	s := server.NewServer("127.0.0.1:0", authenticator, authService, roomService, messageService, wsHandler, log)
	httpSrv := httptest.NewServer(s.Handler())
	t.Cleanup(httpSrv.Close)

	return &stack{srv: httpSrv}
}

func (s *stack) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (s *stack) register(t *testing.T, name, email string) string {
	t.Helper()
	resp := s.post(t, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": testPassword,
	})
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Token
}

func (s *stack) createRoom(t *testing.T, token, name string) string {
	t.Helper()
	resp := s.post(t, "/api/rooms", token, map[string]string{"name": name})
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.ID
}

// wsClient is a live websocket session for one user.
type wsClient struct {
	conn *websocket.Conn
}

func (s *stack) connect(t *testing.T, token string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		require.NoError(t, resp.Body.Close())
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{conn: conn}
}

func (c *wsClient) send(t *testing.T, eventName string, payload any) {
	t.Helper()
	env, err := ws.NewEnvelope(eventName, payload)
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteJSON(env))
}

// expect reads frames until one with the wanted event arrives, skipping
// everything else. Fails the test after the deadline.
func (c *wsClient) expect(t *testing.T, eventName string) json.RawMessage {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var env ws.Envelope
		require.NoError(t, c.conn.ReadJSON(&env), "waiting for %q", eventName)
		if env.Event == eventName {
			return env.Payload
		}
	}
}

func (c *wsClient) expectRoster(t *testing.T, users ...string) {
	t.Helper()
	payload := c.expect(t, ws.EventUsersInRoom)
	var out ws.RosterOut
	require.NoError(t, json.Unmarshal(payload, &out))
	names := lo.Map(out.Members, func(m ws.MemberOut, _ int) string { return m.Name })
	require.ElementsMatch(t, users, names)
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	aliceToken := s.register(t, "Alice", "alice@example.com")
	bobToken := s.register(t, "Bob", "bob@example.com")
	roomID := s.createRoom(t, aliceToken, "general")

	// 1. Alice connects and joins: she is alone on the roster
	alice := s.connect(t, aliceToken)
	alice.send(t, ws.EventJoinRoom, ws.RoomRef{Room: roomID})
	alice.expect(t, ws.EventJoinedRoom)
	alice.expectRoster(t, "Alice")

	// 2. Bob joins: everyone sees both of them
	bob := s.connect(t, bobToken)
	bob.send(t, ws.EventJoinRoom, ws.RoomRef{Room: roomID})
	bob.expect(t, ws.EventJoinedRoom)
	bob.expectRoster(t, "Alice", "Bob")
	alice.expectRoster(t, "Alice", "Bob")

	// 3. Alice posts: sender and receiver both get the broadcast
	alice.send(t, ws.EventSendMessage, ws.SendMessageIn{Room: roomID, Content: "hello"})
	for _, c := range []*wsClient{alice, bob} {
		var msg ws.MessageOut
		req.NoError(json.Unmarshal(c.expect(t, ws.EventNewMessage), &msg))
		req.Equal("hello", msg.Content)
	}

	// 4. Messages from one author arrive in the order they were sent
	bob.send(t, ws.EventSendMessage, ws.SendMessageIn{Room: roomID, Content: "first"})
	bob.send(t, ws.EventSendMessage, ws.SendMessageIn{Room: roomID, Content: "second"})
	var got []string
	for range 2 {
		var msg ws.MessageOut
		req.NoError(json.Unmarshal(alice.expect(t, ws.EventNewMessage), &msg))
		got = append(got, msg.Content)
	}
	req.Equal([]string{"first", "second"}, got)

	// 5. Forbidden words never reach the room in the clear
	bob.send(t, ws.EventSendMessage, ws.SendMessageIn{Room: roomID, Content: "what a badword here"})
	var censored ws.MessageOut
	req.NoError(json.Unmarshal(alice.expect(t, ws.EventNewMessage), &censored))
	req.Equal("what a ******* here", censored.Content)

	// 6. Alice's socket dies abruptly: Bob sees the shrunk roster
	req.NoError(alice.conn.Close())
	bob.expectRoster(t, "Bob")

	// 7. History survives the disconnect
	resp := s.post(t, "/api/login", "", map[string]string{
		"email": "alice@example.com", "password": testPassword,
	})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NoError(resp.Body.Close())

	historyReq, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/rooms/"+roomID+"/messages", nil)
	req.NoError(err)
	historyReq.Header.Set("Authorization", "Bearer "+aliceToken)
	historyResp, err := s.srv.Client().Do(historyReq)
	req.NoError(err)
	defer func() { req.NoError(historyResp.Body.Close()) }()
	req.Equal(http.StatusOK, historyResp.StatusCode)

	var page struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	req.NoError(json.NewDecoder(historyResp.Body).Decode(&page))
	req.Len(page.Messages, 4)
	// Newest first
	req.Equal("what a ******* here", page.Messages[0].Content)
	req.Equal("hello", page.Messages[3].Content)
}

func Test_SendWithoutJoinIsRejected(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	token := s.register(t, "Alice", "alice@example.com")
	roomID := s.createRoom(t, token, "general")

	client := s.connect(t, token)
	client.send(t, ws.EventSendMessage, ws.SendMessageIn{Room: roomID, Content: "sneaky"})

	payload := client.expect(t, ws.EventError)
	var out struct {
		Code string `json:"code"`
	}
	req.NoError(json.Unmarshal(payload, &out))
	req.Equal("AUTHORIZATION", out.Code)
}

func Test_HandshakeRequiresValidToken(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.NoError(resp.Body.Close())
}

func Test_QueryTokenHandshake(t *testing.T) {
	s := newStack(t)
	token := s.register(t, "Alice", "alice@example.com")
	roomID := s.createRoom(t, token, "general")

	// Browser clients cannot set headers on a websocket; the token rides
	// the query string instead.
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		require.NoError(t, resp.Body.Close())
	}
	t.Cleanup(func() { _ = conn.Close() })

	client := &wsClient{conn: conn}
	client.send(t, ws.EventJoinRoom, ws.RoomRef{Room: roomID})
	client.expect(t, ws.EventJoinedRoom)
	client.expectRoster(t, "Alice")
}
