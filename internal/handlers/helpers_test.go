package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"toohak-backend/api"
	"toohak-backend/internal/client"
	"toohak-backend/internal/config"
	"toohak-backend/internal/handlers"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var defaultTestConfig = config.Config{
	Room: config.RoomConf{
		RevealTimeout:      31 * time.Second,
		BroadcastTimeout:   5 * time.Second,
		WebsocketReadLimit: 1024,
		EventRateWindow:    time.Second,
		EventRateLimit:     100,
	},
}

type testServer struct {
	*httptest.Server
	store    *store.Store
	hub      *handlers.Hub
	sessions *quiz.Sessions
	clock    *clock.Mock
}

func setupTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()

	st, err := store.Open(config.DBConf{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ts := &testServer{
		store: st,
		hub:   handlers.NewHub(),
		clock: clock.NewMock(),
	}
	ts.sessions = quiz.NewSessions(quiz.SessionOptions{
		Rooms:            st,
		Quizzes:          st,
		Broadcaster:      ts.hub,
		Clock:            ts.clock,
		RevealTimeout:    cfg.Room.RevealTimeout,
		BroadcastTimeout: cfg.Room.BroadcastTimeout,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /ws", handlers.NewGatewayHandler(cfg, st, ts.hub, ts.sessions, websocket.AcceptOptions{}))
	mux.Handle("POST /rooms", handlers.CreateRoomHandler(st, ts.sessions))
	mux.Handle("GET /rooms/{id}", handlers.GetRoomHandler(st, ts.sessions))
	mux.Handle("POST /quizzes", handlers.CreateQuizHandler(st))
	mux.Handle("GET /quizzes/{id}", handlers.GetQuizHandler(st))
	mux.Handle("PUT /quizzes/{id}/questions", handlers.UpdateQuizQuestionsHandler(st))
	mux.Handle("POST /questions", handlers.CreateQuestionHandler(st))
	mux.Handle("GET /questions/{id}", handlers.GetQuestionHandler(st))
	mux.Handle("PATCH /questions/{id}", handlers.UpdateQuestionHandler(st))
	mux.Handle("GET /health", handlers.HealthHandler(ts.sessions))

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) dial(t *testing.T) *client.Client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	cli, err := client.Dial(context.Background(), url, 5*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(cli.Close)

	return cli
}

// newRoom stores a room and installs its session like POST /rooms does.
func (ts *testServer) newRoom(t *testing.T) string {
	t.Helper()

	room, err := ts.store.CreateRoom(context.Background(), "host")
	assertNil(t, err)
	ts.sessions.Create(room.ID)

	return room.ID
}

// newQuiz stores the questions and a quiz listing them in order.
func (ts *testServer) newQuiz(t *testing.T, questions ...store.Question) string {
	t.Helper()

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		created, err := ts.store.CreateQuestion(context.Background(), q)
		assertNil(t, err)
		ids = append(ids, created.ID)
	}
	q, err := ts.store.CreateQuiz(context.Background(), "test quiz", ids)
	assertNil(t, err)

	return q.ID
}

var (
	questionCapital = store.Question{
		Prompt:        "Capital of France?",
		Options:       []string{"Lyon", "Paris", "Nice"},
		CorrectAnswer: "Paris",
	}
	questionMaths = store.Question{
		Prompt:        "2+2?",
		Options:       []string{"3", "4"},
		CorrectAnswer: "4",
	}
)

func assertJoinRoom(t *testing.T, cli *client.Client, roomID string) {
	t.Helper()

	res, err := cli.JoinRoom(roomID)
	assertNil(t, err)
	assertEqual(t, api.ResponseTypeJoinedRoom, res.Type)
	assertEqual(t, api.JoinRoomResponseData{RoomID: roomID}, decode[api.JoinRoomResponseData](t, res.Data))
}

// assertResponse reads the next message of cli, checks its type and
// returns its decoded data.
func assertResponse[T any](t *testing.T, cli *client.Client, typ api.ResponseType) T {
	t.Helper()

	res, err := cli.ReadResponse()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if res.Type != typ {
		t.Fatalf("response type: got %q (%s), want %q", res.Type, res.Data, typ)
	}
	return decode[T](t, res.Data)
}

func assertErrorResponse(t *testing.T, cli *client.Client, code api.WebsocketErrorCode) api.WebsocketErrorData {
	t.Helper()

	data := assertResponse[api.WebsocketErrorData](t, cli, api.ResponseTypeError)
	assertEqual(t, code, data.Code)

	return data
}

// waitFor polls cond until it holds or fails the test after 2 seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	if len(data) == 0 {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func assertEqual(t *testing.T, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assert equal: mismatch (-want +got):\n%s", diff)
	}
}

func assertNil(t *testing.T, got any) {
	t.Helper()
	if !(got == nil || reflect.ValueOf(got).IsNil()) {
		t.Fatalf("assert nil: got %v", got)
	}
}
