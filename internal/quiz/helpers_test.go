package quiz_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"toohak-backend/api"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type broadcast struct {
	RoomID string
	Type   api.ResponseType
	Data   json.RawMessage
}

// recorder is a quiz.Broadcaster keeping every broadcast in order.
type recorder struct {
	mu     sync.Mutex
	events []broadcast
}

func (r *recorder) Broadcast(_ context.Context, roomID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res := api.Response[json.RawMessage]{}
	if err := json.Unmarshal(b, &res); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, broadcast{RoomID: roomID, Type: res.Type, Data: res.Data})
	return nil
}

func (r *recorder) ofType(typ api.ResponseType) []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []broadcast
	for _, e := range r.events {
		if e.Type == typ {
			res = append(res, e)
		}
	}
	return res
}

func (r *recorder) count(typ api.ResponseType) int {
	return len(r.ofType(typ))
}

func (r *recorder) last(t *testing.T, typ api.ResponseType) broadcast {
	t.Helper()
	events := r.ofType(typ)
	if len(events) == 0 {
		t.Fatalf("no %q broadcast recorded", typ)
	}
	return events[len(events)-1]
}

// waitForCount polls until n broadcasts of typ were recorded. Reveal
// timers of the mock clock run on their own goroutine.
func (r *recorder) waitForCount(t *testing.T, typ api.ResponseType, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(typ) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q broadcasts, got %d", n, typ, r.count(typ))
}

// fakeStore is an in-memory room directory and quiz store.
type fakeStore struct {
	mu          sync.Mutex
	quizzes     map[string]store.Quiz
	questions   map[string]store.Question
	players     map[string][]string
	states      map[string]store.RoomState
	appendErr   error
	questionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quizzes:   map[string]store.Quiz{},
		questions: map[string]store.Question{},
		players:   map[string][]string{},
		states:    map[string]store.RoomState{},
	}
}

func (f *fakeStore) addQuiz(id string, questions ...store.Question) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quiz := store.Quiz{ID: id, Name: id, QuestionIDs: []string{}}
	for _, q := range questions {
		f.questions[q.ID] = q
		quiz.QuestionIDs = append(quiz.QuestionIDs, q.ID)
	}
	f.quizzes[id] = quiz
}

func (f *fakeStore) setQuestionErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionErr = err
}

func (f *fakeStore) AppendPlayer(_ context.Context, roomID, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.players[roomID] = append(f.players[roomID], playerID)
	return nil
}

func (f *fakeStore) UpdateRoom(_ context.Context, roomID string, u store.RoomUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch u := u.(type) {
	case store.StateUpdate:
		f.states[roomID] = u.State
	case store.PlayerIDsUpdate:
		f.players[roomID] = slices.Clone(u.PlayerIDs)
	default:
		return fmt.Errorf("unexpected room update %T", u)
	}
	return nil
}

func (f *fakeStore) state(roomID string) store.RoomState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[roomID]
}

func (f *fakeStore) GetQuiz(_ context.Context, quizID string) (store.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quiz, ok := f.quizzes[quizID]
	if !ok {
		return store.Quiz{}, fmt.Errorf("get quiz %q: %w", quizID, store.ErrNotFound)
	}
	return quiz, nil
}

func (f *fakeStore) GetQuestion(_ context.Context, questionID string) (store.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.questionErr != nil {
		return store.Question{}, f.questionErr
	}
	q, ok := f.questions[questionID]
	if !ok {
		return store.Question{}, fmt.Errorf("get question %q: %w", questionID, store.ErrNotFound)
	}
	return q, nil
}

type testEnv struct {
	store    *fakeStore
	rec      *recorder
	clock    *clock.Mock
	sessions *quiz.Sessions
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: newFakeStore(),
		rec:   &recorder{},
		clock: clock.NewMock(),
	}
	env.sessions = quiz.NewSessions(quiz.SessionOptions{
		Rooms:       env.store,
		Quizzes:     env.store,
		Broadcaster: env.rec,
		Clock:       env.clock,
	})
	return env
}

var errStoreDown = errors.New("store down")

var (
	questionCapital = store.Question{
		ID:            "q1",
		Prompt:        "Capital of France?",
		Options:       []string{"Lyon", "Paris", "Nice"},
		CorrectAnswer: "Paris",
	}
	questionMaths = store.Question{
		ID:            "q2",
		Prompt:        "2+2?",
		Options:       []string{"3", "4"},
		CorrectAnswer: "4",
	}
)

// joinPlayers joins every player with a connection named after it.
func joinPlayers(t *testing.T, sess *quiz.Session, players ...string) {
	t.Helper()
	for _, p := range players {
		assertNil(t, sess.Join(context.Background(), p, "conn-"+p))
	}
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
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
		t.Errorf("assert nil: got %v", got)
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("assert error is: got %v, want %v", err, target)
	}
}
