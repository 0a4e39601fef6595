package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"toohak-backend/api"
	"toohak-backend/internal/store"

	"github.com/benbjohnson/clock"
)

type Phase int

const (
	PhaseWaitingForPlayers Phase = iota
	PhaseQuestionActive
	PhaseAwaitingReady
	PhaseCompleted
)

var phaseToString = map[Phase]string{
	PhaseWaitingForPlayers: "waiting for players",
	PhaseQuestionActive:    "question active",
	PhaseAwaitingReady:     "awaiting ready",
	PhaseCompleted:         "completed",
}

func (p Phase) String() string {
	if s, ok := phaseToString[p]; ok {
		return s
	}
	return "unknown"
}

var (
	ErrInvalidPhase    = errors.New("event not allowed in current phase")
	ErrNoQuestions     = errors.New("quiz has no questions")
	ErrAlreadyAnswered = errors.New("player already answered")
	ErrSessionNotFound = errors.New("session not found")
)

// Broadcaster delivers a message to every connection of a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, v any) error
}

// RoomDirectory persists room metadata.
type RoomDirectory interface {
	AppendPlayer(ctx context.Context, roomID, playerID string) error
	UpdateRoom(ctx context.Context, roomID string, u store.RoomUpdate) error
}

// QuizStore resolves quizzes and their questions.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (store.Quiz, error)
	GetQuestion(ctx context.Context, questionID string) (store.Question, error)
}

// Session coordinates a quiz run in a single room.
//
// Every exported method holds the session lock for its whole duration,
// store round-trips included, so events of a same room are serialized
// while other rooms proceed independently.
type Session struct {
	roomID     string
	opts       SessionOptions
	log        *slog.Logger
	onComplete func(*Session)

	mu              sync.Mutex
	phase           Phase
	quizID          string
	questionIndex   int
	currentQuestion *store.Question
	playerScores    map[string]int
	conns           map[string]struct{}
	playerCount     int
	answered        map[string]struct{}

	recvQuestionAck     int
	recvAnswerAck       int
	recvReadyForNextAck int
	lastReady           string

	// revealTimer is the pending reveal deadline, revealToken identifies the
	// question it was armed for.
	revealTimer *clock.Timer
	revealToken uint64
}

func newSession(roomID string, opts SessionOptions, onComplete func(*Session)) *Session {
	return &Session{
		roomID:       roomID,
		opts:         opts,
		log:          slog.With(slog.String("room_id", roomID)),
		onComplete:   onComplete,
		phase:        PhaseWaitingForPlayers,
		playerScores: map[string]int{},
		conns:        map[string]struct{}{},
		answered:     map[string]struct{}{},
	}
}

// RoomID returns the room this session runs in.
func (s *Session) RoomID() string {
	return s.roomID
}

// Phase returns the current session phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// PlayerCount returns the number of connected players.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerCount
}

// Scores returns a copy of the player scores.
func (s *Session) Scores() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.playerScores)
}

type Snapshot struct {
	RoomID              string
	QuizID              string
	Phase               Phase
	QuestionIndex       int
	PlayerCount         int
	Connections         int
	Scores              map[string]int
	RecvQuestionAck     int
	RecvAnswerAck       int
	RecvReadyForNextAck int
	RevealPending       bool
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RoomID:              s.roomID,
		QuizID:              s.quizID,
		Phase:               s.phase,
		QuestionIndex:       s.questionIndex,
		PlayerCount:         s.playerCount,
		Connections:         len(s.conns),
		Scores:              maps.Clone(s.playerScores),
		RecvQuestionAck:     s.recvQuestionAck,
		RecvAnswerAck:       s.recvAnswerAck,
		RecvReadyForNextAck: s.recvReadyForNextAck,
		RevealPending:       s.revealTimer != nil,
	}
}

// Join registers a player connection in the room and announces it.
// A room directory failure is logged and does not prevent the join.
func (s *Session) Join(ctx context.Context, playerID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseCompleted {
		return s.invalidPhase(ctx, "join")
	}

	if _, known := s.playerScores[playerID]; !known {
		if err := s.opts.Rooms.AppendPlayer(ctx, s.roomID, playerID); err != nil {
			s.log.ErrorContext(ctx, "append player to room",
				slog.String("player_id", playerID),
				slog.Any("error", err))
		}
		s.playerScores[playerID] = 0
	}

	if _, ok := s.conns[connID]; !ok {
		s.conns[connID] = struct{}{}
		s.playerCount++
	}

	s.broadcast(ctx, api.Response[api.NewPlayerResponseData]{
		Type: api.ResponseTypeNewPlayer,
		Data: api.NewPlayerResponseData{
			RoomID:   s.roomID,
			PlayerID: playerID,
		},
	})

	s.log.InfoContext(ctx, "player joined",
		slog.String("player_id", playerID),
		slog.Int("player_count", s.playerCount))

	return nil
}

// StartQuiz loads the first question of quizID and opens it.
// The session stays in the waiting phase if the quiz is empty or
// cannot be fetched. The room is marked active only after the first
// question was fetched, so a failed start leaves it inactive.
func (s *Session) StartQuiz(ctx context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseWaitingForPlayers {
		return s.invalidPhase(ctx, "start quiz")
	}

	s.quizID = quizID
	s.questionIndex = 0

	question, ok, err := s.fetchQuestion(ctx, 0)
	if err == nil && !ok {
		err = ErrNoQuestions
	}
	if err != nil {
		s.quizID = ""
		s.log.ErrorContext(ctx, "start quiz",
			slog.String("quiz_id", quizID),
			slog.Any("error", err))
		return fmt.Errorf("start quiz %q: %w", quizID, err)
	}

	if err := s.opts.Rooms.UpdateRoom(ctx, s.roomID, store.StateUpdate{State: store.RoomStateActive}); err != nil {
		s.log.ErrorContext(ctx, "set room active", slog.Any("error", err))
	}

	s.openQuestion(ctx, question)

	s.log.InfoContext(ctx, "quiz started", slog.String("quiz_id", quizID))

	return nil
}

// AckQuestion records that a client received the current question.
// Once every player did, a start-timer signal is broadcast. The reveal
// deadline does not depend on it.
func (s *Session) AckQuestion(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestionActive {
		return s.invalidPhase(ctx, "question ack")
	}

	s.recvQuestionAck++
	if !s.quorum(s.recvQuestionAck) {
		return nil
	}

	s.broadcast(ctx, api.Response[api.EmptyResponseData]{
		Type: api.ResponseTypeStartTimer,
	})
	s.resetAcks()

	return nil
}

// SubmitAnswer records a player's answer to the current question. The
// answer is revealed as soon as every player answered.
func (s *Session) SubmitAnswer(ctx context.Context, playerID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestionActive {
		return s.invalidPhase(ctx, "answer")
	}
	if _, ok := s.answered[playerID]; ok {
		return ErrAlreadyAnswered
	}
	s.answered[playerID] = struct{}{}

	s.recvAnswerAck++
	if answer == s.currentQuestion.CorrectAnswer {
		s.playerScores[playerID]++
	}

	if s.quorum(s.recvAnswerAck) {
		s.reveal(ctx)
	}

	return nil
}

// ReadyForNext records that a player is done with the revealed answer.
// When every player is ready the next question is opened, or the quiz
// completes if none is left.
//
// A store failure leaves the session awaiting; the next ready event
// retries the advance.
func (s *Session) ReadyForNext(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingReady {
		return s.invalidPhase(ctx, "ready for next")
	}

	s.recvReadyForNextAck++
	s.lastReady = playerID
	if !s.quorum(s.recvReadyForNextAck) {
		return nil
	}

	return s.advance(ctx, playerID)
}

// advance opens the next question or completes the quiz. playerID is the
// player whose score the completion event carries.
func (s *Session) advance(ctx context.Context, playerID string) error {
	question, ok, err := s.fetchQuestion(ctx, s.questionIndex)
	if err != nil {
		s.log.ErrorContext(ctx, "advance question",
			slog.Int("question_index", s.questionIndex),
			slog.Any("error", err))
		return fmt.Errorf("advance question: %w", err)
	}
	if !ok {
		s.complete(ctx, playerID)
		return nil
	}

	s.openQuestion(ctx, question)

	return nil
}

// disconnect detaches a connection from the room. It reports whether the
// connection belonged to this session. Scores are kept.
//
// The remaining players may already form a quorum, in which case the
// pending step runs now. A session left without connections is abandoned.
func (s *Session) disconnect(ctx context.Context, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[connID]; !ok {
		return false
	}
	delete(s.conns, connID)
	s.playerCount--

	s.log.InfoContext(ctx, "connection left",
		slog.String("conn_id", connID),
		slog.Int("player_count", s.playerCount))

	if len(s.conns) == 0 {
		s.abandon(ctx)
		return true
	}

	switch s.phase {
	case PhaseQuestionActive:
		if s.quorum(s.recvAnswerAck) {
			s.reveal(ctx)
			break
		}
		if s.quorum(s.recvQuestionAck) {
			s.broadcast(ctx, api.Response[api.EmptyResponseData]{
				Type: api.ResponseTypeStartTimer,
			})
			s.resetAcks()
		}
	case PhaseAwaitingReady:
		if s.quorum(s.recvReadyForNextAck) {
			// Failures are logged, the next ready event retries.
			_ = s.advance(ctx, s.lastReady)
		}
	}

	return true
}

// abandon ends a session nobody is connected to anymore.
func (s *Session) abandon(ctx context.Context) {
	if s.phase == PhaseCompleted {
		return
	}
	if s.phase != PhaseWaitingForPlayers {
		if err := s.opts.Rooms.UpdateRoom(ctx, s.roomID, store.StateUpdate{State: store.RoomStateInactive}); err != nil {
			s.log.ErrorContext(ctx, "set room inactive", slog.Any("error", err))
		}
	}

	s.stopRevealTimer()
	s.phase = PhaseCompleted

	s.log.InfoContext(ctx, "session abandoned")

	if s.onComplete != nil {
		s.onComplete(s)
	}
}

// Close stops the pending reveal and ends the session without broadcast.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRevealTimer()
	s.phase = PhaseCompleted
}

func (s *Session) quorum(acks int) bool {
	return s.playerCount > 0 && acks >= s.playerCount
}

func (s *Session) resetAcks() {
	s.recvQuestionAck = 0
	s.recvAnswerAck = 0
	s.recvReadyForNextAck = 0
}

// fetchQuestion returns the question at index of the session quiz.
// The bool is false once index is past the last question.
func (s *Session) fetchQuestion(ctx context.Context, index int) (store.Question, bool, error) {
	quiz, err := s.opts.Quizzes.GetQuiz(ctx, s.quizID)
	if err != nil {
		return store.Question{}, false, err
	}
	if index >= len(quiz.QuestionIDs) {
		return store.Question{}, false, nil
	}
	question, err := s.opts.Quizzes.GetQuestion(ctx, quiz.QuestionIDs[index])
	if err != nil {
		return store.Question{}, false, err
	}
	return question, true, nil
}

func (s *Session) openQuestion(ctx context.Context, question store.Question) {
	s.currentQuestion = &question
	s.phase = PhaseQuestionActive
	s.resetAcks()
	clear(s.answered)

	s.broadcast(ctx, api.Response[api.NewQuestionResponseData]{
		Type: api.ResponseTypeNewQuestion,
		Data: api.NewQuestionResponseData{
			Question: question.Prompt,
			Answers:  question.Options,
		},
	})

	s.armRevealTimer()
	s.questionIndex++
}

func (s *Session) armRevealTimer() {
	s.stopRevealTimer()
	s.revealToken++
	token := s.revealToken
	s.revealTimer = s.opts.Clock.AfterFunc(s.opts.RevealTimeout, func() {
		s.revealDeadline(token)
	})
}

func (s *Session) stopRevealTimer() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
}

// revealDeadline fires when the reveal timer expires. It is a no-op if the
// question it was armed for has already been revealed.
func (s *Session) revealDeadline(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestionActive || token != s.revealToken {
		return
	}
	s.revealTimer = nil

	ctx := context.Background()
	s.log.InfoContext(ctx, "reveal deadline reached",
		slog.Int("answers", s.recvAnswerAck),
		slog.Int("player_count", s.playerCount))

	s.reveal(ctx)
}

// reveal must be called with the lock held and in the question phase.
func (s *Session) reveal(ctx context.Context) {
	s.stopRevealTimer()
	s.phase = PhaseAwaitingReady

	s.broadcast(ctx, api.Response[string]{
		Type: api.ResponseTypeShowAnswer,
		Data: s.currentQuestion.CorrectAnswer,
	})
}

func (s *Session) complete(ctx context.Context, playerID string) {
	leaderboard := Leaderboard(s.playerScores, LeaderboardSize)

	if err := s.opts.Rooms.UpdateRoom(ctx, s.roomID, store.StateUpdate{State: store.RoomStateInactive}); err != nil {
		s.log.ErrorContext(ctx, "set room inactive", slog.Any("error", err))
	}

	s.stopRevealTimer()
	s.phase = PhaseCompleted

	s.broadcast(ctx, api.Response[api.QuizCompletedResponseData]{
		Type: api.ResponseTypeQuizCompleted,
		Data: api.QuizCompletedResponseData{
			Leaderboard: leaderboard,
			PlayerScore: s.playerScores[playerID],
		},
	})

	s.log.InfoContext(ctx, "quiz completed", slog.String("quiz_id", s.quizID))

	if s.onComplete != nil {
		s.onComplete(s)
	}
}

// broadcast outlives the cancellation of the requester's context since
// the rest of the room still has to be notified.
func (s *Session) broadcast(ctx context.Context, v any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.BroadcastTimeout)
	defer cancel()
	if err := s.opts.Broadcaster.Broadcast(ctx, s.roomID, v); err != nil {
		s.log.ErrorContext(ctx, "broadcast", slog.Any("error", err))
	}
}

func (s *Session) invalidPhase(ctx context.Context, event string) error {
	s.log.WarnContext(ctx, "event ignored",
		slog.String("event", event),
		slog.String("phase", s.phase.String()))
	return fmt.Errorf("%s during %s: %w", event, s.phase, ErrInvalidPhase)
}
