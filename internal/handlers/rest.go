package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"toohak-backend/api"
	errs "toohak-backend/internal/errors"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/store"
)

// Store is the persistence used by the HTTP handlers.
type Store interface {
	CreateRoom(ctx context.Context, hostID string) (store.Room, error)
	GetRoom(ctx context.Context, id string) (store.Room, error)
	CreateQuiz(ctx context.Context, name string, questionIDs []string) (store.Quiz, error)
	GetQuiz(ctx context.Context, id string) (store.Quiz, error)
	UpdateQuizQuestions(ctx context.Context, id string, questionIDs []string) error
	CreateQuestion(ctx context.Context, q store.Question) (store.Question, error)
	GetQuestion(ctx context.Context, id string) (store.Question, error)
	UpdateQuestion(ctx context.Context, id string, u store.QuestionUpdate) (store.Question, error)
}

// CreateRoomHandler stores a new room and installs a fresh quiz session
// for it.
func CreateRoomHandler(st Store, sessions *quiz.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeBody[api.CreateRoomRequest](r)
		if err != nil {
			errs.WriteHTTPError(ctx, w, err)
			return
		}

		room, err := st.CreateRoom(ctx, req.HostID)
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPInternalServerError(err))
			return
		}
		sessions.Create(room.ID)

		slog.InfoContext(ctx, "room created", slog.String("room_id", room.ID))
		writeJSON(ctx, w, http.StatusCreated, RoomToAPIResponse(room, nil))
	}
}

// GetRoomHandler returns the stored room along with its live session.
func GetRoomHandler(st Store, sessions *quiz.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := r.PathValue("id")
		if id == "" {
			errs.WriteHTTPError(ctx, w, errs.MissingURLQueryError("id"))
			return
		}

		room, err := st.GetRoom(ctx, id)
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "room"))
			return
		}

		sess, _ := sessions.Get(id)
		writeJSON(ctx, w, http.StatusOK, RoomToAPIResponse(room, sess))
	}
}

// RoomToAPIResponse converts a room to an API representation. sess may
// be nil.
func RoomToAPIResponse(room store.Room, sess *quiz.Session) api.RoomData {
	data := api.RoomData{
		ID:        room.ID,
		HostID:    room.HostID,
		PlayerIDs: room.PlayerIDs,
		State:     string(room.State),
		Created:   room.Created.Format(time.RFC3339),
	}
	if data.PlayerIDs == nil {
		data.PlayerIDs = []string{}
	}
	if sess != nil {
		snap := sess.Snapshot()
		data.Session = &api.RoomSessionData{
			Phase:         snap.Phase.String(),
			QuizID:        snap.QuizID,
			QuestionIndex: snap.QuestionIndex,
			PlayerCount:   snap.PlayerCount,
			Scores:        snap.Scores,
		}
	}
	return data
}

func CreateQuizHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeBody[api.CreateQuizRequest](r)
		if err != nil {
			errs.WriteHTTPError(ctx, w, err)
			return
		}

		q, err := st.CreateQuiz(ctx, req.Name, req.QuestionIDs)
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPInternalServerError(err))
			return
		}
		writeJSON(ctx, w, http.StatusCreated, api.CreatedResponse{ID: q.ID})
	}
}

func GetQuizHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		q, err := st.GetQuiz(ctx, r.PathValue("id"))
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "quiz"))
			return
		}
		writeJSON(ctx, w, http.StatusOK, QuizToAPIResponse(q))
	}
}

// UpdateQuizQuestionsHandler replaces the ordered question list of a quiz.
func UpdateQuizQuestionsHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")

		req, err := decodeBody[api.UpdateQuizQuestionsRequest](r)
		if err != nil {
			errs.WriteHTTPError(ctx, w, err)
			return
		}

		if err := st.UpdateQuizQuestions(ctx, id, req.QuestionIDs); err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "quiz"))
			return
		}

		q, err := st.GetQuiz(ctx, id)
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "quiz"))
			return
		}
		writeJSON(ctx, w, http.StatusOK, QuizToAPIResponse(q))
	}
}

func QuizToAPIResponse(q store.Quiz) api.QuizData {
	data := api.QuizData{
		ID:          q.ID,
		Name:        q.Name,
		QuestionIDs: q.QuestionIDs,
	}
	if data.QuestionIDs == nil {
		data.QuestionIDs = []string{}
	}
	return data
}

func CreateQuestionHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeBody[api.CreateQuestionRequest](r)
		if err != nil {
			errs.WriteHTTPError(ctx, w, err)
			return
		}

		q, err := st.CreateQuestion(ctx, store.Question{
			Prompt:        req.Question,
			Options:       req.Answers,
			CorrectAnswer: req.CorrectAnswer,
			Type:          req.Type,
		})
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPInternalServerError(err))
			return
		}
		writeJSON(ctx, w, http.StatusCreated, api.CreatedResponse{ID: q.ID})
	}
}

func GetQuestionHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		q, err := st.GetQuestion(ctx, r.PathValue("id"))
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "question"))
			return
		}
		writeJSON(ctx, w, http.StatusOK, QuestionToAPIResponse(q))
	}
}

// UpdateQuestionHandler applies a partial update to a question.
func UpdateQuestionHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeBody[api.UpdateQuestionRequest](r)
		if err != nil {
			errs.WriteHTTPError(ctx, w, err)
			return
		}

		q, err := st.UpdateQuestion(ctx, r.PathValue("id"), store.QuestionUpdate{
			Prompt:        req.Question,
			Options:       req.Answers,
			CorrectAnswer: req.CorrectAnswer,
			Type:          req.Type,
		})
		if err != nil {
			errs.WriteHTTPError(ctx, w, errs.HTTPStoreError(err, "question"))
			return
		}
		writeJSON(ctx, w, http.StatusOK, QuestionToAPIResponse(q))
	}
}

func QuestionToAPIResponse(q store.Question) api.QuestionData {
	return api.QuestionData{
		ID:            q.ID,
		Question:      q.Prompt,
		Answers:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Type:          q.Type,
	}
}

func HealthHandler(sessions *quiz.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, api.HealthResponse{
			Running: true,
			Rooms:   sessions.Len(),
		})
	}
}

func decodeBody[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, errs.InvalidBodyError(err, nil)
	}
	if err := validate.Struct(v); err != nil {
		return v, errs.InvalidBodyError(err, validationFields(err))
	}
	return v, nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", slog.Any("error", err))
	}
}
