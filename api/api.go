package api

import "encoding/json"

type ResponseType string

const (
	ResponseTypeError         ResponseType = "error"
	ResponseTypeJoinedRoom    ResponseType = "join-room"
	ResponseTypeNewPlayer     ResponseType = "new-player"
	ResponseTypeNewQuestion   ResponseType = "new-question"
	ResponseTypeStartTimer    ResponseType = "start-timer"
	ResponseTypeShowAnswer    ResponseType = "show-answer"
	ResponseTypeQuizCompleted ResponseType = "quiz-completed"
)

type Response[T any] struct {
	Type    ResponseType `json:"type"`
	Message string       `json:"message,omitempty"`
	Data    T            `json:"data,omitempty"`
}

type RequestType string

const (
	RequestTypeUnknown      RequestType = "unknown"
	RequestTypeJoinRoom     RequestType = "join-room"
	RequestTypeNewPlayer    RequestType = "new-player"
	RequestTypeStartQuiz    RequestType = "start-quiz"
	RequestTypeRecvQuestion RequestType = "recv-question"
	RequestTypeAnswer       RequestType = "answer-question"
	RequestTypeWaitForQuiz  RequestType = "wait-for-quiz"
)

type Request[T any] struct {
	Type RequestType `json:"type"`
	Data T           `json:"data,omitempty"`
}

type EmptyResponseData struct{}

type JoinRoomRequestData struct {
	RoomID string `json:"roomId" validate:"required"`
}

type NewPlayerRequestData struct {
	RoomID   string `json:"roomId"   validate:"required"`
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

type StartQuizRequestData struct {
	RoomID string `json:"roomId" validate:"required"`
	QuizID string `json:"quizId" validate:"required"`
}

type RecvQuestionRequestData struct {
	RoomID string `json:"roomId" validate:"required"`
}

type AnswerRequestData struct {
	RoomID   string `json:"roomId"   validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Answer   string `json:"answer"`
}

type WaitForQuizRequestData struct {
	RoomID   string `json:"roomId"   validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
}

type JoinRoomResponseData struct {
	RoomID string `json:"roomId"`
}

type NewPlayerResponseData struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// NewQuestionResponseData never carries the correct answer.
type NewQuestionResponseData struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

type QuizCompletedResponseData struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	PlayerScore int                `json:"playerScore"`
}

func DecodeJSON[T any](data json.RawMessage) (res T, err error) {
	if len(data) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, err
	}
	return res, nil
}
