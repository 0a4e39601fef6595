package api

type CreateRoomRequest struct {
	HostID string `json:"hostId" validate:"required,max=64"`
}

type RoomData struct {
	ID        string   `json:"id"`
	HostID    string   `json:"hostId"`
	PlayerIDs []string `json:"playerIds"`
	State     string   `json:"state"`
	Created   string   `json:"created"`

	// Session is set while a quiz session is live for the room.
	Session *RoomSessionData `json:"session,omitempty"`
}

type RoomSessionData struct {
	Phase         string         `json:"phase"`
	QuizID        string         `json:"quizId,omitempty"`
	QuestionIndex int            `json:"questionIndex"`
	PlayerCount   int            `json:"playerCount"`
	Scores        map[string]int `json:"scores"`
}

type CreateQuizRequest struct {
	Name        string   `json:"name"        validate:"required,max=128"`
	QuestionIDs []string `json:"questionIds" validate:"dive,required"`
}

type UpdateQuizQuestionsRequest struct {
	QuestionIDs []string `json:"questionIds" validate:"required,dive,required"`
}

type QuizData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"questionIds"`
}

type CreateQuestionRequest struct {
	Question      string   `json:"question"      validate:"required"`
	Answers       []string `json:"answers"       validate:"required,min=2,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	Type          string   `json:"type,omitempty"`
}

// UpdateQuestionRequest only applies the fields that are set.
type UpdateQuestionRequest struct {
	Question      *string  `json:"question,omitempty"      validate:"omitempty,min=1"`
	Answers       []string `json:"answers,omitempty"       validate:"omitempty,min=2,dive,required"`
	CorrectAnswer *string  `json:"correctAnswer,omitempty" validate:"omitempty,min=1"`
	Type          *string  `json:"type,omitempty"          validate:"omitempty,min=1"`
}

type QuestionData struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correctAnswer"`
	Type          string   `json:"type"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type HealthResponse struct {
	Running bool `json:"running"`
	Rooms   int  `json:"rooms"`
}
