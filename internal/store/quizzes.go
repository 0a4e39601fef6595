package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const DefaultQuestionType = "MCQ"

type Quiz struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"questionIds"`
}

type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Type          string   `json:"type"`
}

// QuestionUpdate holds the question fields to change, nil fields are kept.
type QuestionUpdate struct {
	Prompt        *string
	Options       []string
	CorrectAnswer *string
	Type          *string
}

func (s *Store) CreateQuiz(ctx context.Context, name string, questionIDs []string) (Quiz, error) {
	quiz := Quiz{
		ID:          uuid.New().String(),
		Name:        name,
		QuestionIDs: slices.Clone(questionIDs),
	}
	if quiz.QuestionIDs == nil {
		quiz.QuestionIDs = []string{}
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, quizPrefix+quiz.ID, quiz)
	})
	if err != nil {
		return Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var quiz Quiz
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, quizPrefix+id, &quiz)
	})
	if err != nil {
		return Quiz{}, fmt.Errorf("get quiz %q: %w", id, err)
	}
	return quiz, nil
}

// UpdateQuizQuestions replaces the ordered question list of a quiz.
func (s *Store) UpdateQuizQuestions(ctx context.Context, id string, questionIDs []string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		var quiz Quiz
		if err := getJSON(txn, quizPrefix+id, &quiz); err != nil {
			return err
		}
		quiz.QuestionIDs = slices.Clone(questionIDs)
		return setJSON(txn, quizPrefix+id, quiz)
	})
	if err != nil {
		return fmt.Errorf("update quiz questions %q: %w", id, err)
	}
	return nil
}

func (s *Store) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	q.ID = uuid.New().String()
	q.Options = slices.Clone(q.Options)
	if q.Type == "" {
		q.Type = DefaultQuestionType
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, questionPrefix+q.ID, q)
	})
	if err != nil {
		return Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (Question, error) {
	var q Question
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, questionPrefix+id, &q)
	})
	if err != nil {
		return Question{}, fmt.Errorf("get question %q: %w", id, err)
	}
	return q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, id string, u QuestionUpdate) (Question, error) {
	var q Question
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := getJSON(txn, questionPrefix+id, &q); err != nil {
			return err
		}
		if u.Prompt != nil {
			q.Prompt = *u.Prompt
		}
		if u.Options != nil {
			q.Options = slices.Clone(u.Options)
		}
		if u.CorrectAnswer != nil {
			q.CorrectAnswer = *u.CorrectAnswer
		}
		if u.Type != nil {
			q.Type = *u.Type
		}
		return setJSON(txn, questionPrefix+id, q)
	})
	if err != nil {
		return Question{}, fmt.Errorf("update question %q: %w", id, err)
	}
	return q, nil
}
