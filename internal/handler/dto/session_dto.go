package dto

import (
	"time"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// QuestionOption - вариант ответа с явным индексом. Клиенты отвечают
// индексом, поэтому отдаем его рядом с текстом, а не позицией в массиве.
type QuestionOption struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// QuestionResponse представляет вопрос в формате для ответа клиенту.
// Правильный вариант в ответ не попадает никогда.
type QuestionResponse struct {
	ID            uint             `json:"id"`
	QuestionSetID uint             `json:"question_set_id"`
	Text          string           `json:"text"`
	Options       []QuestionOption `json:"options"`
	TimeLimitSec  int              `json:"time_limit_sec"`
	PointValue    int              `json:"point_value"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// QuestionSetResponse представляет набор вопросов в формате для ответа клиенту
type QuestionSetResponse struct {
	ID            uint               `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	QuestionCount int                `json:"question_count"`
	Questions     []QuestionResponse `json:"questions,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SessionResponse представляет сессию в формате для ответа клиенту
type SessionResponse struct {
	ID              string     `json:"id"`
	QuestionSetID   uint       `json:"question_set_id"`
	MasterID        string     `json:"master_id"`
	Status          string     `json:"status"`
	CurrentQuestion int        `json:"current_question"`
	QuestionCount   int        `json:"question_count"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// SessionResultResponse представляет итог участника в формате для ответа клиенту
type SessionResultResponse struct {
	ParticipantID   string    `json:"participant_id"`
	DisplayName     string    `json:"display_name"`
	TeamName        string    `json:"team_name,omitempty"`
	Score           int       `json:"score"`
	CorrectAnswers  int       `json:"correct_answers"`
	TotalQuestions  int       `json:"total_questions"`
	Rank            int       `json:"rank"`
	LastCorrectAtMs int64     `json:"last_correct_at_ms"`
	CompletedAt     time.Time `json:"completed_at"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	optionsDTO := make([]QuestionOption, len(q.Options))
	for i, text := range q.Options {
		optionsDTO[i] = QuestionOption{ID: i, Text: text}
	}

	return QuestionResponse{
		ID:            q.ID,
		QuestionSetID: q.QuestionSetID,
		Text:          q.Text,
		Options:       optionsDTO,
		TimeLimitSec:  q.TimeLimitSec,
		PointValue:    q.PointValue,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

// NewQuestionSetResponse создает DTO для набора вопросов
func NewQuestionSetResponse(set *entity.QuestionSet, includeQuestions bool) *QuestionSetResponse {
	if set == nil {
		return nil
	}

	var questionsDTO []QuestionResponse
	if includeQuestions {
		questionsDTO = make([]QuestionResponse, len(set.Questions))
		for i, q := range set.Questions {
			questionCopy := q // Копируем, чтобы не изменять оригинал
			questionsDTO[i] = NewQuestionResponse(&questionCopy)
		}
	}

	return &QuestionSetResponse{
		ID:            set.ID,
		Title:         set.Title,
		Description:   set.Description,
		QuestionCount: set.QuestionCount(),
		Questions:     questionsDTO,
		CreatedAt:     set.CreatedAt,
		UpdatedAt:     set.UpdatedAt,
	}
}

// NewListQuestionSetResponse создает слайс DTO для списка наборов
func NewListQuestionSetResponse(sets []entity.QuestionSet) []*QuestionSetResponse {
	list := make([]*QuestionSetResponse, len(sets))
	for i, set := range sets {
		// Передаем false, чтобы не включать вопросы в список
		list[i] = NewQuestionSetResponse(&set, false)
	}
	return list
}

// NewSessionResponse создает DTO для сессии
func NewSessionResponse(session *entity.Session) *SessionResponse {
	if session == nil {
		return nil
	}
	return &SessionResponse{
		ID:              session.ID,
		QuestionSetID:   session.QuestionSetID,
		MasterID:        session.MasterID,
		Status:          session.Status,
		CurrentQuestion: session.CurrentQuestion,
		QuestionCount:   session.QuestionCount,
		CreatedAt:       session.CreatedAt,
		FinishedAt:      session.FinishedAt,
	}
}

// NewSessionResultResponse создает DTO для итога участника
func NewSessionResultResponse(result *entity.SessionResult) *SessionResultResponse {
	if result == nil {
		return nil
	}
	return &SessionResultResponse{
		ParticipantID:   result.ParticipantID,
		DisplayName:     result.DisplayName,
		TeamName:        result.TeamName,
		Score:           result.Score,
		CorrectAnswers:  result.CorrectAnswers,
		TotalQuestions:  result.TotalQuestions,
		Rank:            result.Rank,
		LastCorrectAtMs: result.LastCorrectAtMs,
		CompletedAt:     result.CompletedAt,
	}
}

// NewListSessionResultResponse создает слайс DTO для списка итогов
func NewListSessionResultResponse(results []entity.SessionResult) []*SessionResultResponse {
	list := make([]*SessionResultResponse, len(results))
	for i, result := range results {
		list[i] = NewSessionResultResponse(&result)
	}
	return list
}
