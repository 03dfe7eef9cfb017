package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// ResultRepository определяет методы для работы с ответами и итогами сессий
type ResultRepository interface {
	// SaveAnswer сохраняет принятый ответ.
	// Возвращает apperrors.ErrDuplicateAnswer при нарушении уникальности
	// (session_id, question_id, participant_id).
	SaveAnswer(answer *entity.Answer) error
	GetSessionAnswers(sessionID string) ([]entity.Answer, error)
	GetParticipantAnswers(sessionID string, participantID string) ([]entity.Answer, error)
	SaveResults(results []entity.SessionResult) error
	GetSessionResults(sessionID string) ([]entity.SessionResult, error)
}

// SessionRepository определяет методы для персистентных записей о сессиях
type SessionRepository interface {
	Create(session *entity.Session) error
	GetByID(id string) (*entity.Session, error)
	UpdateStatus(id string, status string, currentQuestion int) error
	MarkFinished(id string) error
}
