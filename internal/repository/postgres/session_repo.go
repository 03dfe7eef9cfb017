package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create создает запись о новой сессии
func (r *SessionRepo) Create(session *entity.Session) error {
	return r.db.Create(session).Error
}

// GetByID возвращает сессию по ID
func (r *SessionRepo) GetByID(id string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// UpdateStatus обновляет статус и указатель текущего вопроса
func (r *SessionRepo) UpdateStatus(id string, status string, currentQuestion int) error {
	return r.db.Model(&entity.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"current_question": currentQuestion,
		}).Error
}

// MarkFinished помечает сессию завершённой
func (r *SessionRepo) MarkFinished(id string) error {
	now := time.Now()
	return r.db.Model(&entity.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      entity.SessionStatusFinished,
			"finished_at": &now,
		}).Error
}
