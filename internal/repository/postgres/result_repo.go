package postgres

import (
	"errors"
	"log"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveAnswer сохраняет принятый ответ участника.
// Нарушение уникального индекса (session_id, question_id, participant_id)
// транслируется в ErrDuplicateAnswer: засчитывается только первый ответ.
func (r *ResultRepo) SaveAnswer(answer *entity.Answer) error {
	err := r.db.Create(answer).Error
	if err == nil {
		return nil
	}

	// Код 23505: unique_violation в PostgreSQL
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperrors.ErrDuplicateAnswer
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrDuplicateAnswer
	}
	return err
}

// GetSessionAnswers возвращает все ответы сессии в порядке принятия
func (r *ResultRepo) GetSessionAnswers(sessionID string) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("session_id = ?", sessionID).
		Order("submitted_at_ms").
		Find(&answers).Error
	return answers, err
}

// GetParticipantAnswers возвращает ответы конкретного участника в сессии
func (r *ResultRepo) GetParticipantAnswers(sessionID string, participantID string) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.Where("session_id = ? AND participant_id = ?", sessionID, participantID).
		Order("submitted_at_ms").
		Find(&answers).Error
	return answers, err
}

// SaveResults сохраняет итоговые результаты завершённой сессии одной транзакцией
func (r *ResultRepo) SaveResults(results []entity.SessionResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&results).Error; err != nil {
			log.Printf("[ResultRepo] Ошибка сохранения результатов сессии %s: %v", results[0].SessionID, err)
			return err
		}
		return nil
	})
}

// GetSessionResults возвращает результаты сессии, отсортированные по рангу
func (r *ResultRepo) GetSessionResults(sessionID string) ([]entity.SessionResult, error) {
	var results []entity.SessionResult
	// Пустой слайс - валидный результат, ErrRecordNotFound не проверяем
	err := r.db.Where("session_id = ?", sessionID).
		Order("rank ASC, score DESC").
		Find(&results).Error
	return results, err
}
