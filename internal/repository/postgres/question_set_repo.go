package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// QuestionSetRepo реализует repository.QuestionSetRepository
type QuestionSetRepo struct {
	db *gorm.DB
}

// NewQuestionSetRepo создает новый репозиторий наборов вопросов
func NewQuestionSetRepo(db *gorm.DB) *QuestionSetRepo {
	return &QuestionSetRepo{db: db}
}

// Create создает новый набор вопросов
func (r *QuestionSetRepo) Create(set *entity.QuestionSet) error {
	return r.db.Create(set).Error
}

// GetByID возвращает набор по ID без вопросов
func (r *QuestionSetRepo) GetByID(id uint) (*entity.QuestionSet, error) {
	var set entity.QuestionSet
	err := r.db.First(&set, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &set, nil
}

// GetWithQuestions возвращает набор вместе с вопросами в порядке их ID
func (r *QuestionSetRepo) GetWithQuestions(id uint) (*entity.QuestionSet, error) {
	var set entity.QuestionSet
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id")
	}).First(&set, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &set, nil
}

// List возвращает наборы с пагинацией и общим количеством
func (r *QuestionSetRepo) List(limit, offset int) ([]entity.QuestionSet, int64, error) {
	var sets []entity.QuestionSet
	var total int64

	if err := r.db.Model(&entity.QuestionSet{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sets).Error
	if err != nil {
		return nil, 0, err
	}
	return sets, total, nil
}

// Delete удаляет набор вместе с вопросами
func (r *QuestionSetRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_set_id = ?", id).Delete(&entity.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.QuestionSet{}, id).Error
	})
}
