package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// QuestionRepository записывает вопросы банка. Чтение идет через
// QuestionSetRepository.GetWithQuestions, отдельные вопросы никто не
// запрашивает, удаление каскадное при удалении набора.
type QuestionRepository interface {
	CreateBatch(questions []entity.Question) error
}

// QuestionSetRepository определяет методы для работы с наборами вопросов
type QuestionSetRepository interface {
	Create(set *entity.QuestionSet) error
	GetByID(id uint) (*entity.QuestionSet, error)
	// GetWithQuestions возвращает набор вместе с вопросами в порядке их ID
	GetWithQuestions(id uint) (*entity.QuestionSet, error)
	List(limit, offset int) ([]entity.QuestionSet, int64, error)
	Delete(id uint) error
}
