package service

import (
	"log"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// QuestionSetService предоставляет операции над банком вопросов
type QuestionSetService struct {
	questionSetRepo repository.QuestionSetRepository
	questionRepo    repository.QuestionRepository
}

// NewQuestionSetService создает новый сервис наборов вопросов
func NewQuestionSetService(
	questionSetRepo repository.QuestionSetRepository,
	questionRepo repository.QuestionRepository,
) *QuestionSetService {
	return &QuestionSetService{
		questionSetRepo: questionSetRepo,
		questionRepo:    questionRepo,
	}
}

// CreateQuestionSet создает набор вопросов вместе с вопросами
func (s *QuestionSetService) CreateQuestionSet(title, description string, questions []entity.Question) (*entity.QuestionSet, error) {
	if title == "" || len(questions) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	// Проверяем валидность каждого вопроса до записи в БД
	for _, q := range questions {
		if q.Text == "" || len(q.Options) < 2 {
			return nil, apperrors.ErrInvalidInput
		}
		if !q.IsValidOption(q.CorrectOption) {
			return nil, apperrors.ErrInvalidOption
		}
	}

	set := &entity.QuestionSet{
		Title:       title,
		Description: description,
	}
	if err := s.questionSetRepo.Create(set); err != nil {
		return nil, err
	}

	for i := range questions {
		questions[i].QuestionSetID = set.ID
	}
	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return nil, err
	}

	set.Questions = questions
	log.Printf("[QuestionSetService] Создан набор %d (%s) с %d вопросами", set.ID, set.Title, len(questions))
	return set, nil
}

// GetQuestionSet возвращает набор вместе с вопросами
func (s *QuestionSetService) GetQuestionSet(id uint) (*entity.QuestionSet, error) {
	return s.questionSetRepo.GetWithQuestions(id)
}

// ListQuestionSets возвращает страницу наборов и общее количество
func (s *QuestionSetService) ListQuestionSets(page, pageSize int) ([]entity.QuestionSet, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	return s.questionSetRepo.List(pageSize, offset)
}

// DeleteQuestionSet удаляет набор вместе с вопросами
func (s *QuestionSetService) DeleteQuestionSet(id uint) error {
	if _, err := s.questionSetRepo.GetByID(id); err != nil {
		return err
	}
	return s.questionSetRepo.Delete(id)
}
