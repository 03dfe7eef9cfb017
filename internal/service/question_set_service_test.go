package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// recordingQuestionSetRepo присваивает ID и запоминает созданные наборы
type recordingQuestionSetRepo struct {
	nextID  uint
	created []*entity.QuestionSet
	deleted []uint
}

func (r *recordingQuestionSetRepo) Create(set *entity.QuestionSet) error {
	r.nextID++
	set.ID = r.nextID
	r.created = append(r.created, set)
	return nil
}

func (r *recordingQuestionSetRepo) GetByID(id uint) (*entity.QuestionSet, error) {
	for _, s := range r.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *recordingQuestionSetRepo) GetWithQuestions(id uint) (*entity.QuestionSet, error) {
	return r.GetByID(id)
}

func (r *recordingQuestionSetRepo) List(limit, offset int) ([]entity.QuestionSet, int64, error) {
	out := make([]entity.QuestionSet, 0, len(r.created))
	for _, s := range r.created {
		out = append(out, *s)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []entity.QuestionSet{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *recordingQuestionSetRepo) Delete(id uint) error {
	r.deleted = append(r.deleted, id)
	return nil
}

// recordingQuestionRepo запоминает вопросы, записанные батчем
type recordingQuestionRepo struct {
	batch []entity.Question
}

func (r *recordingQuestionRepo) CreateBatch(questions []entity.Question) error {
	r.batch = append(r.batch, questions...)
	return nil
}

func validQuestions() []entity.Question {
	return []entity.Question{
		{Text: "Вопрос 1", Options: entity.StringArray{"A", "B", "C"}, CorrectOption: 1, TimeLimitSec: 30, PointValue: 1},
		{Text: "Вопрос 2", Options: entity.StringArray{"Да", "Нет"}, CorrectOption: 0, TimeLimitSec: 15, PointValue: 2},
	}
}

func TestQuestionSetService_Create(t *testing.T) {
	// Arrange
	setRepo := &recordingQuestionSetRepo{}
	questionRepo := &recordingQuestionRepo{}
	svc := NewQuestionSetService(setRepo, questionRepo)

	// Act
	set, err := svc.CreateQuestionSet("Столицы мира", "География", validQuestions())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(1), set.ID)
	assert.Len(t, set.Questions, 2)

	// вопросы записаны батчем и привязаны к набору
	require.Len(t, questionRepo.batch, 2)
	for _, q := range questionRepo.batch {
		assert.Equal(t, set.ID, q.QuestionSetID)
	}
}

func TestQuestionSetService_Create_Invalid(t *testing.T) {
	// Arrange
	svc := NewQuestionSetService(&recordingQuestionSetRepo{}, &recordingQuestionRepo{})

	testCases := []struct {
		name      string
		title     string
		questions []entity.Question
		wantErr   error
	}{
		{"пустое название", "", validQuestions(), apperrors.ErrInvalidInput},
		{"без вопросов", "Набор", nil, apperrors.ErrInvalidInput},
		{"вопрос без текста", "Набор", []entity.Question{
			{Text: "", Options: entity.StringArray{"A", "B"}, CorrectOption: 0},
		}, apperrors.ErrInvalidInput},
		{"меньше двух вариантов", "Набор", []entity.Question{
			{Text: "Вопрос", Options: entity.StringArray{"A"}, CorrectOption: 0},
		}, apperrors.ErrInvalidInput},
		{"правильный вариант вне диапазона", "Набор", []entity.Question{
			{Text: "Вопрос", Options: entity.StringArray{"A", "B"}, CorrectOption: 2},
		}, apperrors.ErrInvalidOption},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			_, err := svc.CreateQuestionSet(tc.title, "", tc.questions)

			// Assert
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestQuestionSetService_List_Pagination(t *testing.T) {
	// Arrange: три набора
	setRepo := &recordingQuestionSetRepo{}
	questionRepo := &recordingQuestionRepo{}
	svc := NewQuestionSetService(setRepo, questionRepo)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateQuestionSet("Набор", "", validQuestions())
		require.NoError(t, err)
	}

	// Act: вторая страница по два элемента
	page, total, err := svc.ListQuestionSets(2, 2)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	// некорректные параметры страницы нормализуются
	page, _, err = svc.ListQuestionSets(0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)
}

func TestQuestionSetService_Delete(t *testing.T) {
	// Arrange
	setRepo := &recordingQuestionSetRepo{}
	svc := NewQuestionSetService(setRepo, &recordingQuestionRepo{})
	set, err := svc.CreateQuestionSet("Набор", "", validQuestions())
	require.NoError(t, err)

	// Act
	err = svc.DeleteQuestionSet(set.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []uint{set.ID}, setRepo.deleted)
}

func TestQuestionSetService_Delete_NotFound(t *testing.T) {
	// Arrange
	svc := NewQuestionSetService(&recordingQuestionSetRepo{}, &recordingQuestionRepo{})

	// Act
	err := svc.DeleteQuestionSet(42)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
