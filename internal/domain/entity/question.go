package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray хранит варианты ответа в JSONB-колонке.
// NULL и пустые байты из базы читаются как пустой массив.
type StringArray []string

// Scan реализует sql.Scanner
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return errors.New("jsonb scan: expected []byte")
	}
	if len(raw) == 0 {
		*o = StringArray{}
		return nil
	}
	return json.Unmarshal(raw, o)
}

// Value реализует driver.Valuer. Пустой массив пишется как [],
// а не NULL, чтобы колонка оставалась not null.
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Question представляет вопрос из банка вопросов
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	QuestionSetID uint        `gorm:"not null;index" json:"question_set_id"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	TimeLimitSec  int         `gorm:"not null;default:30" json:"time_limit_sec"`
	PointValue    int         `gorm:"not null;default:1" json:"point_value"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// Points возвращает очки за ответ на вопрос.
// Правильный ответ приносит PointValue (минимум 1), неправильный ноль.
func (q *Question) Points(isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	if q.PointValue <= 0 {
		return 1
	}
	return q.PointValue
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}
