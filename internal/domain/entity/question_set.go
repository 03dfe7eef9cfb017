package entity

import (
	"time"
)

// QuestionSet представляет именованный набор вопросов, из которого запускается сессия
type QuestionSet struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"size:500;not null;default:''" json:"description"`
	Questions   []Question `gorm:"foreignKey:QuestionSetID" json:"questions,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (QuestionSet) TableName() string {
	return "question_sets"
}

// QuestionCount возвращает количество вопросов в наборе
func (s *QuestionSet) QuestionCount() int {
	return len(s.Questions)
}
