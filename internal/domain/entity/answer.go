package entity

import (
	"time"
)

// Answer представляет принятый ответ участника на вопрос.
// Уникальный индекс (session_id, question_id, participant_id) - вторая линия
// защиты от дублей под in-memory леджером.
type Answer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      string    `gorm:"size:36;not null;index;uniqueIndex:idx_session_question_participant" json:"session_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_session_question_participant" json:"question_id"`
	ParticipantID  string    `gorm:"size:64;not null;uniqueIndex:idx_session_question_participant" json:"participant_id"`
	SelectedOption int       `gorm:"not null;default:-1" json:"selected_option"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	SubmittedAtMs  int64     `gorm:"not null" json:"submitted_at_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}
