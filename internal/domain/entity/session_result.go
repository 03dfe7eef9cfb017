package entity

import (
	"time"
)

// SessionResult представляет итоговый результат участника в завершённой сессии
type SessionResult struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       string    `gorm:"size:36;not null;index;uniqueIndex:idx_participant_session" json:"session_id"`
	ParticipantID   string    `gorm:"size:64;not null;uniqueIndex:idx_participant_session" json:"participant_id"`
	DisplayName     string    `gorm:"size:50;not null" json:"display_name"`
	TeamName        string    `gorm:"size:50;not null;default:''" json:"team_name"`
	Score           int       `gorm:"not null;default:0" json:"score"`
	CorrectAnswers  int       `gorm:"not null;default:0" json:"correct_answers"`
	TotalQuestions  int       `gorm:"not null;default:0" json:"total_questions"`
	Rank            int       `gorm:"not null;default:0;index:idx_session_rank" json:"rank"`
	LastCorrectAtMs int64     `gorm:"not null;default:0" json:"last_correct_at_ms"`
	CompletedAt     time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (SessionResult) TableName() string {
	return "session_results"
}
