package entity

import (
	"time"
)

// Константы статусов сессии
const (
	SessionStatusLobby      = "lobby"
	SessionStatusInProgress = "in_progress"
	SessionStatusFinished   = "finished"
)

// Константы фаз активного вопроса
const (
	PhaseAwaitingAnswers = "awaiting_answers"
	PhaseRevealed        = "revealed"
)

// Session представляет запись о сессии викторины.
// Живое состояние (фаза, ростер, леджер) держит движок в памяти;
// строка в БД фиксирует факт создания и итог завершения.
type Session struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	QuestionSetID   uint       `gorm:"not null;index" json:"question_set_id"`
	MasterID        string     `gorm:"size:64;not null" json:"master_id"`
	Status          string     `gorm:"size:20;not null;default:'lobby';index" json:"status"`
	CurrentQuestion int        `gorm:"not null;default:-1" json:"current_question"`
	QuestionCount   int        `gorm:"not null;default:0" json:"question_count"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Session) TableName() string {
	return "sessions"
}

// IsLobby проверяет, находится ли сессия в лобби
func (s *Session) IsLobby() bool {
	return s.Status == SessionStatusLobby
}

// IsActive проверяет, идёт ли сессия
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusInProgress
}

// IsFinished проверяет, завершена ли сессия
func (s *Session) IsFinished() bool {
	return s.Status == SessionStatusFinished
}
