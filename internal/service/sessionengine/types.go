package sessionengine

import (
	"time"

	"github.com/yourusername/quiznight-api/internal/domain/repository"
)

// Config содержит настройки движка сессий
type Config struct {
	// AnswerWindowSec - окно приёма ответов по умолчанию,
	// если у вопроса не задан собственный лимит
	AnswerWindowSec int

	// MaxParticipants - максимум участников в сессии (0 - без лимита)
	MaxParticipants int

	// CommandBuffer - размер буфера канала команд раннера
	CommandBuffer int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		AnswerWindowSec: 30,
		MaxParticipants: 0,
		CommandBuffer:   64,
	}
}

// AnswerWindow возвращает окно приёма для вопроса с заданным лимитом
func (c *Config) AnswerWindow(timeLimitSec int) time.Duration {
	if timeLimitSec > 0 {
		return time.Duration(timeLimitSec) * time.Second
	}
	return time.Duration(c.AnswerWindowSec) * time.Second
}

// EventSink - выход движка наружу. Сигнатуры совпадают с методами
// websocket.Manager, так что шлюз рассылки подключается напрямую;
// в тестах подменяется заглушкой.
type EventSink interface {
	// BroadcastEventToSession отправляет событие всем подписчикам сессии
	BroadcastEventToSession(sessionID string, eventType string, data interface{}) error

	// SendEventToUser отправляет событие конкретному пользователю
	SendEventToUser(userID string, eventType string, data interface{}) error
}

// Dependencies содержит зависимости движка сессий
type Dependencies struct {
	ResultRepo  repository.ResultRepository
	SessionRepo repository.SessionRepository
	CacheRepo   repository.CacheRepository
	EventSink   EventSink
}
