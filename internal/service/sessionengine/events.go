package sessionengine

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// Типы исходящих событий сессии
const (
	// EventRosterChanged сообщает об изменении состава участников
	EventRosterChanged = "roster:changed"

	// EventQuestionChanged сообщает о показе нового вопроса
	EventQuestionChanged = "question:changed"

	// EventAnswerAccepted сообщает о принятом ответе (без выбранного варианта)
	EventAnswerAccepted = "answer:accepted"

	// EventAnswersRevealed сообщает о вскрытии ответов и текущей таблице очков
	EventAnswersRevealed = "answers:revealed"

	// EventSessionFinished сообщает о завершении сессии с финальными итогами
	EventSessionFinished = "session:finished"

	// EventServerError отправляется только автору отклонённой команды
	EventServerError = "server:error"
)

// QuestionView - вопрос в том виде, в котором его видят клиенты.
// Правильный вариант никогда не попадает в это представление.
type QuestionView struct {
	ID           uint     `json:"id"`
	Index        int      `json:"index"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"time_limit_sec"`
	PointValue   int      `json:"point_value"`
}

// RosterChangedPayload - данные события roster:changed
type RosterChangedPayload struct {
	SessionID    string               `json:"session_id"`
	Participants []entity.Participant `json:"participants"`
	Count        int                  `json:"count"`
}

// QuestionChangedPayload - данные события question:changed
type QuestionChangedPayload struct {
	SessionID  string       `json:"session_id"`
	Question   QuestionView `json:"question"`
	DeadlineMs int64        `json:"deadline_ms"`
}

// AnswerAcceptedPayload - данные события answer:accepted.
// Выбранный вариант не разглашается до вскрытия.
type AnswerAcceptedPayload struct {
	SessionID     string `json:"session_id"`
	QuestionID    uint   `json:"question_id"`
	ParticipantID string `json:"participant_id"`
	SubmittedAtMs int64  `json:"submitted_at_ms"`
}

// AnswersRevealedPayload - данные события answers:revealed
type AnswersRevealedPayload struct {
	SessionID     string      `json:"session_id"`
	QuestionIndex int         `json:"question_index"`
	QuestionID    uint        `json:"question_id"`
	CorrectOption int         `json:"correct_option"`
	Scoreboard    []Score     `json:"scoreboard"`
	Teams         []TeamScore `json:"teams,omitempty"`
}

// SessionFinishedPayload - данные события session:finished
type SessionFinishedPayload struct {
	SessionID  string      `json:"session_id"`
	Scoreboard []Score     `json:"scoreboard"`
	Teams      []TeamScore `json:"teams,omitempty"`
}

// ServerErrorPayload - данные события server:error
type ServerErrorPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// StateSnapshot - полное публичное состояние сессии.
// Отправляется новому подписчику до живых дельт и используется для ресинка.
type StateSnapshot struct {
	SessionID     string               `json:"session_id"`
	Status        string               `json:"status"`
	Phase         string               `json:"phase,omitempty"`
	QuestionIndex int                  `json:"question_index"`
	QuestionCount int                  `json:"question_count"`
	Question      *QuestionView        `json:"question,omitempty"`
	DeadlineMs    int64                `json:"deadline_ms,omitempty"`
	Participants  []entity.Participant `json:"participants"`
	Scoreboard    []Score              `json:"scoreboard,omitempty"`
	Teams         []TeamScore          `json:"teams,omitempty"`

	// HasAnswered - ответил ли получатель на текущий вопрос.
	// Заполняется только в персональном снимке (SnapshotFor); вернувшийся
	// посреди вопроса участник видит, что его ответ уже принят.
	HasAnswered bool `json:"has_answered,omitempty"`
}
