package sessionengine

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// SessionState - машина состояний одной сессии.
// lobby -> in_progress (awaiting_answers <-> revealed) -> finished.
// Не потокобезопасна: единственный писатель - цикл команд раннера.
// Отклонённая команда не меняет состояние.
type SessionState struct {
	id        string
	masterID  string
	status    string
	phase     string
	questions []entity.Question
	// currentIndex - позиция текущего вопроса; -1 до старта
	currentIndex int
	roster       *Roster
	ledger       *Ledger
	cfg          *Config

	// deadlineMs - конец окна приёма текущего вопроса (unix ms)
	deadlineMs int64
	// epoch растёт с каждым показанным вопросом;
	// таймер автовскрытия с устаревшим epoch игнорируется
	epoch int
}

// NewSessionState создает сессию в лобби
func NewSessionState(id string, masterID string, questions []entity.Question, cfg *Config) *SessionState {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SessionState{
		id:           id,
		masterID:     masterID,
		status:       entity.SessionStatusLobby,
		questions:    questions,
		currentIndex: -1,
		roster:       NewRoster(cfg.MaxParticipants),
		ledger:       NewLedger(),
		cfg:          cfg,
	}
}

// ID возвращает идентификатор сессии
func (s *SessionState) ID() string { return s.id }

// MasterID возвращает идентификатор ведущего
func (s *SessionState) MasterID() string { return s.masterID }

// Status возвращает текущий статус сессии
func (s *SessionState) Status() string { return s.status }

// Phase возвращает фазу активного вопроса (пустая вне in_progress)
func (s *SessionState) Phase() string { return s.phase }

// Epoch возвращает номер поколения текущего вопроса
func (s *SessionState) Epoch() int { return s.epoch }

// Roster возвращает ростер сессии
func (s *SessionState) Roster() *Roster { return s.roster }

// Ledger возвращает журнал ответов сессии
func (s *SessionState) Ledger() *Ledger { return s.ledger }

// QuestionCount возвращает число вопросов сессии
func (s *SessionState) QuestionCount() int { return len(s.questions) }

// CurrentQuestion возвращает текущий вопрос или nil, если сессия не активна
func (s *SessionState) CurrentQuestion() *entity.Question {
	if s.status != entity.SessionStatusInProgress {
		return nil
	}
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return nil
	}
	return &s.questions[s.currentIndex]
}

// CurrentIndex возвращает позицию текущего вопроса (-1 до старта)
func (s *SessionState) CurrentIndex() int { return s.currentIndex }

// DeadlineMs возвращает конец окна приёма текущего вопроса
func (s *SessionState) DeadlineMs() int64 { return s.deadlineMs }

// Join добавляет участника. Допустимо в лобби и по ходу игры;
// в завершённую сессию войти нельзя.
func (s *SessionState) Join(p entity.Participant) error {
	if s.status == entity.SessionStatusFinished {
		return apperrors.ErrInvalidState
	}
	p.IsMaster = p.ID == s.masterID
	return s.roster.Add(p)
}

// Leave убирает участника из ростера. Идемпотентна.
// Принятые ответы вышедшего продолжают учитываться в очках.
func (s *SessionState) Leave(participantID string) {
	s.roster.Remove(participantID)
}

// Start запускает сессию: лобби -> in_progress, первый вопрос, приём ответов.
// Команда только для ведущего.
func (s *SessionState) Start(actorID string, nowMs int64) (*entity.Question, error) {
	if actorID != s.masterID {
		return nil, apperrors.ErrForbidden
	}
	if s.status != entity.SessionStatusLobby {
		return nil, apperrors.ErrInvalidState
	}
	if len(s.questions) == 0 {
		return nil, apperrors.ErrInvalidState
	}

	s.status = entity.SessionStatusInProgress
	s.showQuestion(0, nowMs)
	return s.CurrentQuestion(), nil
}

// showQuestion переводит сессию на вопрос idx и открывает окно приёма
func (s *SessionState) showQuestion(idx int, nowMs int64) {
	s.currentIndex = idx
	s.phase = entity.PhaseAwaitingAnswers
	s.epoch++

	q := s.questions[idx]
	s.deadlineMs = nowMs + s.cfg.AnswerWindow(q.TimeLimitSec).Milliseconds()
}

// SubmitAnswer принимает ответ участника на текущий вопрос.
// Порядок проверок: фаза -> актуальность вопроса -> участник ->
// вариант -> дубликат. Любой отказ оставляет журнал нетронутым.
func (s *SessionState) SubmitAnswer(actorID string, questionID uint, selectedOption int, nowMs int64) (*entity.Answer, error) {
	if s.status != entity.SessionStatusInProgress || s.phase != entity.PhaseAwaitingAnswers {
		return nil, apperrors.ErrInvalidState
	}

	q := s.CurrentQuestion()
	if q == nil || q.ID != questionID {
		return nil, apperrors.ErrInvalidState
	}

	if !s.roster.Contains(actorID) {
		return nil, apperrors.ErrForbidden
	}

	if !q.IsValidOption(selectedOption) {
		return nil, apperrors.ErrInvalidOption
	}

	answer := &entity.Answer{
		SessionID:      s.id,
		QuestionID:     questionID,
		ParticipantID:  actorID,
		SelectedOption: selectedOption,
		IsCorrect:      q.IsCorrect(selectedOption),
		SubmittedAtMs:  nowMs,
	}
	if err := s.ledger.Record(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// Reveal вскрывает ответы текущего вопроса: awaiting_answers -> revealed.
// Команда только для ведущего; повторное вскрытие отклоняется.
func (s *SessionState) Reveal(actorID string) (*entity.Question, error) {
	if actorID != s.masterID {
		return nil, apperrors.ErrForbidden
	}
	return s.reveal()
}

// RevealByTimeout вскрывает ответы по истечении окна приёма.
// Устаревший таймер (epoch не совпал) - no-op.
func (s *SessionState) RevealByTimeout(epoch int) (*entity.Question, error) {
	if epoch != s.epoch {
		return nil, apperrors.ErrInvalidState
	}
	return s.reveal()
}

func (s *SessionState) reveal() (*entity.Question, error) {
	if s.status != entity.SessionStatusInProgress || s.phase != entity.PhaseAwaitingAnswers {
		return nil, apperrors.ErrInvalidState
	}
	s.phase = entity.PhaseRevealed
	return s.CurrentQuestion(), nil
}

// Advance переводит сессию к следующему вопросу, а после последнего -
// в finished. Допустим только из фазы revealed; команда только для ведущего.
func (s *SessionState) Advance(actorID string, nowMs int64) (*entity.Question, bool, error) {
	if actorID != s.masterID {
		return nil, false, apperrors.ErrForbidden
	}
	if s.status != entity.SessionStatusInProgress || s.phase != entity.PhaseRevealed {
		return nil, false, apperrors.ErrInvalidState
	}

	next := s.currentIndex + 1
	if next >= len(s.questions) {
		s.status = entity.SessionStatusFinished
		s.phase = ""
		s.deadlineMs = 0
		s.epoch++
		return nil, true, nil
	}

	s.showQuestion(next, nowMs)
	return s.CurrentQuestion(), false, nil
}

// Scoreboard пересчитывает таблицу очков по всем принятым ответам
func (s *SessionState) Scoreboard() []Score {
	return ComputeScores(s.questions, s.ledger.All(), s.roster.Resolve)
}

// QuestionViewAt строит клиентское представление вопроса без правильного варианта
func (s *SessionState) QuestionViewAt(idx int) *QuestionView {
	if idx < 0 || idx >= len(s.questions) {
		return nil
	}
	q := s.questions[idx]
	return &QuestionView{
		ID:           q.ID,
		Index:        idx,
		Text:         q.Text,
		Options:      q.Options,
		TimeLimitSec: q.TimeLimitSec,
		PointValue:   q.PointValue,
	}
}

// Snapshot собирает полное публичное состояние для нового подписчика или ресинка
func (s *SessionState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		SessionID:     s.id,
		Status:        s.status,
		Phase:         s.phase,
		QuestionIndex: s.currentIndex,
		QuestionCount: len(s.questions),
		Participants:  s.roster.List(),
	}

	if s.status == entity.SessionStatusInProgress {
		snap.Question = s.QuestionViewAt(s.currentIndex)
		if s.phase == entity.PhaseAwaitingAnswers {
			snap.DeadlineMs = s.deadlineMs
		}
	}

	// Таблица очков видна после первого вскрытия и в финале
	if s.phase == entity.PhaseRevealed || s.status == entity.SessionStatusFinished {
		snap.Scoreboard = s.Scoreboard()
		snap.Teams = ComputeTeamStandings(snap.Scoreboard)
	}
	return snap
}

// SnapshotFor собирает снимок для конкретного получателя: поверх общего
// состояния заполняется статус его собственного ответа на текущий вопрос
func (s *SessionState) SnapshotFor(participantID string) StateSnapshot {
	snap := s.Snapshot()
	if q := s.CurrentQuestion(); q != nil {
		snap.HasAnswered = s.ledger.Has(q.ID, participantID)
	}
	return snap
}
