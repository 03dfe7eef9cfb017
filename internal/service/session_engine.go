package service

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
	"github.com/yourusername/quiznight-api/internal/service/sessionengine"
)

// SessionEngine - фасад над живыми сессиями.
// Держит реестр раннеров: по одному на сессию, каждый со своим
// циклом команд. Сессии независимы, общих блокировок между ними нет -
// мьютекс реестра защищает только саму карту.
type SessionEngine struct {
	config *sessionengine.Config
	deps   *sessionengine.Dependencies

	questionSetRepo repository.QuestionSetRepository
	sessionRepo     repository.SessionRepository
	resultRepo      repository.ResultRepository

	mu      sync.RWMutex
	runners map[string]*sessionengine.Runner
}

// NewSessionEngine создает фасад движка сессий
func NewSessionEngine(
	config *sessionengine.Config,
	questionSetRepo repository.QuestionSetRepository,
	sessionRepo repository.SessionRepository,
	resultRepo repository.ResultRepository,
	cacheRepo repository.CacheRepository,
	eventSink sessionengine.EventSink,
) *SessionEngine {
	if config == nil {
		config = sessionengine.DefaultConfig()
	}
	return &SessionEngine{
		config:          config,
		questionSetRepo: questionSetRepo,
		sessionRepo:     sessionRepo,
		resultRepo:      resultRepo,
		deps: &sessionengine.Dependencies{
			ResultRepo:  resultRepo,
			SessionRepo: sessionRepo,
			CacheRepo:   cacheRepo,
			EventSink:   eventSink,
		},
		runners: make(map[string]*sessionengine.Runner),
	}
}

// CreateSession создает сессию в лобби из набора вопросов.
// Создатель становится ведущим.
func (e *SessionEngine) CreateSession(masterID string, questionSetID uint) (*entity.Session, error) {
	if masterID == "" {
		return nil, apperrors.ErrInvalidInput
	}

	set, err := e.questionSetRepo.GetWithQuestions(questionSetID)
	if err != nil {
		return nil, err
	}
	if len(set.Questions) == 0 {
		log.Printf("[SessionEngine] Набор вопросов %d пуст, сессия не создана", questionSetID)
		return nil, apperrors.ErrInvalidInput
	}

	session := &entity.Session{
		ID:              uuid.NewString(),
		QuestionSetID:   set.ID,
		MasterID:        masterID,
		Status:          entity.SessionStatusLobby,
		CurrentQuestion: -1,
		QuestionCount:   len(set.Questions),
	}
	if err := e.sessionRepo.Create(session); err != nil {
		return nil, err
	}

	state := sessionengine.NewSessionState(session.ID, masterID, set.Questions, e.config)
	runner := sessionengine.NewRunner(state, e.deps, e.removeRunner)

	e.mu.Lock()
	e.runners[session.ID] = runner
	e.mu.Unlock()

	log.Printf("[SessionEngine] Сессия %s создана: ведущий %s, набор %d (%d вопросов)",
		session.ID, masterID, set.ID, len(set.Questions))
	return session, nil
}

// runner возвращает живой раннер сессии
func (e *SessionEngine) runner(sessionID string) (*sessionengine.Runner, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runners[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r, nil
}

// removeRunner снимает завершённую сессию с реестра
func (e *SessionEngine) removeRunner(sessionID string) {
	e.mu.Lock()
	delete(e.runners, sessionID)
	e.mu.Unlock()
	log.Printf("[SessionEngine] Сессия %s снята с реестра", sessionID)
}

// ActiveSessions возвращает число живых сессий
func (e *SessionEngine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.runners)
}

// Join добавляет участника в сессию
func (e *SessionEngine) Join(sessionID string, p entity.Participant) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.Join(p)
}

// Leave убирает участника из сессии. Идемпотентна.
func (e *SessionEngine) Leave(sessionID string, participantID string) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.Leave(participantID)
}

// Start запускает сессию (команда ведущего)
func (e *SessionEngine) Start(sessionID string, actorID string) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.Start(actorID)
}

// SubmitAnswer принимает ответ участника
func (e *SessionEngine) SubmitAnswer(sessionID string, actorID string, questionID uint, selectedOption int) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.SubmitAnswer(actorID, questionID, selectedOption)
}

// Reveal вскрывает ответы текущего вопроса (команда ведущего)
func (e *SessionEngine) Reveal(sessionID string, actorID string) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.Reveal(actorID)
}

// Advance переводит сессию к следующему вопросу или завершает её (команда ведущего)
func (e *SessionEngine) Advance(sessionID string, actorID string) error {
	r, err := e.runner(sessionID)
	if err != nil {
		return err
	}
	return r.Advance(actorID)
}

// Snapshot возвращает публичное состояние сессии.
// Для живой сессии - снимок из раннера; для завершённой - реконструкция из БД.
func (e *SessionEngine) Snapshot(sessionID string) (sessionengine.StateSnapshot, error) {
	if r, err := e.runner(sessionID); err == nil {
		return r.Snapshot()
	}
	return e.snapshotFromStore(sessionID)
}

// snapshotFromStore восстанавливает снимок завершённой сессии из БД
func (e *SessionEngine) snapshotFromStore(sessionID string) (sessionengine.StateSnapshot, error) {
	var snap sessionengine.StateSnapshot

	session, err := e.sessionRepo.GetByID(sessionID)
	if err != nil {
		return snap, err
	}

	snap.SessionID = session.ID
	snap.Status = session.Status
	snap.QuestionIndex = session.CurrentQuestion
	snap.QuestionCount = session.QuestionCount
	snap.Participants = []entity.Participant{}

	if session.IsFinished() {
		results, err := e.resultRepo.GetSessionResults(sessionID)
		if err != nil {
			return snap, err
		}
		scoreboard := make([]sessionengine.Score, 0, len(results))
		for _, res := range results {
			scoreboard = append(scoreboard, sessionengine.Score{
				ParticipantID:   res.ParticipantID,
				DisplayName:     res.DisplayName,
				TeamName:        res.TeamName,
				Points:          res.Score,
				CorrectAnswers:  res.CorrectAnswers,
				LastCorrectAtMs: res.LastCorrectAtMs,
				Rank:            res.Rank,
			})
		}
		snap.Scoreboard = scoreboard
		snap.Teams = sessionengine.ComputeTeamStandings(scoreboard)
	}
	return snap, nil
}

// SessionResults возвращает сохранённые итоги завершённой сессии
func (e *SessionEngine) SessionResults(sessionID string) (*entity.Session, []entity.SessionResult, error) {
	session, err := e.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	results, err := e.resultRepo.GetSessionResults(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, results, nil
}

// Shutdown останавливает все живые раннеры (снос инстанса)
func (e *SessionEngine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, r := range e.runners {
		r.Shutdown()
		delete(e.runners, id)
	}
	log.Printf("[SessionEngine] Все раннеры остановлены")
}
