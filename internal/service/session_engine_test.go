package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
	"github.com/yourusername/quiznight-api/internal/service/sessionengine"
)

// fakeQuestionSetRepo отдаёт наборы вопросов из памяти
type fakeQuestionSetRepo struct {
	sets map[uint]*entity.QuestionSet
}

func (r *fakeQuestionSetRepo) Create(set *entity.QuestionSet) error { return nil }

func (r *fakeQuestionSetRepo) GetByID(id uint) (*entity.QuestionSet, error) {
	return r.GetWithQuestions(id)
}

func (r *fakeQuestionSetRepo) GetWithQuestions(id uint) (*entity.QuestionSet, error) {
	set, ok := r.sets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return set, nil
}

func (r *fakeQuestionSetRepo) List(limit, offset int) ([]entity.QuestionSet, int64, error) {
	return nil, 0, nil
}

func (r *fakeQuestionSetRepo) Delete(id uint) error { return nil }

// fakeSessionRepo хранит сессии в памяти
type fakeSessionRepo struct {
	sessions map[string]*entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*entity.Session)}
}

func (r *fakeSessionRepo) Create(session *entity.Session) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) GetByID(id string) (*entity.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) UpdateStatus(id string, status string, currentQuestion int) error {
	if s, ok := r.sessions[id]; ok {
		s.Status = status
		s.CurrentQuestion = currentQuestion
	}
	return nil
}

func (r *fakeSessionRepo) MarkFinished(id string) error {
	if s, ok := r.sessions[id]; ok {
		s.Status = entity.SessionStatusFinished
	}
	return nil
}

// fakeResultRepo хранит ответы и итоги в памяти
type fakeResultRepo struct {
	answers []entity.Answer
	results []entity.SessionResult
}

func (r *fakeResultRepo) SaveAnswer(answer *entity.Answer) error {
	r.answers = append(r.answers, *answer)
	return nil
}

func (r *fakeResultRepo) GetSessionAnswers(sessionID string) ([]entity.Answer, error) {
	return r.answers, nil
}

func (r *fakeResultRepo) GetParticipantAnswers(sessionID string, participantID string) ([]entity.Answer, error) {
	return nil, nil
}

func (r *fakeResultRepo) SaveResults(results []entity.SessionResult) error {
	r.results = append(r.results, results...)
	return nil
}

func (r *fakeResultRepo) GetSessionResults(sessionID string) ([]entity.SessionResult, error) {
	return r.results, nil
}

// fakeCacheRepo - no-op кеш для тестов фасада
type fakeCacheRepo struct{}

func (fakeCacheRepo) Delete(key string) error                       { return nil }
func (fakeCacheRepo) SAdd(key string, members ...interface{}) error { return nil }
func (fakeCacheRepo) SRem(key string, members ...interface{}) error { return nil }
func (fakeCacheRepo) SMembers(key string) ([]string, error)         { return nil, nil }

// nopEventSink глотает события
type nopEventSink struct{}

func (nopEventSink) BroadcastEventToSession(sessionID string, eventType string, data interface{}) error {
	return nil
}
func (nopEventSink) SendEventToUser(userID string, eventType string, data interface{}) error {
	return nil
}

func newEngineFixture(t *testing.T) (*SessionEngine, *fakeSessionRepo, *fakeResultRepo) {
	t.Helper()
	setRepo := &fakeQuestionSetRepo{sets: map[uint]*entity.QuestionSet{
		1: {
			ID:    1,
			Title: "Тестовый набор",
			Questions: []entity.Question{
				{ID: 1, Text: "Вопрос 1", Options: entity.StringArray{"A", "B"}, CorrectOption: 0, TimeLimitSec: 30, PointValue: 1},
				{ID: 2, Text: "Вопрос 2", Options: entity.StringArray{"A", "B"}, CorrectOption: 1, TimeLimitSec: 30, PointValue: 2},
			},
		},
		2: {ID: 2, Title: "Пустой набор"},
	}}
	sessionRepo := newFakeSessionRepo()
	resultRepo := &fakeResultRepo{}

	engine := NewSessionEngine(nil, setRepo, sessionRepo, resultRepo, fakeCacheRepo{}, nopEventSink{})
	t.Cleanup(engine.Shutdown)
	return engine, sessionRepo, resultRepo
}

func TestSessionEngine_CreateSession(t *testing.T) {
	// Arrange
	engine, sessionRepo, _ := newEngineFixture(t)

	// Act
	session, err := engine.CreateSession("master-1", 1)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "master-1", session.MasterID)
	assert.Equal(t, entity.SessionStatusLobby, session.Status)
	assert.Equal(t, -1, session.CurrentQuestion)
	assert.Equal(t, 2, session.QuestionCount)
	assert.Equal(t, 1, engine.ActiveSessions())

	// запись о сессии создана в БД
	stored, err := sessionRepo.GetByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
}

func TestSessionEngine_CreateSession_EmptyMaster(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)

	// Act
	_, err := engine.CreateSession("", 1)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSessionEngine_CreateSession_EmptySet(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)

	// Act: набор без вопросов
	_, err := engine.CreateSession("master-1", 2)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, engine.ActiveSessions())
}

func TestSessionEngine_CreateSession_UnknownSet(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)

	// Act
	_, err := engine.CreateSession("master-1", 99)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionEngine_UnknownSession(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)

	// Act & Assert: команды к несуществующей сессии
	assert.ErrorIs(t, engine.Join("ghost", entity.Participant{ID: "u1", DisplayName: "Игрок"}), apperrors.ErrNotFound)
	assert.ErrorIs(t, engine.Start("ghost", "master-1"), apperrors.ErrNotFound)
	assert.ErrorIs(t, engine.SubmitAnswer("ghost", "u1", 1, 0), apperrors.ErrNotFound)
	assert.ErrorIs(t, engine.Reveal("ghost", "master-1"), apperrors.ErrNotFound)
	assert.ErrorIs(t, engine.Advance("ghost", "master-1"), apperrors.ErrNotFound)
}

func TestSessionEngine_FullGameFlow(t *testing.T) {
	// Arrange
	engine, _, resultRepo := newEngineFixture(t)
	session, err := engine.CreateSession("master-1", 1)
	require.NoError(t, err)
	id := session.ID

	require.NoError(t, engine.Join(id, entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, engine.Join(id, entity.Participant{ID: "player-1", DisplayName: "Игрок"}))

	// Act: полный цикл из двух вопросов
	require.NoError(t, engine.Start(id, "master-1"))
	require.NoError(t, engine.SubmitAnswer(id, "player-1", 1, 0)) // верно, +1
	require.NoError(t, engine.Reveal(id, "master-1"))
	require.NoError(t, engine.Advance(id, "master-1"))
	require.NoError(t, engine.SubmitAnswer(id, "player-1", 2, 1)) // верно, +2
	require.NoError(t, engine.Reveal(id, "master-1"))
	require.NoError(t, engine.Advance(id, "master-1"))

	// Assert: итоги сохранены, сессия снята с реестра
	results, err := resultRepo.GetSessionResults(id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "player-1", results[0].ParticipantID)
	assert.Equal(t, 3, results[0].Score)
	assert.Equal(t, 2, results[0].CorrectAnswers)

	assert.Eventually(t, func() bool {
		return engine.ActiveSessions() == 0
	}, time.Second, 10*time.Millisecond, "завершённая сессия должна сниматься с реестра")
}

func TestSessionEngine_Snapshot_Live(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)
	session, err := engine.CreateSession("master-1", 1)
	require.NoError(t, err)

	// Act
	snap, err := engine.Snapshot(session.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, session.ID, snap.SessionID)
	assert.Equal(t, entity.SessionStatusLobby, snap.Status)
	assert.Equal(t, 2, snap.QuestionCount)
}

func TestSessionEngine_Snapshot_FinishedFromStore(t *testing.T) {
	// Arrange: завершённая сессия существует только в БД
	engine, sessionRepo, resultRepo := newEngineFixture(t)
	sessionRepo.sessions["done-1"] = &entity.Session{
		ID:              "done-1",
		Status:          entity.SessionStatusFinished,
		CurrentQuestion: 1,
		QuestionCount:   2,
	}
	resultRepo.results = []entity.SessionResult{
		{SessionID: "done-1", ParticipantID: "u1", DisplayName: "Игрок", TeamName: "Альфа", Score: 3, CorrectAnswers: 2, Rank: 1},
	}

	// Act
	snap, err := engine.Snapshot("done-1")

	// Assert: снимок реконструирован из сохранённых итогов
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFinished, snap.Status)
	require.Len(t, snap.Scoreboard, 1)
	assert.Equal(t, "u1", snap.Scoreboard[0].ParticipantID)
	assert.Equal(t, 3, snap.Scoreboard[0].Points)
	require.Len(t, snap.Teams, 1)
	assert.Equal(t, "Альфа", snap.Teams[0].TeamName)
}

func TestSessionEngine_Snapshot_Unknown(t *testing.T) {
	// Arrange
	engine, _, _ := newEngineFixture(t)

	// Act
	_, err := engine.Snapshot("ghost")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionEngine_SessionResults(t *testing.T) {
	// Arrange
	engine, sessionRepo, resultRepo := newEngineFixture(t)
	sessionRepo.sessions["done-1"] = &entity.Session{ID: "done-1", Status: entity.SessionStatusFinished}
	resultRepo.results = []entity.SessionResult{
		{SessionID: "done-1", ParticipantID: "u1", Score: 5, Rank: 1},
	}

	// Act
	session, results, err := engine.SessionResults("done-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "done-1", session.ID)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].Score)
}

var _ sessionengine.EventSink = nopEventSink{}
