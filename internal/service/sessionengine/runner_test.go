package sessionengine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// recordedEvent - одно событие, перехваченное заглушкой EventSink
type recordedEvent struct {
	UserID    string // пусто для широковещательных событий
	EventType string
	Data      interface{}
}

// stubEventSink собирает события вместо отправки по WebSocket
type stubEventSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *stubEventSink) BroadcastEventToSession(sessionID string, eventType string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{EventType: eventType, Data: data})
	return nil
}

func (s *stubEventSink) SendEventToUser(userID string, eventType string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{UserID: userID, EventType: eventType, Data: data})
	return nil
}

func (s *stubEventSink) all() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *stubEventSink) ofType(eventType string) []recordedEvent {
	var out []recordedEvent
	for _, e := range s.all() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// stubResultRepo хранит ответы и итоги в памяти
type stubResultRepo struct {
	mu      sync.Mutex
	answers []entity.Answer
	results []entity.SessionResult
}

func (r *stubResultRepo) SaveAnswer(answer *entity.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, *answer)
	return nil
}

func (r *stubResultRepo) GetSessionAnswers(sessionID string) ([]entity.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Answer(nil), r.answers...), nil
}

func (r *stubResultRepo) GetParticipantAnswers(sessionID string, participantID string) ([]entity.Answer, error) {
	return nil, nil
}

func (r *stubResultRepo) SaveResults(results []entity.SessionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
	return nil
}

func (r *stubResultRepo) GetSessionResults(sessionID string) ([]entity.SessionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.SessionResult(nil), r.results...), nil
}

// stubSessionRepo отслеживает персистентные обновления статуса
type stubSessionRepo struct {
	mu       sync.Mutex
	statuses []string
	finished bool
}

func (r *stubSessionRepo) Create(session *entity.Session) error { return nil }

func (r *stubSessionRepo) GetByID(id string) (*entity.Session, error) {
	return nil, apperrors.ErrNotFound
}

func (r *stubSessionRepo) UpdateStatus(id string, status string, currentQuestion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *stubSessionRepo) MarkFinished(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
	return nil
}

func (r *stubSessionRepo) isFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// stubCacheRepo - кеш в памяти; используются только операции с множествами
type stubCacheRepo struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{sets: make(map[string]map[string]struct{})}
}

func (c *stubCacheRepo) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, key)
	return nil
}
func (c *stubCacheRepo) SAdd(key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	for _, m := range members {
		set[m.(string)] = struct{}{}
	}
	return nil
}

func (c *stubCacheRepo) SRem(key string, members ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m.(string))
	}
	return nil
}

func (c *stubCacheRepo) SMembers(key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for m := range c.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func (c *stubCacheRepo) members(key string) []string {
	out, _ := c.SMembers(key)
	return out
}

// runnerFixture - раннер с заглушками и доступом к ним из тестов
type runnerFixture struct {
	runner   *Runner
	sink     *stubEventSink
	results  *stubResultRepo
	sessions *stubSessionRepo
	cache    *stubCacheRepo
	finished chan string
}

func newRunnerFixture(t *testing.T, questions []entity.Question) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		sink:     &stubEventSink{},
		results:  &stubResultRepo{},
		sessions: &stubSessionRepo{},
		cache:    newStubCacheRepo(),
		finished: make(chan string, 1),
	}
	deps := &Dependencies{
		ResultRepo:  f.results,
		SessionRepo: f.sessions,
		CacheRepo:   f.cache,
		EventSink:   f.sink,
	}
	state := NewSessionState("session-1", "master-1", questions, DefaultConfig())
	f.runner = NewRunner(state, deps, func(sessionID string) { f.finished <- sessionID })
	t.Cleanup(f.runner.Shutdown)
	return f
}

func TestRunner_Join_SnapshotBeforeRosterDelta(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())

	// Act
	err := f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"})

	// Assert: сначала личный снимок, затем широковещательная дельта ростера
	require.NoError(t, err)
	events := f.sink.all()
	require.Len(t, events, 2)

	assert.Equal(t, EventSessionState, events[0].EventType)
	assert.Equal(t, "player-1", events[0].UserID)
	snap, ok := events[0].Data.(StateSnapshot)
	require.True(t, ok)
	assert.Equal(t, entity.SessionStatusLobby, snap.Status)

	assert.Equal(t, EventRosterChanged, events[1].EventType)
	assert.Empty(t, events[1].UserID)

	// участник появился в Redis-множестве сессии
	assert.Contains(t, f.cache.members("session:session-1:participants"), "player-1")
}

func TestRunner_RejoinMidQuestion_SnapshotShowsAnswered(t *testing.T) {
	// Arrange: player-1 ответил на текущий вопрос и переподключается
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок 1"}))
	require.NoError(t, f.runner.Start("master-1"))
	require.NoError(t, f.runner.SubmitAnswer("player-1", 1, 0))

	// Act: повторный вход того же участника и вход новичка
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок 1"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-2", DisplayName: "Игрок 2"}))

	// Assert: вернувшийся видит, что его ответ уже принят, новичок - нет
	snapshots := f.sink.ofType(EventSessionState)
	require.Len(t, snapshots, 4)

	rejoined := snapshots[2]
	assert.Equal(t, "player-1", rejoined.UserID)
	snap, ok := rejoined.Data.(StateSnapshot)
	require.True(t, ok)
	assert.True(t, snap.HasAnswered, "после переподключения статус принятого ответа должен сохраниться")

	newcomer := snapshots[3]
	assert.Equal(t, "player-2", newcomer.UserID)
	snap, ok = newcomer.Data.(StateSnapshot)
	require.True(t, ok)
	assert.False(t, snap.HasAnswered)
}

func TestRunner_Leave_Idempotent(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))

	// Act
	require.NoError(t, f.runner.Leave("player-1"))
	before := len(f.sink.all())
	require.NoError(t, f.runner.Leave("player-1"))

	// Assert: повторный выход не рассылает лишних событий
	assert.Len(t, f.sink.all(), before)
	assert.Empty(t, f.cache.members("session:session-1:participants"))
}

func TestRunner_Start_BroadcastsQuestionAndPersists(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))

	// Act
	err := f.runner.Start("master-1")

	// Assert
	require.NoError(t, err)
	changed := f.sink.ofType(EventQuestionChanged)
	require.Len(t, changed, 1)
	payload, ok := changed[0].Data.(QuestionChangedPayload)
	require.True(t, ok)
	assert.Equal(t, uint(1), payload.Question.ID)
	assert.Positive(t, payload.DeadlineMs)

	f.sessions.mu.Lock()
	statuses := append([]string(nil), f.sessions.statuses...)
	f.sessions.mu.Unlock()
	assert.Contains(t, statuses, entity.SessionStatusInProgress)
}

func TestRunner_SubmitAnswer_PersistsAndBroadcasts(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))
	require.NoError(t, f.runner.Start("master-1"))

	// Act
	err := f.runner.SubmitAnswer("player-1", 1, 0)

	// Assert: ответ сохранён и о нём объявлено без выбранного варианта
	require.NoError(t, err)
	accepted := f.sink.ofType(EventAnswerAccepted)
	require.Len(t, accepted, 1)
	payload, ok := accepted[0].Data.(AnswerAcceptedPayload)
	require.True(t, ok)
	assert.Equal(t, "player-1", payload.ParticipantID)
	assert.Equal(t, uint(1), payload.QuestionID)

	f.results.mu.Lock()
	saved := len(f.results.answers)
	f.results.mu.Unlock()
	assert.Equal(t, 1, saved)
}

func TestRunner_SubmitAnswer_Duplicate(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))
	require.NoError(t, f.runner.Start("master-1"))
	require.NoError(t, f.runner.SubmitAnswer("player-1", 1, 0))

	// Act
	err := f.runner.SubmitAnswer("player-1", 1, 2)

	// Assert: дубликат отклонён и не рассылается
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
	assert.Len(t, f.sink.ofType(EventAnswerAccepted), 1)
}

func TestRunner_Reveal_BroadcastsScoreboard(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))
	require.NoError(t, f.runner.Start("master-1"))
	require.NoError(t, f.runner.SubmitAnswer("player-1", 1, 0))

	// Act
	err := f.runner.Reveal("master-1")

	// Assert: правильный вариант раскрыт вместе с таблицей очков
	require.NoError(t, err)
	revealed := f.sink.ofType(EventAnswersRevealed)
	require.Len(t, revealed, 1)
	payload, ok := revealed[0].Data.(AnswersRevealedPayload)
	require.True(t, ok)
	assert.Equal(t, 0, payload.CorrectOption)
	require.Len(t, payload.Scoreboard, 1)
	assert.Equal(t, 2, payload.Scoreboard[0].Points)
}

func TestRunner_AutoRevealOnTimeout(t *testing.T) {
	// Arrange: вопрос с окном приёма в одну секунду
	questions := []entity.Question{
		{ID: 1, Text: "Быстрый вопрос", Options: entity.StringArray{"A", "B"}, CorrectOption: 0, TimeLimitSec: 1, PointValue: 1},
	}
	f := newRunnerFixture(t, questions)
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Start("master-1"))

	// Act & Assert: вскрытие происходит без команды ведущего
	require.Eventually(t, func() bool {
		return len(f.sink.ofType(EventAnswersRevealed)) == 1
	}, 3*time.Second, 50*time.Millisecond, "окно приёма должно закрыться по таймауту")
}

func TestRunner_ManualRevealCancelsTimer(t *testing.T) {
	// Arrange: короткое окно, но ведущий вскрывает сам
	questions := []entity.Question{
		{ID: 1, Text: "Быстрый вопрос", Options: entity.StringArray{"A", "B"}, CorrectOption: 0, TimeLimitSec: 1, PointValue: 1},
	}
	f := newRunnerFixture(t, questions)
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Start("master-1"))

	// Act
	require.NoError(t, f.runner.Reveal("master-1"))
	time.Sleep(1500 * time.Millisecond)

	// Assert: таймер не даёт второго вскрытия
	assert.Len(t, f.sink.ofType(EventAnswersRevealed), 1)
}

func TestRunner_FinishPersistsResults(t *testing.T) {
	// Arrange: сессия с одним вопросом проходит полный цикл
	questions := testQuestions()[:1]
	f := newRunnerFixture(t, questions)
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))
	require.NoError(t, f.runner.Start("master-1"))
	require.NoError(t, f.runner.SubmitAnswer("player-1", 1, 0))
	require.NoError(t, f.runner.Reveal("master-1"))

	// Act
	err := f.runner.Advance("master-1")

	// Assert
	require.NoError(t, err)

	finished := f.sink.ofType(EventSessionFinished)
	require.Len(t, finished, 1)
	payload, ok := finished[0].Data.(SessionFinishedPayload)
	require.True(t, ok)
	require.Len(t, payload.Scoreboard, 1)
	assert.Equal(t, "player-1", payload.Scoreboard[0].ParticipantID)
	assert.Equal(t, 1, payload.Scoreboard[0].Rank)

	// итоги и статус зафиксированы, Redis-ключ участников очищен
	results, _ := f.results.GetSessionResults("session-1")
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Score)
	assert.Equal(t, 1, results[0].TotalQuestions)
	assert.True(t, f.sessions.isFinished())
	assert.Empty(t, f.cache.members("session:session-1:participants"))

	// реестр уведомлён о завершении
	select {
	case id := <-f.finished:
		assert.Equal(t, "session-1", id)
	case <-time.After(time.Second):
		t.Fatal("onFinished не был вызван")
	}

	// раннер остановлен: дальнейшие команды отклоняются
	err = f.runner.Join(entity.Participant{ID: "latecomer", DisplayName: "Опоздавший"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestRunner_FinishAdvanceReportsSuccess(t *testing.T) {
	// Arrange & Act: завершающий Advance должен сообщать ведущему об успехе
	// при каждом прогоне, а не зависеть от гонки остановки цикла команд
	for i := 0; i < 50; i++ {
		f := newRunnerFixture(t, testQuestions()[:1])
		require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
		require.NoError(t, f.runner.Join(entity.Participant{ID: "player-1", DisplayName: "Игрок"}))
		require.NoError(t, f.runner.Start("master-1"))
		require.NoError(t, f.runner.SubmitAnswer("player-1", 1, 0))
		require.NoError(t, f.runner.Reveal("master-1"))

		// Assert
		require.NoError(t, f.runner.Advance("master-1"), "прогон %d: завершающий Advance вернул ошибку", i)
		require.Len(t, f.sink.ofType(EventSessionFinished), 1)
	}
}

func TestRunner_ShutdownDuringStart(t *testing.T) {
	// Arrange & Act: Shutdown приходит с чужой горутины одновременно со
	// Start, который взводит таймер автовскрытия
	for i := 0; i < 25; i++ {
		f := newRunnerFixture(t, testQuestions())
		require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			// Остановленный раннер отвечает ErrInvalidState - обе развязки допустимы
			_ = f.runner.Start("master-1")
		}()
		go func() {
			defer wg.Done()
			f.runner.Shutdown()
		}()
		wg.Wait()
	}
}

func TestRunner_Snapshot(t *testing.T) {
	// Arrange
	f := newRunnerFixture(t, testQuestions())
	require.NoError(t, f.runner.Join(entity.Participant{ID: "master-1", DisplayName: "Ведущий"}))
	require.NoError(t, f.runner.Start("master-1"))

	// Act
	snap, err := f.runner.Snapshot()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "session-1", snap.SessionID)
	assert.Equal(t, entity.SessionStatusInProgress, snap.Status)
	require.NotNil(t, snap.Question)
	assert.Equal(t, uint(1), snap.Question.ID)
}
