package sessionengine

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// EventSessionState - полный снимок состояния, отправляется лично подписчику
// при входе и ресинке, до любых последующих дельт
const EventSessionState = "session:state"

// Runner владеет состоянием одной сессии и выполняет все команды
// последовательно в собственной горутине. Обработчики соединений
// только ставят команды в очередь и ждут результата - ни одна
// горутина снаружи не трогает SessionState напрямую.
type Runner struct {
	state *SessionState
	deps  *Dependencies

	cmds chan func()
	done chan struct{}

	stopOnce sync.Once

	// stopping выставляется командой финиша; цикл останавливается после того,
	// как результат этой команды доставлен вызывающему. Поле трогает только
	// горутина цикла.
	stopping bool

	// revealTimer закрывает окно приёма ответов текущего вопроса.
	// Таймер взводится в цикле команд, но Shutdown приходит с чужой
	// горутины, поэтому доступ под мьютексом.
	timerMu     sync.Mutex
	revealTimer *time.Timer

	// onFinished вызывается после завершения сессии (реестр снимает раннер)
	onFinished func(sessionID string)
}

// NewRunner создает раннер и запускает его цикл команд
func NewRunner(state *SessionState, deps *Dependencies, onFinished func(sessionID string)) *Runner {
	buffer := state.cfg.CommandBuffer
	if buffer <= 0 {
		buffer = 64
	}
	r := &Runner{
		state:      state,
		deps:       deps,
		cmds:       make(chan func(), buffer),
		done:       make(chan struct{}),
		onFinished: onFinished,
	}
	go r.run()
	return r
}

// run - единственный писатель состояния сессии
func (r *Runner) run() {
	log.Printf("[Runner] Сессия %s: цикл команд запущен", r.state.ID())
	for {
		select {
		case fn := <-r.cmds:
			fn()
			if r.stopping {
				// Команда финиша уже отправила свой результат в reply -
				// закрывать done можно только после этого
				r.stop()
				log.Printf("[Runner] Сессия %s: цикл команд остановлен", r.state.ID())
				return
			}
		case <-r.done:
			log.Printf("[Runner] Сессия %s: цикл команд остановлен", r.state.ID())
			return
		}
	}
}

// do выполняет fn в цикле команд и ждёт результат
func (r *Runner) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case r.cmds <- func() { reply <- fn() }:
	case <-r.done:
		return apperrors.ErrInvalidState
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		// Раннер остановился, но команда могла успеть выполниться -
		// доставленный результат важнее факта остановки
		select {
		case err := <-reply:
			return err
		default:
			return apperrors.ErrInvalidState
		}
	}
}

// stop закрывает цикл команд. Вызывается только изнутри цикла (при финише)
// или реестром при сносе сессии.
func (r *Runner) stop() {
	r.stopOnce.Do(func() {
		r.stopRevealTimer()
		close(r.done)
	})
}

// stopRevealTimer гасит таймер автовскрытия, если он взведён
func (r *Runner) stopRevealTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.revealTimer != nil {
		r.revealTimer.Stop()
	}
}

// Shutdown останавливает раннер без завершения сессии (снос инстанса)
func (r *Runner) Shutdown() {
	r.stop()
}

// SessionID возвращает идентификатор сессии раннера
func (r *Runner) SessionID() string {
	return r.state.ID()
}

// Join добавляет участника, шлёт ему снимок состояния и рассылает дельту ростера
func (r *Runner) Join(p entity.Participant) error {
	return r.do(func() error {
		if err := r.state.Join(p); err != nil {
			return err
		}

		// Участник в Redis-множестве сессии - для обзора с других инстансов
		if err := r.deps.CacheRepo.SAdd(participantsKey(r.state.ID()), p.ID); err != nil {
			log.Printf("[Runner] Сессия %s: не удалось добавить участника %s в Redis: %v", r.state.ID(), p.ID, err)
		}

		// Снимок уходит новичку до дельты, которую увидят все;
		// персональный вариант несёт статус его ответа на текущий вопрос
		r.sendToUser(p.ID, EventSessionState, r.state.SnapshotFor(p.ID))
		r.broadcastRoster()
		return nil
	})
}

// Leave убирает участника. Идемпотентна; ответы вышедшего остаются в зачёте.
func (r *Runner) Leave(participantID string) error {
	return r.do(func() error {
		if !r.state.Roster().Contains(participantID) {
			return nil
		}
		r.state.Leave(participantID)

		if err := r.deps.CacheRepo.SRem(participantsKey(r.state.ID()), participantID); err != nil {
			log.Printf("[Runner] Сессия %s: не удалось убрать участника %s из Redis: %v", r.state.ID(), participantID, err)
		}

		r.broadcastRoster()
		return nil
	})
}

// Start запускает сессию и показывает первый вопрос
func (r *Runner) Start(actorID string) error {
	return r.do(func() error {
		nowMs := time.Now().UnixMilli()
		if _, err := r.state.Start(actorID, nowMs); err != nil {
			return err
		}

		r.persistStatus()
		r.broadcastQuestion()
		r.scheduleReveal()
		return nil
	})
}

// SubmitAnswer принимает ответ участника на текущий вопрос
func (r *Runner) SubmitAnswer(actorID string, questionID uint, selectedOption int) error {
	return r.do(func() error {
		nowMs := time.Now().UnixMilli()
		answer, err := r.state.SubmitAnswer(actorID, questionID, selectedOption, nowMs)
		if err != nil {
			return err
		}

		// Уникальный индекс в БД - вторая линия защиты от дублей
		if err := r.deps.ResultRepo.SaveAnswer(answer); err != nil {
			if errors.Is(err, apperrors.ErrDuplicateAnswer) {
				return err
			}
			// БД недоступна - ответ уже принят в журнале, играем дальше
			log.Printf("[Runner] Сессия %s: не удалось сохранить ответ участника %s: %v", r.state.ID(), actorID, err)
		}

		r.broadcast(EventAnswerAccepted, AnswerAcceptedPayload{
			SessionID:     r.state.ID(),
			QuestionID:    answer.QuestionID,
			ParticipantID: answer.ParticipantID,
			SubmittedAtMs: answer.SubmittedAtMs,
		})
		return nil
	})
}

// Reveal вскрывает ответы по команде ведущего
func (r *Runner) Reveal(actorID string) error {
	return r.do(func() error {
		q, err := r.state.Reveal(actorID)
		if err != nil {
			return err
		}
		r.stopRevealTimer()
		r.broadcastRevealed(q)
		return nil
	})
}

// Advance переводит сессию к следующему вопросу или завершает её
func (r *Runner) Advance(actorID string) error {
	return r.do(func() error {
		nowMs := time.Now().UnixMilli()
		_, finished, err := r.state.Advance(actorID, nowMs)
		if err != nil {
			return err
		}

		if finished {
			r.finish()
			return nil
		}

		r.persistStatus()
		r.broadcastQuestion()
		r.scheduleReveal()
		return nil
	})
}

// Snapshot возвращает полное публичное состояние сессии
func (r *Runner) Snapshot() (StateSnapshot, error) {
	var snap StateSnapshot
	err := r.do(func() error {
		snap = r.state.Snapshot()
		return nil
	})
	return snap, err
}

// scheduleReveal взводит таймер автовскрытия на окно приёма текущего вопроса.
// Таймер ставит команду в общий цикл: вскрытие по таймауту сериализовано
// с остальными командами и проверяет epoch против устаревших срабатываний.
func (r *Runner) scheduleReveal() {
	q := r.state.CurrentQuestion()
	if q == nil {
		r.stopRevealTimer()
		return
	}
	epoch := r.state.Epoch()
	window := r.state.cfg.AnswerWindow(q.TimeLimitSec)

	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.revealTimer != nil {
		r.revealTimer.Stop()
	}
	r.revealTimer = time.AfterFunc(window, func() {
		select {
		case r.cmds <- func() { r.revealTimeout(epoch) }:
		case <-r.done:
		}
	})
}

// revealTimeout выполняется в цикле команд по срабатыванию таймера
func (r *Runner) revealTimeout(epoch int) {
	q, err := r.state.RevealByTimeout(epoch)
	if err != nil {
		// Ведущий успел вскрыть вручную или вопрос сменился
		return
	}
	log.Printf("[Runner] Сессия %s: окно приёма вопроса %d закрыто по таймауту", r.state.ID(), q.ID)
	r.broadcastRevealed(q)
}

// finish фиксирует итоги, рассылает финальное событие и останавливает раннер
func (r *Runner) finish() {
	scoreboard := r.state.Scoreboard()
	teams := ComputeTeamStandings(scoreboard)

	now := time.Now()
	results := make([]entity.SessionResult, 0, len(scoreboard))
	for _, s := range scoreboard {
		results = append(results, entity.SessionResult{
			SessionID:       r.state.ID(),
			ParticipantID:   s.ParticipantID,
			DisplayName:     s.DisplayName,
			TeamName:        s.TeamName,
			Score:           s.Points,
			CorrectAnswers:  s.CorrectAnswers,
			TotalQuestions:  r.state.QuestionCount(),
			Rank:            s.Rank,
			LastCorrectAtMs: s.LastCorrectAtMs,
			CompletedAt:     now,
		})
	}

	if err := r.deps.ResultRepo.SaveResults(results); err != nil {
		log.Printf("[Runner] Сессия %s: не удалось сохранить итоги: %v", r.state.ID(), err)
	}
	if err := r.deps.SessionRepo.MarkFinished(r.state.ID()); err != nil {
		log.Printf("[Runner] Сессия %s: не удалось пометить сессию завершённой: %v", r.state.ID(), err)
	}
	if err := r.deps.CacheRepo.Delete(participantsKey(r.state.ID())); err != nil {
		log.Printf("[Runner] Сессия %s: не удалось очистить Redis-ключ участников: %v", r.state.ID(), err)
	}

	r.broadcast(EventSessionFinished, SessionFinishedPayload{
		SessionID:  r.state.ID(),
		Scoreboard: scoreboard,
		Teams:      teams,
	})

	log.Printf("[Runner] Сессия %s завершена: %d участников, %d вопросов",
		r.state.ID(), len(scoreboard), r.state.QuestionCount())

	if r.onFinished != nil {
		// Снятие из реестра - вне цикла команд, чтобы не упереться в его же канал
		go r.onFinished(r.state.ID())
	}
	// Остановку выполняет цикл команд после доставки результата этой команды
	r.stopping = true
}

func (r *Runner) persistStatus() {
	if err := r.deps.SessionRepo.UpdateStatus(r.state.ID(), r.state.Status(), r.state.CurrentIndex()); err != nil {
		log.Printf("[Runner] Сессия %s: не удалось обновить статус в БД: %v", r.state.ID(), err)
	}
}

func (r *Runner) broadcastQuestion() {
	view := r.state.QuestionViewAt(r.state.CurrentIndex())
	if view == nil {
		return
	}
	r.broadcast(EventQuestionChanged, QuestionChangedPayload{
		SessionID:  r.state.ID(),
		Question:   *view,
		DeadlineMs: r.state.DeadlineMs(),
	})
}

func (r *Runner) broadcastRevealed(q *entity.Question) {
	scoreboard := r.state.Scoreboard()
	r.broadcast(EventAnswersRevealed, AnswersRevealedPayload{
		SessionID:     r.state.ID(),
		QuestionIndex: r.state.CurrentIndex(),
		QuestionID:    q.ID,
		CorrectOption: q.CorrectOption,
		Scoreboard:    scoreboard,
		Teams:         ComputeTeamStandings(scoreboard),
	})
}

func (r *Runner) broadcastRoster() {
	r.broadcast(EventRosterChanged, RosterChangedPayload{
		SessionID:    r.state.ID(),
		Participants: r.state.Roster().List(),
		Count:        r.state.Roster().Count(),
	})
}

func (r *Runner) broadcast(eventType string, data interface{}) {
	if r.deps.EventSink == nil {
		return
	}
	if err := r.deps.EventSink.BroadcastEventToSession(r.state.ID(), eventType, data); err != nil {
		log.Printf("[Runner] Сессия %s: ошибка рассылки события %s: %v", r.state.ID(), eventType, err)
	}
}

func (r *Runner) sendToUser(userID string, eventType string, data interface{}) {
	if r.deps.EventSink == nil {
		return
	}
	if err := r.deps.EventSink.SendEventToUser(userID, eventType, data); err != nil {
		log.Printf("[Runner] Сессия %s: ошибка отправки события %s пользователю %s: %v", r.state.ID(), eventType, userID, err)
	}
}

// participantsKey - Redis-ключ множества участников сессии
func participantsKey(sessionID string) string {
	return "session:" + sessionID + ":participants"
}
