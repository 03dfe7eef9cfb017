package sessionengine

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

type ledgerKey struct {
	questionID    uint
	participantID string
}

// Ledger - журнал принятых ответов, только добавление.
// Ключ (questionID, participantID) гарантирует не больше одного ответа
// на вопрос от участника: засчитывается первый принятый.
// Не потокобезопасен: все обращения идут из цикла команд раннера.
type Ledger struct {
	byKey map[ledgerKey]*entity.Answer
	// порядок принятия сохраняется для детерминированной итерации
	ordered []*entity.Answer
}

// NewLedger создает пустой журнал ответов
func NewLedger() *Ledger {
	return &Ledger{
		byKey: make(map[ledgerKey]*entity.Answer),
	}
}

// Record фиксирует ответ. Повторная запись для той же пары
// (вопрос, участник) возвращает ErrDuplicateAnswer, журнал не меняется.
func (l *Ledger) Record(answer *entity.Answer) error {
	key := ledgerKey{questionID: answer.QuestionID, participantID: answer.ParticipantID}
	if _, exists := l.byKey[key]; exists {
		return apperrors.ErrDuplicateAnswer
	}
	l.byKey[key] = answer
	l.ordered = append(l.ordered, answer)
	return nil
}

// Has проверяет, есть ли запись для пары (вопрос, участник)
func (l *Ledger) Has(questionID uint, participantID string) bool {
	_, ok := l.byKey[ledgerKey{questionID: questionID, participantID: participantID}]
	return ok
}

// Get возвращает принятый ответ для пары (вопрос, участник)
func (l *Ledger) Get(questionID uint, participantID string) (*entity.Answer, bool) {
	a, ok := l.byKey[ledgerKey{questionID: questionID, participantID: participantID}]
	return a, ok
}

// AnswersFor возвращает все ответы на вопрос в порядке принятия.
// Итерация перезапускаема: каждый вызов отдаёт свежий срез.
func (l *Ledger) AnswersFor(questionID uint) []*entity.Answer {
	var out []*entity.Answer
	for _, a := range l.ordered {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out
}

// All возвращает все ответы в порядке принятия
func (l *Ledger) All() []*entity.Answer {
	out := make([]*entity.Answer, len(l.ordered))
	copy(out, l.ordered)
	return out
}

// Size возвращает общее число принятых ответов
func (l *Ledger) Size() int {
	return len(l.ordered)
}
