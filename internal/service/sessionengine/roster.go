package sessionengine

import (
	"sort"
	"strings"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
)

// Roster хранит участников сессии.
// Не потокобезопасен: все обращения идут из цикла команд раннера.
type Roster struct {
	active map[string]entity.Participant
	// departed хранит вышедших участников: их принятые ответы
	// продолжают учитываться в подсчёте очков, имена нужны для таблицы
	departed map[string]entity.Participant
	limit    int
}

// NewRoster создает новый ростер с ограничением на число участников (0 - без лимита)
func NewRoster(limit int) *Roster {
	return &Roster{
		active:   make(map[string]entity.Participant),
		departed: make(map[string]entity.Participant),
		limit:    limit,
	}
}

// Add добавляет участника. Повторный Add с тем же ID молча заменяет запись -
// это переподключение, а не ошибка.
func (r *Roster) Add(p entity.Participant) error {
	if p.ID == "" {
		return apperrors.ErrInvalidInput
	}
	if !entity.ValidateDisplayName(p.DisplayName) {
		return apperrors.ErrInvalidName
	}
	if !entity.ValidateTeamName(p.TeamName) {
		return apperrors.ErrInvalidName
	}

	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.TeamName = strings.TrimSpace(p.TeamName)

	if _, rejoining := r.active[p.ID]; !rejoining {
		if r.limit > 0 && len(r.active) >= r.limit {
			return apperrors.ErrInvalidState
		}
	}

	r.active[p.ID] = p
	delete(r.departed, p.ID)
	return nil
}

// Remove убирает участника из ростера. Идемпотентна: удаление
// отсутствующего ID - no-op. Запись переносится в departed.
func (r *Roster) Remove(id string) {
	p, ok := r.active[id]
	if !ok {
		return
	}
	delete(r.active, id)
	r.departed[id] = p
}

// Contains проверяет, есть ли активный участник с данным ID
func (r *Roster) Contains(id string) bool {
	_, ok := r.active[id]
	return ok
}

// Get возвращает активного участника по ID
func (r *Roster) Get(id string) (entity.Participant, bool) {
	p, ok := r.active[id]
	return p, ok
}

// Resolve возвращает участника по ID, включая вышедших
func (r *Roster) Resolve(id string) (entity.Participant, bool) {
	if p, ok := r.active[id]; ok {
		return p, true
	}
	p, ok := r.departed[id]
	return p, ok
}

// Count возвращает число активных участников
func (r *Roster) Count() int {
	return len(r.active)
}

// List возвращает активных участников, отсортированных по ID
// для детерминированного порядка в событиях
func (r *Roster) List() []entity.Participant {
	out := make([]entity.Participant, 0, len(r.active))
	for _, p := range r.active {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
