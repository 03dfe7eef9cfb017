package sessionengine

import (
	"sort"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// Score - строка таблицы очков одного участника
type Score struct {
	ParticipantID  string `json:"participant_id"`
	DisplayName    string `json:"display_name"`
	TeamName       string `json:"team_name,omitempty"`
	Points         int    `json:"points"`
	CorrectAnswers int    `json:"correct_answers"`
	// LastCorrectAtMs - время последнего правильного ответа;
	// при равенстве очков выигрывает тот, кто добрал их раньше
	LastCorrectAtMs int64 `json:"last_correct_at_ms"`
	Rank            int   `json:"rank"`
}

// TeamScore - агрегированная строка командного зачёта
type TeamScore struct {
	TeamName       string `json:"team_name"`
	Points         int    `json:"points"`
	CorrectAnswers int    `json:"correct_answers"`
	Members        int    `json:"members"`
	Rank           int    `json:"rank"`
}

// ComputeScores пересчитывает таблицу очков с нуля по всем принятым ответам.
// Чистая функция: одинаковые входы всегда дают одинаковую таблицу.
// Участники, вышедшие из сессии, сохраняют очки за принятые ответы.
func ComputeScores(questions []entity.Question, answers []*entity.Answer, resolve func(id string) (entity.Participant, bool)) []Score {
	questionByID := make(map[uint]*entity.Question, len(questions))
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
	}

	rows := make(map[string]*Score)
	for _, a := range answers {
		q, ok := questionByID[a.QuestionID]
		if !ok {
			continue
		}

		row, ok := rows[a.ParticipantID]
		if !ok {
			row = &Score{ParticipantID: a.ParticipantID}
			if p, found := resolve(a.ParticipantID); found {
				row.DisplayName = p.DisplayName
				row.TeamName = p.TeamName
			}
			rows[a.ParticipantID] = row
		}

		if q.IsCorrect(a.SelectedOption) {
			row.Points += q.Points(true)
			row.CorrectAnswers++
			if a.SubmittedAtMs > row.LastCorrectAtMs {
				row.LastCorrectAtMs = a.SubmittedAtMs
			}
		}
	}

	out := make([]Score, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}

	sortScores(out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// sortScores упорядочивает строки: очки по убыванию, затем кто раньше
// набрал свой последний правильный ответ, затем ID участника
func sortScores(scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Points != scores[j].Points {
			return scores[i].Points > scores[j].Points
		}
		if scores[i].LastCorrectAtMs != scores[j].LastCorrectAtMs {
			return scores[i].LastCorrectAtMs < scores[j].LastCorrectAtMs
		}
		return scores[i].ParticipantID < scores[j].ParticipantID
	})
}

// ComputeTeamStandings сворачивает таблицу очков в командный зачёт.
// Участники без команды в зачёт не входят.
func ComputeTeamStandings(scores []Score) []TeamScore {
	byTeam := make(map[string]*TeamScore)
	for _, s := range scores {
		if s.TeamName == "" {
			continue
		}
		team, ok := byTeam[s.TeamName]
		if !ok {
			team = &TeamScore{TeamName: s.TeamName}
			byTeam[s.TeamName] = team
		}
		team.Points += s.Points
		team.CorrectAnswers += s.CorrectAnswers
		team.Members++
	}

	out := make([]TeamScore, 0, len(byTeam))
	for _, t := range byTeam {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].TeamName < out[j].TeamName
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
