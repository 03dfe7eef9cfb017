package entity

import (
	"strings"
	"unicode/utf8"
)

// Ограничения на отображаемые имена участников и команд
const (
	MaxDisplayNameLen = 50
	MaxTeamNameLen    = 50
)

// Participant представляет участника сессии.
// Живёт в ростере движка; в БД не сохраняется (итоги фиксируются в SessionResult).
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	TeamName    string `json:"team_name,omitempty"`
	IsMaster    bool   `json:"is_master"`
}

// ValidateDisplayName проверяет отображаемое имя: непустое после trim, не длиннее 50 символов.
// Длина считается в рунах, чтобы не резать кириллицу и эмодзи по байтам.
func ValidateDisplayName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	return utf8.RuneCountInString(trimmed) <= MaxDisplayNameLen
}

// ValidateTeamName проверяет название команды: пустое допустимо (без команды), иначе не длиннее 50.
func ValidateTeamName(team string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(team)) <= MaxTeamNameLen
}
