package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный тикет, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда команда доступна только ведущему сессии.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState используется, когда команда не допустима в текущей фазе сессии
	// (например, повторный Reveal или ответ после закрытия окна приёма).
	ErrInvalidState = errors.New("invalid session state")

	// ErrDuplicateAnswer используется при повторной попытке ответить на тот же вопрос.
	// Засчитывается только первый принятый ответ.
	ErrDuplicateAnswer = errors.New("answer already recorded")

	// ErrInvalidOption используется, когда выбранный вариант выходит за пределы
	// списка вариантов текущего вопроса.
	ErrInvalidOption = errors.New("option index out of range")

	// ErrInvalidName используется при нарушении ограничений на отображаемое имя участника.
	ErrInvalidName = errors.New("invalid display name")

	// ErrInvalidInput используется для структурно некорректных команд (до обращения к состоянию).
	ErrInvalidInput = errors.New("invalid input")

	// ErrExpiredToken используется, когда WS-тикет истек.
	ErrExpiredToken = errors.New("token is expired")
)
