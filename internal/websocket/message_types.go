package websocket

// Типы исходящих событий сессии
const (
	// SESSION_STATE - полный снимок состояния сессии (вход и ресинк)
	SESSION_STATE = "session:state"

	// ROSTER_CHANGED сообщает об изменении состава участников
	ROSTER_CHANGED = "roster:changed"

	// QUESTION_CHANGED сообщает о показе нового вопроса
	QUESTION_CHANGED = "question:changed"

	// ANSWER_ACCEPTED сообщает о принятом ответе участника
	ANSWER_ACCEPTED = "answer:accepted"

	// ANSWERS_REVEALED сообщает о вскрытии ответов текущего вопроса
	ANSWERS_REVEALED = "answers:revealed"

	// SESSION_FINISHED сообщает о завершении сессии
	SESSION_FINISHED = "session:finished"

	// SERVER_ERROR отправляется только автору отклонённой команды
	SERVER_ERROR = "server:error"
)

// Типы входящих команд клиентов
const (
	// SESSION_JOIN - вход участника в сессию
	SESSION_JOIN = "session:join"

	// SESSION_LEAVE - выход участника из сессии
	SESSION_LEAVE = "session:leave"

	// SESSION_START - запуск сессии ведущим
	SESSION_START = "session:start"

	// SESSION_ADVANCE - переход к следующему вопросу
	SESSION_ADVANCE = "session:advance"

	// SESSION_REVEAL - вскрытие ответов текущего вопроса
	SESSION_REVEAL = "session:reveal"

	// SESSION_ANSWER - ответ участника на текущий вопрос
	SESSION_ANSWER = "session:answer"

	// USER_HEARTBEAT - подтверждение активности клиента
	USER_HEARTBEAT = "user:heartbeat"
)
