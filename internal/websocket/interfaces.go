package websocket

// Broadcaster - срез возможностей хаба, нужный менеджеру сообщений.
// В тестах подменяется заглушкой, в рантайме это всегда *Hub.
type Broadcaster interface {
	// BroadcastJSON отправляет событие всем подключенным клиентам
	BroadcastJSON(v interface{}) error

	// SendJSONToUser отправляет событие конкретному пользователю
	SendJSONToUser(userID string, v interface{}) error

	// SendToUser отправляет байтовое сообщение конкретному пользователю
	SendToUser(userID string, message []byte) bool

	// BroadcastToSession отправляет байтовое сообщение подписчикам сессии
	BroadcastToSession(sessionID string, message []byte)

	// Subscribe подписывает клиента на события сессии
	Subscribe(c *Client, sessionID string) error

	// Unsubscribe снимает подписку клиента на текущую сессию
	Unsubscribe(c *Client)

	// GetActiveSubscribers возвращает ID активных подписчиков сессии
	GetActiveSubscribers(sessionID string) ([]string, error)

	// ClientCount возвращает количество живых соединений
	ClientCount() int

	// GetMetrics возвращает снимок метрик хаба
	GetMetrics() map[string]interface{}
}

var _ Broadcaster = (*Hub)(nil)
