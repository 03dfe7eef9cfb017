package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event - исходящий конверт WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// envelope - входящий конверт. Данные остаются сырыми байтами:
// каждый обработчик декодирует свой типизированный payload сам.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandlerFunc обрабатывает payload команды одного типа.
// Ненулевая ошибка фатальна для соединения; отклоненные командами
// ошибки движка обработчик репортит сам через SendErrorToClient.
type HandlerFunc func(data json.RawMessage, client *Client) error

// Manager маршрутизирует типизированные команды клиентов к обработчикам
// и превращает события движка в исходящие конверты.
type Manager struct {
	hub      Broadcaster
	handlers map[string]HandlerFunc
	metrics  *Metrics
}

// NewManager создает менеджер поверх хаба.
// Обработчики регистрируются один раз при старте, до приема соединений,
// поэтому карта не защищается замком.
func NewManager(hub Broadcaster) *Manager {
	m := &Manager{
		hub:      hub,
		handlers: make(map[string]HandlerFunc),
	}
	if h, ok := hub.(*Hub); ok {
		m.metrics = h.metrics
	}
	return m
}

// RegisterHandler регистрирует обработчик команд указанного типа
func (m *Manager) RegisterHandler(eventType string, handler HandlerFunc) {
	if _, exists := m.handlers[eventType]; exists {
		log.Printf("[Manager] обработчик %q переопределен", eventType)
	}
	m.handlers[eventType] = handler
}

// HandleMessage разбирает конверт и вызывает обработчик команды.
// Ненулевая ошибка означает, что соединение нужно закрыть; команда
// неизвестного типа соединение не закрывает.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Printf("[Manager] не-JSON сообщение от user=%s: %v", client.UserID, err)
		m.SendErrorToClient(client, "invalid_input", "malformed message envelope")
		return fmt.Errorf("malformed envelope: %w", err)
	}
	if m.metrics != nil {
		m.metrics.CountInbound(env.Type)
	}
	// Команды без поля data (session:leave и пр.) получают пустой объект
	if len(env.Data) == 0 {
		env.Data = json.RawMessage(`{}`)
	}

	handler, ok := m.handlers[env.Type]
	if !ok {
		log.Printf("[Manager] команда неизвестного типа %q от user=%s", env.Type, client.UserID)
		m.SendErrorToClient(client, "invalid_input", fmt.Sprintf("unknown command type: %s", env.Type))
		return nil
	}
	return handler(env.Data, client)
}

// SendErrorToClient доставляет server:error только автору отклоненной
// команды. Остальные подписчики сессии ошибку не видят.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	err := m.hub.SendJSONToUser(client.UserID, Event{
		Type: SERVER_ERROR,
		Data: map[string]string{"code": code, "message": message},
	})
	if err != nil {
		log.Printf("[Manager] не удалось доставить server:error user=%s: %v", client.UserID, err)
	}
}

// SendEventToUser отправляет событие конкретному пользователю.
// Вместе с BroadcastEventToSession образует sessionengine.EventSink.
func (m *Manager) SendEventToUser(userID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userID, Event{Type: eventType, Data: data})
}

// BroadcastEventToSession отправляет событие всем подписчикам сессии
func (m *Manager) BroadcastEventToSession(sessionID string, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s event for session %s: %w", eventType, sessionID, err)
	}
	m.hub.BroadcastToSession(sessionID, payload)
	return nil
}

// SubscribeClientToSession подписывает клиента на события сессии
func (m *Manager) SubscribeClientToSession(client *Client, sessionID string) error {
	return m.hub.Subscribe(client, sessionID)
}

// UnsubscribeClientFromSession снимает подписку клиента на текущую сессию
func (m *Manager) UnsubscribeClientFromSession(client *Client) error {
	m.hub.Unsubscribe(client)
	return nil
}

// GetActiveSubscribers возвращает ID активных подписчиков сессии
func (m *Manager) GetActiveSubscribers(sessionID string) ([]string, error) {
	return m.hub.GetActiveSubscribers(sessionID)
}
