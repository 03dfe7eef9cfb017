package websocket

import (
	"sync"
	"sync/atomic"
)

// Metrics - счетчики WebSocket-подсистемы.
// Все поля атомарные: пишут пампы и шарды, читает HTTP-срез.
type Metrics struct {
	// ConnectionsTotal - всего принятых соединений за время жизни процесса
	ConnectionsTotal atomic.Int64

	// ConnectionsActive - живые соединения в данный момент
	ConnectionsActive atomic.Int64

	// MessagesSent - сообщения, записанные в соединения
	MessagesSent atomic.Int64

	// MessagesReceived - сообщения, прочитанные из соединений
	MessagesReceived atomic.Int64

	// SendDrops - сообщения, выброшенные из-за переполнения буфера клиента
	SendDrops atomic.Int64

	// StaleClosed - соединения, закрытые сборщиком неактивных
	StaleClosed atomic.Int64

	// byType - счетчики входящих команд по типу события
	byType sync.Map
}

// NewMetrics создает нулевые счетчики
func NewMetrics() *Metrics {
	return &Metrics{}
}

// CountInbound учитывает входящую команду указанного типа
func (m *Metrics) CountInbound(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	counter, _ := m.byType.LoadOrStore(eventType, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// Snapshot возвращает согласованный на уровне отдельных счетчиков срез метрик
func (m *Metrics) Snapshot() map[string]interface{} {
	byType := make(map[string]int64)
	m.byType.Range(func(key, value interface{}) bool {
		byType[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return map[string]interface{}{
		"connections_total":  m.ConnectionsTotal.Load(),
		"connections_active": m.ConnectionsActive.Load(),
		"messages_sent":      m.MessagesSent.Load(),
		"messages_received":  m.MessagesReceived.Load(),
		"send_drops":         m.SendDrops.Load(),
		"stale_closed":       m.StaleClosed.Load(),
		"inbound_by_type":    byType,
	}
}
