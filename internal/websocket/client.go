package websocket

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageHandler обрабатывает одно входящее сообщение клиента.
// Ненулевая ошибка означает, что соединение нужно закрыть.
type MessageHandler func(message []byte, client *Client) error

// Client - одно живое WebSocket-соединение.
// Читающая и пишущая горутины общаются с хабом только через
// канал send и методы хаба, общего мутабельного состояния нет.
type Client struct {
	// UserID - идентификатор пользователя из WS-тикета
	UserID string

	// Role - роль из WS-тикета ("master" или "player")
	Role string

	// ConnID различает последовательные соединения одного пользователя
	ConnID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// sessionID хранит ID сессии, на которую подписан клиент ("" - ни на одну).
	// atomic.Value: читается пампами и хабом без общего замка.
	sessionID atomic.Value

	// lastSeen - unix-наносекунды последней активности (pong или сообщение)
	lastSeen atomic.Int64

	// strikes считает подряд идущие переполнения буфера отправки
	strikes atomic.Int32

	// sendClosed гарантирует однократное закрытие канала send
	sendClosed atomic.Bool
}

// NewClient создает клиента поверх установленного соединения.
// Клиент еще не зарегистрирован в хабе; это делает StartPumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, role string) *Client {
	c := &Client{
		UserID: userID,
		Role:   role,
		ConnID: uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.opts.SendBuffer),
	}
	c.sessionID.Store("")
	c.touch()
	return c
}

// IsMaster сообщает, подключен ли клиент как ведущий
func (c *Client) IsMaster() bool {
	return c.Role == "master"
}

// SessionID возвращает ID сессии, на которую подписан клиент
func (c *Client) SessionID() string {
	id, _ := c.sessionID.Load().(string)
	return id
}

func (c *Client) setSessionID(id string) {
	c.sessionID.Store(id)
}

// touch отмечает активность клиента для сборщика неактивных соединений
func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) idleSince(cutoff time.Time) bool {
	return time.Unix(0, c.lastSeen.Load()).Before(cutoff)
}

// closeSend закрывает канал send ровно один раз.
// Возвращает false, если канал уже был закрыт.
func (c *Client) closeSend() bool {
	if !c.sendClosed.CompareAndSwap(false, true) {
		return false
	}
	close(c.send)
	return true
}

// StartPumps регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) StartPumps(handle MessageHandler) {
	if c.UserID == "" {
		log.Printf("[WS] соединение без UserID отклонено")
		c.conn.Close()
		return
	}
	c.hub.Register(c)
	go c.writeLoop()
	go c.readLoop(handle)
}

// readLoop читает входящие сообщения до первой ошибки чтения или
// фатальной ошибки обработчика, затем снимает клиента с регистрации.
func (c *Client) readLoop(handle MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("[WS] чтение остановлено: user=%s conn=%s", c.UserID, c.ConnID)
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] ошибка чтения: user=%s conn=%s: %v", c.UserID, c.ConnID, err)
			}
			return
		}
		c.touch()
		c.strikes.Store(0)
		c.hub.metrics.MessagesReceived.Add(1)

		if err := c.dispatch(message, handle); err != nil {
			log.Printf("[WS] фатальная ошибка обработчика: user=%s conn=%s: %v", c.UserID, c.ConnID, err)
			return
		}
	}
}

// dispatch вызывает обработчик, превращая панику в фатальную ошибку соединения
func (c *Client) dispatch(message []byte, handle MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WS] PANIC в обработчике: user=%s: %v\n%s", c.UserID, r, debug.Stack())
			err = fmt.Errorf("panic in message handler: %v", r)
		}
	}()
	if handle == nil {
		return nil
	}
	return handle(message, c)
}

// writeLoop пишет сообщения из канала send и шлет пинги.
// Завершается при закрытии канала или первой ошибке записи.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.Printf("[WS] запись остановлена: user=%s conn=%s", c.UserID, c.ConnID)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] ошибка записи: user=%s conn=%s: %v", c.UserID, c.ConnID, err)
				return
			}
			c.hub.metrics.MessagesSent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
