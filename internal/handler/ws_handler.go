package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
	"github.com/yourusername/quiznight-api/internal/service"
	"github.com/yourusername/quiznight-api/internal/websocket"
	"github.com/yourusername/quiznight-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsHub         *websocket.Hub
	wsManager     *websocket.Manager
	sessionEngine *service.SessionEngine
	jwtService    *auth.JWTService
	upgrader      gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins разделяет с CORS один список из конфигурации.
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	sessionEngine *service.SessionEngine,
	jwtService *auth.JWTService,
	allowedOrigins []string,
) *WSHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	handler := &WSHandler{
		wsHub:         wsHub,
		wsManager:     wsManager,
		sessionEngine: sessionEngine,
		jwtService:    jwtService,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Пустой Origin - не браузерный клиент (мобильное приложение, curl)
				if origin == "" {
					return true
				}
				if _, ok := origins[origin]; ok {
					return true
				}
				log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
				return false
			},
		},
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// Получаем тикет из запроса (?ticket=... а не ?token=...)
	ticket := c.Query("ticket")
	// НЕ логируем тикет - это секретные данные аутентификации

	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	// Проверяем тикет с использованием специальной функции ParseWSTicket
	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	// Устанавливаем соединение
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upgrade: %v", err)})
		return
	}

	log.Printf("WebSocket: Connection upgraded for UserID: %s (role: %s)", claims.UserID, claims.Role)

	// Создаем нового клиента
	client := websocket.NewClient(h.wsHub, conn, claims.UserID, claims.Role)

	// Запускаем прослушивание сообщений
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	// Вход участника в сессию
	h.wsManager.RegisterHandler(websocket.SESSION_JOIN, func(data json.RawMessage, client *websocket.Client) error {
		var joinEvent struct {
			SessionID   string `json:"session_id"`
			DisplayName string `json:"display_name"`
			TeamName    string `json:"team_name"`
		}
		// Ошибка парсинга - фатальна для этого сообщения
		if err := json.Unmarshal(data, &joinEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:join: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:join event")
			return fmt.Errorf("failed to parse session:join event: %w", err)
		}

		// Подписываем клиента на события сессии ДО входа, чтобы
		// снимок и последующие дельты пришли в правильном порядке.
		if err := h.wsManager.SubscribeClientToSession(client, joinEvent.SessionID); err != nil {
			log.Printf("[WSHandler] Ошибка при подписке User %s на сессию %s: %v", client.UserID, joinEvent.SessionID, err)
			h.wsManager.SendErrorToClient(client, "subscribe_error", fmt.Sprintf("Failed to subscribe to session %s", joinEvent.SessionID))
			return nil
		}

		participant := entity.Participant{
			ID:          client.UserID,
			DisplayName: joinEvent.DisplayName,
			TeamName:    joinEvent.TeamName,
		}
		if err := h.sessionEngine.Join(joinEvent.SessionID, participant); err != nil {
			log.Printf("[WSHandler] Ошибка входа пользователя %s в сессию %s: %v", client.UserID, joinEvent.SessionID, err)
			h.sendEngineError(client, err)
			// Вход не удался - снимаем подписку
			_ = h.wsManager.UnsubscribeClientFromSession(client)
		}
		return nil // Не закрываем соединение из-за отклонённой команды
	})

	// Выход участника из сессии
	h.wsManager.RegisterHandler(websocket.SESSION_LEAVE, func(data json.RawMessage, client *websocket.Client) error {
		var leaveEvent struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &leaveEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:leave: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:leave event")
			return err
		}

		if err := h.sessionEngine.Leave(leaveEvent.SessionID, client.UserID); err != nil {
			log.Printf("[WSHandler] Ошибка выхода пользователя %s из сессии %s: %v", client.UserID, leaveEvent.SessionID, err)
			h.sendEngineError(client, err)
			return nil
		}
		_ = h.wsManager.UnsubscribeClientFromSession(client)
		return nil
	})

	// Запуск сессии ведущим
	h.wsManager.RegisterHandler(websocket.SESSION_START, func(data json.RawMessage, client *websocket.Client) error {
		var startEvent struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &startEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:start: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:start event")
			return err
		}

		if err := h.sessionEngine.Start(startEvent.SessionID, client.UserID); err != nil {
			log.Printf("[WSHandler] Ошибка запуска сессии %s пользователем %s: %v", startEvent.SessionID, client.UserID, err)
			h.sendEngineError(client, err)
		}
		return nil
	})

	// Переход к следующему вопросу
	h.wsManager.RegisterHandler(websocket.SESSION_ADVANCE, func(data json.RawMessage, client *websocket.Client) error {
		var advanceEvent struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &advanceEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:advance: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:advance event")
			return err
		}

		if err := h.sessionEngine.Advance(advanceEvent.SessionID, client.UserID); err != nil {
			log.Printf("[WSHandler] Ошибка перехода к следующему вопросу в сессии %s: %v", advanceEvent.SessionID, err)
			h.sendEngineError(client, err)
		}
		return nil
	})

	// Вскрытие ответов текущего вопроса
	h.wsManager.RegisterHandler(websocket.SESSION_REVEAL, func(data json.RawMessage, client *websocket.Client) error {
		var revealEvent struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &revealEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:reveal: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:reveal event")
			return err
		}

		if err := h.sessionEngine.Reveal(revealEvent.SessionID, client.UserID); err != nil {
			log.Printf("[WSHandler] Ошибка вскрытия ответов в сессии %s: %v", revealEvent.SessionID, err)
			h.sendEngineError(client, err)
		}
		return nil
	})

	// Ответ участника на текущий вопрос
	h.wsManager.RegisterHandler(websocket.SESSION_ANSWER, func(data json.RawMessage, client *websocket.Client) error {
		var answerEvent struct {
			SessionID      string `json:"session_id"`
			QuestionID     uint   `json:"question_id"`
			SelectedOption int    `json:"selected_option"`
		}
		if err := json.Unmarshal(data, &answerEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга session:answer: %v, Data: %s", err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:answer event")
			return err
		}

		if err := h.sessionEngine.SubmitAnswer(
			answerEvent.SessionID,
			client.UserID,
			answerEvent.QuestionID,
			answerEvent.SelectedOption,
		); err != nil {
			log.Printf("[WSHandler] Ошибка при обработке ответа пользователя %s на вопрос %d: %v", client.UserID, answerEvent.QuestionID, err)
			h.sendEngineError(client, err)
		}
		return nil
	})

	// Обработчик для проверки соединения
	h.wsManager.RegisterHandler(websocket.USER_HEARTBEAT, func(data json.RawMessage, client *websocket.Client) error {
		heartbeatResponse := map[string]interface{}{
			"timestamp": time.Now().UnixNano() / int64(time.Millisecond),
		}
		// Ошибка отправки здесь может быть проигнорирована или залогирована
		if err := h.wsManager.SendEventToUser(client.UserID, "server:heartbeat", heartbeatResponse); err != nil {
			log.Printf("[WSHandler] WARNING: Ошибка при отправке server:heartbeat пользователю %s: %v", client.UserID, err)
		}
		return nil // Никогда не закрываем соединение из-за heartbeat
	})
}

// --- Вспомогательные методы ---

// sendEngineError транслирует ошибку движка в server:error для автора команды
func (h *WSHandler) sendEngineError(client *websocket.Client, err error) {
	h.wsManager.SendErrorToClient(client, engineErrorCode(err), err.Error())
}

// engineErrorCode сопоставляет ошибки движка со стабильными кодами для клиентов
func engineErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperrors.ErrDuplicateAnswer):
		return "duplicate_answer"
	case errors.Is(err, apperrors.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, apperrors.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal_error"
	}
}
