package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiznight-api/pkg/auth"
)

// TicketHandler выпускает короткоживущие тикеты для WebSocket-аутентификации
type TicketHandler struct {
	jwtService *auth.JWTService
}

// NewTicketHandler создает новый обработчик тикетов
func NewTicketHandler(jwtService *auth.JWTService) *TicketHandler {
	return &TicketHandler{jwtService: jwtService}
}

// IssueTicketRequest представляет запрос на выпуск WS-тикета
type IssueTicketRequest struct {
	UserID string `json:"user_id" binding:"required,min=1,max=64"`
	Role   string `json:"role" binding:"omitempty,oneof=master player"`
}

// IssueTicket выпускает WS-тикет для указанного пользователя.
// Эндпоинт защищён rate-limit'ом: тикет короткоживущий и одноразовый по смыслу.
func (h *TicketHandler) IssueTicket(c *gin.Context) {
	var req IssueTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = auth.RolePlayer
	}

	ticket, err := h.jwtService.GenerateWSTicket(req.UserID, role)
	if err != nil {
		log.Printf("[TicketHandler] Ошибка выпуска WS-тикета для %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue ticket"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticket":     ticket,
		"expires_in": int(h.jwtService.TicketTTL().Seconds()),
		"unit":       "seconds",
	})
}
