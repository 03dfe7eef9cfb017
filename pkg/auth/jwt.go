package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Роли, которые несёт WS-тикет
const (
	RoleMaster = "master"
	RolePlayer = "player"
)

// JWTCustomClaims содержит пользовательские поля для тикета
type JWTCustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
	// Назначение токена: отличаем WS-тикеты от всего остального
	Usage string `json:"usage,omitempty"`
}

// JWTService выпускает и проверяет короткоживущие WS-тикеты.
// Долгоживущие access-токены выпускает внешний сервис аутентификации;
// здесь только тикеты для апгрейда WebSocket-соединения.
type JWTService struct {
	secret         []byte
	wsTicketExpiry time.Duration
}

// NewJWTService создает новый сервис JWT и возвращает ошибку при проблемах
func NewJWTService(secret string, wsTicketExpirySec int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required for JWTService")
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second // По умолчанию 60 секунд
	}

	return &JWTService{
		secret:         []byte(secret),
		wsTicketExpiry: wsExpiry,
	}, nil
}

// GenerateWSTicket создает короткоживущий JWT для аутентификации WebSocket
func (s *JWTService) GenerateWSTicket(userID string, role string) (string, error) {
	if userID == "" {
		return "", errors.New("userID is required for WS ticket")
	}
	if role != RoleMaster && role != RolePlayer {
		role = RolePlayer
	}

	claims := &JWTCustomClaims{
		UserID: userID,
		Role:   role,
		Usage:  "websocket_auth", // Указываем назначение токена
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.wsTicketExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "quiznight-api",
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"quiznight-ws"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации WS-тикета для пользователя %s: %v", userID, err)
		return "", err
	}

	return tokenString, nil
}

// TicketTTL возвращает срок жизни выпускаемых WS-тикетов
func (s *JWTService) TicketTTL() time.Duration {
	return s.wsTicketExpiry
}

// ParseWSTicket проверяет JWT, используемый как WS тикет
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}

	token, err := jwt.ParseWithClaims(ticketString, claims, keyFunc)
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				return nil, errors.New("ticket is expired")
			}
		}
		return nil, fmt.Errorf("invalid ticket: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid ticket")
	}

	if claims.Usage != "websocket_auth" {
		return nil, errors.New("invalid ticket usage")
	}
	if claims.UserID == "" {
		return nil, errors.New("ticket missing user_id")
	}

	return claims, nil
}

// IsMaster проверяет, что тикет выдан ведущему
func (c *JWTCustomClaims) IsMaster() bool {
	return c.Role == RoleMaster
}
