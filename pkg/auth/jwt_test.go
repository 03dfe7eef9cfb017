package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-secret-key", 60)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	// Act
	_, err := NewJWTService("", 60)

	// Assert
	assert.Error(t, err, "пустой секрет должен быть ошибкой")
}

func TestNewJWTService_DefaultTTL(t *testing.T) {
	// Arrange & Act: нулевой срок жизни заменяется умолчанием
	svc, err := NewJWTService("secret", 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, svc.TicketTTL())
}

func TestGenerateWSTicket_RoundTrip(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t)

	// Act
	ticket, err := svc.GenerateWSTicket("user-1", RoleMaster)
	require.NoError(t, err)
	claims, err := svc.ParseWSTicket(ticket)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleMaster, claims.Role)
	assert.True(t, claims.IsMaster())
	assert.Equal(t, "websocket_auth", claims.Usage)
}

func TestGenerateWSTicket_UnknownRoleFallsBackToPlayer(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t)

	// Act
	ticket, err := svc.GenerateWSTicket("user-1", "admin")
	require.NoError(t, err)
	claims, err := svc.ParseWSTicket(ticket)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, RolePlayer, claims.Role)
	assert.False(t, claims.IsMaster())
}

func TestGenerateWSTicket_RequiresUserID(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t)

	// Act
	_, err := svc.GenerateWSTicket("", RolePlayer)

	// Assert
	assert.Error(t, err)
}

func TestParseWSTicket_WrongSecret(t *testing.T) {
	// Arrange: тикет подписан другим ключом
	other, err := NewJWTService("other-secret", 60)
	require.NoError(t, err)
	ticket, err := other.GenerateWSTicket("user-1", RolePlayer)
	require.NoError(t, err)

	svc := newTestJWTService(t)

	// Act
	_, err = svc.ParseWSTicket(ticket)

	// Assert
	assert.Error(t, err, "тикет с чужой подписью должен отклоняться")
}

func TestParseWSTicket_Garbage(t *testing.T) {
	// Arrange
	svc := newTestJWTService(t)

	// Act
	_, err := svc.ParseWSTicket("not-a-jwt")

	// Assert
	assert.Error(t, err)
}
