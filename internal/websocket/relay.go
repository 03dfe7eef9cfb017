package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/yourusername/quiznight-api/internal/config"
)

// Области доставки кластерного кадра
const (
	scopeSession = "session"
	scopeUser    = "user"
	scopeAll     = "all"
)

// clusterFrame - конверт сообщения между инстансами.
// Origin отсекает эхо собственных публикаций.
type clusterFrame struct {
	Origin  string          `json:"origin"`
	Scope   string          `json:"scope"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// ClusterRelay ретранслирует рассылки между инстансами через общий
// канал брокера. Исходящие кадры публикует хаб; входящие кадры чужих
// инстансов раскладываются в локальные рассылки, не порождая повторной
// публикации.
type ClusterRelay struct {
	hub        *Hub
	provider   PubSubProvider
	channel    string
	instanceID string
	cancel     context.CancelFunc
}

// NewClusterRelay создает ретранслятор. Хаб начинает публиковать
// кадры только после AttachRelay.
func NewClusterRelay(hub *Hub, provider PubSubProvider, cfg config.ClusterConfig) *ClusterRelay {
	channel := cfg.Channel
	if channel == "" {
		channel = "quiznight:ws:relay"
	}
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return &ClusterRelay{
		hub:        hub,
		provider:   provider,
		channel:    channel,
		instanceID: instanceID,
	}
}

// InstanceID возвращает идентификатор этого инстанса в кластере
func (r *ClusterRelay) InstanceID() string {
	return r.instanceID
}

// Start подписывается на канал кластера и запускает прием кадров
func (r *ClusterRelay) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	frames, err := r.provider.Subscribe(ctx, r.channel)
	if err != nil {
		cancel()
		return fmt.Errorf("cluster relay subscribe: %w", err)
	}
	r.cancel = cancel
	r.hub.AttachRelay(r)

	go func() {
		for raw := range frames {
			r.apply(raw)
		}
		log.Printf("[Relay %s] прием кадров остановлен", r.instanceID)
	}()

	log.Printf("[Relay %s] подключен к каналу %s", r.instanceID, r.channel)
	return nil
}

// Stop отменяет подписку на канал кластера
func (r *ClusterRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// apply раскладывает чужой кадр в локальную рассылку
func (r *ClusterRelay) apply(raw []byte) {
	var frame clusterFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("[Relay %s] кадр не разобран: %v", r.instanceID, err)
		return
	}
	if frame.Origin == r.instanceID {
		return
	}
	switch frame.Scope {
	case scopeSession:
		r.hub.broadcastToSessionLocal(frame.Target, frame.Payload)
	case scopeUser:
		r.hub.SendToUser(frame.Target, frame.Payload)
	case scopeAll:
		r.hub.broadcastLocal(frame.Payload)
	default:
		log.Printf("[Relay %s] кадр с неизвестной областью %q", r.instanceID, frame.Scope)
	}
}

func (r *ClusterRelay) publish(scope, target string, payload []byte) error {
	frame, err := json.Marshal(clusterFrame{
		Origin:  r.instanceID,
		Scope:   scope,
		Target:  target,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshal cluster frame: %w", err)
	}
	return r.provider.Publish(r.channel, frame)
}

func (r *ClusterRelay) publishSession(sessionID string, payload []byte) error {
	return r.publish(scopeSession, sessionID, payload)
}

func (r *ClusterRelay) publishUser(userID string, payload []byte) error {
	return r.publish(scopeUser, userID, payload)
}

func (r *ClusterRelay) publishAll(payload []byte) error {
	return r.publish(scopeAll, "", payload)
}
