package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiznight-api/internal/config"
)

// memoryPubSub - провайдер на каналах для тестов: все подписчики
// одного канала получают каждую публикацию
type memoryPubSub struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemoryPubSub() *memoryPubSub {
	return &memoryPubSub{subs: make(map[string][]chan []byte)}
}

func (p *memoryPubSub) Publish(channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[channel] {
		ch <- payload
	}
	return nil
}

func (p *memoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], ch)
	p.mu.Unlock()
	return ch, nil
}

func (p *memoryPubSub) Close() error { return nil }

// waitForMessage ждет появления сообщения в буфере клиента
func waitForMessage(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("сообщение не пришло")
		return nil
	}
}

func TestClusterRelay_BroadcastReachesOtherInstance(t *testing.T) {
	// Arrange: два хаба на общем брокере
	provider := newMemoryPubSub()
	cfg := config.WebSocketConfig{ShardCount: 2, ClientSendBuffer: 8}

	hubA := NewHub(cfg, nil)
	defer hubA.Close()
	relayA := NewClusterRelay(hubA, provider, config.ClusterConfig{InstanceID: "inst-a"})
	require.NoError(t, relayA.Start())
	defer relayA.Stop()

	hubB := NewHub(cfg, nil)
	defer hubB.Close()
	relayB := NewClusterRelay(hubB, provider, config.ClusterConfig{InstanceID: "inst-b"})
	require.NoError(t, relayB.Start())
	defer relayB.Stop()

	// Подписчик сессии живет на инстансе B
	remote := NewClient(hubB, nil, "remote-user", "player")
	hubB.Register(remote)
	require.NoError(t, hubB.Subscribe(remote, "session-A"))

	// Act: рассылка уходит с инстанса A
	hubA.BroadcastToSession("session-A", []byte(`{"type":"question:changed"}`))

	// Assert
	msg := waitForMessage(t, remote)
	assert.JSONEq(t, `{"type":"question:changed"}`, string(msg))
}

func TestClusterRelay_IgnoresOwnFrames(t *testing.T) {
	// Arrange: один инстанс, локальный подписчик
	provider := newMemoryPubSub()
	hub := NewHub(config.WebSocketConfig{ShardCount: 2, ClientSendBuffer: 8}, nil)
	defer hub.Close()
	relay := NewClusterRelay(hub, provider, config.ClusterConfig{InstanceID: "solo"})
	require.NoError(t, relay.Start())
	defer relay.Stop()

	local := NewClient(hub, nil, "local-user", "player")
	hub.Register(local)
	require.NoError(t, hub.Subscribe(local, "session-A"))

	// Act: локальная рассылка публикует кадр, который вернется эхом
	hub.BroadcastToSession("session-A", []byte("once"))

	// Assert: сообщение доставлено ровно один раз
	waitForMessage(t, local)
	time.Sleep(100 * time.Millisecond) // даем эху шанс продублировать
	select {
	case extra := <-local.send:
		t.Fatalf("эхо собственного кадра продублировало доставку: %s", extra)
	default:
	}
}

func TestClusterRelay_NoOpProviderKeepsLocalDelivery(t *testing.T) {
	// Одноинстансный режим: провайдер-заглушка, доставка только локальная
	hub := NewHub(config.WebSocketConfig{ShardCount: 2, ClientSendBuffer: 8}, nil)
	defer hub.Close()
	relay := NewClusterRelay(hub, &NoOpPubSub{}, config.ClusterConfig{})
	require.NoError(t, relay.Start())
	defer relay.Stop()

	local := NewClient(hub, nil, "local-user", "player")
	hub.Register(local)
	require.NoError(t, hub.Subscribe(local, "session-A"))

	hub.BroadcastToSession("session-A", []byte("local only"))

	assert.Equal(t, "local only", string(waitForMessage(t, local)))
}

func TestClusterRelay_SendToUserOnOtherInstance(t *testing.T) {
	provider := newMemoryPubSub()
	cfg := config.WebSocketConfig{ShardCount: 2, ClientSendBuffer: 8}

	hubA := NewHub(cfg, nil)
	defer hubA.Close()
	relayA := NewClusterRelay(hubA, provider, config.ClusterConfig{InstanceID: "inst-a"})
	require.NoError(t, relayA.Start())
	defer relayA.Stop()

	hubB := NewHub(cfg, nil)
	defer hubB.Close()
	relayB := NewClusterRelay(hubB, provider, config.ClusterConfig{InstanceID: "inst-b"})
	require.NoError(t, relayB.Start())
	defer relayB.Stop()

	remote := NewClient(hubB, nil, "remote-user", "player")
	hubB.Register(remote)

	// Пользователь не подключен к инстансу A: доставка уходит в кластер
	err := hubA.SendJSONToUser("remote-user", Event{Type: "server:heartbeat", Data: "hi"})
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(waitForMessage(t, remote), &ev))
	assert.Equal(t, "server:heartbeat", ev.Type)
}
