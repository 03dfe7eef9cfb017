package websocket

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/quiznight-api/internal/config"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
)

// Options - рабочие настройки хаба, выведенные из конфигурации
type Options struct {
	ShardCount     int
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	MaxSendStrikes int32
}

func optionsFromConfig(cfg config.WebSocketConfig) Options {
	opts := Options{
		ShardCount:     cfg.ShardCount,
		SendBuffer:     cfg.ClientSendBuffer,
		MaxMessageSize: int64(cfg.MaxMessageSize),
		WriteWait:      time.Duration(cfg.WriteWaitSec) * time.Second,
		PongWait:       time.Duration(cfg.PongWaitSec) * time.Second,
		IdleTimeout:    time.Duration(cfg.IdleTimeoutSec) * time.Second,
		SweepInterval:  time.Duration(cfg.SweepIntervalSec) * time.Second,
		MaxSendStrikes: int32(cfg.MaxSendStrikes),
	}
	if opts.ShardCount <= 0 {
		opts.ShardCount = 4
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 128
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 30 * time.Second
	}
	// Пинг должен уходить раньше, чем истечет дедлайн чтения
	opts.PingInterval = opts.PongWait * 9 / 10
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.MaxSendStrikes <= 0 {
		opts.MaxSendStrikes = 3
	}
	return opts
}

// shard - один сегмент реестра соединений.
// byUser шардируется по ID пользователя, bySession - по ID сессии,
// поэтому запись клиента и его подписка могут жить в разных шардах.
type shard struct {
	mu        sync.RWMutex
	byUser    map[string]*Client
	bySession map[string]map[*Client]struct{}
}

func newShard() *shard {
	return &shard{
		byUser:    make(map[string]*Client),
		bySession: make(map[string]map[*Client]struct{}),
	}
}

// Hub - реестр живых соединений и подписок на сессии.
// Вместо цикла регистраций на каналах каждый шард закрыт собственным
// RWMutex: операции короткие, конкуренция распределяется хешем ключа.
// Шлюз - единственный компонент, который касается транспорта; движок
// сессий видит его только как EventSink.
type Hub struct {
	opts    Options
	shards  []*shard
	metrics *Metrics

	// cache хранит списки участников в Redis, чтобы состав сессии
	// был виден и другим инстансам при кластерном развертывании
	cache repository.CacheRepository

	// relay включается только в кластерном режиме
	relayMu sync.RWMutex
	relay   *ClusterRelay

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub создает хаб по конфигурации WebSocket-подсистемы
func NewHub(cfg config.WebSocketConfig, cache repository.CacheRepository) *Hub {
	opts := optionsFromConfig(cfg)
	h := &Hub{
		opts:    opts,
		shards:  make([]*shard, opts.ShardCount),
		metrics: NewMetrics(),
		cache:   cache,
		done:    make(chan struct{}),
	}
	for i := range h.shards {
		h.shards[i] = newShard()
	}
	log.Printf("[Hub] создан: %d шардов, буфер отправки %d", opts.ShardCount, opts.SendBuffer)
	return h
}

// AttachRelay подключает кластерный ретранслятор к хабу.
// Вызывается один раз при старте до приема соединений.
func (h *Hub) AttachRelay(r *ClusterRelay) {
	h.relayMu.Lock()
	h.relay = r
	h.relayMu.Unlock()
}

func (h *Hub) clusterRelay() *ClusterRelay {
	h.relayMu.RLock()
	defer h.relayMu.RUnlock()
	return h.relay
}

func (h *Hub) shardFor(key string) *shard {
	f := fnv.New32a()
	f.Write([]byte(key))
	return h.shards[int(f.Sum32())%len(h.shards)]
}

// Run гоняет сборщик неактивных соединений до закрытия хаба
func (h *Hub) Run() {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepIdle()
		case <-h.done:
			return
		}
	}
}

// Register вводит клиента в реестр. Повторная регистрация того же
// пользователя трактуется как реконнект: старое соединение вытесняется,
// подписка на сессию переносится на новое.
func (h *Hub) Register(c *Client) {
	s := h.shardFor(c.UserID)

	s.mu.Lock()
	old := s.byUser[c.UserID]
	s.byUser[c.UserID] = c
	s.mu.Unlock()

	h.metrics.ConnectionsTotal.Add(1)
	h.metrics.ConnectionsActive.Add(1)

	if old != nil && old != c {
		if sessionID := old.SessionID(); sessionID != "" {
			h.dropSubscription(old, sessionID)
			h.subscribeLocked(c, sessionID)
		}
		h.closeClient(old)
		log.Printf("[Hub] реконнект user=%s: соединение %s вытеснено %s", c.UserID, old.ConnID, c.ConnID)
	}
}

// Unregister снимает клиента с реестра. Идемпотентен; если пользователь
// уже переподключился, запись нового соединения не трогается.
func (h *Hub) Unregister(c *Client) {
	s := h.shardFor(c.UserID)

	s.mu.Lock()
	current, ok := s.byUser[c.UserID]
	if ok && current == c {
		delete(s.byUser, c.UserID)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if sessionID := c.SessionID(); sessionID != "" {
		h.dropSubscription(c, sessionID)
	}
	if c.closeSend() && ok {
		h.metrics.ConnectionsActive.Add(-1)
	}
}

// closeClient закрывает вытесненное или отстающее соединение
func (h *Hub) closeClient(c *Client) {
	if c.closeSend() {
		h.metrics.ConnectionsActive.Add(-1)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Subscribe подписывает клиента на события сессии.
// Предыдущая подписка, если была, снимается.
func (h *Hub) Subscribe(c *Client, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	if prev := c.SessionID(); prev != "" && prev != sessionID {
		h.dropSubscription(c, prev)
	}
	h.subscribeLocked(c, sessionID)
	return nil
}

func (h *Hub) subscribeLocked(c *Client, sessionID string) {
	s := h.shardFor(sessionID)
	s.mu.Lock()
	set, ok := s.bySession[sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		s.bySession[sessionID] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()
	c.setSessionID(sessionID)
}

// Unsubscribe снимает подписку клиента на текущую сессию. Идемпотентен.
func (h *Hub) Unsubscribe(c *Client) {
	if sessionID := c.SessionID(); sessionID != "" {
		h.dropSubscription(c, sessionID)
	}
}

func (h *Hub) dropSubscription(c *Client, sessionID string) {
	s := h.shardFor(sessionID)
	s.mu.Lock()
	if set, ok := s.bySession[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(s.bySession, sessionID)
		}
	}
	s.mu.Unlock()
	c.setSessionID("")
}

// trySend кладет сообщение в буфер клиента без блокировки.
// Клиент, не вычитывающий буфер MaxSendStrikes раз подряд, отключается:
// медленный подписчик не должен тормозить рассылку всей сессии.
func (h *Hub) trySend(c *Client, message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	defer func() {
		// Гонка send/closeSend при вытеснении клиента разрешается recover'ом
		if recover() != nil {
			log.Printf("[Hub] отправка в закрытый канал: user=%s", c.UserID)
		}
	}()
	select {
	case c.send <- message:
		c.strikes.Store(0)
		return true
	default:
		h.metrics.SendDrops.Add(1)
		if c.strikes.Add(1) >= h.opts.MaxSendStrikes {
			log.Printf("[Hub] буфер user=%s переполнен %d раз подряд, отключаем", c.UserID, h.opts.MaxSendStrikes)
			h.Unregister(c)
			if c.conn != nil {
				c.conn.Close()
			}
		}
		return false
	}
}

// SendToUser доставляет сообщение конкретному пользователю на этом инстансе
func (h *Hub) SendToUser(userID string, message []byte) bool {
	s := h.shardFor(userID)
	s.mu.RLock()
	c, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return h.trySend(c, message)
}

// SendJSONToUser сериализует событие и доставляет его пользователю.
// В кластере недоставленное локально сообщение уходит соседним инстансам.
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for user %s: %w", userID, err)
	}
	if h.SendToUser(userID, payload) {
		return nil
	}
	if relay := h.clusterRelay(); relay != nil {
		return relay.publishUser(userID, payload)
	}
	return fmt.Errorf("user %s is not connected", userID)
}

// BroadcastToSession рассылает сообщение подписчикам сессии.
// В кластере копия уходит и соседним инстансам.
func (h *Hub) BroadcastToSession(sessionID string, message []byte) {
	h.broadcastToSessionLocal(sessionID, message)
	if relay := h.clusterRelay(); relay != nil {
		if err := relay.publishSession(sessionID, message); err != nil {
			log.Printf("[Hub] публикация в кластер не удалась: session=%s: %v", sessionID, err)
		}
	}
}

func (h *Hub) broadcastToSessionLocal(sessionID string, message []byte) {
	s := h.shardFor(sessionID)

	s.mu.RLock()
	set := s.bySession[sessionID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	// Отправка вне замка: trySend может снять клиента с регистрации
	for _, c := range targets {
		h.trySend(c, message)
	}
}

// BroadcastJSON рассылает событие всем подключенным клиентам инстанса
func (h *Hub) BroadcastJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	h.broadcastLocal(payload)
	if relay := h.clusterRelay(); relay != nil {
		return relay.publishAll(payload)
	}
	return nil
}

func (h *Hub) broadcastLocal(message []byte) {
	for _, s := range h.shards {
		s.mu.RLock()
		targets := make([]*Client, 0, len(s.byUser))
		for _, c := range s.byUser {
			targets = append(targets, c)
		}
		s.mu.RUnlock()
		for _, c := range targets {
			h.trySend(c, message)
		}
	}
}

// GetActiveSubscribers возвращает отсортированный список ID пользователей,
// подписанных на сессию. В кластере локальный список объединяется со
// списком участников из Redis, который ведет движок сессий.
func (h *Hub) GetActiveSubscribers(sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	seen := make(map[string]struct{})

	s := h.shardFor(sessionID)
	s.mu.RLock()
	for c := range s.bySession[sessionID] {
		seen[c.UserID] = struct{}{}
	}
	s.mu.RUnlock()

	if h.cache != nil && h.clusterRelay() != nil {
		members, err := h.cache.SMembers("session:" + sessionID + ":participants")
		if err != nil {
			log.Printf("[Hub] чтение участников из Redis не удалось: session=%s: %v", sessionID, err)
		} else {
			for _, id := range members {
				seen[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ClientCount возвращает количество живых соединений
func (h *Hub) ClientCount() int {
	total := 0
	for _, s := range h.shards {
		s.mu.RLock()
		total += len(s.byUser)
		s.mu.RUnlock()
	}
	return total
}

// GetMetrics возвращает снимок метрик хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	snap := h.metrics.Snapshot()
	snap["client_count"] = h.ClientCount()
	snap["shard_count"] = len(h.shards)
	return snap
}

// sweepIdle отключает соединения без активности дольше IdleTimeout
func (h *Hub) sweepIdle() {
	cutoff := time.Now().Add(-h.opts.IdleTimeout)
	var stale []*Client
	for _, s := range h.shards {
		s.mu.RLock()
		for _, c := range s.byUser {
			if c.idleSince(cutoff) {
				stale = append(stale, c)
			}
		}
		s.mu.RUnlock()
	}
	for _, c := range stale {
		log.Printf("[Hub] закрываем неактивное соединение: user=%s conn=%s", c.UserID, c.ConnID)
		h.Unregister(c)
		if c.conn != nil {
			c.conn.Close()
		}
		h.metrics.StaleClosed.Add(1)
	}
}

// Close останавливает сборщик и закрывает все соединения
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		for _, s := range h.shards {
			s.mu.Lock()
			clients := make([]*Client, 0, len(s.byUser))
			for _, c := range s.byUser {
				clients = append(clients, c)
			}
			s.byUser = make(map[string]*Client)
			s.bySession = make(map[string]map[*Client]struct{})
			s.mu.Unlock()
			for _, c := range clients {
				h.closeClient(c)
			}
		}
		log.Printf("[Hub] остановлен")
	})
}
