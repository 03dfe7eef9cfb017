package websocket

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// PubSubProvider абстрагирует брокер для межинстансной ретрансляции.
// Единственная рабочая реализация - Redis; NoOpPubSub закрывает
// одноинстансное развертывание без брокера.
type PubSubProvider interface {
	// Publish отправляет сообщение в канал
	Publish(channel string, payload []byte) error

	// Subscribe возвращает канал входящих сообщений до отмены контекста
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close освобождает ресурсы провайдера
	Close() error
}

// NoOpPubSub - провайдер-заглушка для одноинстансного режима
type NoOpPubSub struct{}

func (p *NoOpPubSub) Publish(channel string, payload []byte) error {
	return nil
}

func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (p *NoOpPubSub) Close() error {
	return nil
}

// RedisPubSub ретранслирует сообщения через Redis Pub/Sub
type RedisPubSub struct {
	client redis.UniversalClient

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// NewRedisPubSub создает провайдер и проверяет соединение с Redis
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis pubsub ping: %w", err)
	}
	return &RedisPubSub{client: client}, nil
}

// Publish отправляет сообщение в канал Redis
func (p *RedisPubSub) Publish(channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe подписывается на канал Redis и пересылает сообщения
// в возвращаемый канал, пока контекст не отменен.
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("redis pubsub is closed")
	}
	sub := p.client.Subscribe(ctx, channel)
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	// Receive подтверждает подписку до того, как мы начнем читать
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					// Отстающий потребитель не должен стопорить ретрансляцию
					log.Printf("[RedisPubSub] канал %s: потребитель отстает, сообщение выброшено", channel)
				}
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
	}()
	return out, nil
}

// Close закрывает все активные подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, sub := range p.subs {
		sub.Close()
	}
	p.subs = nil
	return nil
}
