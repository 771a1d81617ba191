package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/metrics"
)

// ExpiredHandler reconciles the indexes for an expired task id
type ExpiredHandler interface {
	HandleTaskExpired(ctx context.Context, taskID string) error
}

// PubSub is the subset of redis.PubSub the listener uses
type PubSub interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type subscribeFunc func(ctx context.Context, pattern string) PubSub

// ExpirationListener holds a long-lived pattern subscription on the
// store's key-expiration notification channel and reconciles the task
// indexes whenever a primary task key expires. A dropped subscription
// is reopened after a short wait.
type ExpirationListener struct {
	handler   ExpiredHandler
	subscribe subscribeFunc
	pattern   string
	retryWait time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewExpirationListener creates a listener over the given store client
// and notification database number
func NewExpirationListener(client *redis.Client, handler ExpiredHandler, db int) *ExpirationListener {
	return &ExpirationListener{
		handler: handler,
		subscribe: func(ctx context.Context, pattern string) PubSub {
			return client.PSubscribe(ctx, pattern)
		},
		pattern:   fmt.Sprintf("__keyevent@%d__:expired", db),
		retryWait: 5 * time.Second,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins consuming expiration notifications
func (l *ExpirationListener) Start() {
	log.WithComponent("expiration-listener").Info().
		Str("pattern", l.pattern).
		Msg("Starting expiration listener")
	go l.run()
}

// Stop signals the listener to exit and waits for its worker
func (l *ExpirationListener) Stop() {
	close(l.stopCh)
	<-l.doneCh
	log.WithComponent("expiration-listener").Info().Msg("Expiration listener stopped")
}

func (l *ExpirationListener) run() {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		pubsub := l.subscribe(context.Background(), l.pattern)
		l.consume(pubsub)

		// Transport dropped; wait before resubscribing
		select {
		case <-l.stopCh:
			return
		case <-time.After(l.retryWait):
			metrics.ListenerReconnects.Inc()
			log.WithComponent("expiration-listener").Warn().
				Str("pattern", l.pattern).
				Msg("Resubscribing to expiration notifications")
		}
	}
}

func (l *ExpirationListener) consume(pubsub PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-l.stopCh:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.handleMessage(msg)
		}
	}
}

func (l *ExpirationListener) handleMessage(msg *redis.Message) {
	taskID, ok := TaskIDFromExpiredKey(msg.Payload)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.handler.HandleTaskExpired(ctx, taskID); err != nil {
		log.WithComponent("expiration-listener").Error().
			Str("task_id", taskID).
			Err(err).
			Msg("Failed to reconcile expired task")
		return
	}

	log.WithComponent("expiration-listener").Debug().
		Str("task_id", taskID).
		Msg("Reconciled indexes for expired task")
}
