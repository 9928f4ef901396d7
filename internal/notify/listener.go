package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// MessageEvent is the payload the fan-out trigger publishes with each
// message insert.
type MessageEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	AuthorID  uuid.UUID `json:"author_id"`
}

// Listener consumes the trigger's NOTIFY stream and hands each message
// event to the delivery callback. It reconnects with backoff; a dropped
// connection loses only live nudges, never notification rows, since the
// trigger already wrote those.
type Listener struct {
	url     string
	handler func(context.Context, MessageEvent)
	log     *zap.Logger

	pl   *pq.Listener
	done chan struct{}
	wg   sync.WaitGroup
}

// NewListener creates a listener over its own database connection.
func NewListener(databaseURL string, handler func(context.Context, MessageEvent), logger *zap.Logger) *Listener {
	return &Listener{
		url:     databaseURL,
		handler: handler,
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Start connects and begins consuming NOTIFY events.
func (l *Listener) Start(ctx context.Context) error {
	l.pl = pq.NewListener(l.url, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info("fanout listener connected")
		case pq.ListenerEventReconnected:
			l.log.Info("fanout listener reconnected")
		case pq.ListenerEventDisconnected:
			l.log.Warn("fanout listener disconnected", zap.Error(err))
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Warn("fanout listener connection attempt failed", zap.Error(err))
		}
	})

	if err := l.pl.Listen(ListenChannel); err != nil {
		l.pl.Close()
		return err
	}

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop closes the listener connection and waits for the loop to exit.
func (l *Listener) Stop() {
	close(l.done)
	l.pl.Close()
	l.wg.Wait()
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case <-ctx.Done():
			return
		case n := <-l.pl.Notify:
			// nil signals a reconnect; rows written while away are in
			// the table, only their live nudges are gone.
			if n == nil {
				continue
			}
			var ev MessageEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				l.log.Warn("bad fanout payload", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			l.handler(ctx, ev)
		case <-time.After(90 * time.Second):
			go func() {
				if err := l.pl.Ping(); err != nil {
					l.log.Warn("fanout listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}
