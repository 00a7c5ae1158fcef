package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/piratproject/pirat-backend/internal/lib/rabbitmq"
	"github.com/piratproject/pirat-backend/internal/lib/sl"
)

const (
	relayRetries = 5
	relayDelay   = 2 * time.Second
)

// Relay ретранслирует события изменения хранилища во внешний
// fanout-обменник AMQP, чтобы изменения видели процессы за пределами
// локального хранилища. Доставка, как и у самого хранилища,
// рекомендательная.
type Relay struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *slog.Logger
	cancel   func()
	done     chan struct{}
}

// NewRelay подключается к брокеру, подписывается на события store и
// запускает ретрансляцию.
func NewRelay(store Store, uri, exchange string, log *slog.Logger) (*Relay, error) {
	const op = "storage.NewRelay"

	conn, err := rabbitmq.Connect(uri, relayRetries, relayDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.DeclareFanout(conn, exchange)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events, cancel := store.Subscribe()
	r := &Relay{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		log:      log,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.run(events)
	return r, nil
}

func (r *Relay) run(events <-chan Event) {
	defer close(r.done)
	for ev := range events {
		if err := rabbitmq.PublishJSON(r.ch, r.exchange, "", ev); err != nil {
			r.log.Warn("failed to relay change event",
				sl.Collection(ev.Collection), sl.Err(err))
		}
	}
}

// Close снимает подписку и закрывает соединение с брокером.
func (r *Relay) Close() error {
	r.cancel()
	<-r.done
	r.ch.Close()
	return r.conn.Close()
}
