package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/storefront-cart/internal/cart"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "checkout-outbox"
	consumerGroup  = "cart-service-consumer"
	readRetryDelay = time.Second
)

var errNoSession = errors.New("missing or invalid session_id")

// CartClearer empties a session's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, sessionID string) (cart.Snapshot, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller clears carts once their checkout completes.
type Poller struct {
	reader messageReader
	carts  CartClearer
	log    *zap.Logger
}

func NewPoller(carts CartClearer, log *zap.Logger, topic string, brokers ...string) *Poller {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(reader, carts, log)
}

func newPoller(reader messageReader, carts CartClearer, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{reader: reader, carts: carts, log: log}
}

// Run consumes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if err := p.handle(ctx, m); err != nil {
			p.log.Warn("skipping checkout message",
				zap.Int64("offset", m.Offset),
				zap.ByteString("key", m.Key),
				zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

type checkoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var ev checkoutEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return err
	}

	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = ev.UserID
	}
	if sessionID == "" {
		return errNoSession
	}

	if _, err := p.carts.ClearCart(ctx, sessionID); err != nil {
		return err
	}
	p.log.Info("cart cleared after checkout",
		zap.String("session_id", sessionID),
		zap.String("checkout_id", ev.CheckoutID))
	return nil
}
