package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	c "github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/catalog"
	r "github.com/fjod/storefront-cart/internal/repository"
	s "github.com/fjod/storefront-cart/internal/service"
	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"
)

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_ClearsCartFromKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	persistence := s.NewPersistence(r.NewMemoryStore(), c.NewRedisCache(client), zap.NewNop())
	svc := s.NewCartService(persistence, catalog.NewMemoryCatalog(catalog.DemoItems()...), zap.NewNop())

	sessionID := "2f1d2c4e-9c4f-4a55-8b55-3c2b9f4c1a01"
	snap, err := svc.AddItem(ctx, sessionID, "monture-atlas", "titane", 1)
	require.NoError(t, err)
	assert.Equal(t, snap.TotalItems, 1)

	broker, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	topic := "checkout-outbox-test"
	createTopic(t, broker, topic)

	p := NewPoller(svc, zap.NewNop(), topic, broker)
	defer p.Close()
	go p.Run(ctx)

	writer := &kafkaGo.Writer{
		Addr:     kafkaGo.TCP(broker),
		Topic:    topic,
		Balancer: &kafkaGo.LeastBytes{},
	}
	defer writer.Close()

	payload, err := json.Marshal(map[string]string{
		"checkout_id": "chk-1",
		"session_id":  sessionID,
	})
	require.NoError(t, err)
	require.NoError(t, writer.WriteMessages(ctx,
		kafkaGo.Message{Key: []byte("bad"), Value: []byte("not json")},
		kafkaGo.Message{Key: []byte("chk-1"), Value: payload},
	))

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		snap, err = svc.GetCart(ctx, sessionID)
		require.NoError(t, err)
		if snap.TotalItems == 0 {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	assert.Equal(t, snap.TotalItems, 0)
	assert.Equal(t, len(snap.Items), 0)
}
