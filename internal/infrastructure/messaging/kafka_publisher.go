// Package messaging publica los eventos del ledger en Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
)

var _ stock.EventPublisher = (*KafkaPublisher)(nil)

// messageWriter subconjunto de *kafka.Writer que usa el publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig brokers y tópicos.
type KafkaConfig struct {
	Brokers        []string
	MovementsTopic string
	LowStockTopic  string
	WriteTimeout   time.Duration
}

// KafkaPublisher un writer sin tópico fijo; el tópico va en cada mensaje.
// La clave es tenant/producto para que los eventos de un producto queden en la misma partición.
type KafkaPublisher struct {
	writer         messageWriter
	movementsTopic string
	lowStockTopic  string
}

// NewKafkaPublisher crea el writer con balanceo por hash de la clave.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.MovementsTopic, cfg.LowStockTopic)
}

func newKafkaPublisher(w messageWriter, movementsTopic, lowStockTopic string) *KafkaPublisher {
	if movementsTopic == "" {
		movementsTopic = stock.EventMovementRecorded
	}
	if lowStockTopic == "" {
		lowStockTopic = stock.EventLowStock
	}
	return &KafkaPublisher{writer: w, movementsTopic: movementsTopic, lowStockTopic: lowStockTopic}
}

// PublishMovementRecorded publica un movimiento confirmado.
func (p *KafkaPublisher) PublishMovementRecorded(ctx context.Context, ev stock.MovementRecordedEvent) error {
	return p.publish(ctx, p.movementsTopic, stock.EventMovementRecorded, ev.TenantID, ev.ProductID, ev)
}

// PublishLowStock publica una alerta de stock bajo.
func (p *KafkaPublisher) PublishLowStock(ctx context.Context, ev stock.LowStockEvent) error {
	return p.publish(ctx, p.lowStockTopic, stock.EventLowStock, ev.TenantID, ev.ProductID, ev)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType, tenantID, productID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar evento %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(tenantID + "/" + productID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "tenant_id", Value: []byte(tenantID)},
		},
	}
	carrier := headerCarrier{msg: &msg}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publicar evento %s en %s: %w", eventType, topic, err)
	}
	return nil
}

// Close cierra el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapta los headers de kafka a propagation.TextMapCarrier.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
