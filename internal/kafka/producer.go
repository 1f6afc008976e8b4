package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/profast/parcel-payments-service/internal/domain"
)

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// PublishPayment emits the confirmed-payment event, keyed by parcel so all
// events for one parcel land on one partition.
func (p *Producer) PublishPayment(ctx context.Context, ev domain.PaymentEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	key := []byte(ev.ParcelID.String())
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}
