package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/profast/parcel-payments-service/internal/application"
	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// StartConsumer reads parcel submissions from the intake topic and persists
// them through the service. Invalid JSON is skipped and committed; store
// failures are retried without committing.
func StartConsumer(ctx context.Context, svc *application.ReconciliationService, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			var p domain.Parcel
			if err = json.Unmarshal(m.Value, &p); err != nil {
				logger.Warn("kafka invalid json, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}
			if strings.TrimSpace(p.CreatorEmail) == "" {
				logger.Warn("kafka parcel without creatorEmail, skip and commit", "offset", m.Offset)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			if _, err = svc.CreateParcel(ctx, &p); err != nil {
				logger.Warn("kafka create parcel failed, will retry", "err", err)
				time.Sleep(backoff)
				continue
			}

			logger.Info("parcel ingested", "id", p.ID, "email", p.CreatorEmail)

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("kafka commit failed", "err", err)
			}
		}
	}()
	return r, nil
}
