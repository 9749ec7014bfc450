package workers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"sorteos-backend/internal/common/logger"
)

const (
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
)

// PaymentEvents applies provider notifications to payments.
type PaymentEvents interface {
	CompleteEvent(ctx context.Context, paymentID int64, transactionID string) error
	FailEvent(ctx context.Context, paymentID int64, reason string) error
}

type StreamConfig struct {
	Key      string
	Group    string
	Consumer string
}

// PaymentStreamWorker consumes provider webhook events that an edge relay
// appends to a Redis stream.
type PaymentStreamWorker struct {
	rdb     goredis.Cmdable
	handler PaymentEvents
	cfg     StreamConfig
	block   time.Duration
}

func NewPaymentStreamWorker(rdb goredis.Cmdable, handler PaymentEvents, cfg StreamConfig) *PaymentStreamWorker {
	return &PaymentStreamWorker{
		rdb:     rdb,
		handler: handler,
		cfg:     cfg,
		block:   5 * time.Second,
	}
}

// Start listens to the stream until ctx is cancelled.
func (w *PaymentStreamWorker) Start(ctx context.Context) error {
	log := logger.Component("payment_stream")

	err := w.rdb.XGroupCreateMkStream(ctx, w.cfg.Key, w.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Error().Err(err).Str("stream", w.cfg.Key).Msg("Error creating consumer group")
	}

	log.Info().Str("stream", w.cfg.Key).Str("group", w.cfg.Group).Msg("Starting payment stream worker")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping payment stream worker")
			return nil
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Key, ">"},
			Count:    10,
			Block:    w.block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("Error reading from stream")
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				if err := w.processMessage(ctx, msg.Values); err != nil {
					// left pending for redelivery
					log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process payment event")
					continue
				}
				if err := w.rdb.XAck(ctx, w.cfg.Key, w.cfg.Group, msg.ID).Err(); err != nil {
					log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to ack payment event")
				}
			}
		}
	}
}

// processMessage returns an error only for failures worth retrying.
// Malformed events are logged and dropped.
func (w *PaymentStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) error {
	eventType, _ := values["type"].(string)
	rawID, _ := values["payment_id"].(string)

	paymentID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || paymentID <= 0 {
		logger.Warn().Interface("values", values).Msg("Invalid payment_id in payment event")
		return nil
	}

	switch eventType {
	case EventPaymentCompleted:
		txID, _ := values["transaction_id"].(string)
		logger.Info().Int64("payment_id", paymentID).Str("transaction_id", txID).Msg("Processing payment_completed event")
		return w.handler.CompleteEvent(ctx, paymentID, txID)

	case EventPaymentFailed:
		reason, _ := values["reason"].(string)
		logger.Info().Int64("payment_id", paymentID).Str("reason", reason).Msg("Processing payment_failed event")
		return w.handler.FailEvent(ctx, paymentID, reason)

	default:
		logger.Warn().Str("type", eventType).Msg("Unknown payment event type")
		return nil
	}
}
