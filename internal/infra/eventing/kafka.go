package eventing

import (
	"context"
	"encoding/json"
	"strconv"

	"app/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// 注文ライフサイクルのイベントをKafkaへ流す。
// トピック名はイベント種別そのまま。
// key=order_idで同一注文のイベント順序を保つ
type KafkaPublisher struct {
	w      *kafka.Writer
	logger zerolog.Logger
}

func NewKafkaPublisher(brokers []string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// fire-and-forget。失敗はCompletionでログに残すだけ
			Async: true,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishOrderEvent(ev usecase.OrderEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Msg("marshal order event failed")
		return
	}

	msg := kafka.Message{
		Topic: ev.Type,
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: value,
		Time:  ev.OccurredAt,
	}
	if err := p.w.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Warn().Err(err).Str("topic", ev.Type).Msg("publish order event failed")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
