package recorder

import (
	"context"

	"tradecap/internal/model"
	"tradecap/pkg/kafka"
)

// Kafka 出口，key用币种符号保证同币种有序
type KafkaRecorder struct {
	producer kafka.ProducerService
}

func NewKafkaRecorder(producer kafka.ProducerService) *KafkaRecorder {
	return &KafkaRecorder{producer: producer}
}

func (r *KafkaRecorder) Record(ctx context.Context, trade *model.CompletedTrade) error {
	return r.producer.Produce(ctx, []byte(trade.Symbol), trade)
}
