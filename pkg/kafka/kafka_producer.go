package kafka

import (
	"context"
	"log"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Kafka 生产者服务
// 定义接口，方便测试和替换
type ProducerService interface {
	Produce(ctx context.Context, key []byte, msg any) error
	Close()
}

type kafkaProducer struct {
	tradeWriter *kafka.Writer // 成交记录 Writer
}

func NewKafkaProducer(brokerURL, topic string) ProducerService {
	tradeWriter := &kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{}, // 保证写入负载均衡
	}
	return &kafkaProducer{
		tradeWriter: tradeWriter,
	}
}

// Produce 序列化为 JSON 并写入 Kafka
func (p *kafkaProducer) Produce(ctx context.Context, key []byte, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// key 使用币种符号，保证同币种的记录进入同一个 Partition
	return p.tradeWriter.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: data,
	})
}

func (p *kafkaProducer) Close() {
	if err := p.tradeWriter.Close(); err != nil {
		log.Printf("Error closing trade writer: %v", err)
	}
}
