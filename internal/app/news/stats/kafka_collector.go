package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaCollector struct {
	writer messageWriter
}

func NewKafkaCollector(brokers []string, topic string) *KafkaCollector {
	return &KafkaCollector{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{}, // 同一篇文章的事件进同一个分区
			Async:    true,          // 异步发送
		},
	}
}

func (k *KafkaCollector) Collect(event ViewEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("kafka: marshal view event failed", "err", err)
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(strconv.FormatInt(event.PostID, 10)),
		Value: data,
	})
	if err != nil {
		slog.Error("kafka write failed", "err", err)
	}
}

func (k *KafkaCollector) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("kafka writer close failed", "err", err)
	}
}
