package stats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const readRetryDelay = time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader  messageReader
	batcher batcher
}

func NewKafkaConsumer(brokers []string, topic string, sink Sink) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  "article-views-consumer",
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		batcher: batcher{
			sink:      sink,
			batchSize: defaultBatchSize,
			interval:  defaultInterval,
			name:      "kafka consumer",
		},
	}
}

// Run 阻塞，直到 ctx 取消
func (k *KafkaConsumer) Run(ctx context.Context) {
	msgCh := make(chan ViewEvent, k.batcher.batchSize)

	// 读取协程：ctx 取消后关闭 msgCh，batcher 写完剩余事件退出
	go func() {
		defer close(msgCh)
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				slog.Error("kafka read failed", "err", err)
				select {
				case <-time.After(readRetryDelay):
				case <-ctx.Done():
					return
				}
				continue
			}

			var event ViewEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				slog.Error("unmarshal view event failed", "err", err, "offset", msg.Offset)
				continue
			}
			select {
			case msgCh <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	k.batcher.run(context.Background(), msgCh)
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("kafka reader close failed", "err", err)
	}
}
