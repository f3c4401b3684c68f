package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu      sync.Mutex
	batches [][]ViewEvent
	fail    bool
}

func (s *memSink) InsertViews(_ context.Context, events []ViewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.batches = append(s.batches, append([]ViewEvent(nil), events...))
	return nil
}

func (s *memSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestChannelCollectorDropsWhenFull(t *testing.T) {
	c := NewChannelCollector(2)
	for i := 0; i < 5; i++ {
		c.Collect(ViewEvent{PostID: int64(i)})
	}
	assert.Len(t, c.Events(), 2)

	c.Close()
	c.Close()
	// 关闭后投递不 panic
	c.Collect(ViewEvent{PostID: 9})
}

func TestConsumerFlushesOnBatchSize(t *testing.T) {
	sink := &memSink{}
	c := NewChannelCollector(10)
	consumer := NewConsumer(sink, c).WithBatch(3, time.Hour)

	done := make(chan struct{})
	go func() {
		consumer.Run(context.Background())
		close(done)
	}()

	for i := 0; i < 7; i++ {
		c.Collect(ViewEvent{PostID: int64(i), Counted: i%2 == 0})
	}
	c.Close()
	<-done

	assert.Equal(t, 7, sink.total())
	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 3)
	assert.Len(t, sink.batches[2], 1)
}

// 进程收到退出信号后，HTTP 还在处理剩余请求；这期间产生的事件要在 collector 关闭时写完
func TestConsumerKeepsRunningUntilCollectorClosed(t *testing.T) {
	sink := &memSink{}
	c := NewChannelCollector(10)
	consumer := NewConsumer(sink, c).WithBatch(100, time.Hour)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	done := make(chan struct{})
	go func() {
		consumer.Run(consumerCtx)
		close(done)
	}()

	c.Collect(ViewEvent{PostID: 1})
	c.Collect(ViewEvent{PostID: 2})
	c.Collect(ViewEvent{PostID: 3})

	select {
	case <-done:
		t.Fatal("consumer exited before collector was closed")
	case <-time.After(20 * time.Millisecond):
	}

	c.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not exit after collector close")
	}
	assert.Equal(t, 3, sink.total())
}

func TestConsumerFlushesOnInterval(t *testing.T) {
	sink := &memSink{}
	c := NewChannelCollector(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(sink, c).WithBatch(100, 10*time.Millisecond).Run(ctx)

	c.Collect(ViewEvent{PostID: 1})
	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumerDrainsOnCancel(t *testing.T) {
	sink := &memSink{}
	c := NewChannelCollector(10)
	c.Collect(ViewEvent{PostID: 1})
	c.Collect(ViewEvent{PostID: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewConsumer(sink, c).WithBatch(100, time.Hour).Run(ctx)

	assert.Equal(t, 2, sink.total())
}

func TestConsumerSinkFailureDoesNotStop(t *testing.T) {
	sink := &memSink{fail: true}
	c := NewChannelCollector(10)
	done := make(chan struct{})
	go func() {
		NewConsumer(sink, c).WithBatch(1, time.Hour).Run(context.Background())
		close(done)
	}()
	c.Collect(ViewEvent{PostID: 1})
	c.Collect(ViewEvent{PostID: 2})
	c.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after collector closed")
	}
	assert.Equal(t, 0, sink.total())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaCollectorEncodesEvent(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaCollector{writer: w}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	k.Collect(ViewEvent{PostID: 9007199254740993, ViewedAt: at, IP: "1.2.3.4", Counted: true})
	k.Close()

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "9007199254740993", string(w.msgs[0].Key))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &raw))
	// 64 位 id 以字符串编码
	assert.Equal(t, "9007199254740993", raw["postId"])
	assert.Equal(t, true, raw["counted"])

	w.err = errors.New("broker down")
	k.Collect(ViewEvent{PostID: 1})
}

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaConsumerBatchesAndSkipsGarbage(t *testing.T) {
	sink := &memSink{}
	r := &fakeReader{msgs: make(chan kafka.Message, 10)}
	k := &KafkaConsumer{reader: r, batcher: batcher{sink: sink, batchSize: 2, interval: time.Hour, name: "test"}}

	for _, id := range []int64{1, 2, 3} {
		data, err := json.Marshal(ViewEvent{PostID: id})
		require.NoError(t, err)
		r.msgs <- kafka.Message{Value: data}
	}
	r.msgs <- kafka.Message{Value: []byte("{not json")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 5*time.Millisecond)
	// 坏消息已被读走，说明第 3 条已经进了批次
	assert.Eventually(t, func() bool { return len(r.msgs) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	// 剩下的一条在退出时写出
	assert.Equal(t, 3, sink.total())
	k.Close()
}
