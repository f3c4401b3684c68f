// Package fanout 进程内的变更事件分发：按订阅者身份投递到每个活跃连接。
//
// 投递至多一次且不阻塞：订阅者的缓冲满了或已断开，这条事件对它直接丢弃。
// 同一个发布者对同一个订阅者按发布顺序投递。
package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"newsroom.local/internal/platform/metrics"

	"github.com/puzpuzpuz/xsync/v3"
)

type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// Event 是只读的：Payload 在发布前已经序列化好，所有订阅者共享同一份字节。
type Event struct {
	Name        string          `json:"event"` // post:created
	SubjectType string          `json:"subjectType"`
	SubjectID   string          `json:"subjectId"`
	Action      Action          `json:"action"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// NewEvent 序列化 payload 并生成事件名 {subjectType}:{action}
func NewEvent(subjectType, subjectID string, action Action, payload any) (Event, error) {
	ev := Event{
		Name:        subjectType + ":" + string(action),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Action:      action,
		Timestamp:   time.Now().Unix(),
	}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev.Payload = raw
	return ev, nil
}

// Subscription 一个连接对应一个订阅。events 永远不关闭，断开只关闭 done，
// 这样并发的 Publish 不会写到已关闭的 channel。
type Subscription struct {
	id       uint64
	identity string
	events   chan Event
	done     chan struct{}
	once     sync.Once
}

func (s *Subscription) Identity() string       { return s.identity }
func (s *Subscription) Events() <-chan Event   { return s.events }
func (s *Subscription) Done() <-chan struct{} { return s.done }

type Hub struct {
	// identity -> (subscription id -> subscription)
	subs   *xsync.MapOf[string, *xsync.MapOf[uint64, *Subscription]]
	nextID atomic.Uint64
	buffer int
	closed atomic.Bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		subs:   xsync.NewMapOf[string, *xsync.MapOf[uint64, *Subscription]](),
		buffer: buffer,
	}
}

// Subscribe 在 Close 之后调用会得到一个已经结束的订阅
func (h *Hub) Subscribe(identity string) *Subscription {
	s := &Subscription{
		id:       h.nextID.Add(1),
		identity: identity,
		events:   make(chan Event, h.buffer),
		done:     make(chan struct{}),
	}
	if h.closed.Load() {
		s.once.Do(func() { close(s.done) })
		return s
	}
	h.subs.Compute(identity, func(conns *xsync.MapOf[uint64, *Subscription], loaded bool) (*xsync.MapOf[uint64, *Subscription], bool) {
		if !loaded {
			conns = xsync.NewMapOf[uint64, *Subscription]()
		}
		conns.Store(s.id, s)
		return conns, false
	})
	metrics.FanoutSubscribers.Inc()
	// 与 Close 并发时可能漏掉刚加入的订阅
	if h.closed.Load() {
		h.Unsubscribe(s)
	}
	return s
}

// Unsubscribe 可以重复调用
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.done)
		h.subs.Compute(s.identity, func(conns *xsync.MapOf[uint64, *Subscription], loaded bool) (*xsync.MapOf[uint64, *Subscription], bool) {
			if !loaded {
				return conns, true
			}
			conns.Delete(s.id)
			return conns, conns.Size() == 0
		})
		metrics.FanoutSubscribers.Dec()
	})
}

// Close 结束所有订阅，之后的 Publish 不再投递。可以重复调用。
func (h *Hub) Close() {
	h.closed.Store(true)
	var all []*Subscription
	h.subs.Range(func(_ string, conns *xsync.MapOf[uint64, *Subscription]) bool {
		conns.Range(func(_ uint64, s *Subscription) bool {
			all = append(all, s)
			return true
		})
		return true
	})
	for _, s := range all {
		h.Unsubscribe(s)
	}
}

// Publish 把事件投递给 identity 的所有连接，返回成功投递的连接数。
func (h *Hub) Publish(identity string, ev Event) int {
	conns, ok := h.subs.Load(identity)
	if !ok {
		return 0
	}
	delivered := 0
	conns.Range(func(_ uint64, s *Subscription) bool {
		select {
		case <-s.done:
			metrics.FanoutEvents.WithLabelValues("dropped").Inc()
			return true
		default:
		}
		select {
		case s.events <- ev:
			delivered++
			metrics.FanoutEvents.WithLabelValues("delivered").Inc()
		default:
			metrics.FanoutEvents.WithLabelValues("dropped").Inc()
			slog.Debug("fanout buffer full, event dropped", "identity", identity, "event", ev.Name)
		}
		return true
	})
	return delivered
}

// PublishAll 同一事件发给多个身份，重复的身份只投递一次
func (h *Hub) PublishAll(identities []string, ev Event) int {
	seen := make(map[string]struct{}, len(identities))
	total := 0
	for _, id := range identities {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		total += h.Publish(id, ev)
	}
	return total
}

// Connections 当前 identity 的活跃连接数
func (h *Hub) Connections(identity string) int {
	conns, ok := h.subs.Load(identity)
	if !ok {
		return 0
	}
	return conns.Size()
}
