package capture

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox 无界 FIFO，push 不阻塞
//
// changed 在每次 push 后关闭并替换，等待方据此被唤醒。
type mailbox struct {
	mu      sync.Mutex
	q       *queue.Queue
	changed chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{q: queue.New(), changed: make(chan struct{})}
}

func (m *mailbox) push(v interface{}) {
	m.mu.Lock()
	m.q.Add(v)
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}

// wait 返回的通道在下一次 push 时关闭
func (m *mailbox) wait() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// take 取出前 n 个元素，n<=0 时取出全部
func (m *mailbox) take(n int) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > m.q.Length() {
		n = m.q.Length()
	}
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.q.Remove())
	}
	return out
}

// takeAtLeast 至少有 n 个元素时取出前 n 个，否则不动队列
func (m *mailbox) takeAtLeast(n int) ([]interface{}, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := m.q.Length()
	if have < n {
		return nil, have
	}
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.q.Remove())
	}
	return out, n
}
