package capture

import "sync"

// signal 一次性的二值信号，置位后不可清除
type signal struct {
	once sync.Once
	ch   chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) set() {
	s.once.Do(func() { close(s.ch) })
}

func (s *signal) isSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

func (s *signal) C() <-chan struct{} {
	return s.ch
}

// handshake 会话与工作协程之间的四个信号
//
// ready 在工具确认开始监听后置位；failed 在工具异常时置位；
// stop 由会话持有者置位；finished 在清理完成并写入终止信息后置位。
type handshake struct {
	ready    *signal
	failed   *signal
	stop     *signal
	finished *signal
}

func newHandshake() handshake {
	return handshake{
		ready:    newSignal(),
		failed:   newSignal(),
		stop:     newSignal(),
		finished: newSignal(),
	}
}
