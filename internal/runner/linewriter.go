package runner

import (
	"bytes"
	"strings"
	"sync"
)

// lineWriter 保存全部输出，并按行回调
type lineWriter struct {
	mu      sync.Mutex
	all     bytes.Buffer
	partial []byte
	onLine  func(string)
}

func newLineWriter(onLine func(string)) *lineWriter {
	return &lineWriter{onLine: onLine}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.all.Write(p)
	var lines []string
	if w.onLine != nil {
		w.partial = append(w.partial, p...)
		for {
			i := bytes.IndexByte(w.partial, '\n')
			if i < 0 {
				break
			}
			lines = append(lines, strings.TrimRight(string(w.partial[:i]), "\r"))
			w.partial = w.partial[i+1:]
		}
	}
	w.mu.Unlock()

	// 回调不持锁，允许回调内读取 String
	for _, l := range lines {
		w.onLine(l)
	}
	return len(p), nil
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.all.String()
}
