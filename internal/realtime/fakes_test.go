package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	data []byte
	err  error
}

type fakeConn struct {
	frames chan frame
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	written  [][]byte
	controls []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan frame), done: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-f.frames:
		if fr.err != nil {
			return 0, nil, fr.err
		}
		return websocket.TextMessage, fr.data, nil
	case <-f.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) push(data string) {
	f.frames <- frame{data: []byte(data)}
}

func (f *fakeConn) closeWith(code int) {
	f.frames <- frame{err: &websocket.CloseError{Code: code}}
}

func (f *fakeConn) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
}

func (d *fakeDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, urlStr)
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) queue(conns ...*fakeConn) {
	d.mu.Lock()
	d.conns = append(d.conns, conns...)
	d.mu.Unlock()
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

type fakeTimer struct {
	mu      *sync.Mutex
	stopped *bool
}

func (t fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.stopped = true
	return true
}

type scheduled struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*scheduled
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &scheduled{delay: d, fn: f}
	s.tasks = append(s.tasks, task)
	return fakeTimer{mu: &s.mu, stopped: &task.stopped}
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = task.delay
	}
	return out
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	task := s.tasks[i]
	s.mu.Unlock()
	task.fn()
}

func (s *fakeScheduler) wasStopped(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[i].stopped
}

type countingTokens struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTokens) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "tok", nil
}

func (c *countingTokens) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
