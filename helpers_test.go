// Test helpers for RxGo
// 测试辅助：记录收到的通知
package rxgo

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

// recorder 记录观察者收到的所有通知
type recorder[T any] struct {
	mu            sync.Mutex
	notifications []Notification[T]
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{}
}

// observer 返回记录所有事件的观察者
func (r *recorder[T]) observer() Observer[T] {
	return Observer[T]{
		Next: func(value T) {
			r.add(NextNotification(value))
		},
		Error: func(err error) {
			r.add(ErrorNotification[T](err))
		},
		Complete: func() {
			r.add(CompleteNotification[T]())
		},
	}
}

func (r *recorder[T]) add(n Notification[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// all 记录的所有通知
func (r *recorder[T]) all() []Notification[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification[T], len(r.notifications))
	copy(out, r.notifications)
	return out
}

// values 记录的数据值
func (r *recorder[T]) values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, n := range r.notifications {
		if n.Kind == KindNext {
			out = append(out, n.Value)
		}
	}
	return out
}

// completed 是否收到完成信号
func (r *recorder[T]) completed() bool {
	return r.count(KindComplete) > 0
}

// err 收到的错误
func (r *recorder[T]) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.Kind == KindError {
			return n.Err
		}
	}
	return nil
}

// terminals 终止通知的数量
func (r *recorder[T]) terminals() int {
	return r.count(KindError) + r.count(KindComplete)
}

func (r *recorder[T]) count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notification := range r.notifications {
		if notification.Kind == kind {
			n++
		}
	}
	return n
}

// captureUnhandled 在测试期间收集未处理的错误
func captureUnhandled(t *testing.T) func() []error {
	t.Helper()

	var mu sync.Mutex
	var errs []error
	previous := *globalConfig.Load()
	Configure(WithUnhandledErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))
	t.Cleanup(func() {
		globalConfig.Store(&previous)
	})

	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), errs...)
	}
}

// discardLogger 丢弃所有输出的日志记录器
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
