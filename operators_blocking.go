// Blocking operators for RxGo
// 阻塞桥接：供宿主goroutine等待流的结果
package rxgo

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ============================================================================
// 阻塞操作符实现
// ============================================================================

// BlockingSubscribe 订阅并阻塞直到流终止或ctx结束。
// 返回流的错误；ctx结束时释放订阅并返回ctx的错误，超时包装为ErrTimeout。
func BlockingSubscribe[T any](ctx context.Context, source Observable[T], observer Observer[T]) error {
	done := make(chan error, 1)

	subscription := source.Subscribe(Observer[T]{
		Next: observer.Next,
		Error: func(err error) {
			defer func() { done <- err }()
			if observer.Error != nil {
				observer.Error(err)
			}
		},
		Complete: func() {
			defer func() { done <- nil }()
			if observer.Complete != nil {
				observer.Complete()
			}
		},
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		subscription.Unsubscribe()
		return contextError(ctx)
	}
}

// contextError ctx结束的原因，超时包装为ErrTimeout
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// Collect 阻塞收集所有值
func Collect[T any](ctx context.Context, source Observable[T]) ([]T, error) {
	var values []T
	var mu sync.Mutex
	err := BlockingSubscribe(ctx, source, Observer[T]{
		Next: func(value T) {
			mu.Lock()
			values = append(values, value)
			mu.Unlock()
		},
	})

	mu.Lock()
	defer mu.Unlock()
	return values, err
}

// ForEach 对每个值调用action，阻塞直到流终止
func ForEach[T any](ctx context.Context, source Observable[T], action func(value T)) error {
	return BlockingSubscribe(ctx, source, Observer[T]{Next: action})
}

// First 阻塞获取第一个值；流为空时返回ErrEmpty
func First[T any](ctx context.Context, source Observable[T]) (T, error) {
	return single(ctx, FirstValue[T]()(source))
}

// Last 阻塞获取最后一个值；流为空时返回ErrEmpty
func Last[T any](ctx context.Context, source Observable[T]) (T, error) {
	return single(ctx, LastValue[T]()(source))
}

// single 等待只发出一个值的流
func single[T any](ctx context.Context, source Observable[T]) (T, error) {
	var result T
	var mu sync.Mutex
	err := BlockingSubscribe(ctx, source, Observer[T]{
		Next: func(value T) {
			mu.Lock()
			result = value
			mu.Unlock()
		},
	})
	if err != nil {
		var zero T
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	return result, nil
}

// ToChannel 在新goroutine中订阅，把事件作为Notification写入channel。
// 终止通知之后channel关闭；ctx结束时释放订阅并关闭channel。
// channel满时写入方阻塞，缓冲大小来自WithBufferSize。
func ToChannel[T any](ctx context.Context, source Observable[T], options ...Option) <-chan Notification[T] {
	config := resolveConfig(options)
	ch := make(chan Notification[T], config.BufferSize)

	var mu sync.Mutex
	closed := false
	closeLocked := func() {
		if !closed {
			closed = true
			close(ch)
		}
	}

	var stop func() bool
	send := func(n Notification[T]) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- n:
		case <-ctx.Done():
			closeLocked()
			return
		}
		if n.IsTerminal() {
			closeLocked()
			if stop != nil {
				stop()
			}
		}
	}

	sub := NewSubscriber(Observer[T]{
		Next: func(value T) {
			send(NextNotification(value))
		},
		Error: func(err error) {
			send(ErrorNotification[T](err))
		},
		Complete: func() {
			send(CompleteNotification[T]())
		},
	})

	mu.Lock()
	stop = context.AfterFunc(ctx, func() {
		sub.Unsubscribe()
		mu.Lock()
		closeLocked()
		mu.Unlock()
	})
	mu.Unlock()

	go source.subscribe(sub)
	return ch
}
