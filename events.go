// Event source adapters for RxGo
// 事件源适配：add/remove监听器模式与进程内Emitter
package rxgo

import (
	"sync"

	"golang.org/x/exp/slices"
)

// ListenerID 监听器句柄
type ListenerID uint64

// EventSource 支持添加和移除监听器的事件源
type EventSource[T any] interface {
	AddListener(listener func(event T)) ListenerID
	RemoveListener(id ListenerID)
}

// listener 已注册的监听器
type listener[T any] struct {
	id ListenerID
	fn func(event T)
}

// Emitter 进程内事件源，按注册顺序同步调用监听器
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners []listener[T]
}

// NewEmitter 创建事件源
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// AddListener 注册监听器
func (e *Emitter[T]) AddListener(fn func(event T)) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners = append(e.listeners, listener[T]{id: e.nextID, fn: fn})
	return e.nextID
}

// RemoveListener 移除监听器，未知句柄被忽略
func (e *Emitter[T]) RemoveListener(id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := slices.IndexFunc(e.listeners, func(l listener[T]) bool { return l.id == id }); idx >= 0 {
		e.listeners = slices.Delete(e.listeners, idx, idx+1)
	}
}

// ListenerCount 当前监听器数量
func (e *Emitter[T]) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Emit 向调用时刻已注册的监听器发出事件
func (e *Emitter[T]) Emit(event T) {
	e.mu.Lock()
	snapshot := slices.Clone(e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(event)
	}
}

// FromEvent 订阅时向source添加监听器，释放时移除
func FromEvent[T any](source EventSource[T]) Observable[T] {
	return FromEventPattern(
		func(handler func(event T)) ListenerID {
			return source.AddListener(handler)
		},
		func(_ func(event T), id ListenerID) {
			source.RemoveListener(id)
		},
	)
}

// FromEventPattern 使用自定义的add/remove函数适配事件源。
// add返回的token在释放时传给remove。
func FromEventPattern[T, K any](add func(handler func(event T)) K, remove func(handler func(event T), token K)) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		handler := func(event T) {
			sub.Next(event)
		}
		token := add(handler)
		if remove == nil {
			return nil
		}
		return func() {
			remove(handler, token)
		}
	})
}
