// Observer and Subscriber implementation for RxGo
// 观察者与订阅者：可选回调槽位，终止状态不可逆
package rxgo

import (
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// Observer
// ============================================================================

// Observer 观察者，三个回调均可为空。
// 为空的Next、Complete视为空操作；最终消费者的Error为空时错误交给未处理错误处理器。
type Observer[T any] struct {
	Next     func(value T)
	Error    func(err error)
	Complete func()
}

// NextObserver 只处理数据值的观察者
func NextObserver[T any](next func(value T)) Observer[T] {
	return Observer[T]{Next: next}
}

// NewObserver 使用回调函数创建观察者
func NewObserver[T any](next func(value T), onError func(err error), complete func()) Observer[T] {
	return Observer[T]{Next: next, Error: onError, Complete: complete}
}

// consumerObserver 包装最终消费者的回调。
// 回调中的panic交给未处理错误处理器，不会重新进入流。
func consumerObserver[T any](observer Observer[T]) Observer[T] {
	return Observer[T]{
		Next: func(value T) {
			if observer.Next == nil {
				return
			}
			if err := try(func() { observer.Next(value) }); err != nil {
				reportUnhandledError(err)
			}
		},
		Error: func(err error) {
			if observer.Error == nil {
				reportUnhandledError(err)
				return
			}
			if perr := try(func() { observer.Error(err) }); perr != nil {
				reportUnhandledError(perr)
			}
		},
		Complete: func() {
			if observer.Complete == nil {
				return
			}
			if err := try(observer.Complete); err != nil {
				reportUnhandledError(err)
			}
		},
	}
}

// ============================================================================
// Subscriber
// ============================================================================

// Subscriber 交给生产者的观察者，同时是一个Subscription。
// 在Error或Complete之后不会再有任何回调；释放后同样不会再有回调。
type Subscriber[T any] struct {
	*Subscription
	destination Observer[T]
	stopped     atomic.Bool
}

// NewSubscriber 为最终消费者创建Subscriber
func NewSubscriber[T any](observer Observer[T]) *Subscriber[T] {
	return newSubscriber(consumerObserver(observer))
}

// newSubscriber 创建不带保护的Subscriber，供操作符内部使用
func newSubscriber[T any](observer Observer[T]) *Subscriber[T] {
	return &Subscriber[T]{
		Subscription: NewSubscription(),
		destination:  observer,
	}
}

// Next 发送下一个值
func (s *Subscriber[T]) Next(value T) {
	if s.Closed() {
		return
	}
	if s.destination.Next != nil {
		s.destination.Next(value)
	}
}

// Error 发送错误并释放订阅
func (s *Subscriber[T]) Error(err error) {
	if s.IsUnsubscribed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	defer s.Unsubscribe()
	if s.destination.Error != nil {
		s.destination.Error(err)
	}
}

// Complete 发送完成信号并释放订阅
func (s *Subscriber[T]) Complete() {
	if s.IsUnsubscribed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	defer s.Unsubscribe()
	if s.destination.Complete != nil {
		s.destination.Complete()
	}
}

// Emit 投递一个通知
func (s *Subscriber[T]) Emit(n Notification[T]) {
	switch n.Kind {
	case KindNext:
		s.Next(n.Value)
	case KindError:
		s.Error(n.Err)
	case KindComplete:
		s.Complete()
	}
}

// Closed 检查是否已终止或已释放，生产者应在循环中检查
func (s *Subscriber[T]) Closed() bool {
	return s.stopped.Load() || s.IsUnsubscribed()
}

// AsObserver 返回转发到此Subscriber的观察者
func (s *Subscriber[T]) AsObserver() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// Schedule 在调度器上执行action，任务挂在此订阅下，随订阅释放而取消。
// action中的panic作为此订阅的错误发出。
func (s *Subscriber[T]) Schedule(scheduler Scheduler, delay time.Duration, action func()) *Subscription {
	wrapped := func() {
		if s.Closed() {
			return
		}
		if err := try(action); err != nil {
			s.Error(err)
		}
	}

	var task *Subscription
	if delay > 0 {
		task = scheduler.ScheduleWithDelay(wrapped, delay)
	} else {
		task = scheduler.Schedule(wrapped)
	}
	s.Add(task)
	return task
}

// ============================================================================
// 操作符订阅者
// ============================================================================

// newOperatorSubscriber 创建挂在dst下的上游Subscriber。
// observer中为空的Error、Complete默认转发给dst；回调panic转换为dst的错误。
func newOperatorSubscriber[A, B any](dst *Subscriber[B], observer Observer[A]) *Subscriber[A] {
	wrapped := Observer[A]{
		Next: func(value A) {
			if observer.Next == nil {
				return
			}
			if err := try(func() { observer.Next(value) }); err != nil {
				dst.Error(err)
			}
		},
		Error: func(err error) {
			if observer.Error == nil {
				dst.Error(err)
				return
			}
			if perr := try(func() { observer.Error(err) }); perr != nil {
				dst.Error(perr)
			}
		},
		Complete: func() {
			if observer.Complete == nil {
				dst.Complete()
				return
			}
			if err := try(observer.Complete); err != nil {
				dst.Error(err)
			}
		},
	}

	child := newSubscriber(wrapped)
	dst.Add(child.Subscription)
	return child
}

// subscribeInner 以dst的子订阅订阅source
func subscribeInner[A, B any](source Observable[A], dst *Subscriber[B], observer Observer[A]) *Subscriber[A] {
	child := newOperatorSubscriber(dst, observer)
	source.subscribe(child)
	return child
}

// ============================================================================
// 串行执行
// ============================================================================

// serializer 串行执行来自多个goroutine的动作。
// 同一时刻只有一个goroutine在执行；执行期间到达的动作排队，由正在执行的goroutine依次执行。
type serializer struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// run 执行action，或在其它动作执行期间把它排队
func (s *serializer) run(action func()) {
	s.mu.Lock()
	if s.running {
		s.queue = append(s.queue, action)
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.running = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		action()

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		action = s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

// serializedObserver 让observer的回调经由s串行执行；为空的Error、Complete转发给dst
func serializedObserver[A, B any](s *serializer, dst *Subscriber[B], observer Observer[A]) Observer[A] {
	onError := observer.Error
	if onError == nil {
		onError = dst.Error
	}
	complete := observer.Complete
	if complete == nil {
		complete = dst.Complete
	}
	return Observer[A]{
		Next: func(value A) {
			if observer.Next != nil {
				s.run(func() { observer.Next(value) })
			}
		},
		Error: func(err error) {
			s.run(func() { onError(err) })
		},
		Complete: func() {
			s.run(complete)
		},
	}
}
