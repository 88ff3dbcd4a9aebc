// Subject implementations for RxGo
// 实现Subject系统，包括PublishSubject、BehaviorSubject、ReplaySubject、AsyncSubject
package rxgo

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Subject 既是Observable又是观察者，向当前订阅者同步多播事件
type Subject[T any] interface {
	Observable[T]

	// Next 向所有订阅者发送值
	Next(value T)
	// Error 以错误终止，之后的订阅者只收到该错误
	Error(err error)
	// Complete 正常终止
	Complete()

	// AsObserver 返回转发到此Subject的观察者
	AsObserver() Observer[T]
	// AsObservable 隐藏Next等方法的只读视图
	AsObservable() Observable[T]
	// HasObservers 是否有订阅者
	HasObservers() bool
	// ObserverCount 订阅者数量
	ObserverCount() int
	// Dispose 释放Subject，丢弃所有订阅者
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool

	isStopped() bool
}

// ============================================================================
// subjectCore - 共享的注册表与终止状态
// ============================================================================

// subjectCore 所有Subject共用的状态。锁不跨越任何回调。
type subjectCore[T any] struct {
	mu        sync.Mutex
	observers registry[T]
	terminal  *Notification[T]
	disposed  bool
}

// closedLocked 已终止或已释放，调用方持有锁
func (c *subjectCore[T]) closedLocked() bool {
	return c.terminal != nil || c.disposed
}

// next 在锁内执行update后向快照中的订阅者发送值
func (c *subjectCore[T]) next(value T, update func()) {
	c.mu.Lock()
	if c.closedLocked() {
		c.mu.Unlock()
		return
	}
	if update != nil {
		update()
	}
	entries := c.observers.snapshot()
	c.mu.Unlock()

	fanout(entries, NextNotification(value))
}

// terminate 记录终止通知，清空注册表后向原有订阅者发送notifications
func (c *subjectCore[T]) terminate(terminal Notification[T], prelude func() []Notification[T]) {
	c.mu.Lock()
	if c.closedLocked() {
		c.mu.Unlock()
		return
	}
	var notifications []Notification[T]
	if prelude != nil {
		notifications = prelude()
	}
	notifications = append(notifications, terminal)
	c.terminal = &terminal
	entries := c.observers.clear()
	c.mu.Unlock()

	fanout(entries, notifications...)
}

// attach 注册订阅者并在订阅释放时移除，调用方已解锁
func (c *subjectCore[T]) attach(sub *Subscriber[T], entry *registryEntry[T]) {
	sub.AddTeardown(func() {
		c.mu.Lock()
		c.observers.remove(entry)
		c.mu.Unlock()
	})
}

// isStopped 是否已收到终止事件
func (c *subjectCore[T]) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal != nil
}

// HasObservers 是否有订阅者
func (c *subjectCore[T]) HasObservers() bool {
	return c.ObserverCount() > 0
}

// ObserverCount 订阅者数量
func (c *subjectCore[T]) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observers.len()
}

// IsDisposed 检查是否已释放
func (c *subjectCore[T]) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Dispose 释放Subject：丢弃订阅者且不通知，之后的订阅收到ErrDisposed
func (c *subjectCore[T]) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.observers.clear()
	c.mu.Unlock()
}

// fanout 把通知按顺序投递给每个条目
func fanout[T any](entries []*registryEntry[T], notifications ...Notification[T]) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		for _, n := range notifications {
			entry.deliver(n)
		}
	}
}

// subjectObservable Subject的只读视图
func subjectObservable[T any](subject Observable[T]) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		subject.subscribe(sub)
		return nil
	})
}

// ============================================================================
// PublishSubject - 发布主题
// ============================================================================

// PublishSubject 发布主题，只向当前订阅者发送新的值
type PublishSubject[T any] struct {
	subjectCore[T]
}

// NewPublishSubject 创建新的发布主题
func NewPublishSubject[T any]() *PublishSubject[T] {
	return &PublishSubject[T]{}
}

// NewSubject 等同于NewPublishSubject
func NewSubject[T any]() *PublishSubject[T] {
	return NewPublishSubject[T]()
}

// Subscribe 订阅观察者
func (s *PublishSubject[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](s, observer)
}

func (s *PublishSubject[T]) subscribe(sub *Subscriber[T]) {
	if sub.Closed() {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		sub.Error(ErrDisposed)
		return
	}
	if s.terminal != nil {
		terminal := *s.terminal
		s.mu.Unlock()
		sub.Emit(terminal)
		return
	}
	entry := s.observers.add(sub, false)
	s.mu.Unlock()

	s.attach(sub, entry)
}

// Next 发送下一个值
func (s *PublishSubject[T]) Next(value T) {
	s.next(value, nil)
}

// Error 发送错误
func (s *PublishSubject[T]) Error(err error) {
	s.terminate(ErrorNotification[T](err), nil)
}

// Complete 发送完成信号
func (s *PublishSubject[T]) Complete() {
	s.terminate(CompleteNotification[T](), nil)
}

// AsObserver 返回转发到此Subject的观察者
func (s *PublishSubject[T]) AsObserver() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// AsObservable 只读视图
func (s *PublishSubject[T]) AsObservable() Observable[T] {
	return subjectObservable[T](s)
}

// ============================================================================
// BehaviorSubject - 行为主题
// ============================================================================

// BehaviorSubject 保存最新值，新订阅者立即收到它
type BehaviorSubject[T any] struct {
	subjectCore[T]
	value    T
	hasValue bool
}

// NewBehaviorSubject 创建带初始值的行为主题
func NewBehaviorSubject[T any](initialValue T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{value: initialValue, hasValue: true}
}

// NewUnseededBehaviorSubject 创建没有初始值的行为主题，第一次Next之前GetValue返回ErrNoValue
func NewUnseededBehaviorSubject[T any]() *BehaviorSubject[T] {
	return &BehaviorSubject[T]{}
}

// Subscribe 订阅观察者
func (s *BehaviorSubject[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](s, observer)
}

func (s *BehaviorSubject[T]) subscribe(sub *Subscriber[T]) {
	if sub.Closed() {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		sub.Error(ErrDisposed)
		return
	}
	if s.terminal != nil {
		terminal := *s.terminal
		s.mu.Unlock()
		sub.Emit(terminal)
		return
	}
	value, hasValue := s.value, s.hasValue
	entry := s.observers.add(sub, hasValue)
	s.mu.Unlock()

	s.attach(sub, entry)
	if hasValue {
		entry.replay([]T{value})
	}
}

// Next 更新最新值并发送
func (s *BehaviorSubject[T]) Next(value T) {
	s.next(value, func() {
		s.value = value
		s.hasValue = true
	})
}

// Error 发送错误
func (s *BehaviorSubject[T]) Error(err error) {
	s.terminate(ErrorNotification[T](err), nil)
}

// Complete 发送完成信号
func (s *BehaviorSubject[T]) Complete() {
	s.terminate(CompleteNotification[T](), nil)
}

// GetValue 获取当前值。
// 没有值时返回ErrNoValue，以错误终止后返回该错误，释放后返回ErrDisposed。
func (s *BehaviorSubject[T]) GetValue() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.disposed {
		return zero, ErrDisposed
	}
	if s.terminal != nil && s.terminal.Kind == KindError {
		return zero, s.terminal.Err
	}
	if !s.hasValue {
		return zero, ErrNoValue
	}
	return s.value, nil
}

// AsObserver 返回转发到此Subject的观察者
func (s *BehaviorSubject[T]) AsObserver() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// AsObservable 只读视图
func (s *BehaviorSubject[T]) AsObservable() Observable[T] {
	return subjectObservable[T](s)
}

// ============================================================================
// ReplaySubject - 重放主题
// ============================================================================

// ReplaySubject 缓存最近的N个值，新订阅者先按顺序收到缓存再收到实时值。
// bufferSize不大于0时缓存全部值。
type ReplaySubject[T any] struct {
	subjectCore[T]
	bufferSize int
	buffer     []T
}

// NewReplaySubject 创建重放主题
func NewReplaySubject[T any](bufferSize int) *ReplaySubject[T] {
	return &ReplaySubject[T]{bufferSize: bufferSize}
}

// Subscribe 订阅观察者
func (s *ReplaySubject[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](s, observer)
}

func (s *ReplaySubject[T]) subscribe(sub *Subscriber[T]) {
	if sub.Closed() {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		sub.Error(ErrDisposed)
		return
	}
	values := slices.Clone(s.buffer)
	if s.terminal != nil {
		terminal := *s.terminal
		s.mu.Unlock()
		for _, value := range values {
			sub.Next(value)
		}
		sub.Emit(terminal)
		return
	}
	entry := s.observers.add(sub, len(values) > 0)
	s.mu.Unlock()

	s.attach(sub, entry)
	if len(values) > 0 {
		entry.replay(values)
	}
}

// Next 缓存并发送值
func (s *ReplaySubject[T]) Next(value T) {
	s.next(value, func() {
		s.buffer = append(s.buffer, value)
		if s.bufferSize > 0 && len(s.buffer) > s.bufferSize {
			overflow := len(s.buffer) - s.bufferSize
			s.buffer = slices.Delete(s.buffer, 0, overflow)
		}
	})
}

// Error 发送错误，缓存保留给之后的订阅者
func (s *ReplaySubject[T]) Error(err error) {
	s.terminate(ErrorNotification[T](err), nil)
}

// Complete 发送完成信号
func (s *ReplaySubject[T]) Complete() {
	s.terminate(CompleteNotification[T](), nil)
}

// Values 当前缓存的值
func (s *ReplaySubject[T]) Values() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buffer)
}

// AsObserver 返回转发到此Subject的观察者
func (s *ReplaySubject[T]) AsObserver() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// AsObservable 只读视图
func (s *ReplaySubject[T]) AsObservable() Observable[T] {
	return subjectObservable[T](s)
}

// ============================================================================
// AsyncSubject - 异步主题
// ============================================================================

// AsyncSubject 只在完成时向所有订阅者发送最后一个值；错误时丢弃缓存的值
type AsyncSubject[T any] struct {
	subjectCore[T]
	last    T
	hasLast bool
}

// NewAsyncSubject 创建异步主题
func NewAsyncSubject[T any]() *AsyncSubject[T] {
	return &AsyncSubject[T]{}
}

// Subscribe 订阅观察者
func (s *AsyncSubject[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](s, observer)
}

func (s *AsyncSubject[T]) subscribe(sub *Subscriber[T]) {
	if sub.Closed() {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		sub.Error(ErrDisposed)
		return
	}
	if s.terminal != nil {
		terminal := *s.terminal
		last, hasLast := s.last, s.hasLast
		s.mu.Unlock()
		if terminal.Kind == KindComplete && hasLast {
			sub.Next(last)
		}
		sub.Emit(terminal)
		return
	}
	entry := s.observers.add(sub, false)
	s.mu.Unlock()

	s.attach(sub, entry)
}

// Next 只记录最后一个值
func (s *AsyncSubject[T]) Next(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked() {
		return
	}
	s.last = value
	s.hasLast = true
}

// Error 发送错误并丢弃缓存的值
func (s *AsyncSubject[T]) Error(err error) {
	s.terminate(ErrorNotification[T](err), func() []Notification[T] {
		var zero T
		s.last = zero
		s.hasLast = false
		return nil
	})
}

// Complete 发送最后一个值和完成信号
func (s *AsyncSubject[T]) Complete() {
	s.terminate(CompleteNotification[T](), func() []Notification[T] {
		if !s.hasLast {
			return nil
		}
		return []Notification[T]{NextNotification(s.last)}
	})
}

// AsObserver 返回转发到此Subject的观察者
func (s *AsyncSubject[T]) AsObserver() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// AsObservable 只读视图
func (s *AsyncSubject[T]) AsObservable() Observable[T] {
	return subjectObservable[T](s)
}

var (
	_ Subject[int] = (*PublishSubject[int])(nil)
	_ Subject[int] = (*BehaviorSubject[int])(nil)
	_ Subject[int] = (*ReplaySubject[int])(nil)
	_ Subject[int] = (*AsyncSubject[int])(nil)
)
