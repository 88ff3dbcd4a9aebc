// Connectable Observable implementation for RxGo
// 可连接Observable：通过内部Subject把一次源订阅共享给多个订阅者
package rxgo

import (
	"sync"
)

// ============================================================================
// Connectable 实现
// ============================================================================

// Connectable 可连接的Observable。
// Connect之前订阅者只注册到内部Subject；Connect订阅源并把事件转发给Subject。
// 上一个Subject终止后再次Connect会创建新的Subject。
type Connectable[T any] struct {
	source  Observable[T]
	factory func() Subject[T]

	mu         sync.Mutex
	subject    Subject[T]
	connection *Subscription

	refs    int
	refConn *Subscription
}

// Multicast 使用factory创建的Subject共享源
func Multicast[T any](source Observable[T], factory func() Subject[T]) *Connectable[T] {
	return &Connectable[T]{source: source, factory: factory}
}

// Publish 使用PublishSubject共享源
func Publish[T any](source Observable[T]) *Connectable[T] {
	return Multicast(source, func() Subject[T] { return NewPublishSubject[T]() })
}

// PublishBehavior 使用带初始值的BehaviorSubject共享源
func PublishBehavior[T any](source Observable[T], initialValue T) *Connectable[T] {
	return Multicast(source, func() Subject[T] { return NewBehaviorSubject(initialValue) })
}

// PublishReplay 使用ReplaySubject共享源
func PublishReplay[T any](source Observable[T], bufferSize int) *Connectable[T] {
	return Multicast(source, func() Subject[T] { return NewReplaySubject[T](bufferSize) })
}

// PublishLast 使用AsyncSubject共享源，所有订阅者只收到最后一个值
func PublishLast[T any](source Observable[T]) *Connectable[T] {
	return Multicast(source, func() Subject[T] { return NewAsyncSubject[T]() })
}

// Subscribe 订阅内部Subject
func (c *Connectable[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](c, observer)
}

func (c *Connectable[T]) subscribe(sub *Subscriber[T]) {
	c.mu.Lock()
	subject := c.currentSubjectLocked()
	c.mu.Unlock()
	subject.subscribe(sub)
}

// currentSubjectLocked 返回当前Subject，必要时创建，调用方持有锁
func (c *Connectable[T]) currentSubjectLocked() Subject[T] {
	if c.subject == nil || (c.subject.isStopped() && !c.connectedLocked()) {
		c.subject = c.factory()
	}
	return c.subject
}

// Connect 订阅源。已连接时返回现有连接；释放返回的订阅即断开。
func (c *Connectable[T]) Connect() *Subscription {
	c.mu.Lock()
	if c.connectedLocked() {
		connection := c.connection
		c.mu.Unlock()
		return connection
	}
	subject := c.currentSubjectLocked()
	inner := newSubscriber(subject.AsObserver())
	c.connection = inner.Subscription
	c.mu.Unlock()

	c.source.subscribe(inner)
	return inner.Subscription
}

// IsConnected 检查是否已连接
func (c *Connectable[T]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedLocked()
}

// connectedLocked 连接存在且源未终止
func (c *Connectable[T]) connectedLocked() bool {
	return c.connection != nil && !c.connection.IsUnsubscribed()
}

// RefCount 第一个订阅者到来时连接，最后一个订阅者离开时断开
func (c *Connectable[T]) RefCount() Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		c.mu.Lock()
		c.refs++
		first := c.refs == 1
		c.mu.Unlock()

		c.subscribe(sub)

		if first {
			connection := c.Connect()
			c.mu.Lock()
			if c.refs > 0 {
				c.refConn = connection
			}
			c.mu.Unlock()
		}

		return func() {
			c.mu.Lock()
			c.refs--
			var connection *Subscription
			if c.refs == 0 {
				connection = c.refConn
				c.refConn = nil
			}
			c.mu.Unlock()

			if connection != nil {
				connection.Unsubscribe()
			}
		}
	})
}

// AutoConnect 订阅者数量达到subscriberCount时连接一次，之后不再自动断开。
// subscriberCount不大于0时立即连接。
func (c *Connectable[T]) AutoConnect(subscriberCount int) Observable[T] {
	if subscriberCount <= 0 {
		c.Connect()
		return Create(func(sub *Subscriber[T]) Teardown {
			c.subscribe(sub)
			return nil
		})
	}

	var mu sync.Mutex
	count := 0
	return Create(func(sub *Subscriber[T]) Teardown {
		c.subscribe(sub)

		mu.Lock()
		count++
		reached := count == subscriberCount
		mu.Unlock()

		if reached {
			c.Connect()
		}
		return nil
	})
}

// Share 等同于Publish(source).RefCount()
func Share[T any](source Observable[T]) Observable[T] {
	return Publish(source).RefCount()
}

// PublishWith 每次订阅创建一个PublishSubject，selector可以多次使用共享的源，
// 源在selector结果被订阅之后才开始
func PublishWith[T, R any](source Observable[T], selector func(shared Observable[T]) Observable[R]) Observable[R] {
	return Create(func(dst *Subscriber[R]) Teardown {
		subject := NewPublishSubject[T]()
		subscribeInner(selector(subject), dst, dst.AsObserver())
		if dst.Closed() {
			return nil
		}
		subscribeInner(source, dst, subject.AsObserver())
		return nil
	})
}
