// Subscription implementation for RxGo
// 订阅：可取消、可组合成树的资源释放单元
package rxgo

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewDisposable 创建只执行一次action的可释放资源
func NewDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// ============================================================================
// Subscription
// ============================================================================

// Subscription 订阅，状态只能从active单向变为disposed。
// 释放时按注册顺序释放子订阅并执行拆卸动作，每个动作恰好执行一次。
type Subscription struct {
	mu         sync.Mutex
	closed     atomic.Bool
	finalizers []Disposable
	parents    []*Subscription

	idOnce sync.Once
	id     uuid.UUID
}

// NewSubscription 创建订阅，可附带初始拆卸动作
func NewSubscription(teardowns ...Teardown) *Subscription {
	s := &Subscription{}
	for _, td := range teardowns {
		s.AddTeardown(td)
	}
	return s
}

// ID 订阅的唯一标识，用于日志关联
func (s *Subscription) ID() uuid.UUID {
	s.idOnce.Do(func() {
		s.id = uuid.New()
	})
	return s.id
}

// Add 添加子资源。如果订阅已释放，子资源立即被释放。
func (s *Subscription) Add(child Disposable) {
	if child == nil || child == Disposable(s) {
		return
	}
	if child.IsDisposed() {
		return
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		child.Dispose()
		return
	}
	s.finalizers = append(s.finalizers, child)
	s.mu.Unlock()

	if sub, ok := child.(*Subscription); ok {
		sub.addParent(s)
	}
}

// AddTeardown 添加拆卸动作
func (s *Subscription) AddTeardown(teardown Teardown) {
	if teardown == nil {
		return
	}
	s.Add(NewDisposable(teardown))
}

// Remove 移除子资源但不释放它
func (s *Subscription) Remove(child Disposable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := slices.IndexFunc(s.finalizers, func(d Disposable) bool { return d == child }); idx >= 0 {
		s.finalizers = slices.Delete(s.finalizers, idx, idx+1)
	}
}

// Unsubscribe 取消订阅，幂等。返回前同步释放所有子订阅。
// 拆卸动作panic属于致命的配置错误：所有动作执行完毕后以UnsubscriptionError重新panic。
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}
	s.closed.Store(true)
	finalizers := s.finalizers
	parents := s.parents
	s.finalizers = nil
	s.parents = nil
	s.mu.Unlock()

	for _, parent := range parents {
		parent.Remove(s)
	}

	var errs []error
	for _, fin := range finalizers {
		if err := try(fin.Dispose); err != nil {
			if nested, ok := err.(*PanicError).Value.(*UnsubscriptionError); ok {
				errs = append(errs, nested.Errors...)
				continue
			}
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		failure := &UnsubscriptionError{Errors: errs}
		logger().Error("rxgo: teardown failed", slog.String("subscription", s.ID().String()), slog.Any("error", failure))
		panic(failure)
	}
}

// Dispose 等同于Unsubscribe
func (s *Subscription) Dispose() {
	s.Unsubscribe()
}

// IsUnsubscribed 检查是否已取消订阅
func (s *Subscription) IsUnsubscribed() bool {
	return s.closed.Load()
}

// IsDisposed 检查是否已释放
func (s *Subscription) IsDisposed() bool {
	return s.closed.Load()
}

// addParent 记录父订阅，子订阅先行释放时从父订阅中移除自身
func (s *Subscription) addParent(parent *Subscription) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		parent.Remove(s)
		return
	}
	s.parents = append(s.parents, parent)
	s.mu.Unlock()
}

// EmptySubscription 返回一个已释放的订阅
func EmptySubscription() *Subscription {
	s := &Subscription{}
	s.closed.Store(true)
	return s
}
