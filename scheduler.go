// Scheduler implementations for RxGo
// 实现调度器系统，支持不同的执行策略
package rxgo

import (
	"context"
	"sync"
	"time"
)

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务。
// delay大于0的任务交给默认事件循环，在事件循环的goroutine上执行。
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Now 返回墙上时间
func (s *immediateScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 立即执行任务，返回的订阅已经释放
func (s *immediateScheduler) Schedule(action func()) *Subscription {
	action()
	return EmptySubscription()
}

// ScheduleWithDelay 延迟任务交给默认事件循环，在其goroutine上执行
func (s *immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return AsyncScheduler().ScheduleWithDelay(action, delay)
}

// ScheduleWithContext 上下文未结束时立即执行任务
func (s *immediateScheduler) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	return s.Schedule(action)
}

// ============================================================================
// 队列调度器 - Queue Scheduler
// ============================================================================

// queueScheduler 蹦床调度器。
// 第一个任务在调用者goroutine上执行；执行期间调度的任务排队，
// 在当前任务返回后由同一个goroutine依次执行。
// delay大于0的任务交给默认事件循环，在事件循环的goroutine上执行，不进入本队列。
type queueScheduler struct {
	mu      sync.Mutex
	queue   []queuedTask
	running bool
}

// queuedTask 排队中的任务
type queuedTask struct {
	task   *Subscription
	action func()
}

// NewQueueScheduler 创建队列调度器
func NewQueueScheduler() Scheduler {
	return &queueScheduler{}
}

// Now 返回墙上时间
func (s *queueScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 排队任务；如果没有正在执行的任务则立即开始执行
func (s *queueScheduler) Schedule(action func()) *Subscription {
	task := NewSubscription()

	s.mu.Lock()
	s.queue = append(s.queue, queuedTask{task: task, action: action})
	if s.running {
		s.mu.Unlock()
		return task
	}
	s.running = true
	s.mu.Unlock()

	s.drain()
	return task
}

// ScheduleWithDelay 延迟任务交给默认事件循环，在其goroutine上执行
func (s *queueScheduler) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return AsyncScheduler().ScheduleWithDelay(action, delay)
}

// ScheduleWithContext 带上下文调度任务
func (s *queueScheduler) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	return s.Schedule(func() {
		if ctx.Err() == nil {
			action()
		}
	})
}

// drain 依次执行队列中的任务
func (s *queueScheduler) drain() {
	defer func() {
		// 任务panic时放弃剩余队列，让下一个调用者重新开始
		if r := recover(); r != nil {
			s.mu.Lock()
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if next.task.IsUnsubscribed() {
			continue
		}
		next.action()
		next.task.Unsubscribe()
	}
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// QueueScheduler 队列调度器实例
	QueueScheduler Scheduler = NewQueueScheduler()

	defaultLoopOnce sync.Once
	defaultLoop     *Loop
)

// DefaultLoop 返回包级事件循环，首次调用时启动
func DefaultLoop() *Loop {
	defaultLoopOnce.Do(func() {
		loop, err := NewLoop()
		if err != nil {
			panic(err)
		}
		loop.Start()
		defaultLoop = loop
	})
	return defaultLoop
}

// AsyncScheduler 异步调度器：默认事件循环
func AsyncScheduler() Scheduler {
	return DefaultLoop()
}

// FrameScheduler 帧调度器：任务在默认事件循环的下一帧执行
func FrameScheduler() Scheduler {
	return DefaultLoop().Frames()
}

// ============================================================================
// 调度器辅助函数
// ============================================================================

// ScheduleRecurring 周期调度任务，首次执行在delay之后，此后每隔period执行一次。
// period不大于0时只执行一次。
func ScheduleRecurring(scheduler Scheduler, action func(), delay, period time.Duration) *Subscription {
	recurring := NewSubscription()

	var step func()
	var next func(d time.Duration)
	next = func(d time.Duration) {
		if recurring.IsUnsubscribed() {
			return
		}
		recurring.Add(scheduler.ScheduleWithDelay(step, d))
	}
	step = func() {
		if recurring.IsUnsubscribed() {
			return
		}
		action()
		if period > 0 {
			next(period)
		} else {
			recurring.Unsubscribe()
		}
	}

	next(delay)
	return recurring
}
