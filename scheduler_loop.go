// Event loop scheduler for RxGo
// 单goroutine事件循环：FIFO任务队列、定时器回投和帧时钟
package rxgo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
)

// LoopOption 事件循环的函数式选项
type LoopOption func(*Loop) error

// WithFrameRate 设置帧率，默认60fps，有效范围1-240
func WithFrameRate(fps int) LoopOption {
	return func(l *Loop) error {
		if fps < 1 {
			return fmt.Errorf("rxgo: frame rate must be at least 1 fps")
		}
		if fps > 240 {
			return fmt.Errorf("rxgo: frame rate cannot exceed 240 fps")
		}
		l.frameDuration = time.Second / time.Duration(fps)
		return nil
	}
}

// WithLoopLogger 设置事件循环的日志记录器
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) error {
		if logger == nil {
			return fmt.Errorf("rxgo: loop logger must not be nil")
		}
		l.logger = logger
		return nil
	}
}

// Loop 协作式事件循环，是默认的异步调度器。
// 所有任务在同一个goroutine上按投递顺序执行。延迟任务按到期时间排序，
// 到期时间相同的按调度顺序；到期后回到任务队列。
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	frames []func()
	timers []*loopTimer

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	started atomic.Bool
	stopped atomic.Bool

	frameDuration time.Duration
	logger        *slog.Logger
}

// NewLoop 创建事件循环，需要调用Start启动
func NewLoop(opts ...LoopOption) (*Loop, error) {
	l := &Loop{
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		frameDuration: time.Second / 60,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Start 在新goroutine中运行事件循环，重复调用无效
func (l *Loop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

// Stop 停止事件循环，未执行的任务被丢弃。用Done等待循环退出。
func (l *Loop) Stop() {
	if !l.stopped.CompareAndSwap(false, true) {
		return
	}
	close(l.stopCh)
}

// Done 事件循环退出后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post 把fn投递到循环中执行，可在任意goroutine调用。循环停止后投递被忽略。
func (l *Loop) Post(fn func()) {
	if l.stopped.Load() {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// Now 返回墙上时间
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Schedule 在循环中执行任务
func (l *Loop) Schedule(action func()) *Subscription {
	task := NewSubscription()
	l.Post(l.runner(task, action))
	return task
}

// ScheduleWithDelay 延迟执行任务。到期后任务回到循环队列。
func (l *Loop) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay <= 0 {
		return l.Schedule(action)
	}
	task := NewSubscription()
	l.addTimer(task, l.runner(task, action), delay, false)
	return task
}

// ScheduleWithContext 带上下文调度，ctx结束时取消任务
func (l *Loop) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	task := l.Schedule(action)
	stop := context.AfterFunc(ctx, task.Unsubscribe)
	task.AddTeardown(func() {
		stop()
	})
	return task
}

// Frames 返回在下一帧执行任务的调度器
func (l *Loop) Frames() Scheduler {
	return &loopFrames{loop: l}
}

// FrameDuration 帧间隔
func (l *Loop) FrameDuration() time.Duration {
	return l.frameDuration
}

// runner 包装任务：已取消的任务跳过，panic记录日志后继续循环
func (l *Loop) runner(task *Subscription, action func()) func() {
	return func() {
		if task.IsUnsubscribed() {
			return
		}
		if err := try(action); err != nil {
			l.log().Error("rxgo: scheduled task panicked",
				slog.String("task", task.ID().String()),
				slog.Any("error", err))
		}
		if err := try(task.Unsubscribe); err != nil {
			l.log().Error("rxgo: task teardown failed", slog.Any("error", err))
		}
	}
}

// ============================================================================
// 定时器队列
// ============================================================================

// loopTimer 等待到期的延迟任务
type loopTimer struct {
	due   time.Time
	run   func()
	frame bool
}

// addTimer 按到期时间插入定时器队列，到期时间相同的排在后面
func (l *Loop) addTimer(task *Subscription, run func(), delay time.Duration, frame bool) {
	if l.stopped.Load() {
		return
	}
	timer := &loopTimer{due: time.Now().Add(delay), run: run, frame: frame}

	l.mu.Lock()
	idx := slices.IndexFunc(l.timers, func(t *loopTimer) bool { return t.due.After(timer.due) })
	if idx < 0 {
		l.timers = append(l.timers, timer)
	} else {
		l.timers = slices.Insert(l.timers, idx, timer)
	}
	l.mu.Unlock()

	task.AddTeardown(func() {
		l.removeTimer(timer)
	})
	l.signal()
}

// removeTimer 从定时器队列中移除
func (l *Loop) removeTimer(timer *loopTimer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := slices.Index(l.timers, timer); idx >= 0 {
		l.timers = slices.Delete(l.timers, idx, idx+1)
	}
}

// promoteTimers 把到期的定时器按顺序移入任务队列或帧队列。
// 返回是否移动了任务，以及下一个定时器的到期时间。
func (l *Loop) promoteTimers(now time.Time) (promoted bool, next time.Time, waiting bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for n < len(l.timers) && !l.timers[n].due.After(now) {
		timer := l.timers[n]
		if timer.frame {
			l.frames = append(l.frames, timer.run)
		} else {
			l.tasks = append(l.tasks, timer.run)
		}
		n++
	}
	if n > 0 {
		clear(l.timers[:n])
		l.timers = l.timers[n:]
	}
	if len(l.timers) > 0 {
		return n > 0, l.timers[0].due, true
	}
	return n > 0, time.Time{}, false
}

// postFrame 排队到下一帧
func (l *Loop) postFrame(fn func()) {
	if l.stopped.Load() {
		return
	}
	l.mu.Lock()
	l.frames = append(l.frames, fn)
	l.mu.Unlock()
	l.signal()
}

// signal 唤醒循环
func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run 事件循环主体
func (l *Loop) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.frameDuration)
	defer ticker.Stop()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if !l.drain() {
			return
		}

		promoted, next, waiting := l.promoteTimers(time.Now())
		if promoted {
			continue
		}

		var expired <-chan time.Time
		if waiting {
			timer.Reset(time.Until(next))
			expired = timer.C
		}

		var tick <-chan time.Time
		if l.hasFrames() {
			tick = ticker.C
		}

		select {
		case <-l.wake:
		case <-expired:
		case <-tick:
			l.runFrame()
		case <-l.stopCh:
			return
		}
		timer.Stop()
	}
}

// drain 执行当前队列中的所有任务，返回false表示循环已停止
func (l *Loop) drain() bool {
	for {
		if l.stopped.Load() {
			return false
		}
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return true
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		fn()
	}
}

// hasFrames 检查是否有等待下一帧的任务
func (l *Loop) hasFrames() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames) > 0
}

// runFrame 执行本帧之前排队的帧任务；帧内新排队的任务留到下一帧
func (l *Loop) runFrame() {
	l.mu.Lock()
	frame := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, fn := range frame {
		if l.stopped.Load() {
			return
		}
		fn()
	}
}

// log 循环使用的日志记录器
func (l *Loop) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return logger()
}

// ============================================================================
// 帧调度器
// ============================================================================

// loopFrames 在事件循环的下一帧执行任务
type loopFrames struct {
	loop *Loop
}

// Now 返回墙上时间
func (f *loopFrames) Now() time.Time {
	return time.Now()
}

// Schedule 在下一帧执行任务
func (f *loopFrames) Schedule(action func()) *Subscription {
	task := NewSubscription()
	f.loop.postFrame(f.loop.runner(task, action))
	return task
}

// ScheduleWithDelay 延迟之后的下一帧执行任务
func (f *loopFrames) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay <= 0 {
		return f.Schedule(action)
	}
	task := NewSubscription()
	f.loop.addTimer(task, f.loop.runner(task, action), delay, true)
	return task
}

// ScheduleWithContext 带上下文在下一帧执行任务
func (f *loopFrames) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	task := f.Schedule(action)
	stop := context.AfterFunc(ctx, task.Unsubscribe)
	task.AddTeardown(func() {
		stop()
	})
	return task
}
