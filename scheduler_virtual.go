// Virtual time scheduler for RxGo
// 虚拟时间调度器：手动推进时钟，用于确定性测试
package rxgo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// virtualTask 虚拟时钟上的任务
type virtualTask struct {
	due    time.Duration
	action func()
	sub    *Subscription
}

// VirtualScheduler 可以手动控制时间的调度器。
// 任务按到期时间执行，到期时间相同的按调度顺序执行。
type VirtualScheduler struct {
	mu            sync.Mutex
	epoch         time.Time
	clock         time.Duration
	queue         []*virtualTask
	frameDuration time.Duration
}

// NewVirtualScheduler 创建虚拟时间调度器，时钟从0开始
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{
		epoch:         time.Unix(0, 0).UTC(),
		frameDuration: time.Second / 60,
	}
}

// Now 当前虚拟时间
func (s *VirtualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch.Add(s.clock)
}

// Elapsed 从时钟起点经过的虚拟时间
func (s *VirtualScheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Schedule 在当前虚拟时间调度任务
func (s *VirtualScheduler) Schedule(action func()) *Subscription {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 在当前虚拟时间之后delay调度任务
func (s *VirtualScheduler) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	due := s.clock + delay
	s.mu.Unlock()
	return s.scheduleAt(due, action)
}

// ScheduleWithContext 带上下文调度任务，执行时ctx已结束则跳过
func (s *VirtualScheduler) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	return s.Schedule(func() {
		if ctx.Err() == nil {
			action()
		}
	})
}

// scheduleAt 按到期时间插入队列，保持顺序
func (s *VirtualScheduler) scheduleAt(due time.Duration, action func()) *Subscription {
	task := &virtualTask{due: due, action: action, sub: NewSubscription()}

	s.mu.Lock()
	idx := slices.IndexFunc(s.queue, func(t *virtualTask) bool { return t.due > due })
	if idx < 0 {
		s.queue = append(s.queue, task)
	} else {
		s.queue = slices.Insert(s.queue, idx, task)
	}
	s.mu.Unlock()

	task.sub.AddTeardown(func() {
		s.remove(task)
	})
	return task.sub
}

// remove 从队列中移除任务
func (s *VirtualScheduler) remove(task *virtualTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := slices.Index(s.queue, task); idx >= 0 {
		s.queue = slices.Delete(s.queue, idx, idx+1)
	}
}

// AdvanceBy 推进时钟d，执行期间到期的所有任务
func (s *VirtualScheduler) AdvanceBy(d time.Duration) {
	s.mu.Lock()
	target := s.clock + d
	s.mu.Unlock()
	s.AdvanceTo(target)
}

// AdvanceTo 推进时钟到target，执行期间到期的所有任务。
// 任务执行时时钟等于任务的到期时间。
func (s *VirtualScheduler) AdvanceTo(target time.Duration) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due > target {
			if target > s.clock {
				s.clock = target
			}
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		if task.due > s.clock {
			s.clock = task.due
		}
		s.mu.Unlock()

		s.run(task)
	}
}

// Flush 执行所有任务直到队列为空。周期性任务会使Flush不返回。
func (s *VirtualScheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		due := s.queue[0].due
		s.mu.Unlock()
		s.AdvanceTo(due)
	}
}

// Pending 等待执行的任务数量
func (s *VirtualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// run 执行任务，执行后任务订阅释放
func (s *VirtualScheduler) run(task *virtualTask) {
	if task.sub.IsUnsubscribed() {
		return
	}
	defer task.sub.Unsubscribe()
	task.action()
}

// Frames 返回在下一个虚拟帧边界执行任务的调度器
func (s *VirtualScheduler) Frames() Scheduler {
	return &virtualFrames{scheduler: s}
}

// nextFrame 严格晚于t的下一个帧边界
func (s *VirtualScheduler) nextFrame(t time.Duration) time.Duration {
	return (t/s.frameDuration + 1) * s.frameDuration
}

// virtualFrames 虚拟时间上的帧调度器
type virtualFrames struct {
	scheduler *VirtualScheduler
}

// Now 当前虚拟时间
func (f *virtualFrames) Now() time.Time {
	return f.scheduler.Now()
}

// Schedule 在下一帧执行任务
func (f *virtualFrames) Schedule(action func()) *Subscription {
	return f.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 在delay之后的下一帧执行任务
func (f *virtualFrames) ScheduleWithDelay(action func(), delay time.Duration) *Subscription {
	if delay < 0 {
		delay = 0
	}
	f.scheduler.mu.Lock()
	due := f.scheduler.nextFrame(f.scheduler.clock + delay)
	f.scheduler.mu.Unlock()
	return f.scheduler.scheduleAt(due, action)
}

// ScheduleWithContext 带上下文在下一帧执行任务
func (f *virtualFrames) ScheduleWithContext(ctx context.Context, action func()) *Subscription {
	if ctx.Err() != nil {
		return EmptySubscription()
	}
	return f.Schedule(func() {
		if ctx.Err() == nil {
			action()
		}
	})
}
