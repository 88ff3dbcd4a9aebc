// Scheduler tests for RxGo
// 调度器测试：立即、队列、虚拟时间、事件循环
package rxgo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestImmediateScheduler(t *testing.T) {
	is := is.New(t)

	ran := false
	task := ImmediateScheduler.Schedule(func() { ran = true })
	is.True(ran)
	is.True(task.IsUnsubscribed())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	skipped := true
	ImmediateScheduler.ScheduleWithContext(ctx, func() { skipped = false })
	is.True(skipped)
}

func TestQueueScheduler(t *testing.T) {
	t.Run("嵌套任务排队执行", func(t *testing.T) {
		is := is.New(t)
		q := NewQueueScheduler()

		var order []string
		q.Schedule(func() {
			order = append(order, "a:start")
			q.Schedule(func() {
				order = append(order, "b")
				q.Schedule(func() { order = append(order, "d") })
			})
			q.Schedule(func() { order = append(order, "c") })
			order = append(order, "a:end")
		})

		is.Equal(order, []string{"a:start", "a:end", "b", "c", "d"})
	})

	t.Run("排队中的任务可以取消", func(t *testing.T) {
		is := is.New(t)
		q := NewQueueScheduler()

		ran := false
		q.Schedule(func() {
			task := q.Schedule(func() { ran = true })
			task.Unsubscribe()
		})
		is.True(!ran)
	})

	t.Run("任务panic后调度器可以继续使用", func(t *testing.T) {
		is := is.New(t)
		q := NewQueueScheduler()

		func() {
			defer func() { _ = recover() }()
			q.Schedule(func() {
				q.Schedule(func() { t.Error("queued task after panic should be dropped") })
				panic("task failed")
			})
		}()

		ran := false
		q.Schedule(func() { ran = true })
		is.True(ran)
	})
}

func TestDelayedWorkOnDefaultLoop(t *testing.T) {
	is := is.New(t)
	loop := DefaultLoop()

	order := make(chan string, 3)
	loop.Post(func() {
		loop.ScheduleWithDelay(func() { order <- "loop" }, 5*time.Millisecond)
		ImmediateScheduler.ScheduleWithDelay(func() { order <- "immediate" }, 5*time.Millisecond)
		q := NewQueueScheduler()
		q.Schedule(func() {
			q.ScheduleWithDelay(func() { order <- "queue" }, 5*time.Millisecond)
		})
	})

	// 三个延迟任务进入同一个事件循环的计时队列，按调度顺序执行
	var got []string
	for range 3 {
		select {
		case name := <-order:
			got = append(got, name)
		case <-time.After(time.Second):
			t.Fatal("delayed task did not run")
		}
	}
	is.Equal(got, []string{"loop", "immediate", "queue"})
}

func TestVirtualScheduler(t *testing.T) {
	t.Run("按到期时间和调度顺序执行", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		var order []string
		vs.ScheduleWithDelay(func() { order = append(order, "c@20") }, 20*time.Millisecond)
		vs.ScheduleWithDelay(func() { order = append(order, "a@10") }, 10*time.Millisecond)
		vs.ScheduleWithDelay(func() { order = append(order, "b@10") }, 10*time.Millisecond)
		vs.Schedule(func() { order = append(order, "now") })

		vs.AdvanceBy(10 * time.Millisecond)
		is.Equal(order, []string{"now", "a@10", "b@10"})
		is.Equal(vs.Elapsed(), 10*time.Millisecond)
		is.Equal(vs.Pending(), 1)

		vs.Flush()
		is.Equal(order, []string{"now", "a@10", "b@10", "c@20"})
		is.Equal(vs.Elapsed(), 20*time.Millisecond)
	})

	t.Run("任务执行时时钟等于到期时间", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		var at time.Duration
		vs.ScheduleWithDelay(func() { at = vs.Elapsed() }, 15*time.Millisecond)
		vs.AdvanceTo(time.Second)

		is.Equal(at, 15*time.Millisecond)
		is.Equal(vs.Now(), time.Unix(0, 0).UTC().Add(time.Second))
	})

	t.Run("取消的任务不执行", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		ran := false
		task := vs.ScheduleWithDelay(func() { ran = true }, 10*time.Millisecond)
		task.Unsubscribe()
		vs.Flush()

		is.True(!ran)
		is.Equal(vs.Pending(), 0)
	})

	t.Run("任务中调度的到期任务在同一次推进中执行", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		var order []time.Duration
		vs.ScheduleWithDelay(func() {
			order = append(order, vs.Elapsed())
			vs.ScheduleWithDelay(func() { order = append(order, vs.Elapsed()) }, 5*time.Millisecond)
		}, 10*time.Millisecond)

		vs.AdvanceTo(20 * time.Millisecond)
		is.Equal(order, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond})
	})

	t.Run("帧任务在严格晚于当前时间的帧边界执行", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()
		frame := time.Second / 60

		var at []time.Duration
		frames := vs.Frames()
		frames.Schedule(func() { at = append(at, vs.Elapsed()) })

		vs.AdvanceBy(frame - time.Millisecond)
		is.Equal(len(at), 0)

		vs.AdvanceBy(time.Millisecond)
		is.Equal(at, []time.Duration{frame})

		frames.Schedule(func() { at = append(at, vs.Elapsed()) })
		vs.Flush()
		is.Equal(at, []time.Duration{frame, 2 * frame})
	})

	t.Run("上下文结束时跳过任务", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		ctx, cancel := context.WithCancel(context.Background())
		ran := false
		vs.ScheduleWithContext(ctx, func() { ran = true })
		cancel()
		vs.Flush()
		is.True(!ran)
	})
}

func TestScheduleRecurring(t *testing.T) {
	t.Run("周期执行直到取消", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		var at []time.Duration
		recurring := ScheduleRecurring(vs, func() { at = append(at, vs.Elapsed()) }, 5*time.Millisecond, 10*time.Millisecond)

		vs.AdvanceTo(30 * time.Millisecond)
		recurring.Unsubscribe()
		vs.AdvanceTo(time.Second)

		is.Equal(at, []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 25 * time.Millisecond})
		is.Equal(vs.Pending(), 0)
	})

	t.Run("period不大于0时只执行一次", func(t *testing.T) {
		is := is.New(t)
		vs := NewVirtualScheduler()

		calls := 0
		recurring := ScheduleRecurring(vs, func() { calls++ }, time.Millisecond, 0)
		vs.Flush()

		is.Equal(calls, 1)
		is.True(recurring.IsUnsubscribed())
	})
}

func TestLoop(t *testing.T) {
	t.Run("非法帧率", func(t *testing.T) {
		is := is.New(t)
		_, err := NewLoop(WithFrameRate(0))
		is.True(err != nil)
		_, err = NewLoop(WithFrameRate(1000))
		is.True(err != nil)
		_, err = NewLoop(WithLoopLogger(nil))
		is.True(err != nil)
	})

	t.Run("任务在同一个goroutine上按投递顺序执行", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop(WithFrameRate(120))
		is.NoErr(err)
		is.Equal(loop.FrameDuration(), time.Second/120)
		loop.Start()
		defer loop.Stop()

		var mu sync.Mutex
		var order []string
		record := func(name string) func() {
			return func() {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
			}
		}

		done := make(chan struct{})
		loop.ScheduleWithDelay(func() {
			record("delayed")()
			close(done)
		}, 100*time.Millisecond)
		loop.Schedule(record("first"))
		loop.Frames().Schedule(record("frame"))
		loop.Schedule(record("second"))
		cancelled := loop.ScheduleWithDelay(record("cancelled"), 5*time.Millisecond)
		cancelled.Unsubscribe()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("delayed task did not run")
		}

		mu.Lock()
		defer mu.Unlock()
		is.Equal(order, []string{"first", "second", "frame", "delayed"})
	})

	t.Run("到期时间相同的延迟任务按调度顺序执行", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop()
		is.NoErr(err)
		loop.Start()
		defer loop.Stop()

		const n = 100
		var order []int
		done := make(chan struct{})
		loop.Post(func() {
			for i := 0; i < n; i++ {
				loop.ScheduleWithDelay(func() {
					order = append(order, i)
					if i == n-1 {
						close(done)
					}
				}, 5*time.Millisecond)
			}
		})

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("delayed tasks did not run")
		}

		finished := make(chan []int)
		loop.Post(func() { finished <- order })
		got := <-finished
		is.Equal(len(got), n)
		for i, v := range got {
			is.Equal(v, i)
		}
	})

	t.Run("延迟较短的任务先执行", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop()
		is.NoErr(err)
		loop.Start()
		defer loop.Stop()

		result := make(chan []string, 1)
		var order []string
		loop.Post(func() {
			loop.ScheduleWithDelay(func() {
				order = append(order, "late")
				result <- order
			}, 100*time.Millisecond)
			loop.ScheduleWithDelay(func() { order = append(order, "early") }, 10*time.Millisecond)
			loop.Frames().ScheduleWithDelay(func() { order = append(order, "frame") }, 20*time.Millisecond)
		})

		select {
		case got := <-result:
			is.Equal(got, []string{"early", "frame", "late"})
		case <-time.After(2 * time.Second):
			t.Fatal("delayed tasks did not run")
		}
	})

	t.Run("任务panic不会终止循环", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop(WithLoopLogger(discardLogger()))
		is.NoErr(err)
		loop.Start()
		defer loop.Stop()

		loop.Schedule(func() { panic("task failed") })
		done := make(chan struct{})
		loop.Schedule(func() { close(done) })

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("loop stopped after panic")
		}
	})

	t.Run("Stop后Done关闭且投递被忽略", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop()
		is.NoErr(err)
		loop.Start()
		loop.Stop()
		loop.Stop()

		select {
		case <-loop.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not exit")
		}

		ran := false
		loop.Post(func() { ran = true })
		is.True(!ran)
	})

	t.Run("上下文取消时任务被取消", func(t *testing.T) {
		is := is.New(t)
		loop, err := NewLoop()
		is.NoErr(err)

		ctx, cancel := context.WithCancel(context.Background())
		task := loop.ScheduleWithContext(ctx, func() { t.Error("cancelled task ran") })
		cancel()

		deadline := time.Now().Add(2 * time.Second)
		for !task.IsUnsubscribed() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		is.True(task.IsUnsubscribed())

		loop.Start()
		done := make(chan struct{})
		loop.Schedule(func() { close(done) })
		<-done
		loop.Stop()
	})
}

func TestDefaultSchedulers(t *testing.T) {
	is := is.New(t)
	is.True(AsyncScheduler() == Scheduler(DefaultLoop()))

	values, err := Collect(t.Context(), ObserveOn[int](AsyncScheduler())(Just(1, 2, 3)))
	is.NoErr(err)
	is.Equal(values, []int{1, 2, 3})

	values, err = Collect(t.Context(), Take[int](2)(Interval(time.Millisecond)))
	is.NoErr(err)
	is.Equal(values, []int{0, 1})

	values, err = Collect(t.Context(), SubscribeOn[int](FrameScheduler())(Just(4)))
	is.NoErr(err)
	is.Equal(values, []int{4})
}
