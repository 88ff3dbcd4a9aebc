// Factory function tests for RxGo
// 工厂函数测试
package rxgo

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncFactories(t *testing.T) {
	t.Run("Just", func(t *testing.T) {
		values, err := Collect(t.Context(), Just("a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, values)
	})

	t.Run("Range", func(t *testing.T) {
		values, err := Collect(t.Context(), Range[int64](5, 3))
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 6, 7}, values)

		values, err = Collect(t.Context(), Range[int64](5, 0))
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("FromSeq在释放后停止迭代", func(t *testing.T) {
		pulled := 0
		seq := func(yield func(int) bool) {
			for i := 0; ; i++ {
				pulled++
				if !yield(i) {
					return
				}
			}
		}

		values, err := Collect(t.Context(), Take[int](3)(FromSeq(seq)))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, values)
		assert.Equal(t, 4, pulled)
	})

	t.Run("FromSeq支持标准库迭代器", func(t *testing.T) {
		values, err := Collect(t.Context(), FromSeq(slices.Values([]int{3, 1, 2})))
		require.NoError(t, err)
		assert.Equal(t, []int{3, 1, 2}, values)
	})

	t.Run("Empty和Never", func(t *testing.T) {
		empty := newRecorder[int]()
		Empty[int]().Subscribe(empty.observer())
		assert.True(t, empty.completed())

		never := newRecorder[int]()
		sub := Never[int]().Subscribe(never.observer())
		assert.Empty(t, never.all())
		sub.Unsubscribe()
	})

	t.Run("Throw", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Collect(t.Context(), Throw[int](boom))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Defer每次订阅调用工厂", func(t *testing.T) {
		calls := 0
		source := Defer(func() Observable[int] {
			calls++
			return Just(calls)
		})

		first, err := Collect(t.Context(), source)
		require.NoError(t, err)
		second, err := Collect(t.Context(), source)
		require.NoError(t, err)

		assert.Equal(t, []int{1}, first)
		assert.Equal(t, []int{2}, second)
	})

	t.Run("Defer工厂panic成为错误", func(t *testing.T) {
		_, err := Collect(t.Context(), Defer(func() Observable[int] { panic("factory failed") }))
		var panicErr *PanicError
		assert.ErrorAs(t, err, &panicErr)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("同步生成", func(t *testing.T) {
		values, err := Collect(t.Context(), Generate(
			1,
			func(s int) bool { return s <= 100 },
			func(s int) int { return s * 2 },
			func(s int) int { return s },
		))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 4, 8, 16, 32, 64}, values)
	})

	t.Run("指定调度器时每一步一个任务", func(t *testing.T) {
		vs := NewVirtualScheduler()
		rec := newRecorder[int]()
		Generate(0,
			func(s int) bool { return s < 3 },
			func(s int) int { return s + 1 },
			func(s int) int { return s * s },
			WithScheduler(vs),
		).Subscribe(rec.observer())

		assert.Empty(t, rec.all())
		vs.Flush()
		assert.Equal(t, []int{0, 1, 4}, rec.values())
		assert.True(t, rec.completed())
	})
}

func TestFromSliceOn(t *testing.T) {
	vs := NewVirtualScheduler()
	rec := newRecorder[int]()
	sub := FromSliceOn([]int{1, 2, 3}, vs).Subscribe(rec.observer())

	vs.AdvanceTo(0)
	assert.Equal(t, []int{1, 2, 3}, rec.values())
	assert.True(t, rec.completed())
	assert.True(t, sub.IsUnsubscribed())
}

func TestEvents(t *testing.T) {
	t.Run("FromEvent订阅时注册监听器并在释放时移除", func(t *testing.T) {
		emitter := NewEmitter[string]()
		rec := newRecorder[string]()
		sub := FromEvent[string](emitter).Subscribe(rec.observer())
		assert.Equal(t, 1, emitter.ListenerCount())

		emitter.Emit("a")
		emitter.Emit("b")
		sub.Unsubscribe()
		emitter.Emit("c")

		assert.Equal(t, []string{"a", "b"}, rec.values())
		assert.Equal(t, 0, emitter.ListenerCount())
	})

	t.Run("监听器中移除自身不影响本次分发", func(t *testing.T) {
		emitter := NewEmitter[int]()
		var id ListenerID
		calls := 0
		id = emitter.AddListener(func(int) {
			calls++
			emitter.RemoveListener(id)
		})
		other := 0
		emitter.AddListener(func(int) { other++ })

		emitter.Emit(1)
		emitter.Emit(2)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 2, other)
	})

	t.Run("FromEventPattern把token传给remove", func(t *testing.T) {
		var handlers map[string]func(int)
		handlers = make(map[string]func(int))
		removed := ""

		source := FromEventPattern(
			func(handler func(int)) string {
				handlers["h1"] = handler
				return "h1"
			},
			func(_ func(int), token string) {
				removed = token
				delete(handlers, token)
			},
		)

		rec := newRecorder[int]()
		sub := Take[int](2)(source).Subscribe(rec.observer())
		handlers["h1"](1)
		handlers["h1"](2)

		assert.Equal(t, []int{1, 2}, rec.values())
		assert.True(t, sub.IsUnsubscribed())
		assert.Equal(t, "h1", removed)
		assert.Empty(t, handlers)
	})
}

func TestAsyncFactories(t *testing.T) {
	t.Run("FromChannel", func(t *testing.T) {
		ch := make(chan int)
		go func() {
			defer close(ch)
			for i := 1; i <= 3; i++ {
				ch <- i
			}
		}()

		values, err := Collect(t.Context(), FromChannel(ch))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, values)
	})

	t.Run("FromFuture成功", func(t *testing.T) {
		values, err := Collect(t.Context(), FromFuture(func(context.Context) (string, error) {
			return "done", nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"done"}, values)
	})

	t.Run("FromFuture失败", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Collect(t.Context(), FromFuture(func(context.Context) (int, error) {
			return 0, boom
		}))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("释放时取消FromFuture的上下文", func(t *testing.T) {
		cancelled := make(chan struct{})
		sub := FromFuture(func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(cancelled)
			return 0, ctx.Err()
		}).Subscribe(Observer[int]{Error: func(error) { t.Error("no error expected after unsubscribe") }})

		sub.Unsubscribe()
		select {
		case <-cancelled:
		case <-time.After(2 * time.Second):
			t.Fatal("context was not cancelled")
		}
	})

	t.Run("指定调度器投递", func(t *testing.T) {
		vs := NewVirtualScheduler()
		ch := make(chan int, 2)
		ch <- 1
		ch <- 2
		close(ch)

		rec := newRecorder[int]()
		FromChannel(ch, WithScheduler(vs)).Subscribe(rec.observer())

		require.Eventually(t, func() bool { return vs.Pending() == 3 }, 2*time.Second, time.Millisecond)
		vs.Flush()
		assert.Equal(t, []int{1, 2}, rec.values())
		assert.True(t, rec.completed())
	})
}
