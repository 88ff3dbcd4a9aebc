// Blocking operator tests for RxGo
// 阻塞桥接测试
package rxgo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockingSubscribe(t *testing.T) {
	t.Run("返回流的错误", func(t *testing.T) {
		boom := errors.New("boom")
		var seen error
		err := BlockingSubscribe(t.Context(), Throw[int](boom), Observer[int]{
			Error: func(err error) { seen = err },
		})
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, seen, boom)
	})

	t.Run("超时包装为ErrTimeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		_, err := Collect(ctx, Never[int]())
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("取消时释放订阅", func(t *testing.T) {
		upstream := NewPublishSubject[int]()
		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := BlockingSubscribe[int](ctx, upstream, Observer[int]{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTimeout)
		assert.False(t, upstream.HasObservers())
	})
}

func TestCollectAndForEach(t *testing.T) {
	values, err := Collect(t.Context(), Range(0, 5))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, values)

	total := 0
	err = ForEach(t.Context(), Just(1, 2, 3), func(v int) { total += v })
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestFirstLast(t *testing.T) {
	v, err := First(t.Context(), Just("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = First(t.Context(), Empty[string]())
	assert.ErrorIs(t, err, ErrEmpty)

	v, err = Last(t.Context(), Just("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestToChannel(t *testing.T) {
	t.Run("通知之后关闭", func(t *testing.T) {
		var got []Notification[int]
		for n := range ToChannel(t.Context(), Just(1, 2)) {
			got = append(got, n)
		}

		require.Len(t, got, 3)
		assert.Equal(t, KindNext, got[0].Kind)
		assert.Equal(t, 1, got[0].Value)
		assert.Equal(t, 2, got[1].Value)
		assert.True(t, got[2].IsTerminal())
		assert.Equal(t, KindComplete, got[2].Kind)
	})

	t.Run("错误通知", func(t *testing.T) {
		boom := errors.New("boom")
		var last Notification[int]
		for n := range ToChannel(t.Context(), Throw[int](boom)) {
			last = n
		}
		assert.Equal(t, KindError, last.Kind)
		assert.ErrorIs(t, last.Err, boom)
	})

	t.Run("ctx结束时关闭channel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		ch := ToChannel(ctx, Never[int](), WithBufferSize(1))
		cancel()

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel was not closed")
		}
	})
}
