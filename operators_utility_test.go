// Utility and side effect operator tests for RxGo
// 工具与副作用操作符测试
package rxgo

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEndWith(t *testing.T) {
	values, err := Collect(t.Context(), Pipe(Just(2, 3), StartWith(0, 1), EndWith(4)))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, values)
}

func TestDefaultIfEmpty(t *testing.T) {
	values, err := Collect(t.Context(), DefaultIfEmpty(42)(Empty[int]()))
	require.NoError(t, err)
	assert.Equal(t, []int{42}, values)

	values, err = Collect(t.Context(), DefaultIfEmpty(42)(Just(1)))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, values)
}

func TestSwitchIfEmpty(t *testing.T) {
	values, err := Collect(t.Context(), SwitchIfEmpty(Just(7, 8))(Empty[int]()))
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, values)

	values, err = Collect(t.Context(), SwitchIfEmpty(Just(7, 8))(Just(1)))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, values)
}

func TestIgnoreElements(t *testing.T) {
	rec := newRecorder[int]()
	IgnoreElements[int]()(Just(1, 2, 3)).Subscribe(rec.observer())
	assert.Empty(t, rec.values())
	assert.True(t, rec.completed())
}

func TestMaterialize(t *testing.T) {
	boom := errors.New("boom")
	source := Concat(Just(1), Throw[int](boom))

	notifications, err := Collect(t.Context(), Materialize[int]()(source))
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, NextNotification(1), notifications[0])
	assert.Equal(t, KindError, notifications[1].Kind)

	rec := newRecorder[int]()
	Dematerialize[int]()(Materialize[int]()(source)).Subscribe(rec.observer())
	assert.Equal(t, []int{1}, rec.values())
	assert.ErrorIs(t, rec.err(), boom)
}

func TestSideEffects(t *testing.T) {
	t.Run("Tap按顺序观察事件", func(t *testing.T) {
		var seen []string
		values, err := Collect(t.Context(), Pipe(
			Just(1, 2),
			DoOnSubscribe[int](func() { seen = append(seen, "subscribe") }),
			DoOnNext(func(v int) { seen = append(seen, "next") }),
			DoOnComplete[int](func() { seen = append(seen, "complete") }),
			DoOnTerminate[int](func() { seen = append(seen, "terminate") }),
			DoOnUnsubscribe[int](func() { seen = append(seen, "unsubscribe") }),
		))

		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, values)
		assert.Equal(t, []string{"subscribe", "next", "next", "complete", "terminate", "unsubscribe"}, seen)
	})

	t.Run("DoOnError", func(t *testing.T) {
		boom := errors.New("boom")
		var seen error
		_, err := Collect(t.Context(), DoOnError[int](func(err error) { seen = err })(Throw[int](boom)))
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, seen, boom)
	})

	t.Run("副作用panic成为错误", func(t *testing.T) {
		_, err := Collect(t.Context(), DoOnNext(func(int) { panic("side effect") })(Just(1)))
		var panicErr *PanicError
		assert.ErrorAs(t, err, &panicErr)
	})
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	values, err := Collect(t.Context(), Log[int]("numbers", WithLogger(logger))(Just(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, values)

	out := buf.String()
	assert.Contains(t, out, "stream=numbers")
	assert.Contains(t, out, "rxgo: next")
	assert.Contains(t, out, "value=2")
	assert.Contains(t, out, "rxgo: complete")
	assert.Contains(t, out, "subscription=")
}
