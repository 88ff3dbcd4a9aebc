// Factory functions for creating Observables
// 提供各种创建Observable的工厂函数
package rxgo

import (
	"context"
	"iter"
	"time"

	"golang.org/x/exp/constraints"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// Just 创建发出指定值的Observable
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 从切片同步发出所有元素后完成
func FromSlice[T any](values []T) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		for _, value := range values {
			if sub.Closed() {
				return nil
			}
			sub.Next(value)
		}
		sub.Complete()
		return nil
	})
}

// FromSliceOn 在调度器上逐个发出切片元素，每个元素一个调度任务
func FromSliceOn[T any](values []T, scheduler Scheduler) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		index := 0
		var step func()
		step = func() {
			if index >= len(values) {
				sub.Complete()
				return
			}
			value := values[index]
			index++
			sub.Next(value)
			sub.Schedule(scheduler, 0, step)
		}
		sub.Schedule(scheduler, 0, step)
		return nil
	})
}

// FromSeq 从迭代器同步发出元素，订阅释放后停止迭代
func FromSeq[T any](seq iter.Seq[T]) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		for value := range seq {
			if sub.Closed() {
				return nil
			}
			sub.Next(value)
		}
		sub.Complete()
		return nil
	})
}

// Empty 创建立即完成的Observable
func Empty[T any]() Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		sub.Complete()
		return nil
	})
}

// Never 创建永不发出任何事件的Observable
func Never[T any]() Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		return nil
	})
}

// Throw 创建立即以err终止的Observable
func Throw[T any](err error) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		sub.Error(err)
		return nil
	})
}

// Defer 每次订阅时调用factory创建新的Observable
func Defer[T any](factory func() Observable[T]) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		subscribeInner(factory(), sub, sub.AsObserver())
		return nil
	})
}

// Range 发出从start开始的count个连续整数
func Range[N constraints.Integer](start N, count int) Observable[N] {
	return Create(func(sub *Subscriber[N]) Teardown {
		value := start
		for i := 0; i < count; i++ {
			if sub.Closed() {
				return nil
			}
			sub.Next(value)
			value++
		}
		sub.Complete()
		return nil
	})
}

// Generate 自定义生成器：从initial开始，condition为真时发出result(state)，然后iterate。
// 传入WithScheduler时每一步作为一个调度任务执行，否则同步执行。
func Generate[S, T any](initial S, condition func(state S) bool, iterate func(state S) S, result func(state S) T, options ...Option) Observable[T] {
	scheduler, scheduled := explicitScheduler(options)
	return Create(func(sub *Subscriber[T]) Teardown {
		state := initial
		if !scheduled {
			for ; condition(state); state = iterate(state) {
				if sub.Closed() {
					return nil
				}
				sub.Next(result(state))
			}
			sub.Complete()
			return nil
		}

		var step func()
		step = func() {
			if !condition(state) {
				sub.Complete()
				return
			}
			sub.Next(result(state))
			state = iterate(state)
			sub.Schedule(scheduler, 0, step)
		}
		sub.Schedule(scheduler, 0, step)
		return nil
	})
}

// explicitScheduler 返回调用方通过选项显式指定的调度器
func explicitScheduler(options []Option) (Scheduler, bool) {
	var config Config
	for _, opt := range options {
		opt.Apply(&config)
	}
	return config.Scheduler, config.Scheduler != nil
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// Interval 每隔period发出递增整数，从0开始
func Interval(period time.Duration, options ...Option) Observable[int] {
	return TimerPeriodic(period, period, options...)
}

// Timer 在delay之后发出0并完成
func Timer(delay time.Duration, options ...Option) Observable[int] {
	return Create(func(sub *Subscriber[int]) Teardown {
		config := resolveConfig(options)
		sub.Schedule(config.Scheduler, delay, func() {
			sub.Next(0)
			sub.Complete()
		})
		return nil
	})
}

// TimerPeriodic 在delay之后发出0，此后每隔period发出下一个整数
func TimerPeriodic(delay, period time.Duration, options ...Option) Observable[int] {
	return Create(func(sub *Subscriber[int]) Teardown {
		config := resolveConfig(options)
		n := 0
		var tick func()
		tick = func() {
			value := n
			n++
			sub.Next(value)
			sub.Schedule(config.Scheduler, period, tick)
		}
		sub.Schedule(config.Scheduler, delay, tick)
		return nil
	})
}

// ============================================================================
// 异步数据源
// ============================================================================

// FromFuture 每次订阅在新goroutine中运行fn，结果通过调度器投递：
// 成功时发出结果并完成，失败时发出错误。订阅释放时取消ctx。
func FromFuture[T any](fn func(ctx context.Context) (T, error), options ...Option) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		config := resolveConfig(options)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			value, err := fn(ctx)
			if ctx.Err() != nil {
				return
			}
			sub.Schedule(config.Scheduler, 0, func() {
				if err != nil {
					sub.Error(err)
					return
				}
				sub.Next(value)
				sub.Complete()
			})
		}()
		return Teardown(cancel)
	})
}

// FromChannel 读取channel直到关闭，每个值通过调度器投递
func FromChannel[T any](ch <-chan T, options ...Option) Observable[T] {
	return Create(func(sub *Subscriber[T]) Teardown {
		config := resolveConfig(options)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case value, ok := <-ch:
					if !ok {
						sub.Schedule(config.Scheduler, 0, sub.Complete)
						return
					}
					sub.Schedule(config.Scheduler, 0, func() {
						sub.Next(value)
					})
				}
			}
		}()
		return Teardown(cancel)
	})
}
