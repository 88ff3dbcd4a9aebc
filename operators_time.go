// Time-based operators for RxGo
// 时间相关操作符实现，包含DebounceTime, ThrottleTime, Delay, DelayWhen, Timeout
package rxgo

import (
	"fmt"
	"time"
)

// ============================================================================
// 时间相关操作符实现
// ============================================================================

// DebounceTime 每个值都重新开始一个duration的计时；计时结束前没有新值时发出最近的值。
// 完成、出错或释放时取消挂起的计时，不补发挂起的值。
// 源事件与计时回调串行执行，源可以在任意goroutine上发出。
func DebounceTime[T any](duration time.Duration, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			config := resolveConfig(options)
			var ser serializer
			var pending *Subscription
			var latest T
			generation := 0

			cancel := func() {
				if pending != nil {
					pending.Unsubscribe()
					pending = nil
				}
			}

			return serializedObserver(&ser, dst, Observer[T]{
				Next: func(value T) {
					cancel()
					latest = value
					generation++
					armed := generation
					pending = dst.Schedule(config.Scheduler, duration, func() {
						ser.run(func() {
							if pending == nil || armed != generation {
								return
							}
							pending = nil
							dst.Next(latest)
						})
					})
				},
				Complete: func() {
					cancel()
					dst.Complete()
				},
			})
		})
	}
}

// ThrottleTime 发出一个值后在duration内忽略后续的值
func ThrottleTime[T any](duration time.Duration, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			config := resolveConfig(options)
			var ser serializer
			throttled := false
			return serializedObserver(&ser, dst, Observer[T]{
				Next: func(value T) {
					if throttled {
						return
					}
					throttled = true
					dst.Next(value)
					dst.Schedule(config.Scheduler, duration, func() {
						ser.run(func() { throttled = false })
					})
				},
			})
		})
	}
}

// Delay 每个值和完成信号都延迟duration发出，保持顺序；错误立即发出
func Delay[T any](duration time.Duration, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			config := resolveConfig(options)
			var ser serializer
			return serializedObserver(&ser, dst, Observer[T]{
				Next: func(value T) {
					dst.Schedule(config.Scheduler, duration, func() {
						ser.run(func() { dst.Next(value) })
					})
				},
				Complete: func() {
					dst.Schedule(config.Scheduler, duration, func() {
						ser.run(dst.Complete)
					})
				},
			})
		})
	}
}

// DelayWhen 每个值等到selector返回的Observable发出第一个值时才发出。
// 该Observable没有发出值就完成时丢弃这个值。源完成后等待所有挂起的值。
func DelayWhen[T, N any](selector func(value T, index int) Observable[N]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			var ser serializer
			active := 0
			index := 0
			sourceDone := false

			checkDone := func() {
				if sourceDone && active == 0 {
					dst.Complete()
				}
			}

			return serializedObserver(&ser, dst, Observer[T]{
				Next: func(value T) {
					i := index
					index++
					active++

					fired := false
					release := func(emit bool) {
						if fired {
							return
						}
						fired = true
						active--
						if emit {
							dst.Next(value)
						}
						checkDone()
					}

					var timer *Subscriber[N]
					timer = subscribeInner(selector(value, i), dst, serializedObserver(&ser, dst, Observer[N]{
						Next: func(N) {
							release(true)
							if timer != nil {
								timer.Unsubscribe()
							}
						},
						Complete: func() {
							release(false)
						},
					}))
					if fired {
						timer.Unsubscribe()
					}
				},
				Complete: func() {
					sourceDone = true
					checkDone()
				},
			})
		})
	}
}

// Timeout 在duration内没有收到下一个值时以ErrTimeout终止
func Timeout[T any](duration time.Duration, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			config := resolveConfig(options)
			var ser serializer
			var pending *Subscription
			generation := 0

			arm := func() {
				if pending != nil {
					pending.Unsubscribe()
				}
				generation++
				armed := generation
				pending = dst.Schedule(config.Scheduler, duration, func() {
					ser.run(func() {
						if armed != generation {
							return
						}
						dst.Error(fmt.Errorf("%w: no value within %s", ErrTimeout, duration))
					})
				})
			}

			ser.run(arm)
			subscribeInner(source, dst, serializedObserver(&ser, dst, Observer[T]{
				Next: func(value T) {
					dst.Next(value)
					if !dst.Closed() {
						arm()
					}
				},
			}))
			return nil
		})
	}
}
