// Side effect operators for RxGo
// 副作用操作符实现，包含Tap, DoOnNext, DoOnError, DoOnComplete, Log等
package rxgo

import (
	"context"
	"log/slog"
)

// Tap 对每个事件执行observer中的回调，然后原样转发
func Tap[T any](observer Observer[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			return Observer[T]{
				Next: func(value T) {
					if observer.Next != nil {
						observer.Next(value)
					}
					dst.Next(value)
				},
				Error: func(err error) {
					if observer.Error != nil {
						observer.Error(err)
					}
					dst.Error(err)
				},
				Complete: func() {
					if observer.Complete != nil {
						observer.Complete()
					}
					dst.Complete()
				},
			}
		})
	}
}

// DoOnNext 每个值到达时执行action
func DoOnNext[T any](action func(value T)) Operator[T, T] {
	return Tap(Observer[T]{Next: action})
}

// DoOnError 出错时执行action
func DoOnError[T any](action func(err error)) Operator[T, T] {
	return Tap(Observer[T]{Error: action})
}

// DoOnComplete 完成时执行action
func DoOnComplete[T any](action func()) Operator[T, T] {
	return Tap(Observer[T]{Complete: action})
}

// DoOnTerminate 完成或出错时执行action
func DoOnTerminate[T any](action func()) Operator[T, T] {
	return Tap(Observer[T]{
		Error:    func(error) { action() },
		Complete: action,
	})
}

// DoOnSubscribe 订阅源之前执行action
func DoOnSubscribe[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			action()
			subscribeInner(source, dst, dst.AsObserver())
			return nil
		})
	}
}

// DoOnUnsubscribe 订阅释放时执行action，包括正常终止后的释放
func DoOnUnsubscribe[T any](action func()) Operator[T, T] {
	return Finalize[T](action)
}

// Log 用结构化日志记录每个事件：值为Debug，完成为Info，错误为Error。
// 记录带有流名称和订阅ID。
func Log[T any](name string, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			config := resolveConfig(options)
			log := config.Logger.With(
				slog.String("stream", name),
				slog.String("subscription", dst.ID().String()),
			)
			log.Debug("rxgo: subscribe")

			subscribeInner(source, dst, Observer[T]{
				Next: func(value T) {
					if log.Enabled(context.Background(), slog.LevelDebug) {
						log.Debug("rxgo: next", slog.Any("value", value))
					}
					dst.Next(value)
				},
				Error: func(err error) {
					log.Error("rxgo: error", slog.Any("error", err))
					dst.Error(err)
				},
				Complete: func() {
					log.Info("rxgo: complete")
					dst.Complete()
				},
			})
			return func() {
				log.Debug("rxgo: unsubscribe")
			}
		})
	}
}
