// Error handling operators for RxGo
// 错误处理操作符实现，包含CatchError, OnErrorResumeNext, Retry, RetryWhen, Finalize
package rxgo

// ============================================================================
// 错误恢复操作符
// ============================================================================

// CatchError 源出错时订阅selector返回的Observable。
// caught是CatchError的输出本身，返回它即重新订阅源。
func CatchError[T any](selector func(err error, caught Observable[T]) Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		var result Observable[T]
		result = operate(source, func(dst *Subscriber[T]) Observer[T] {
			return Observer[T]{
				Next: dst.Next,
				Error: func(err error) {
					subscribeInner(selector(err, result), dst, dst.AsObserver())
				},
			}
		})
		return result
	}
}

// OnErrorResumeNext 源出错时依次尝试后备源，不论后备源是否也出错；
// 某个源正常完成时输出完成，所有源都出错时同样完成，错误不会传给下游
func OnErrorResumeNext[T any](fallbacks ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			queue := append([]Observable[T]{source}, fallbacks...)
			position := 0
			subscribing := false
			pending := false

			var next func()
			next = func() {
				if subscribing {
					pending = true
					return
				}
				subscribing = true
				defer func() { subscribing = false }()

				for {
					pending = false
					if position >= len(queue) {
						dst.Complete()
						return
					}
					current := queue[position]
					position++
					subscribeInner(current, dst, Observer[T]{
						Next:     dst.Next,
						Error:    func(error) { next() },
						Complete: dst.Complete,
					})
					if !pending || dst.Closed() {
						return
					}
				}
			}
			next()
			return nil
		})
	}
}

// ============================================================================
// 重试操作符
// ============================================================================

// resubscriber 蹦床式重新订阅：在订阅过程中同步出错时不递归，
// 由外层循环继续下一次订阅
type resubscriber[T any] struct {
	source      Observable[T]
	dst         *Subscriber[T]
	onError     func(err error)
	subscribing bool
	pending     bool
}

// subscribe 订阅源；若正在订阅则标记为待处理
func (r *resubscriber[T]) subscribe() {
	if r.subscribing {
		r.pending = true
		return
	}
	r.subscribing = true
	defer func() { r.subscribing = false }()

	for {
		r.pending = false
		if r.dst.Closed() {
			return
		}
		subscribeInner(r.source, r.dst, Observer[T]{
			Next:  r.dst.Next,
			Error: r.onError,
		})
		if !r.pending {
			return
		}
	}
}

// Retry 出错时重新订阅源，最多count次，总共最多count+1次订阅。
// 重试耗尽后发出最后一个错误。count小于0表示无限重试。
func Retry[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			retries := 0
			r := &resubscriber[T]{source: source, dst: dst}
			r.onError = func(err error) {
				if count >= 0 && retries >= count {
					dst.Error(err)
					return
				}
				retries++
				r.subscribe()
			}
			r.subscribe()
			return nil
		})
	}
}

// RetryWhen 源的错误被发送到notifier构造的流中；该流每发出一个值就重新订阅源。
// 该流完成时输出完成，出错时输出以该错误终止。延迟与退避完全由notifier决定。
func RetryWhen[T, N any](notifier func(errors Observable[error]) Observable[N]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			errors := NewPublishSubject[error]()
			r := &resubscriber[T]{source: source, dst: dst, onError: errors.Next}

			subscribeInner(notifier(errors), dst, Observer[N]{
				Next: func(N) {
					r.subscribe()
				},
			})
			r.subscribe()
			return nil
		})
	}
}

// ============================================================================
// 清理操作符
// ============================================================================

// Finalize 在完成、出错或被释放时执行action，恰好一次
func Finalize[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			subscribeInner(source, dst, dst.AsObserver())
			return action
		})
	}
}
