// Utility operators for RxGo
// 工具操作符实现，包含StartWith, EndWith, DefaultIfEmpty, IgnoreElements, Materialize等
package rxgo

// ============================================================================
// 结构操作符
// ============================================================================

// StartWith 先发出values，再发出源的值
func StartWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(FromSlice(values), source)
	}
}

// EndWith 源完成后发出values
func EndWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(source, FromSlice(values))
	}
}

// DefaultIfEmpty 源没有发出任何值就完成时发出defaultValue
func DefaultIfEmpty[T any](defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			empty := true
			return Observer[T]{
				Next: func(value T) {
					empty = false
					dst.Next(value)
				},
				Complete: func() {
					if empty {
						dst.Next(defaultValue)
					}
					dst.Complete()
				},
			}
		})
	}
}

// SwitchIfEmpty 源没有发出任何值就完成时订阅other
func SwitchIfEmpty[T any](other Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			empty := true
			return Observer[T]{
				Next: func(value T) {
					empty = false
					dst.Next(value)
				},
				Complete: func() {
					if !empty {
						dst.Complete()
						return
					}
					subscribeInner(other, dst, dst.AsObserver())
				},
			}
		})
	}
}

// IgnoreElements 丢弃所有值，只转发终止事件
func IgnoreElements[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			return Observer[T]{Next: func(T) {}}
		})
	}
}

// ============================================================================
// 通知操作符
// ============================================================================

// Materialize 把每个事件包装为Notification作为值发出，然后完成
func Materialize[T any]() Operator[T, Notification[T]] {
	return func(source Observable[T]) Observable[Notification[T]] {
		return operate(source, func(dst *Subscriber[Notification[T]]) Observer[T] {
			return Observer[T]{
				Next: func(value T) {
					dst.Next(NextNotification(value))
				},
				Error: func(err error) {
					dst.Next(ErrorNotification[T](err))
					dst.Complete()
				},
				Complete: func() {
					dst.Next(CompleteNotification[T]())
					dst.Complete()
				},
			}
		})
	}
}

// Dematerialize 把Notification值还原为事件
func Dematerialize[T any]() Operator[Notification[T], T] {
	return func(source Observable[Notification[T]]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[Notification[T]] {
			return Observer[Notification[T]]{
				Next: dst.Emit,
			}
		})
	}
}
