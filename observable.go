// Observable implementation for RxGo
// 由生产者函数驱动的Observable核心实现与基础操作符
package rxgo

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现：无状态的生产者描述，每次订阅独立运行
type observableImpl[T any] struct {
	produce Producer[T]
}

// Create 从生产者函数创建Observable。
// 生产者在Subscribe中同步运行，panic转换为该订阅的错误。
func Create[T any](producer Producer[T]) Observable[T] {
	return &observableImpl[T]{produce: producer}
}

// New 等同于Create
func New[T any](producer Producer[T]) Observable[T] {
	return Create(producer)
}

// Subscribe 订阅观察者
func (o *observableImpl[T]) Subscribe(observer Observer[T]) *Subscription {
	return subscribeWith[T](o, observer)
}

// subscribe 在sub上运行生产者
func (o *observableImpl[T]) subscribe(sub *Subscriber[T]) {
	if sub.Closed() {
		return
	}

	var teardown Teardown
	if err := try(func() { teardown = o.produce(sub) }); err != nil {
		if sub.Closed() {
			reportUnhandledError(err)
			return
		}
		sub.Error(err)
		return
	}
	sub.AddTeardown(teardown)
}

// subscribeWith 为最终消费者创建Subscriber并订阅
func subscribeWith[T any](source Observable[T], observer Observer[T]) *Subscription {
	sub := NewSubscriber(observer)
	source.subscribe(sub)
	return sub.Subscription
}

// SubscribeFunc 使用回调函数订阅
func SubscribeFunc[T any](source Observable[T], next func(value T), onError func(err error), complete func()) *Subscription {
	return source.Subscribe(NewObserver(next, onError, complete))
}

// operate 构建单源操作符：每次订阅时init为下游构造上游观察者，
// 上游在下游Subscriber之下订阅，下游释放时上游随之释放
func operate[A, B any](source Observable[A], init func(dst *Subscriber[B]) Observer[A]) Observable[B] {
	return Create(func(dst *Subscriber[B]) Teardown {
		subscribeInner(source, dst, init(dst))
		return nil
	})
}

// ============================================================================
// 转换操作符
// ============================================================================

// Map 转换操作符，selector接收值和从0开始的索引，返回错误时流以该错误终止
func Map[A, B any](selector func(value A, index int) (B, error)) Operator[A, B] {
	return func(source Observable[A]) Observable[B] {
		return operate(source, func(dst *Subscriber[B]) Observer[A] {
			index := 0
			return Observer[A]{
				Next: func(value A) {
					result, err := selector(value, index)
					index++
					if err != nil {
						dst.Error(err)
						return
					}
					dst.Next(result)
				},
			}
		})
	}
}

// MapValue 不带索引和错误的转换
func MapValue[A, B any](selector func(value A) B) Operator[A, B] {
	return Map(func(value A, _ int) (B, error) {
		return selector(value), nil
	})
}

// Filter 过滤操作符，predicate接收值和从0开始的索引
func Filter[T any](predicate func(value T, index int) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			index := 0
			return Observer[T]{
				Next: func(value T) {
					i := index
					index++
					if predicate(value, i) {
						dst.Next(value)
					}
				},
			}
		})
	}
}

// ============================================================================
// 门控操作符
// ============================================================================

// Take 取前N个元素后完成，并释放上游
func Take[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count <= 0 {
			return Empty[T]()
		}
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			taken := 0
			return Observer[T]{
				Next: func(value T) {
					taken++
					dst.Next(value)
					if taken >= count {
						dst.Complete()
					}
				},
			}
		})
	}
}

// TakeLast 源完成时发出最后N个元素
func TakeLast[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count <= 0 {
			return IgnoreElements[T]()(source)
		}
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			buffer := make([]T, 0, count)
			return Observer[T]{
				Next: func(value T) {
					if len(buffer) == count {
						buffer = append(buffer[:0], buffer[1:]...)
					}
					buffer = append(buffer, value)
				},
				Complete: func() {
					for _, value := range buffer {
						if dst.Closed() {
							return
						}
						dst.Next(value)
					}
					dst.Complete()
				},
			}
		})
	}
}

// TakeWhile 谓词为真时转发元素，第一次为假时完成
func TakeWhile[T any](predicate func(value T, index int) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			index := 0
			return Observer[T]{
				Next: func(value T) {
					i := index
					index++
					if !predicate(value, i) {
						dst.Complete()
						return
					}
					dst.Next(value)
				},
			}
		})
	}
}

// TakeUntil notifier发出第一个值时完成
func TakeUntil[T, N any](notifier Observable[N]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			subscribeInner(notifier, dst, Observer[N]{
				Next: func(N) {
					dst.Complete()
				},
				Complete: func() {},
			})
			if dst.Closed() {
				return nil
			}
			subscribeInner(source, dst, dst.AsObserver())
			return nil
		})
	}
}

// Skip 跳过前N个元素
func Skip[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			skipped := 0
			return Observer[T]{
				Next: func(value T) {
					if skipped < count {
						skipped++
						return
					}
					dst.Next(value)
				},
			}
		})
	}
}

// SkipLast 跳过最后N个元素，元素延迟N个位置发出
func SkipLast[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count <= 0 {
			return source
		}
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			buffer := make([]T, 0, count+1)
			return Observer[T]{
				Next: func(value T) {
					buffer = append(buffer, value)
					if len(buffer) > count {
						head := buffer[0]
						buffer = append(buffer[:0], buffer[1:]...)
						dst.Next(head)
					}
				},
			}
		})
	}
}

// SkipWhile 谓词为真时跳过元素；谓词第一次为假之后不再求值，所有元素都通过
func SkipWhile[T any](predicate func(value T, index int) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			index := 0
			passing := false
			return Observer[T]{
				Next: func(value T) {
					if !passing {
						i := index
						index++
						if predicate(value, i) {
							return
						}
						passing = true
					}
					dst.Next(value)
				},
			}
		})
	}
}

// SkipUntil 跳过元素直到notifier发出第一个值
func SkipUntil[T, N any](notifier Observable[N]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			open := false
			var gate *Subscriber[N]
			gate = subscribeInner(notifier, dst, Observer[N]{
				Next: func(N) {
					open = true
					if gate != nil {
						gate.Unsubscribe()
					}
				},
				Complete: func() {},
			})
			if open {
				gate.Unsubscribe()
			}
			if dst.Closed() {
				return nil
			}
			subscribeInner(source, dst, Observer[T]{
				Next: func(value T) {
					if open {
						dst.Next(value)
					}
				},
			})
			return nil
		})
	}
}

// ============================================================================
// 去重操作符
// ============================================================================

// Distinct 只发出之前没有出现过的元素
func Distinct[T comparable]() Operator[T, T] {
	return DistinctBy(func(value T) T { return value })
}

// DistinctBy 按key去重
func DistinctBy[T any, K comparable](key func(value T) K) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			seen := make(map[K]struct{})
			return Observer[T]{
				Next: func(value T) {
					k := key(value)
					if _, ok := seen[k]; ok {
						return
					}
					seen[k] = struct{}{}
					dst.Next(value)
				},
			}
		})
	}
}

// DistinctUntilChanged 只在值与上一个发出的值不同时发出
func DistinctUntilChanged[T comparable]() Operator[T, T] {
	return DistinctUntilChangedFunc(func(a, b T) bool { return a == b })
}

// DistinctUntilChangedFunc 使用equal比较相邻元素
func DistinctUntilChangedFunc[T any](equal func(previous, current T) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			var last T
			hasLast := false
			return Observer[T]{
				Next: func(value T) {
					if hasLast && equal(last, value) {
						return
					}
					last = value
					hasLast = true
					dst.Next(value)
				},
			}
		})
	}
}

// DistinctUntilKeyChanged 只在key与上一个发出的元素的key不同时发出
func DistinctUntilKeyChanged[T any, K comparable](key func(value T) K) Operator[T, T] {
	return DistinctUntilChangedFunc(func(previous, current T) bool {
		return key(previous) == key(current)
	})
}

// ============================================================================
// 调度操作符
// ============================================================================

// SubscribeOn 在指定调度器上订阅源
func SubscribeOn[T any](scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(dst *Subscriber[T]) Teardown {
			dst.Schedule(scheduler, 0, func() {
				subscribeInner(source, dst, dst.AsObserver())
			})
			return nil
		})
	}
}

// ObserveOn 在指定调度器上投递所有事件，保持顺序
func ObserveOn[T any](scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			deliver := func(n Notification[T]) {
				dst.Schedule(scheduler, 0, func() {
					dst.Emit(n)
				})
			}
			return Observer[T]{
				Next: func(value T) {
					deliver(NextNotification(value))
				},
				Error: func(err error) {
					deliver(ErrorNotification[T](err))
				},
				Complete: func() {
					deliver(CompleteNotification[T]())
				},
			}
		})
	}
}
