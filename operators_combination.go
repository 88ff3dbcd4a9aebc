// Combination operators for RxGo
// 组合操作符实现，包含Merge, Concat, Switch, Zip, CombineLatest, WithLatestFrom等
package rxgo

import (
	"golang.org/x/exp/slices"
)

// ============================================================================
// 高阶展平操作符
// ============================================================================

// MergeMap 把每个值映射为内部Observable并合并它们的输出。
// 同时订阅的内部Observable最多concurrent个，其余排队；concurrent不大于0表示不限制。
// 源和所有内部Observable都完成且队列为空时完成。
func MergeMap[A, B any](project func(value A, index int) Observable[B], concurrent int) Operator[A, B] {
	return func(source Observable[A]) Observable[B] {
		return operate(source, func(dst *Subscriber[B]) Observer[A] {
			var (
				buffer     []A
				active     int
				index      int
				sourceDone bool
				draining   bool
			)

			var drain func()
			subscribeNext := func(value A) {
				i := index
				index++
				inner := project(value, i)
				active++
				subscribeInner(inner, dst, Observer[B]{
					Next: dst.Next,
					Complete: func() {
						active--
						drain()
					},
				})
			}

			drain = func() {
				if draining {
					return
				}
				draining = true
				for len(buffer) > 0 && (concurrent <= 0 || active < concurrent) && !dst.Closed() {
					value := buffer[0]
					buffer = slices.Delete(buffer, 0, 1)
					subscribeNext(value)
				}
				draining = false

				if sourceDone && active == 0 && len(buffer) == 0 {
					dst.Complete()
				}
			}

			return Observer[A]{
				Next: func(value A) {
					buffer = append(buffer, value)
					drain()
				},
				Complete: func() {
					sourceDone = true
					drain()
				},
			}
		})
	}
}

// MergeAll 合并高阶Observable，最多同时订阅concurrent个内部Observable
func MergeAll[T any](concurrent int) Operator[Observable[T], T] {
	return MergeMap(func(inner Observable[T], _ int) Observable[T] { return inner }, concurrent)
}

// ConcatMap 把每个值映射为内部Observable并依次订阅
func ConcatMap[A, B any](project func(value A, index int) Observable[B]) Operator[A, B] {
	return MergeMap(project, 1)
}

// ConcatAll 依次订阅每个内部Observable，保持源顺序
func ConcatAll[T any]() Operator[Observable[T], T] {
	return MergeAll[T](1)
}

// SwitchMap 把每个值映射为内部Observable，新值到来时取消上一个内部订阅
func SwitchMap[A, B any](project func(value A, index int) Observable[B]) Operator[A, B] {
	return func(source Observable[A]) Observable[B] {
		return operate(source, func(dst *Subscriber[B]) Observer[A] {
			var (
				current     *Subscriber[B]
				generation  int
				innerActive bool
				index       int
				sourceDone  bool
			)

			return Observer[A]{
				Next: func(value A) {
					if current != nil {
						current.Unsubscribe()
						current = nil
					}
					i := index
					index++
					inner := project(value, i)

					generation++
					mine := generation
					innerActive = true
					child := subscribeInner(inner, dst, Observer[B]{
						Next: dst.Next,
						Complete: func() {
							if mine != generation {
								return
							}
							innerActive = false
							if sourceDone {
								dst.Complete()
							}
						},
					})
					if mine == generation && innerActive {
						current = child
					}
				},
				Complete: func() {
					sourceDone = true
					if !innerActive {
						dst.Complete()
					}
				},
			}
		})
	}
}

// SwitchAll 切换到最新的内部Observable
func SwitchAll[T any]() Operator[Observable[T], T] {
	return SwitchMap(func(inner Observable[T], _ int) Observable[T] { return inner })
}

// ============================================================================
// 静态组合函数
// ============================================================================

// Merge 同时订阅所有源并交错输出
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return MergeWithConcurrency(0, sources...)
}

// MergeWithConcurrency 合并源，最多同时订阅concurrent个
func MergeWithConcurrency[T any](concurrent int, sources ...Observable[T]) Observable[T] {
	return MergeAll[T](concurrent)(FromSlice(sources))
}

// Concat 依次订阅每个源；任一源出错时整个链立即终止
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return ConcatAll[T]()(FromSlice(sources))
}

// ============================================================================
// Zip
// ============================================================================

// toAny 擦除元素类型，供多源组合的公共实现使用
func toAny[T any](source Observable[T]) Observable[any] {
	return MapValue(func(value T) any { return value })(source)
}

// as 把擦除后的值还原为T，nil还原为零值
func as[T any](value any) T {
	result, _ := value.(T)
	return result
}

// zipSources 按索引锁步组合各源的值。
// 一个已完成的源队列为空时整体完成，多余的值被丢弃。
func zipSources[R any](dst *Subscriber[R], sources []Observable[any], combine func(values []any) R) {
	n := len(sources)
	if n == 0 {
		dst.Complete()
		return
	}

	queues := make([][]any, n)
	done := make([]bool, n)

	exhausted := func() bool {
		for i := range queues {
			if done[i] && len(queues[i]) == 0 {
				return true
			}
		}
		return false
	}

	for i, source := range sources {
		if dst.Closed() {
			return
		}
		subscribeInner(source, dst, Observer[any]{
			Next: func(value any) {
				queues[i] = append(queues[i], value)
				for _, q := range queues {
					if len(q) == 0 {
						return
					}
				}
				values := make([]any, n)
				for j := range queues {
					values[j] = queues[j][0]
					queues[j] = slices.Delete(queues[j], 0, 1)
				}
				dst.Next(combine(values))
				if exhausted() {
					dst.Complete()
				}
			},
			Complete: func() {
				done[i] = true
				if len(queues[i]) == 0 {
					dst.Complete()
				}
			},
		})
	}
}

// Zip2 按索引组合两个源，最短的源完成时完成
func Zip2[A, B any](a Observable[A], b Observable[B]) Observable[Tuple2[A, B]] {
	return Create(func(dst *Subscriber[Tuple2[A, B]]) Teardown {
		zipSources(dst, []Observable[any]{toAny(a), toAny(b)}, func(values []any) Tuple2[A, B] {
			return Tuple2[A, B]{V1: as[A](values[0]), V2: as[B](values[1])}
		})
		return nil
	})
}

// ZipWith 与other按索引组合，使用combine生成结果
func ZipWith[A, B, R any](other Observable[B], combine func(a A, b B) R) Operator[A, R] {
	return func(source Observable[A]) Observable[R] {
		return Create(func(dst *Subscriber[R]) Teardown {
			zipSources(dst, []Observable[any]{toAny(source), toAny(other)}, func(values []any) R {
				return combine(as[A](values[0]), as[B](values[1]))
			})
			return nil
		})
	}
}

// ZipAll 按索引组合任意数量的同类型源
func ZipAll[T any](sources ...Observable[T]) Observable[[]T] {
	return Create(func(dst *Subscriber[[]T]) Teardown {
		erased := make([]Observable[any], len(sources))
		for i, source := range sources {
			erased[i] = toAny(source)
		}
		zipSources(dst, erased, collectAs[T])
		return nil
	})
}

// collectAs 还原擦除后的切片
func collectAs[T any](values []any) []T {
	result := make([]T, len(values))
	for i, value := range values {
		result[i] = as[T](value)
	}
	return result
}

// ============================================================================
// CombineLatest
// ============================================================================

// combineLatestSources 所有源都至少发出一个值后，每次更新都发出最新值的组合。
// 某个源没有发出任何值就完成时整体完成。
func combineLatestSources[R any](dst *Subscriber[R], sources []Observable[any], combine func(values []any) R) {
	n := len(sources)
	if n == 0 {
		dst.Complete()
		return
	}

	latest := make([]any, n)
	has := make([]bool, n)
	ready := 0
	completed := 0

	for i, source := range sources {
		if dst.Closed() {
			return
		}
		subscribeInner(source, dst, Observer[any]{
			Next: func(value any) {
				latest[i] = value
				if !has[i] {
					has[i] = true
					ready++
				}
				if ready == n {
					dst.Next(combine(slices.Clone(latest)))
				}
			},
			Complete: func() {
				completed++
				if !has[i] || completed == n {
					dst.Complete()
				}
			},
		})
	}
}

// CombineLatest2 组合两个源的最新值
func CombineLatest2[A, B any](a Observable[A], b Observable[B]) Observable[Tuple2[A, B]] {
	return Create(func(dst *Subscriber[Tuple2[A, B]]) Teardown {
		combineLatestSources(dst, []Observable[any]{toAny(a), toAny(b)}, func(values []any) Tuple2[A, B] {
			return Tuple2[A, B]{V1: as[A](values[0]), V2: as[B](values[1])}
		})
		return nil
	})
}

// CombineLatest3 组合三个源的最新值
func CombineLatest3[A, B, C any](a Observable[A], b Observable[B], c Observable[C]) Observable[Tuple3[A, B, C]] {
	return Create(func(dst *Subscriber[Tuple3[A, B, C]]) Teardown {
		combineLatestSources(dst, []Observable[any]{toAny(a), toAny(b), toAny(c)}, func(values []any) Tuple3[A, B, C] {
			return Tuple3[A, B, C]{V1: as[A](values[0]), V2: as[B](values[1]), V3: as[C](values[2])}
		})
		return nil
	})
}

// CombineLatestAll 组合任意数量同类型源的最新值
func CombineLatestAll[T any](sources ...Observable[T]) Observable[[]T] {
	return Create(func(dst *Subscriber[[]T]) Teardown {
		erased := make([]Observable[any], len(sources))
		for i, source := range sources {
			erased[i] = toAny(source)
		}
		combineLatestSources(dst, erased, collectAs[T])
		return nil
	})
}

// ============================================================================
// WithLatestFrom
// ============================================================================

// withLatestFrom 主源每发出一个值，采样各次要源的最新值。
// 任一次要源还没有值时该次不发出。次要源完成不影响输出。
func withLatestFrom[A, R any](dst *Subscriber[R], source Observable[A], others []Observable[any], combine func(value A, latest []any) R) {
	latest := make([]any, len(others))
	has := make([]bool, len(others))
	ready := 0

	for i, other := range others {
		if dst.Closed() {
			return
		}
		subscribeInner(other, dst, Observer[any]{
			Next: func(value any) {
				latest[i] = value
				if !has[i] {
					has[i] = true
					ready++
				}
			},
			Complete: func() {},
		})
	}
	if dst.Closed() {
		return
	}

	subscribeInner(source, dst, Observer[A]{
		Next: func(value A) {
			if ready < len(others) {
				return
			}
			dst.Next(combine(value, slices.Clone(latest)))
		},
	})
}

// WithLatestFrom 主源的每个值与other的最新值组合
func WithLatestFrom[A, B any](other Observable[B]) Operator[A, Tuple2[A, B]] {
	return func(source Observable[A]) Observable[Tuple2[A, B]] {
		return Create(func(dst *Subscriber[Tuple2[A, B]]) Teardown {
			withLatestFrom(dst, source, []Observable[any]{toAny(other)}, func(value A, latest []any) Tuple2[A, B] {
				return Tuple2[A, B]{V1: value, V2: as[B](latest[0])}
			})
			return nil
		})
	}
}

// WithLatestFromAll 主源的每个值与所有次要源的最新值组合，结果第一个元素是主源的值
func WithLatestFromAll[T any](others ...Observable[T]) Operator[T, []T] {
	return func(source Observable[T]) Observable[[]T] {
		return Create(func(dst *Subscriber[[]T]) Teardown {
			erased := make([]Observable[any], len(others))
			for i, other := range others {
				erased[i] = toAny(other)
			}
			withLatestFrom(dst, source, erased, func(value T, latest []any) []T {
				return append([]T{value}, collectAs[T](latest)...)
			})
			return nil
		})
	}
}
