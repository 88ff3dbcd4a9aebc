// Aggregation operators for RxGo
// 聚合操作符实现，包含Scan, Reduce, Count, Min, Max, Sum, First, Last等
package rxgo

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Number 可以求和的数值类型
type Number interface {
	constraints.Integer | constraints.Float
}

// ============================================================================
// 累积操作符
// ============================================================================

// Scan 对每个值应用累加器并发出每一步的累积结果
func Scan[T, A any](accumulator func(acc A, value T, index int) A, seed A) Operator[T, A] {
	return func(source Observable[T]) Observable[A] {
		return operate(source, func(dst *Subscriber[A]) Observer[T] {
			acc := seed
			index := 0
			return Observer[T]{
				Next: func(value T) {
					i := index
					index++
					acc = accumulator(acc, value, i)
					dst.Next(acc)
				},
			}
		})
	}
}

// Reduce 源完成时发出最终累积结果；源为空时发出seed
func Reduce[T, A any](accumulator func(acc A, value T, index int) A, seed A) Operator[T, A] {
	return func(source Observable[T]) Observable[A] {
		return operate(source, func(dst *Subscriber[A]) Observer[T] {
			acc := seed
			index := 0
			return Observer[T]{
				Next: func(value T) {
					i := index
					index++
					acc = accumulator(acc, value, i)
				},
				Complete: func() {
					dst.Next(acc)
					dst.Complete()
				},
			}
		})
	}
}

// BufferCount 每size个值作为一个切片发出，完成时发出剩余的值
func BufferCount[T any](size int) Operator[T, []T] {
	if size < 1 {
		size = 1
	}
	return func(source Observable[T]) Observable[[]T] {
		return operate(source, func(dst *Subscriber[[]T]) Observer[T] {
			buffer := make([]T, 0, size)
			return Observer[T]{
				Next: func(value T) {
					buffer = append(buffer, value)
					if len(buffer) == size {
						full := buffer
						buffer = make([]T, 0, size)
						dst.Next(full)
					}
				},
				Complete: func() {
					if len(buffer) > 0 {
						dst.Next(buffer)
						buffer = nil
					}
					dst.Complete()
				},
			}
		})
	}
}

// ToSlice 源完成时发出所有值组成的切片
func ToSlice[T any]() Operator[T, []T] {
	return Reduce(func(acc []T, value T, _ int) []T {
		return append(acc, value)
	}, []T(nil))
}

// Count 源完成时发出值的数量
func Count[T any]() Operator[T, int] {
	return Reduce(func(acc int, _ T, _ int) int {
		return acc + 1
	}, 0)
}

// ============================================================================
// 数值聚合
// ============================================================================

// Sum 源完成时发出所有值的和
func Sum[N Number]() Operator[N, N] {
	return Reduce(func(acc N, value N, _ int) N {
		return acc + value
	}, N(0))
}

// Min 源完成时发出最小值；源为空时以ErrEmpty终止
func Min[T constraints.Ordered]() Operator[T, T] {
	return extreme(func(candidate, current T) bool { return candidate < current }, "min")
}

// Max 源完成时发出最大值；源为空时以ErrEmpty终止
func Max[T constraints.Ordered]() Operator[T, T] {
	return extreme(func(candidate, current T) bool { return candidate > current }, "max")
}

// extreme Min和Max的公共实现
func extreme[T any](better func(candidate, current T) bool, name string) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			var best T
			has := false
			return Observer[T]{
				Next: func(value T) {
					if !has || better(value, best) {
						best = value
						has = true
					}
				},
				Complete: func() {
					if !has {
						dst.Error(fmt.Errorf("%s: %w", name, ErrEmpty))
						return
					}
					dst.Next(best)
					dst.Complete()
				},
			}
		})
	}
}

// ============================================================================
// 条件与元素操作符
// ============================================================================

// All 所有值都满足predicate时发出true；遇到第一个不满足的值立即发出false
func All[T any](predicate func(value T) bool) Operator[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return operate(source, func(dst *Subscriber[bool]) Observer[T] {
			return Observer[T]{
				Next: func(value T) {
					if !predicate(value) {
						dst.Next(false)
						dst.Complete()
					}
				},
				Complete: func() {
					dst.Next(true)
					dst.Complete()
				},
			}
		})
	}
}

// Any 存在满足predicate的值时立即发出true，否则完成时发出false
func Any[T any](predicate func(value T) bool) Operator[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return operate(source, func(dst *Subscriber[bool]) Observer[T] {
			return Observer[T]{
				Next: func(value T) {
					if predicate(value) {
						dst.Next(true)
						dst.Complete()
					}
				},
				Complete: func() {
					dst.Next(false)
					dst.Complete()
				},
			}
		})
	}
}

// Contains 源中是否包含target
func Contains[T comparable](target T) Operator[T, bool] {
	return Any(func(value T) bool { return value == target })
}

// ElementAt 发出索引为index的值；源提前完成时以ErrEmpty终止
func ElementAt[T any](index int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			position := 0
			return Observer[T]{
				Next: func(value T) {
					if position == index {
						dst.Next(value)
						dst.Complete()
					}
					position++
				},
				Complete: func() {
					dst.Error(fmt.Errorf("element at %d: %w", index, ErrEmpty))
				},
			}
		})
	}
}

// FirstValue 发出第一个值后完成；源为空时以ErrEmpty终止
func FirstValue[T any]() Operator[T, T] {
	return ElementAt[T](0)
}

// LastValue 源完成时发出最后一个值；源为空时以ErrEmpty终止
func LastValue[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return operate(source, func(dst *Subscriber[T]) Observer[T] {
			var last T
			has := false
			return Observer[T]{
				Next: func(value T) {
					last = value
					has = true
				},
				Complete: func() {
					if !has {
						dst.Error(fmt.Errorf("last: %w", ErrEmpty))
						return
					}
					dst.Next(last)
					dst.Complete()
				},
			}
		})
	}
}
