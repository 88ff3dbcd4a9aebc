// Advanced operators for RxGo
// 高级操作符实现：资源绑定与竞争
package rxgo

// ============================================================================
// 资源管理
// ============================================================================

// Using 每次订阅时创建资源并用它构造Observable。
// 流终止或订阅释放时调用dispose，且只调用一次。
func Using[R, T any](resourceFactory func() (R, error), observableFactory func(resource R) Observable[T], dispose func(resource R)) Observable[T] {
	return Create(func(dst *Subscriber[T]) Teardown {
		resource, err := resourceFactory()
		if err != nil {
			dst.Error(err)
			return nil
		}
		if dispose != nil {
			// 子订阅先于资源释放
			defer dst.AddTeardown(func() { dispose(resource) })
		}
		subscribeInner(observableFactory(resource), dst, dst.AsObserver())
		return nil
	})
}

// ============================================================================
// 竞争操作符
// ============================================================================

// Race 镜像最先发出任何事件的源，其余源立即释放。
// 同步源在订阅期间胜出时，后面的源不再订阅。
func Race[T any](sources ...Observable[T]) Observable[T] {
	switch len(sources) {
	case 0:
		return Empty[T]()
	case 1:
		return sources[0]
	}

	return Create(func(dst *Subscriber[T]) Teardown {
		winner := -1
		children := make([]*Subscriber[T], 0, len(sources))

		win := func(index int) bool {
			if winner >= 0 {
				return winner == index
			}
			winner = index
			for i, child := range children {
				if i != index {
					child.Unsubscribe()
				}
			}
			return true
		}

		for i, source := range sources {
			if winner >= 0 || dst.Closed() {
				break
			}
			child := newOperatorSubscriber(dst, Observer[T]{
				Next: func(value T) {
					if win(i) {
						dst.Next(value)
					}
				},
				Error: func(err error) {
					if win(i) {
						dst.Error(err)
					}
				},
				Complete: func() {
					if win(i) {
						dst.Complete()
					}
				},
			})
			children = append(children, child)
			source.subscribe(child)
		}
		return nil
	})
}

// Amb Race的别名
func Amb[T any](sources ...Observable[T]) Observable[T] {
	return Race(sources...)
}
