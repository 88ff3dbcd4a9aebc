// Observer registry for Subjects
// 观察者注册表：槽位数组、稳定句柄、墓碑删除与压缩
package rxgo

import (
	"sync"

	"golang.org/x/exp/slices"
)

// registryEntry 注册表中的一个观察者。
// replaying为真时实时事件进入pending，保证重放缓冲先于实时值到达。
type registryEntry[T any] struct {
	sub   *Subscriber[T]
	index int

	mu        sync.Mutex
	replaying bool
	pending   []Notification[T]
}

// deliver 投递通知；重放期间排队
func (e *registryEntry[T]) deliver(n Notification[T]) {
	e.mu.Lock()
	if e.replaying {
		e.pending = append(e.pending, n)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.sub.Emit(n)
}

// replay 依次发出重放值，然后排空重放期间积压的实时通知
func (e *registryEntry[T]) replay(values []T) {
	for _, value := range values {
		e.sub.Next(value)
	}
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.replaying = false
			e.mu.Unlock()
			return
		}
		pending := e.pending
		e.pending = nil
		e.mu.Unlock()

		for _, n := range pending {
			e.sub.Emit(n)
		}
	}
}

// registry 观察者注册表，由所属Subject的锁保护。
// 删除只把槽位置空，墓碑超过一半时压缩。
type registry[T any] struct {
	slots []*registryEntry[T]
	live  int
}

// add 按插入顺序注册观察者
func (r *registry[T]) add(sub *Subscriber[T], replaying bool) *registryEntry[T] {
	entry := &registryEntry[T]{sub: sub, index: len(r.slots), replaying: replaying}
	r.slots = append(r.slots, entry)
	r.live++
	return entry
}

// remove O(1)移除；重复移除被忽略
func (r *registry[T]) remove(entry *registryEntry[T]) {
	if entry.index < 0 || entry.index >= len(r.slots) || r.slots[entry.index] != entry {
		return
	}
	r.slots[entry.index] = nil
	entry.index = -1
	r.live--

	if tombstones := len(r.slots) - r.live; tombstones > 8 && tombstones > r.live {
		r.compact()
	}
}

// compact 删除墓碑并更新句柄位置
func (r *registry[T]) compact() {
	compacted := make([]*registryEntry[T], 0, r.live)
	for _, entry := range r.slots {
		if entry == nil {
			continue
		}
		entry.index = len(compacted)
		compacted = append(compacted, entry)
	}
	r.slots = slices.Clip(compacted)
}

// snapshot 当前注册表的副本，遍历时跳过nil
func (r *registry[T]) snapshot() []*registryEntry[T] {
	return slices.Clone(r.slots)
}

// clear 清空注册表并返回原有条目
func (r *registry[T]) clear() []*registryEntry[T] {
	slots := r.slots
	for _, entry := range slots {
		if entry != nil {
			entry.index = -1
		}
	}
	r.slots = nil
	r.live = 0
	return slots
}

// len 活跃观察者数量
func (r *registry[T]) len() int {
	return r.live
}
