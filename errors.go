// Error types for RxGo
// 错误类型定义
package rxgo

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// ErrNoValue BehaviorSubject没有初始值
	ErrNoValue = errors.New("rxgo: no value")
	// ErrEmpty 序列在产生任何值之前完成
	ErrEmpty = errors.New("rxgo: sequence contains no elements")
	// ErrDisposed 对象已释放
	ErrDisposed = errors.New("rxgo: object disposed")
	// ErrTimeout 阻塞等待超时
	ErrTimeout = errors.New("rxgo: timeout")
)

// PanicError 生产者、操作符或调度任务中恢复的panic
type PanicError struct {
	Value interface{}
	Stack []byte
}

// newPanicError 包装recover得到的值
func newPanicError(value interface{}) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("rxgo: recovered panic: %v", e.Value)
}

// Unwrap 如果panic的值本身是error则返回它
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// UnsubscriptionError 一个或多个拆卸动作panic
type UnsubscriptionError struct {
	Errors []error
}

func (e *UnsubscriptionError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("rxgo: %d error(s) during unsubscription: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap 返回所有底层错误
func (e *UnsubscriptionError) Unwrap() []error {
	return e.Errors
}

// recoverAsError 在defer中调用，将panic转换为error写入dst
func recoverAsError(dst *error) {
	if r := recover(); r != nil {
		*dst = newPanicError(r)
	}
}

// try 执行fn，panic转换为PanicError返回
func try(fn func()) (err error) {
	defer recoverAsError(&err)
	fn()
	return nil
}
