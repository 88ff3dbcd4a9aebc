// Package rxgo provides reactive programming primitives for Go
// 基于泛型的推送式响应流核心：Observable、Subscription、Scheduler、Subject与操作符
package rxgo

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Kind 通知类型
type Kind int

const (
	// KindNext 数据值
	KindNext Kind = iota
	// KindError 错误终止
	KindError
	// KindComplete 正常完成
	KindComplete
)

// String 返回通知类型名称
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Notification 表示流中的一个事件，包含值、错误或完成信号
type Notification[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// NextNotification 创建数据通知
func NextNotification[T any](value T) Notification[T] {
	return Notification[T]{Kind: KindNext, Value: value}
}

// ErrorNotification 创建错误通知
func ErrorNotification[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindError, Err: err}
}

// CompleteNotification 创建完成通知
func CompleteNotification[T any]() Notification[T] {
	return Notification[T]{Kind: KindComplete}
}

// IsTerminal 检查是否为终止通知
func (n Notification[T]) IsTerminal() bool {
	return n.Kind != KindNext
}

// Accept 将通知投递给观察者
func (n Notification[T]) Accept(observer Observer[T]) {
	switch n.Kind {
	case KindNext:
		if observer.Next != nil {
			observer.Next(n.Value)
		}
	case KindError:
		if observer.Error != nil {
			observer.Error(n.Err)
		}
	case KindComplete:
		if observer.Complete != nil {
			observer.Complete()
		}
	}
}

// Tuple2 两个值的组合，用于Zip2、CombineLatest2、WithLatestFrom
type Tuple2[A, B any] struct {
	V1 A
	V2 B
}

// Tuple3 三个值的组合
type Tuple3[A, B, C any] struct {
	V1 A
	V2 B
	V3 C
}

// ============================================================================
// Observable 核心接口
// ============================================================================

// Observable 可观察序列的核心接口。
// 只能通过Create、工厂函数、操作符或Subject获得实现。
type Observable[T any] interface {
	// Subscribe 订阅观察者，返回可用于提前取消的Subscription
	Subscribe(observer Observer[T]) *Subscription

	// subscribe 在已经构造好的Subscriber上运行生产者，
	// 操作符借此在上游生产者运行前建立取消链路
	subscribe(sub *Subscriber[T])
}

// Producer 生产者函数：向Subscriber推送事件，可返回拆卸动作
type Producer[T any] func(sub *Subscriber[T]) Teardown

// Teardown 拆卸动作，在订阅释放时恰好执行一次
type Teardown func()

// Operator 操作符，将一个Observable转换为另一个Observable
type Operator[A, B any] func(source Observable[A]) Observable[B]

// ============================================================================
// 管道组合
// ============================================================================

// Pipe 依次应用同类型操作符
func Pipe[T any](source Observable[T], operators ...Operator[T, T]) Observable[T] {
	result := source
	for _, op := range operators {
		result = op(result)
	}
	return result
}

// Pipe2 依次应用两个操作符，类型从A到C
func Pipe2[A, B, C any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C]) Observable[C] {
	return op2(op1(source))
}

// Pipe3 依次应用三个操作符
func Pipe3[A, B, C, D any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D]) Observable[D] {
	return op3(op2(op1(source)))
}

// Pipe4 依次应用四个操作符
func Pipe4[A, B, C, D, E any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E]) Observable[E] {
	return op4(op3(op2(op1(source))))
}

// Pipe5 依次应用五个操作符
func Pipe5[A, B, C, D, E, F any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E], op5 Operator[E, F]) Observable[F] {
	return op5(op4(op3(op2(op1(source)))))
}

// Pipe6 依次应用六个操作符
func Pipe6[A, B, C, D, E, F, G any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E], op5 Operator[E, F], op6 Operator[F, G]) Observable[G] {
	return op6(op5(op4(op3(op2(op1(source))))))
}

// Compose 将两个操作符组合为一个
func Compose[A, B, C any](op1 Operator[A, B], op2 Operator[B, C]) Operator[A, C] {
	return func(source Observable[A]) Observable[C] {
		return op2(op1(source))
	}
}

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制任务执行时机和方式
type Scheduler interface {
	// Now 调度器的当前时间
	Now() time.Time
	// Schedule 调度一个任务
	Schedule(action func()) *Subscription
	// ScheduleWithDelay 延迟调度一个任务，不早于delay执行且至多执行一次
	ScheduleWithDelay(action func(), delay time.Duration) *Subscription
	// ScheduleWithContext 带上下文的调度，ctx结束时取消任务
	ScheduleWithContext(ctx context.Context, action func()) *Subscription
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	// Scheduler 时间相关操作符和异步数据源使用的调度器
	Scheduler Scheduler
	// Logger 结构化日志
	Logger *slog.Logger
	// UnhandledError 没有错误处理器的订阅收到错误时调用
	UnhandledError func(err error)
	// BufferSize ToChannel等桥接操作使用的缓冲大小
	BufferSize int
}

// optionFunc 函数式选项
type optionFunc func(config *Config)

// Apply 应用选项
func (f optionFunc) Apply(config *Config) {
	f(config)
}

// WithScheduler 创建使用指定调度器的选项
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(config *Config) {
		config.Scheduler = scheduler
	})
}

// WithLogger 设置日志记录器
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(config *Config) {
		config.Logger = logger
	})
}

// WithUnhandledErrorHandler 设置未处理错误的回调
func WithUnhandledErrorHandler(handler func(err error)) Option {
	return optionFunc(func(config *Config) {
		config.UnhandledError = handler
	})
}

// WithBufferSize 设置缓冲大小
func WithBufferSize(size int) Option {
	return optionFunc(func(config *Config) {
		config.BufferSize = size
	})
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Logger:     slog.Default(),
		BufferSize: 16,
	}
}

var globalConfig atomic.Pointer[Config]

func init() {
	globalConfig.Store(DefaultConfig())
}

// Configure 修改包级默认配置
func Configure(options ...Option) {
	for {
		current := globalConfig.Load()
		next := *current
		for _, opt := range options {
			opt.Apply(&next)
		}
		if globalConfig.CompareAndSwap(current, &next) {
			return
		}
	}
}

// resolveConfig 以包级配置为基础应用调用方选项
func resolveConfig(options []Option) *Config {
	config := *globalConfig.Load()
	for _, opt := range options {
		opt.Apply(&config)
	}
	if config.Scheduler == nil {
		config.Scheduler = AsyncScheduler()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BufferSize < 0 {
		config.BufferSize = 0
	}
	return &config
}

// logger 当前包级日志记录器
func logger() *slog.Logger {
	if l := globalConfig.Load().Logger; l != nil {
		return l
	}
	return slog.Default()
}

// reportUnhandledError 上报没有观察者处理的错误
func reportUnhandledError(err error) {
	if handler := globalConfig.Load().UnhandledError; handler != nil {
		handler(err)
		return
	}
	logger().Error("rxgo: unhandled error", slog.Any("error", err))
}
