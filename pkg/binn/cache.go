package binn

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/binn-go/pkg/log"
	"github.com/lk2023060901/binn-go/pkg/metrics"
	"github.com/lk2023060901/binn-go/pkg/util/conc"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

// 带标签的子指标提前取出，热路径上不再查表。
var (
	cacheHits   = metrics.PropertyCacheLookups.WithLabelValues(metrics.HitLabel)
	cacheMisses = metrics.PropertyCacheLookups.WithLabelValues(metrics.MissLabel)
)

// MaxNameLen 是对象属性名的最大 UTF-8 字节数，名称长度用一个字节表示。
const MaxNameLen = 255

// TypeInfo 是一个类型解析后的属性列表，发布后不可变。
type TypeInfo struct {
	Type       reflect.Type
	Properties []*PropertyDescriptor

	serializable []*PropertyDescriptor
	err          error
}

// Serializable 返回可读可写、会被编码的属性子集。
func (ti *TypeInfo) Serializable() []*PropertyDescriptor {
	return ti.serializable
}

// Err 返回该类型在编码时必然触发的错误，例如属性名过长。
func (ti *TypeInfo) Err() error {
	return ti.err
}

// Lookup 按名称查找属性。
func (ti *TypeInfo) Lookup(name string) (*PropertyDescriptor, bool) {
	for _, p := range ti.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func newTypeInfo(t reflect.Type, props []*PropertyDescriptor) *TypeInfo {
	ti := &TypeInfo{Type: t, Properties: props}
	for _, p := range props {
		if !p.Serializable() {
			continue
		}
		if len(p.Name) > MaxNameLen && ti.err == nil {
			ti.err = merr.WrapErrNameTooLong(p.Name, len(p.Name), MaxNameLen)
		}
		ti.serializable = append(ti.serializable, p)
	}
	return ti
}

// CacheStats 为缓存命中统计。
type CacheStats struct {
	Hits   int64
	Misses int64
}

type cacheOption struct {
	accessor Accessor
	logger   *log.MLogger
}

// CacheOption 用于配置 PropertyCache。
type CacheOption func(*cacheOption)

// WithAccessor 指定属性读取策略，默认 CompiledAccessor。
func WithAccessor(a Accessor) CacheOption {
	return func(o *cacheOption) {
		o.accessor = a
	}
}

func WithCacheLogger(l *log.MLogger) CacheOption {
	return func(o *cacheOption) {
		o.logger = l
	}
}

// PropertyCache 缓存每个类型的属性描述。
// 读路径无锁；未命中时加锁解析，每个类型只发布一次。
type PropertyCache struct {
	log.Binder

	accessor Accessor
	entries  sync.Map // reflect.Type -> *TypeInfo
	mu       sync.Mutex
	size     atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

func NewPropertyCache(opts ...CacheOption) *PropertyCache {
	opt := &cacheOption{accessor: CompiledAccessor{}}
	for _, o := range opts {
		o(opt)
	}
	c := &PropertyCache{accessor: opt.accessor}
	if opt.logger != nil {
		c.SetLogger(opt.logger)
	} else {
		c.SetLogger(log.With(log.FieldComponent("property-cache")))
	}
	return c
}

// Resolve 返回 t 的属性信息，t 为指针时取其元素类型。
func (c *PropertyCache) Resolve(t reflect.Type) (*TypeInfo, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, merr.WrapErrUnsupportedType(typeName(t), "not a struct")
	}

	if v, ok := c.entries.Load(t); ok {
		c.hits.Inc()
		cacheHits.Inc()
		return v.(*TypeInfo), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries.Load(t); ok {
		c.hits.Inc()
		cacheHits.Inc()
		return v.(*TypeInfo), nil
	}

	c.misses.Inc()
	cacheMisses.Inc()
	props, err := c.accessor.Resolve(t)
	if err != nil {
		return nil, err
	}
	ti := newTypeInfo(t, props)
	c.entries.Store(t, ti)
	c.size.Inc()
	metrics.PropertyCacheTypes.Inc()

	c.Logger().Debug("resolved type properties",
		log.FieldType(t),
		zap.Int("properties", len(ti.Properties)),
		zap.Int("serializable", len(ti.serializable)),
		zap.NamedError("pending", ti.err))
	return ti, nil
}

// Register 提前解析一组类型。
func (c *PropertyCache) Register(types ...reflect.Type) error {
	for _, t := range types {
		if _, err := c.Resolve(t); err != nil {
			return err
		}
	}
	return nil
}

// Preload 在协程池上并发解析一组类型，ctx 取消后不再提交新任务。
func (c *PropertyCache) Preload(ctx context.Context, workers int, types ...reflect.Type) error {
	if len(types) == 0 {
		return nil
	}
	pool := conc.NewPool[*TypeInfo](workers)
	defer pool.Release()

	futures := make([]*conc.Future[*TypeInfo], 0, len(types))
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			_ = conc.AwaitAll(futures...)
			return err
		}
		futures = append(futures, pool.Submit(func() (*TypeInfo, error) {
			return c.Resolve(t)
		}))
	}
	return conc.AwaitAll(futures...)
}

// Len 返回已解析的类型数。
func (c *PropertyCache) Len() int {
	return int(c.size.Load())
}

func (c *PropertyCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// RegisterTypeIn 在 c 中预先解析 T。
func RegisterTypeIn[T any](c *PropertyCache) error {
	return c.Register(reflect.TypeFor[T]())
}
