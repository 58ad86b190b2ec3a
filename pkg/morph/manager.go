package morph

import (
	"reflect"
	"sync"

	"github.com/samber/lo/mutable"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/morph/pkg/log"
	"github.com/lk2023060901/morph/pkg/metrics"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

type storeKey struct {
	key MetadataKey
	t   reflect.Type
}

// registry 是进程内唯一的元数据存储，按类型身份而不是名称索引。
// generation 在每次写入后递增，用于让各处缓存失效。
type registry struct {
	mu         sync.RWMutex
	containers map[storeKey]*Container
	generation atomic.Uint64
}

var (
	store        = &registry{containers: make(map[storeKey]*Container)}
	managers     sync.Map // MetadataKey -> *Manager
	moduleLogger atomic.Pointer[log.MLogger]
)

func typeName(t reflect.Type) string {
	return typeutil.TypeName(t)
}

// Manager 负责一个元数据空间 (backend, projection) 下的容器查找与创建。
type Manager struct {
	log.Binder

	key        MetadataKey
	aggregates sync.Map // aggregateKey -> *aggregateEntry
}

type aggregateKey struct {
	t        reflect.Type
	fallback bool
}

type aggregateEntry struct {
	generation uint64
	props      []*PropertySerializer
	err        error
}

// GetManager 返回 key 对应的管理器，同一个 key 总是返回同一个实例。
func GetManager(key MetadataKey) *Manager {
	if m, ok := managers.Load(key); ok {
		return m.(*Manager)
	}
	fresh := &Manager{key: key}
	if l := moduleLogger.Load(); l != nil {
		fresh.SetLogger(l)
	}
	m, _ := managers.LoadOrStore(key, fresh)
	return m.(*Manager)
}

// SetLogger 为所有元数据空间绑定日志器，之后创建的空间同样生效。
func SetLogger(l *log.MLogger) {
	moduleLogger.Store(l)
	managers.Range(func(_, v any) bool {
		v.(*Manager).SetLogger(l)
		return true
	})
}

// Key 返回管理器的元数据 key。
func (m *Manager) Key() MetadataKey {
	return m.key
}

func (m *Manager) defaultManager() *Manager {
	return GetManager(m.key.WithProjection(DefaultProjection))
}

func (m *Manager) logger() *log.MLogger {
	return m.Logger().With(log.FieldBackend(m.key.Backend), log.FieldProjection(m.key.Projection))
}

// GetOwnMetaFor 返回直接登记在 t 上的容器，不存在时返回 nil。
func (m *Manager) GetOwnMetaFor(t reflect.Type) (*Container, error) {
	t = typeutil.Indirect(t)
	store.mu.RLock()
	defer store.mu.RUnlock()
	return ownLocked(m.key, t)
}

func ownLocked(key MetadataKey, t reflect.Type) (*Container, error) {
	c := store.containers[storeKey{key, t}]
	if c == nil {
		return nil, nil
	}
	if err := checkVersion(c.Name, c.Version); err != nil {
		return nil, err
	}
	return c, nil
}

// SeekInheritedMetaFor 沿基类链向上查找第一个登记了容器的基类，不包含 t 本身。
func (m *Manager) SeekInheritedMetaFor(t reflect.Type) (*Container, error) {
	for _, base := range ancestors(t) {
		c, err := m.GetOwnMetaFor(base)
		if err != nil || c != nil {
			return c, err
		}
	}
	return nil, nil
}

// GetMetaFor 返回 t 的容器。
//
// t 没有自己的容器、但最近的基类是属性包时，返回一个临时合成的空属性包，
// 使只继承了属性的类型同样可以序列化；基类为自定义类型时返回 nil。
func (m *Manager) GetMetaFor(t reflect.Type) (*Container, error) {
	t = typeutil.Indirect(t)
	own, err := m.GetOwnMetaFor(t)
	if err != nil || own != nil {
		return own, err
	}
	inherited, err := m.SeekInheritedMetaFor(t)
	if err != nil {
		return nil, err
	}
	if inherited != nil && inherited.Kind == KindPropertyBag {
		return m.virtual(t), nil
	}
	return nil, nil
}

func (m *Manager) virtual(t reflect.Type) *Container {
	c := newContainer(m, t, KindPropertyBag)
	c.virtual = true
	return c
}

// GetOrCreateCustomTypeMetaFor 返回 t 的自定义类型容器，不存在时创建。
func (m *Manager) GetOrCreateCustomTypeMetaFor(t reflect.Type) (*Container, error) {
	return m.getOrCreate(t, KindCustomType)
}

// GetOrCreatePropertyBagMetaFor 返回 t 的属性包容器，不存在时创建。
func (m *Manager) GetOrCreatePropertyBagMetaFor(t reflect.Type) (*Container, error) {
	return m.getOrCreate(t, KindPropertyBag)
}

func (m *Manager) getOrCreate(t reflect.Type, kind Kind) (*Container, error) {
	t = typeutil.Indirect(t)
	if t == nil {
		return nil, merr.WrapErrConstructorMissing(nil)
	}
	if kind == KindPropertyBag && t.Kind() != reflect.Struct {
		return nil, merr.WrapErrTargetInvalid("%q is not a struct and cannot hold properties", typeName(t))
	}
	if kind == KindCustomType && !typeutil.IsInstantiable(t) && t.Kind() != reflect.Interface {
		return nil, merr.WrapErrConstructorMissing(t)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	c, err := ownLocked(m.key, t)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if c.Kind != kind {
			return nil, merr.WrapErrKindConflict(c.Name, c.Kind.String(), kind.String())
		}
		return c, nil
	}

	name := typeName(t)
	for _, base := range ancestors(t) {
		if bc := store.containers[storeKey{m.key, base}]; bc != nil && bc.Kind != kind {
			return nil, merr.WrapErrInheritanceConflict(name, kind.String(), bc.Name, bc.Kind.String())
		}
	}
	for sk, other := range store.containers {
		if sk.key == m.key && other.Kind != kind && inherits(other.Type, t) {
			return nil, merr.WrapErrInheritanceConflict(other.Name, other.Kind.String(), name, kind.String())
		}
	}

	c = newContainer(m, t, kind)
	store.containers[storeKey{m.key, t}] = c
	store.generation.Inc()
	metrics.ContainerNum.WithLabelValues(m.key.Backend, m.key.Projection, kind.label()).Inc()
	m.logger().Debug("metadata container created", log.FieldType(t), zap.Stringer("kind", kind))
	return c, nil
}

// aggregate 返回 t 最终生效的属性，结果按 registry 的 generation 缓存。
func (m *Manager) aggregate(t reflect.Type, fallback bool) ([]*PropertySerializer, error) {
	key := aggregateKey{t: typeutil.Indirect(t), fallback: fallback}
	generation := store.generation.Load()
	if v, ok := m.aggregates.Load(key); ok {
		if entry := v.(*aggregateEntry); entry.generation == generation {
			return entry.props, entry.err
		}
	}

	store.mu.RLock()
	generation = store.generation.Load()
	props, err := aggregateLocked(m.key, key.t, fallback)
	store.mu.RUnlock()

	m.aggregates.Store(key, &aggregateEntry{generation: generation, props: props, err: err})
	return props, err
}

// aggregateLocked 从最远的基类开始向下合并属性，调用方需持有 store.mu。
//
// 每一层先合并默认投影中的属性（开启回退且当前不是默认投影时），再合并当前投影的属性。
// 同名属性由后合并者替换，并占据被替换者的位置。
func aggregateLocked(key MetadataKey, t reflect.Type, fallback bool) ([]*PropertySerializer, error) {
	levels := ancestors(t)
	mutable.Reverse(levels)
	levels = append(levels, t)

	withDefault := fallback && !key.IsDefault()
	var (
		out   []*PropertySerializer
		index = make(map[string]int)
	)
	merge := func(c *Container) {
		for _, p := range c.props {
			if i, ok := index[p.Name]; ok {
				out[i] = p
				continue
			}
			index[p.Name] = len(out)
			out = append(out, p)
		}
	}
	for _, level := range levels {
		if withDefault {
			dc, err := ownLocked(key.WithProjection(DefaultProjection), level)
			if err != nil {
				return nil, err
			}
			if dc != nil && dc.Kind == KindPropertyBag {
				merge(dc)
			}
		}
		c, err := ownLocked(key, level)
		if err != nil {
			return nil, err
		}
		if c != nil && c.Kind == KindPropertyBag {
			merge(c)
		}
	}

	tags := make(map[string]*PropertySerializer, len(out))
	for _, p := range out {
		if other, ok := tags[p.Tag]; ok {
			return nil, merr.WrapErrTagDuplicated(p.Tag, typeName(t), p.Name, other.Name)
		}
		tags[p.Tag] = p
	}
	return out, nil
}

// resolveContainer 为转换选择 t 的容器，考虑默认投影回退与属性序列化器优先级。
// 选中属性包时总是返回当前投影下的容器（必要时为临时容器），由聚合逻辑补齐回退的属性。
func (m *Manager) resolveContainer(t reflect.Type, opts *Options) (*Container, error) {
	t = typeutil.Indirect(t)
	var dm *Manager
	if opts.FallbackToDefaultProjection && !m.key.IsDefault() {
		dm = m.defaultManager()
	}

	own, err := m.GetOwnMetaFor(t)
	if err != nil {
		return nil, err
	}
	if own != nil {
		if own.Kind == KindCustomType && opts.PrioritizePropSerializers {
			ok, err := m.bagEligible(t, dm, true)
			if err != nil {
				return nil, err
			}
			if ok {
				return m.virtual(t), nil
			}
		}
		return own, nil
	}

	if dm != nil {
		d, err := dm.GetOwnMetaFor(t)
		if err != nil {
			return nil, err
		}
		if d != nil {
			if d.Kind == KindPropertyBag {
				return m.virtual(t), nil
			}
			if opts.PrioritizePropSerializers {
				ok, err := m.bagEligible(t, dm, false)
				if err != nil {
					return nil, err
				}
				if ok {
					return m.virtual(t), nil
				}
			}
			return d, nil
		}
	}

	ok, err := m.bagEligible(t, dm, false)
	if err != nil || !ok {
		return nil, err
	}
	return m.virtual(t), nil
}

// bagEligible 判断 t 能否作为属性包：默认投影中 t 自身是属性包（withDefaultOwn 为 true 时），
// 或最近的登记了容器的基类是属性包。
func (m *Manager) bagEligible(t reflect.Type, dm *Manager, withDefaultOwn bool) (bool, error) {
	if dm != nil && withDefaultOwn {
		d, err := dm.GetOwnMetaFor(t)
		if err != nil {
			return false, err
		}
		if d != nil {
			return d.Kind == KindPropertyBag, nil
		}
	}
	for _, base := range ancestors(t) {
		c, err := m.GetOwnMetaFor(base)
		if err != nil {
			return false, err
		}
		if c == nil && dm != nil {
			if c, err = dm.GetOwnMetaFor(base); err != nil {
				return false, err
			}
		}
		if c != nil {
			return c.Kind == KindPropertyBag, nil
		}
	}
	return false, nil
}
