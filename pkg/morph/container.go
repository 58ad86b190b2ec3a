package morph

import (
	"reflect"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// Kind 为元数据容器的类型，一经创建不可更改。
type Kind int

const (
	// KindPropertyBag 表示按属性逐个转换。
	KindPropertyBag Kind = iota + 1
	// KindCustomType 表示整个类型使用一个自定义序列化器。
	KindCustomType
)

func (k Kind) String() string {
	switch k {
	case KindPropertyBag:
		return "property bag"
	case KindCustomType:
		return "custom type"
	default:
		return "unknown"
	}
}

func (k Kind) label() string {
	if k == KindCustomType {
		return "custom"
	}
	return "property_bag"
}

// Container 保存某个类型在某个元数据空间下的元数据。
// 自定义类型容器只有一个 TypeSerializerProvider，属性包容器保存该类型自身声明的属性。
type Container struct {
	Key     MetadataKey
	Type    reflect.Type
	Name    string
	Version string
	Kind    Kind

	manager  *Manager
	virtual  bool
	provider TypeSerializerProvider
	props    []*PropertySerializer
	index    map[string]*PropertySerializer
}

func newContainer(m *Manager, t reflect.Type, kind Kind) *Container {
	return &Container{
		Key:     m.key,
		Type:    t,
		Name:    typeName(t),
		Version: MetadataVersion,
		Kind:    kind,
		manager: m,
		index:   make(map[string]*PropertySerializer),
	}
}

// IsVirtual 表示容器是否为临时合成、未登记到注册表中的属性包。
func (c *Container) IsVirtual() bool {
	return c.virtual
}

// Manager 返回容器所属的元数据管理器。
func (c *Container) Manager() *Manager {
	return c.manager
}

// Properties 返回容器自身声明的属性，按注册顺序。
func (c *Container) Properties() []*PropertySerializer {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return append([]*PropertySerializer(nil), c.props...)
}

// Property 按字段名查找容器自身声明的属性。
func (c *Container) Property(name string) (*PropertySerializer, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	p, ok := c.index[name]
	return p, ok
}

// SetTypeSerializer 为自定义类型容器设置序列化器，只能设置一次。
func (c *Container) SetTypeSerializer(provider TypeSerializerProvider) error {
	if provider == nil {
		return merr.WrapErrInvalidArgument("type serializer provider of %q is nil", c.Name)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if c.Kind != KindCustomType {
		return merr.WrapErrKindConflict(c.Name, c.Kind.String(), KindCustomType.String())
	}
	if c.provider != nil {
		return merr.WrapErrTypeRedefined(c.Name)
	}
	c.provider = provider
	store.generation.Inc()
	return nil
}

// AddProperty 向属性包容器添加一个属性。
func (c *Container) AddProperty(p *PropertySerializer) error {
	if c.virtual {
		return merr.WrapErrTargetInvalid("cannot add property %q to the virtual container of %q", p.Name, c.Name)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if c.Kind != KindPropertyBag {
		return merr.WrapErrKindConflict(c.Name, c.Kind.String(), KindPropertyBag.String())
	}
	if p.Owner != c.Type {
		return merr.WrapErrTargetInvalid("property %q belongs to %q, not %q", p.Name, typeName(p.Owner), c.Name)
	}
	if _, ok := c.index[p.Name]; ok {
		return merr.WrapErrPropertyRedefined(c.Name, p.Name)
	}
	if p.promoted {
		for _, base := range ancestors(c.Type) {
			if bc := store.containers[storeKey{c.Key, base}]; bc != nil {
				if _, ok := bc.index[p.Name]; ok {
					return merr.WrapErrPropertyRedefined(c.Name, p.Name, bc.Name)
				}
			}
		}
	}

	aggregated, err := aggregateLocked(c.Key, c.Type, true)
	if err != nil {
		return err
	}
	for _, other := range aggregated {
		if other.Tag == p.Tag && other.Name != p.Name {
			return merr.WrapErrTagDuplicated(p.Tag, c.Name, p.Name, other.Name)
		}
	}

	c.props = append(c.props, p)
	c.index[p.Name] = p
	store.generation.Inc()
	return nil
}

// TypeSerializer 返回该容器描述的类型序列化器。
func (c *Container) TypeSerializer() TypeSerializer {
	if c.Kind == KindCustomType {
		store.mu.RLock()
		provider := c.provider
		store.mu.RUnlock()
		if provider == nil {
			return TypeSerializer{Type: c.Type}
		}
		ts := provider()
		if ts.Type == nil {
			ts.Type = c.Type
		}
		return ts
	}
	return c.manager.propertyBag(c)
}

// AggregatePropertySerializers 返回该类型最终生效的全部属性：
// 自身属性优先于默认投影中的属性，二者都优先于继承来的属性。
func (c *Container) AggregatePropertySerializers(opts *Options) ([]*PropertySerializer, error) {
	if c.Kind != KindPropertyBag {
		return nil, merr.WrapErrKindConflict(c.Name, c.Kind.String(), KindPropertyBag.String())
	}
	fallback := true
	if opts != nil {
		fallback = opts.FallbackToDefaultProjection
	}
	return c.manager.aggregate(c.Type, fallback)
}
