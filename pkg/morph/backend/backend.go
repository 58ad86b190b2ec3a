package backend

import (
	"reflect"
	"sync"

	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

const (
	JSON = "json"
	BSON = "bson"
)

// Primitive 描述后端对一类基础值的校验与收窄规则。
//
// MatchValue/MatchType 用于在解析阶段判断该规则是否适用，
// Down 将 Go 值转换为后端的序列化表示，Up 将序列化值还原为类型 t 的值。
// 指针和以基础类型为底层类型的命名类型视为同一类值。
type Primitive struct {
	Name       string
	MatchValue func(v any) bool
	MatchType  func(t reflect.Type) bool
	Down       func(v any) (any, error)
	Up         func(s any, t reflect.Type) (any, error)
}

// Backend 是一组有序的 Primitive，先注册的规则优先匹配。
type Backend struct {
	Name       string
	Primitives []Primitive
}

// PickForValue 返回第一个匹配 v 的 Primitive。
func (b *Backend) PickForValue(v any) (*Primitive, bool) {
	for i := range b.Primitives {
		p := &b.Primitives[i]
		if p.MatchValue != nil && p.MatchValue(v) {
			return p, true
		}
	}
	return nil, false
}

// PickForType 返回第一个匹配类型 t 的 Primitive。
func (b *Backend) PickForType(t reflect.Type) (*Primitive, bool) {
	for i := range b.Primitives {
		p := &b.Primitives[i]
		if p.MatchType != nil && p.MatchType(t) {
			return p, true
		}
	}
	return nil, false
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]*Backend{}
)

// Register 注册一个后端，同名后端会被替换。
func Register(b *Backend) error {
	if b == nil || b.Name == "" {
		return merr.WrapErrInvalidArgument("backend must have a name")
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[b.Name] = b
	return nil
}

// Get 按名称查找后端。
func Get(name string) (*Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, merr.WrapErrBackendNotFound(name)
	}
	return b, nil
}

// Names 返回已注册的后端名称。
func Names() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

func init() {
	_ = Register(NewJSON())
	_ = Register(NewBSON())
}

// kindMatcher 生成按底层 Kind 匹配的 MatchType/MatchValue。
func kindMatcher(kinds ...reflect.Kind) (func(reflect.Type) bool, func(any) bool) {
	matchType := func(t reflect.Type) bool {
		t = typeutil.Indirect(t)
		if t == nil {
			return false
		}
		for _, k := range kinds {
			if t.Kind() == k {
				return true
			}
		}
		return false
	}
	matchValue := func(v any) bool {
		return v != nil && matchType(reflect.TypeOf(v))
	}
	return matchType, matchValue
}

func exactMatcher(target reflect.Type) (func(reflect.Type) bool, func(any) bool) {
	matchType := func(t reflect.Type) bool {
		return typeutil.Indirect(t) == target
	}
	matchValue := func(v any) bool {
		return v != nil && matchType(reflect.TypeOf(v))
	}
	return matchType, matchValue
}

// deref 去掉外层指针，nil 指针返回 false。
func deref(v any) (reflect.Value, bool) {
	rv := typeutil.IndirectValue(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() == reflect.Ptr {
		return rv, false
	}
	return rv, true
}
