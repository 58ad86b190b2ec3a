package morph

import (
	"reflect"

	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// baseField 返回构成 t 的"基类"的嵌入字段：第一个导出的、类型为结构体
// 或结构体指针、且不带 morph 标签的匿名字段。
func baseField(t reflect.Type) (reflect.StructField, bool) {
	t = typeutil.Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || !f.IsExported() {
			continue
		}
		if ft := typeutil.Indirect(f.Type); ft.Kind() != reflect.Struct {
			continue
		}
		if len(morphTags(f.Tag)) > 0 {
			continue
		}
		return f, true
	}
	return reflect.StructField{}, false
}

// baseOf 返回 t 的基类，不存在时返回 nil。
func baseOf(t reflect.Type) reflect.Type {
	f, ok := baseField(t)
	if !ok {
		return nil
	}
	return typeutil.Indirect(f.Type)
}

// ancestors 返回 t 的所有基类，由近及远，不包含 t 本身。
func ancestors(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	seen := typeutil.NewSet(typeutil.Indirect(t))
	for base := baseOf(t); base != nil && !seen.Contain(base); base = baseOf(base) {
		seen.Insert(base)
		out = append(out, base)
	}
	return out
}

// inherits 判断 ancestor 是否出现在 t 的基类链上。
func inherits(t, ancestor reflect.Type) bool {
	for _, base := range ancestors(t) {
		if base == ancestor {
			return true
		}
	}
	return false
}

// locate 沿基类链在 v 中找到类型为 owner 的部分。
// alloc 为 true 时为 nil 的嵌入指针分配空间，否则遇到 nil 返回 false。
func locate(v reflect.Value, owner reflect.Type, alloc bool) (reflect.Value, bool) {
	v = typeutil.IndirectValue(v)
	for depth := 0; v.IsValid() && v.Kind() == reflect.Struct; depth++ {
		if v.Type() == owner {
			return v, true
		}
		f, ok := baseField(v.Type())
		if !ok || depth > maxChainLength {
			return reflect.Value{}, false
		}
		fv := v.Field(f.Index[0])
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				if !alloc || !fv.CanSet() {
					return reflect.Value{}, false
				}
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}
		v = fv
	}
	return reflect.Value{}, false
}

const maxChainLength = 64
