package typeutil

import "reflect"

// Indirect 去掉类型外层的所有指针，返回最终指向的类型。
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// IndirectValue 沿指针链解引用，遇到 nil 指针时返回该 nil 指针本身。
func IndirectValue(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// IsNilable 判断该类型的值是否可以为 nil。
//
// 可以为 nil 的类型：指针、接口、切片、map、chan、func。
func IsNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

// IsNil 判断任意值是否为 nil，包括装在接口里的 nil 指针。
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return IsNilable(rv.Type()) && rv.IsNil()
}

// IsInstantiable 判断类型是否能通过 reflect.New 构造出有意义的实例。
func IsInstantiable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch Indirect(t).Kind() {
	case reflect.Invalid, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Interface:
		return false
	default:
		return true
	}
}

// TypeName 返回用于诊断信息的类型名称，匿名类型退化为完整的类型描述。
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<unknown>"
	}
	t = Indirect(t)
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
