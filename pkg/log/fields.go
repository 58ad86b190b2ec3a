package log

import (
	"reflect"

	"go.uber.org/zap"
)

const (
	FieldNameModule     = "module"
	FieldNameComponent  = "component"
	FieldNameBackend    = "backend"
	FieldNameProjection = "projection"
	FieldNameType       = "type"
	FieldNameProperty   = "property"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldBackend 返回一个包含序列化后端名的 zap 字段。
func FieldBackend(backend string) zap.Field {
	return zap.String(FieldNameBackend, backend)
}

// FieldProjection 返回一个包含投影名的 zap 字段。
func FieldProjection(projection string) zap.Field {
	return zap.String(FieldNameProjection, projection)
}

// FieldType 返回一个包含 Go 类型描述的 zap 字段，nil 类型记为 "<nil>"。
func FieldType(t reflect.Type) zap.Field {
	if t == nil {
		return zap.String(FieldNameType, "<nil>")
	}
	return zap.Stringer(FieldNameType, t)
}

// FieldProperty 返回一个包含属性名的 zap 字段。
func FieldProperty(name string) zap.Field {
	return zap.String(FieldNameProperty, name)
}
