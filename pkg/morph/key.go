package morph

import "fmt"

// DefaultProjection 是未指定投影时使用的投影名。
const DefaultProjection = "default"

// MetadataKey 标识一个独立的元数据空间，例如 json/default、json/compact、bson/default。
type MetadataKey struct {
	Backend    string
	Projection string
}

func (k MetadataKey) String() string {
	return fmt.Sprintf("%s/%s", k.Backend, k.Projection)
}

// WithProjection 返回同一后端下另一个投影的 key。
func (k MetadataKey) WithProjection(projection string) MetadataKey {
	return MetadataKey{Backend: k.Backend, Projection: projection}
}

// IsDefault 判断 key 是否属于默认投影。
func (k MetadataKey) IsDefault() bool {
	return k.Projection == DefaultProjection
}

// UndefinedType 是 Undefined 的类型。
type UndefinedType struct{}

func (UndefinedType) String() string {
	return "undefined"
}

// Undefined 表示"没有值"，与表示空值的 nil 相区别。
// 序列化结果中缺失的 key 在反序列化时同样视为 Undefined。
var Undefined = UndefinedType{}

// IsUndefined 判断 v 是否为 Undefined。
func IsUndefined(v any) bool {
	_, ok := v.(UndefinedType)
	return ok
}
