package morph

import (
	"reflect"

	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

// DownFunc 将值转换为序列化表示，可以返回 *Promise。
type DownFunc func(value any, opts *Options) (any, error)

// UpFunc 将序列化表示还原为值，可以返回 *Promise。
type UpFunc func(serialized any, opts *Options) (any, error)

// DiscriminateFunc 根据序列化值选出实际要还原的类型。
type DiscriminateFunc func(serialized any) (reflect.Type, error)

// TypeSerializer 描述一个类型的转换方式，各字段都可以缺省。
// 缺省的字段由 Compile 从其它来源补齐，最终必须同时具备 Down 和 Up。
type TypeSerializer struct {
	Down         DownFunc
	Up           UpFunc
	Type         reflect.Type
	Discriminate DiscriminateFunc
}

// TypeSerializerProvider 延迟构造 TypeSerializer。
type TypeSerializerProvider func() TypeSerializer

// Complete 判断 Down 和 Up 是否都已存在。
func (ts TypeSerializer) Complete() bool {
	return ts.Down != nil && ts.Up != nil
}

func (ts TypeSerializer) typeName() string {
	return typeutil.TypeName(ts.Type)
}
