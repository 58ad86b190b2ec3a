package backend

import (
	"math"
	"reflect"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// NewBSON 返回 bson 后端，序列化结果可以直接交给 BSON 编码器。
//
// 时间与二进制保留原生类型，不超过 32 位的整数为 int32，其余为 int64，
// 无符号整数转为 int64 并检查溢出，time.Duration 为纳秒数。
func NewBSON() *Backend {
	return &Backend{
		Name: BSON,
		Primitives: []Primitive{
			timePrimitive(""),
			durationPrimitive(false),
			textPrimitive(),
			bytesPrimitive(false),
			boolPrimitive(),
			stringPrimitive(),
			intPrimitive(func(rv reflect.Value) any {
				switch rv.Kind() {
				case reflect.Int8, reflect.Int16, reflect.Int32:
					return int32(rv.Int())
				default:
					return rv.Int()
				}
			}),
			uintPrimitive(func(rv reflect.Value) (any, error) {
				switch rv.Kind() {
				case reflect.Uint8, reflect.Uint16:
					return int32(rv.Uint()), nil
				}
				if rv.Uint() > math.MaxInt64 {
					return nil, merr.WrapErrValueTypeMsg("Value %d overflows int64", rv.Uint())
				}
				return int64(rv.Uint()), nil
			}),
			floatPrimitive(),
		},
	}
}
