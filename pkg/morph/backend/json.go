package backend

import (
	"reflect"
	"time"
)

// NewJSON 返回 json 后端。
//
// 整数统一为 int64/uint64，浮点数为 float64，时间为 RFC 3339 字符串，
// 二进制为 base64 字符串，实现了 TextMarshaler 的类型以文本表示。
// Up 方向同时接受 json.Number。
func NewJSON() *Backend {
	return &Backend{
		Name: JSON,
		Primitives: []Primitive{
			timePrimitive(time.RFC3339Nano),
			durationPrimitive(true),
			textPrimitive(),
			bytesPrimitive(true),
			boolPrimitive(),
			stringPrimitive(),
			intPrimitive(func(rv reflect.Value) any { return rv.Int() }),
			uintPrimitive(func(rv reflect.Value) (any, error) { return rv.Uint(), nil }),
			floatPrimitive(),
		},
	}
}
