// Package jsonb 在 morph 的序列化表示与 JSON 字节流之间转换。
package jsonb

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/morph/internal/json"
	"github.com/lk2023060901/morph/pkg/morph"
	"github.com/lk2023060901/morph/pkg/util/merr"
)

// Serializer 抽象了"对象 <-> 字节流"的序列化能力。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象，v 必须为非 nil 指针。
	Unmarshal(data []byte, v any) error
}

// Codec 先按元数据转换，再使用 internal/json 编解码。
type Codec struct {
	opts []morph.Option
}

// 编译期断言：确保 Codec 实现了 Serializer 接口。
var _ Serializer = (*Codec)(nil)

// New 创建 Codec，opts 作用于每一次转换。
func New(opts ...morph.Option) *Codec {
	return &Codec{opts: opts}
}

func (c *Codec) Marshal(v any) ([]byte, error) {
	return Marshal(v, c.opts...)
}

func (c *Codec) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return merr.WrapErrInvalidArgument("jsonb: Unmarshal requires a non-nil pointer, got %T", v)
	}
	out, err := Unmarshal(data, rv.Type().Elem(), c.opts...)
	if err != nil {
		return err
	}
	if out == nil || morph.IsUndefined(out) {
		rv.Elem().Set(reflect.Zero(rv.Type().Elem()))
		return nil
	}
	rv.Elem().Set(reflect.ValueOf(out))
	return nil
}

// Marshal 将 v 转换为序列化表示并编码为 JSON。
func Marshal(v any, opts ...morph.Option) ([]byte, error) {
	tree, err := morph.Deflate(v, opts...)
	if err != nil {
		return nil, err
	}
	return encode(tree)
}

// MarshalAsync 与 Marshal 相同，允许转换过程中出现 Promise。
func MarshalAsync(v any, opts ...morph.Option) ([]byte, error) {
	tree, err := morph.DeflateAsync(v, opts...).Await()
	if err != nil {
		return nil, err
	}
	return encode(tree)
}

// Unmarshal 解码 JSON 并还原为类型 t 的值。数字以 json.Number 解码，int64 不会丢失精度。
func Unmarshal(data []byte, t reflect.Type, opts ...morph.Option) (any, error) {
	tree, err := decode(data)
	if err != nil {
		return nil, err
	}
	return morph.Inflate(t, tree, opts...)
}

// Decode 是 Unmarshal 的泛型版本。
func Decode[T any](data []byte, opts ...morph.Option) (T, error) {
	tree, err := decode(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return morph.InflateAs[T](tree, opts...)
}

func encode(tree any) ([]byte, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, merr.WrapErrConversion(err, "jsonb", "encode")
	}
	return data, nil
}

func decode(data []byte) (any, error) {
	var tree any
	if err := json.UnmarshalUseNumber(data, &tree); err != nil {
		return nil, errors.Wrap(merr.WrapErrValueTypeMsg("Invalid JSON: %v", err), "jsonb")
	}
	return tree, nil
}
