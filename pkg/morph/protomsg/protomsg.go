// Package protomsg 把 protobuf 消息注册为 morph 的自定义类型，
// 序列化表示为消息的 protojson 形式。
package protomsg

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/lk2023060901/morph/internal/json"
	"github.com/lk2023060901/morph/pkg/morph"
	"github.com/lk2023060901/morph/pkg/util/merr"
)

var (
	marshalOptions   = protojson.MarshalOptions{UseProtoNames: true}
	unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// Register 将消息类型 T 注册为自定义类型，T 必须是消息的指针类型，例如 *timestamppb.Timestamp。
func Register[T proto.Message](opts ...morph.RegisterOption) error {
	return morph.RegisterType[T](Serializer[T](), opts...)
}

// MustRegister 与 Register 相同，出错时 panic。
func MustRegister[T proto.Message](opts ...morph.RegisterOption) {
	if err := Register[T](opts...); err != nil {
		panic(err)
	}
}

// Serializer 返回消息类型 T 的序列化器。
func Serializer[T proto.Message]() morph.TypeSerializer {
	t := reflect.TypeFor[T]()
	return morph.TypeSerializer{
		Type: t,
		Down: func(v any, _ *morph.Options) (any, error) {
			msg, ok := v.(proto.Message)
			if !ok {
				return nil, merr.WrapErrValueType("proto.Message", v)
			}
			data, err := marshalOptions.Marshal(msg)
			if err != nil {
				return nil, merr.WrapErrConversion(err, "protojson", "marshal")
			}
			var tree any
			if err := json.UnmarshalUseNumber(data, &tree); err != nil {
				return nil, merr.WrapErrConversion(err, "protojson", "decode")
			}
			return tree, nil
		},
		Up: func(s any, _ *morph.Options) (any, error) {
			data, err := json.Marshal(s)
			if err != nil {
				return nil, merr.WrapErrConversion(err, "protojson", "encode")
			}
			msg, err := newMessage[T](t)
			if err != nil {
				return nil, err
			}
			if err := unmarshalOptions.Unmarshal(data, msg); err != nil {
				return nil, errors.Wrapf(merr.WrapErrValueTypeMsg("Invalid %s: %v", t, err), "protojson")
			}
			return msg, nil
		},
	}
}

func newMessage[T proto.Message](t reflect.Type) (T, error) {
	var zero T
	if t.Kind() != reflect.Ptr {
		return zero, merr.WrapErrConstructorMissing(t)
	}
	return reflect.New(t.Elem()).Interface().(T), nil
}
