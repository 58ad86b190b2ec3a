package morph

import "github.com/lk2023060901/morph/pkg/util/merr"

const incompleteHint = "use a registered type, supply a serializer with WithSerializer, " +
	"or declare a concrete field type"

// Combine 按顺序合并多个 TypeSerializer，后面的字段覆盖前面的字段，不做完整性检查。
func Combine(parts ...TypeSerializer) TypeSerializer {
	var out TypeSerializer
	for _, part := range parts {
		if part.Down != nil {
			out.Down = part.Down
		}
		if part.Up != nil {
			out.Up = part.Up
		}
		if part.Type != nil {
			out.Type = part.Type
		}
		if part.Discriminate != nil {
			out.Discriminate = part.Discriminate
		}
	}
	return out
}

// Compile 合并 parts 并检查结果是否完整。
func Compile(parts ...TypeSerializer) (TypeSerializer, error) {
	out := Combine(parts...)
	if out.Down == nil {
		return out, merr.WrapErrSerializerIncomplete("down", out.typeName(), incompleteHint)
	}
	if out.Up == nil {
		return out, merr.WrapErrSerializerIncomplete("up", out.typeName(), incompleteHint)
	}
	return out, nil
}

func requireDown(ts TypeSerializer) error {
	if ts.Down == nil {
		return merr.WrapErrSerializerIncomplete("down", ts.typeName(), incompleteHint)
	}
	return nil
}

func requireUp(ts TypeSerializer) error {
	if ts.Up == nil {
		return merr.WrapErrSerializerIncomplete("up", ts.typeName(), incompleteHint)
	}
	return nil
}
