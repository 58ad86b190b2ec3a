package morph

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

const (
	tagKey       = "morph"
	tagKeyPrefix = tagKey + "."

	tagOptOptional = "optional"
	tagOptNullable = "nullable"
	tagSkip        = "-"
)

// morphTag 是字段上某个投影的标签，`morph:"..."` 属于默认投影，
// `morph.compact:"..."` 属于 compact 投影。
type morphTag struct {
	projection string
	value      string
}

// morphTags 按出现顺序返回字段上所有的 morph 标签。
// reflect.StructTag.Lookup 只能按完整的 key 查找，这里需要按前缀扫描。
func morphTags(tag reflect.StructTag) []morphTag {
	var out []morphTag
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		name := string(tag[:i])
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		qvalue := string(tag[:i+1])
		tag = tag[i+1:]

		value, err := strconv.Unquote(qvalue)
		if err != nil {
			break
		}
		switch {
		case name == tagKey:
			out = append(out, morphTag{projection: DefaultProjection, value: value})
		case strings.HasPrefix(name, tagKeyPrefix) && len(name) > len(tagKeyPrefix):
			out = append(out, morphTag{projection: name[len(tagKeyPrefix):], value: value})
		}
	}
	return out
}

// tagSpec 是标签值 "name,optional,nullable" 解析后的结果。
type tagSpec struct {
	name     string
	optional bool
	nullable bool
	skip     bool
}

func parseTag(owner, field, value string) (tagSpec, error) {
	if value == tagSkip {
		return tagSpec{skip: true}, nil
	}
	parts := strings.Split(value, ",")
	parsed := tagSpec{name: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case tagOptOptional:
			parsed.optional = true
		case tagOptNullable:
			parsed.nullable = true
		case "":
		default:
			return tagSpec{}, merr.WrapErrTargetInvalid("unknown tag option %q on property %q of %q", opt, field, owner)
		}
	}
	return parsed, nil
}

func (s tagSpec) options() []RegisterOption {
	var opts []RegisterOption
	if s.name != "" {
		opts = append(opts, Tag(s.name))
	}
	if s.optional {
		opts = append(opts, Optional())
	}
	if s.nullable {
		opts = append(opts, Nullable())
	}
	return opts
}
