package backend

import (
	"encoding"
	"encoding/base64"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/lk2023060901/morph/internal/json"
	"github.com/lk2023060901/morph/pkg/util/merr"
	"github.com/lk2023060901/morph/pkg/util/typeutil"
)

var (
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	numberType          = reflect.TypeOf(json.Number(""))
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func boolPrimitive() Primitive {
	matchType, matchValue := kindMatcher(reflect.Bool)
	return Primitive{
		Name:       "bool",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || rv.Kind() != reflect.Bool {
				return nil, merr.WrapErrValueType("boolean", v)
			}
			return rv.Bool(), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			rv, ok := deref(s)
			if !ok || rv.Kind() != reflect.Bool {
				return nil, merr.WrapErrValueType("boolean", s)
			}
			out := reflect.New(typeutil.Indirect(t)).Elem()
			out.SetBool(rv.Bool())
			return out.Interface(), nil
		},
	}
}

func stringPrimitive() Primitive {
	matchType, matchValue := kindMatcher(reflect.String)
	return Primitive{
		Name:       "string",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || rv.Kind() != reflect.String {
				return nil, merr.WrapErrValueType("string", v)
			}
			return rv.String(), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			rv, ok := deref(s)
			if !ok || rv.Kind() != reflect.String || rv.Type() == numberType {
				return nil, merr.WrapErrValueType("string", s)
			}
			out := reflect.New(typeutil.Indirect(t)).Elem()
			out.SetString(rv.String())
			return out.Interface(), nil
		},
	}
}

// intPrimitive 的 Down 结果类型由 narrow 决定，json 统一为 int64，bson 保留 int32。
func intPrimitive(narrow func(rv reflect.Value) any) Primitive {
	matchType, matchValue := kindMatcher(reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64)
	return Primitive{
		Name:       "int",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || !isInt(rv.Kind()) {
				return nil, merr.WrapErrValueType("integer", v)
			}
			return narrow(rv), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			i, err := toInt64(s)
			if err != nil {
				return nil, err
			}
			out := reflect.New(typeutil.Indirect(t)).Elem()
			if out.OverflowInt(i) {
				return nil, merr.WrapErrValueTypeMsg("Value %d overflows %s", i, out.Type())
			}
			out.SetInt(i)
			return out.Interface(), nil
		},
	}
}

func uintPrimitive(narrow func(rv reflect.Value) (any, error)) Primitive {
	matchType, matchValue := kindMatcher(reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr)
	return Primitive{
		Name:       "uint",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || !isUint(rv.Kind()) {
				return nil, merr.WrapErrValueType("unsigned integer", v)
			}
			return narrow(rv)
		},
		Up: func(s any, t reflect.Type) (any, error) {
			u, err := toUint64(s)
			if err != nil {
				return nil, err
			}
			out := reflect.New(typeutil.Indirect(t)).Elem()
			if out.OverflowUint(u) {
				return nil, merr.WrapErrValueTypeMsg("Value %d overflows %s", u, out.Type())
			}
			out.SetUint(u)
			return out.Interface(), nil
		},
	}
}

func floatPrimitive() Primitive {
	matchType, matchValue := kindMatcher(reflect.Float32, reflect.Float64)
	return Primitive{
		Name:       "float",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || !isFloat(rv.Kind()) {
				return nil, merr.WrapErrValueType("number", v)
			}
			return rv.Float(), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			f, err := toFloat64(s)
			if err != nil {
				return nil, err
			}
			out := reflect.New(typeutil.Indirect(t)).Elem()
			if out.OverflowFloat(f) {
				return nil, merr.WrapErrValueTypeMsg("Value %v overflows %s", f, out.Type())
			}
			out.SetFloat(f)
			return out.Interface(), nil
		},
	}
}

// timePrimitive 以 format 将时间转为字符串，format 为空时保留 time.Time。
func timePrimitive(format string) Primitive {
	matchType, matchValue := exactMatcher(timeType)
	return Primitive{
		Name:       "time",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || rv.Type() != timeType {
				return nil, merr.WrapErrValueType("time", v)
			}
			tm := rv.Interface().(time.Time)
			if format == "" {
				return tm, nil
			}
			return tm.Format(format), nil
		},
		Up: func(s any, _ reflect.Type) (any, error) {
			switch x := s.(type) {
			case time.Time:
				return x, nil
			case *time.Time:
				if x != nil {
					return *x, nil
				}
			case string:
				tm, err := time.Parse(time.RFC3339Nano, x)
				if err != nil {
					return nil, merr.WrapErrValueTypeMsg("Expected an RFC 3339 date, got %q", x)
				}
				return tm, nil
			}
			return nil, merr.WrapErrValueType("date", s)
		},
	}
}

// durationPrimitive 在 Down 时使用 asString 决定输出 "1m30s" 还是纳秒数。
func durationPrimitive(asString bool) Primitive {
	matchType, matchValue := exactMatcher(durationType)
	return Primitive{
		Name:       "duration",
		MatchType:  matchType,
		MatchValue: matchValue,
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || rv.Type() != durationType {
				return nil, merr.WrapErrValueType("duration", v)
			}
			d := time.Duration(rv.Int())
			if asString {
				return d.String(), nil
			}
			return int64(d), nil
		},
		Up: func(s any, _ reflect.Type) (any, error) {
			if str, ok := s.(string); ok {
				d, err := time.ParseDuration(str)
				if err != nil {
					return nil, merr.WrapErrValueTypeMsg("Expected a duration, got %q", str)
				}
				return d, nil
			}
			i, err := toInt64(s)
			if err != nil {
				return nil, merr.WrapErrValueType("duration", s)
			}
			return time.Duration(i), nil
		},
	}
}

func isByteSlice(t reflect.Type) bool {
	t = typeutil.Indirect(t)
	return t != nil && t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// bytesPrimitive 在 encode 为 true 时以 base64 字符串表示二进制。
func bytesPrimitive(encode bool) Primitive {
	return Primitive{
		Name:      "bytes",
		MatchType: isByteSlice,
		MatchValue: func(v any) bool {
			return v != nil && isByteSlice(reflect.TypeOf(v))
		},
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok || !isByteSlice(rv.Type()) {
				return nil, merr.WrapErrValueType("binary", v)
			}
			if encode {
				return base64.StdEncoding.EncodeToString(rv.Bytes()), nil
			}
			return append([]byte(nil), rv.Bytes()...), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			var data []byte
			switch x := s.(type) {
			case string:
				decoded, err := base64.StdEncoding.DecodeString(x)
				if err != nil {
					return nil, merr.WrapErrValueTypeMsg("Expected base64 data, got %q", x)
				}
				data = decoded
			case []byte:
				data = append([]byte(nil), x...)
			default:
				return nil, merr.WrapErrValueType("binary", s)
			}
			return reflect.ValueOf(data).Convert(typeutil.Indirect(t)).Interface(), nil
		},
	}
}

func isText(t reflect.Type) bool {
	t = typeutil.Indirect(t)
	if t == nil {
		return false
	}
	ptr := reflect.PointerTo(t)
	return ptr.Implements(textUnmarshalerType) && (t.Implements(textMarshalerType) || ptr.Implements(textMarshalerType))
}

func textPrimitive() Primitive {
	return Primitive{
		Name:      "text",
		MatchType: isText,
		MatchValue: func(v any) bool {
			return v != nil && isText(reflect.TypeOf(v))
		},
		Down: func(v any) (any, error) {
			rv, ok := deref(v)
			if !ok {
				return nil, merr.WrapErrValueType("text", v)
			}
			ptr := reflect.New(rv.Type())
			ptr.Elem().Set(rv)
			text, err := ptr.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return nil, merr.WrapErrConversion(err, "MarshalText")
			}
			return string(text), nil
		},
		Up: func(s any, t reflect.Type) (any, error) {
			str, ok := s.(string)
			if !ok {
				return nil, merr.WrapErrValueType("string", s)
			}
			ptr := reflect.New(typeutil.Indirect(t))
			if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
				return nil, merr.WrapErrConversion(err, "UnmarshalText")
			}
			return ptr.Elem().Interface(), nil
		},
	}
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func toInt64(s any) (int64, error) {
	if n, ok := s.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, merr.WrapErrValueType("integer", s)
		}
		s = f
	}
	rv, ok := deref(s)
	if !ok {
		return 0, merr.WrapErrValueType("integer", s)
	}
	switch k := rv.Kind(); {
	case isInt(k):
		return rv.Int(), nil
	case isUint(k):
		if rv.Uint() > math.MaxInt64 {
			return 0, merr.WrapErrValueTypeMsg("Value %d overflows int64", rv.Uint())
		}
		return int64(rv.Uint()), nil
	case isFloat(k):
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, merr.WrapErrValueTypeMsg("Expected an integer, got %v", f)
		}
		return int64(f), nil
	}
	return 0, merr.WrapErrValueType("integer", s)
}

func toUint64(s any) (uint64, error) {
	if n, ok := s.(json.Number); ok {
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, merr.WrapErrValueType("unsigned integer", s)
		}
		s = f
	}
	rv, ok := deref(s)
	if !ok {
		return 0, merr.WrapErrValueType("unsigned integer", s)
	}
	switch k := rv.Kind(); {
	case isUint(k):
		return rv.Uint(), nil
	case isInt(k):
		if rv.Int() < 0 {
			return 0, merr.WrapErrValueTypeMsg("Expected an unsigned integer, got %d", rv.Int())
		}
		return uint64(rv.Int()), nil
	case isFloat(k):
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, merr.WrapErrValueTypeMsg("Expected an unsigned integer, got %v", f)
		}
		return uint64(f), nil
	}
	return 0, merr.WrapErrValueType("unsigned integer", s)
}

func toFloat64(s any) (float64, error) {
	if n, ok := s.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return 0, merr.WrapErrValueType("number", s)
		}
		return f, nil
	}
	rv, ok := deref(s)
	if !ok {
		return 0, merr.WrapErrValueType("number", s)
	}
	switch k := rv.Kind(); {
	case isFloat(k):
		return rv.Float(), nil
	case isInt(k):
		return float64(rv.Int()), nil
	case isUint(k):
		return float64(rv.Uint()), nil
	}
	return 0, merr.WrapErrValueType("number", s)
}
