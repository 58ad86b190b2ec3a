package morph

import (
	"math"
	"reflect"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// assign 将 Up 的结果写入字段 dst，处理指针包装、解引用与同类基础类型间的转换。
func assign(dst reflect.Value, v any) error {
	if v == nil || IsUndefined(v) {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	dt := dst.Type()
	switch {
	case rv.Type().AssignableTo(dt):
		dst.Set(rv)
	case dt.Kind() == reflect.Ptr && rv.Type().AssignableTo(dt.Elem()):
		p := reflect.New(dt.Elem())
		p.Elem().Set(rv)
		dst.Set(p)
	case rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Type().AssignableTo(dt):
		dst.Set(rv.Elem())
	case convertible(rv.Type(), dt):
		if err := fits(rv, dt); err != nil {
			return err
		}
		dst.Set(rv.Convert(dt))
	case dt.Kind() == reflect.Ptr && convertible(rv.Type(), dt.Elem()):
		if err := fits(rv, dt.Elem()); err != nil {
			return err
		}
		p := reflect.New(dt.Elem())
		p.Elem().Set(rv.Convert(dt.Elem()))
		dst.Set(p)
	default:
		return merr.WrapErrValueTypeMsg("Cannot assign %T to %s", v, dt)
	}
	return nil
}

// convertible 只允许同一类值之间的转换，避免 int 到 string 这类按 rune 的转换。
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if from.Kind() == to.Kind() {
		return true
	}
	return isNumeric(from.Kind()) && isNumeric(to.Kind())
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
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

// fits 检查数值 rv 转为类型 to 时不会被截断或溢出，非数值之间的转换总是通过。
func fits(rv reflect.Value, to reflect.Type) error {
	out := reflect.New(to).Elem()
	switch from, k := rv.Kind(), to.Kind(); {
	case isInt(from) && isInt(k):
		if out.OverflowInt(rv.Int()) {
			return merr.WrapErrValueTypeMsg("Value %d overflows %s", rv.Int(), to)
		}
	case isInt(from) && isUint(k):
		if rv.Int() < 0 || out.OverflowUint(uint64(rv.Int())) {
			return merr.WrapErrValueTypeMsg("Value %d overflows %s", rv.Int(), to)
		}
	case isUint(from) && isInt(k):
		if rv.Uint() > math.MaxInt64 || out.OverflowInt(int64(rv.Uint())) {
			return merr.WrapErrValueTypeMsg("Value %d overflows %s", rv.Uint(), to)
		}
	case isUint(from) && isUint(k):
		if out.OverflowUint(rv.Uint()) {
			return merr.WrapErrValueTypeMsg("Value %d overflows %s", rv.Uint(), to)
		}
	case isFloat(from) && isInt(k):
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
			return merr.WrapErrValueTypeMsg("Expected an integer fitting %s, got %v", to, f)
		}
	case isFloat(from) && isUint(k):
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
			return merr.WrapErrValueTypeMsg("Expected an unsigned integer fitting %s, got %v", to, f)
		}
	case isFloat(from) && isFloat(k):
		if out.OverflowFloat(rv.Float()) {
			return merr.WrapErrValueTypeMsg("Value %v overflows %s", rv.Float(), to)
		}
	}
	return nil
}

// conform 将 v 转为类型 t 的值，t 为指针时返回指针。
func conform(v any, t reflect.Type) (any, error) {
	if v == nil || IsUndefined(v) || IsPromise(v) {
		return v, nil
	}
	dst := reflect.New(t).Elem()
	if err := assign(dst, v); err != nil {
		return nil, err
	}
	return dst.Interface(), nil
}
