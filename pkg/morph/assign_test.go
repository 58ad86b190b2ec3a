package morph

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

func TestConform(t *testing.T) {
	cases := []struct {
		name string
		v    any
		t    reflect.Type
		want any
		err  bool
	}{
		{name: "widen int", v: int8(3), t: reflect.TypeFor[int64](), want: int64(3)},
		{name: "narrow int", v: int64(100), t: reflect.TypeFor[int8](), want: int8(100)},
		{name: "int overflow", v: int64(300), t: reflect.TypeFor[int8](), err: true},
		{name: "negative to uint", v: -1, t: reflect.TypeFor[uint](), err: true},
		{name: "uint overflow", v: uint64(math.MaxUint64), t: reflect.TypeFor[int64](), err: true},
		{name: "uint narrow", v: uint32(70000), t: reflect.TypeFor[uint16](), err: true},
		{name: "whole float", v: 2.0, t: reflect.TypeFor[int](), want: 2},
		{name: "fractional float", v: 1.7, t: reflect.TypeFor[int](), err: true},
		{name: "float overflows int", v: 1e10, t: reflect.TypeFor[int32](), err: true},
		{name: "nan", v: math.NaN(), t: reflect.TypeFor[int](), err: true},
		{name: "negative float to uint", v: -2.0, t: reflect.TypeFor[uint8](), err: true},
		{name: "float32 overflow", v: math.MaxFloat64, t: reflect.TypeFor[float32](), err: true},
		{name: "int to float", v: 3, t: reflect.TypeFor[float64](), want: 3.0},
		{name: "pointer target", v: int64(5), t: reflect.TypeFor[*int8](), want: func() *int8 { n := int8(5); return &n }()},
		{name: "pointer overflow", v: int64(500), t: reflect.TypeFor[*int8](), err: true},
		{name: "no rune conversion", v: 65, t: reflect.TypeFor[string](), err: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := conform(c.v, c.t)
			if c.err {
				assert.ErrorIs(t, err, merr.ErrValueType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCustomUpIsNotTruncated(t *testing.T) {
	type gauge struct {
		Level int8 `morph:"level"`
	}
	resetRegistry()
	require.NoError(t, Configure(DefaultConfig()))
	require.NoError(t, RegisterProperty[gauge]("Level", Tag("level"), WithSerializer(TypeSerializer{
		Down: func(v any, _ *Options) (any, error) { return v, nil },
		Up:   func(s any, _ *Options) (any, error) { return s, nil },
	})))

	got, err := InflateAs[gauge](map[string]any{"level": int64(12)})
	require.NoError(t, err)
	assert.Equal(t, int8(12), got.Level)

	_, err = InflateAs[gauge](map[string]any{"level": int64(300)})
	assert.ErrorIs(t, err, merr.ErrValueType)
	assert.Contains(t, err.Error(), "overflows int8")

	_, err = InflateAs[gauge](map[string]any{"level": 1.7})
	assert.ErrorIs(t, err, merr.ErrValueType)
}
