package morph

import (
	"math"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

type Drawable interface {
	Area() float64
}

type Tile struct {
	Side float64 `morph:"side"`
}

func (t Tile) Area() float64 {
	return t.Side * t.Side
}

type Canvas struct {
	Item Drawable `morph:"item"`
}

type Envelope struct {
	Payload any `morph:"payload,nullable"`
}

func TestCompile(t *testing.T) {
	down := func(v any, _ *Options) (any, error) { return v, nil }
	up := func(s any, _ *Options) (any, error) { return s, nil }
	other := func(any, *Options) (any, error) { return "other", nil }

	_, err := Compile()
	assert.ErrorIs(t, err, merr.ErrSerializerIncomplete)
	assert.Contains(t, err.Error(), `"<unknown>"`)
	assert.Contains(t, err.Error(), "Hint:")

	_, err = Compile(TypeSerializer{Type: reflect.TypeFor[Book](), Down: down})
	assert.ErrorIs(t, err, merr.ErrSerializerIncomplete)
	assert.Contains(t, err.Error(), `No "up" function available for type "Book"`)

	ts, err := Compile(
		TypeSerializer{Type: reflect.TypeFor[Book](), Down: down, Up: up},
		TypeSerializer{Up: other},
	)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Book](), ts.Type)
	v, _ := ts.Up("x", nil)
	assert.Equal(t, "other", v)
	v, _ = ts.Down("x", nil)
	assert.Equal(t, "x", v)

	partial := Combine(TypeSerializer{Down: down})
	assert.False(t, partial.Complete())
}

func TestPick(t *testing.T) {
	resetRegistry()
	require.NoError(t, Configure(DefaultConfig()))
	opts := NewOptions()

	_, err := PickForValue(nil, opts)
	assert.ErrorIs(t, err, merr.ErrInvalidArgument)
	_, err = PickForValue(Undefined, opts)
	assert.ErrorIs(t, err, merr.ErrInvalidArgument)
	_, err = PickForValue((*Book)(nil), opts)
	assert.ErrorIs(t, err, merr.ErrInvalidArgument)
	_, err = PickForType(nil, opts)
	assert.ErrorIs(t, err, merr.ErrInvalidArgument)

	ts, err := PickForValue(true, nil)
	require.NoError(t, err)
	assert.True(t, ts.Complete())

	ts, err = PickForType(reflect.TypeFor[*uint8](), opts)
	require.NoError(t, err)
	v, err := ts.Down(uint8(7), opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)
	v, err = ts.Up(uint64(7), opts)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v)
	_, err = ts.Up(uint64(math.MaxUint16), opts)
	assert.ErrorIs(t, err, merr.ErrValueType)

	ts, err = PickForType(reflect.TypeFor[Book](), opts)
	require.NoError(t, err)
	assert.False(t, ts.Complete())
	assert.Equal(t, reflect.TypeFor[Book](), ts.Type)

	ts, err = PickForType(reflect.TypeFor[[]int](), opts)
	require.NoError(t, err)
	assert.True(t, ts.Complete())

	ts, err = PickForType(reflect.TypeFor[map[int]string](), opts)
	require.NoError(t, err)
	assert.False(t, ts.Complete())

	_, err = PickForProp(reflect.TypeFor[Canvas](), "Item", opts)
	assert.ErrorIs(t, err, merr.ErrTypeInfoMissing)
	assert.Contains(t, err.Error(), `"Item"`)
	_, err = PickForProp(reflect.TypeFor[Canvas](), "Missing", opts)
	assert.ErrorIs(t, err, merr.ErrTargetInvalid)
	ts, err = PickForProp(reflect.TypeFor[Person](), "Age", opts)
	require.NoError(t, err)
	assert.True(t, ts.Complete())
}

func TestInterfaceProperties(t *testing.T) {
	resetRegistry()
	require.NoError(t, Configure(DefaultConfig()))
	require.NoError(t, RegisterStruct[Tile]())
	require.NoError(t, RegisterStruct[Canvas]())
	require.NoError(t, RegisterStruct[Envelope]())
	require.NoError(t, RegisterStruct[Book]())

	out, err := Deflate(Canvas{Item: Tile{Side: 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"item": map[string]any{"side": 2.0}}, out)

	_, err = Inflate(reflect.TypeFor[Canvas](), out)
	assert.ErrorIs(t, err, merr.ErrTypeInfoMissing)
	assert.Contains(t, err.Error(), `Unable to deserialize property "Item"`)

	type labelled struct {
		Item Drawable `morph:"item"`
	}
	require.NoError(t, RegisterProperty[labelled]("Item", Tag("item"), WithSerializer(TypeSerializer{
		Discriminate: func(any) (reflect.Type, error) { return reflect.TypeFor[Tile](), nil },
	})))
	back, err := InflateAs[labelled](out)
	require.NoError(t, err)
	assert.Equal(t, labelled{Item: Tile{Side: 2}}, back)

	out, err = Deflate(Envelope{Payload: Book{Title: "X", Pages: 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"payload": map[string]any{"title": "X", "pages": int64(1)}}, out)

	env, err := InflateAs[Envelope](out)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "X", "pages": int64(1)}, env.Payload)

	out, err = Deflate(Envelope{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"payload": nil}, out)

	out, err = Deflate([]any{int8(1), "a", Book{Title: "B", Pages: 2}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a", map[string]any{"title": "B", "pages": int64(2)}}, out)
}

func TestPropertyOverride(t *testing.T) {
	resetRegistry()
	require.NoError(t, Configure(DefaultConfig()))
	type temperature struct {
		Celsius float64
	}
	require.NoError(t, RegisterProperty[temperature]("Celsius", Tag("f"), WithSerializer(TypeSerializer{
		Down: func(v any, _ *Options) (any, error) { return v.(float64)*9/5 + 32, nil },
	})))

	out, err := Deflate(temperature{Celsius: 100})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"f": 212.0}, out)

	back, err := InflateAs[temperature](map[string]any{"f": 5.0})
	require.NoError(t, err)
	assert.Equal(t, temperature{Celsius: 5}, back)

	_, err = InflateAs[temperature](map[string]any{"f": "hot"})
	assert.ErrorIs(t, err, merr.ErrValueType)

	failing := errors.New("sensor offline")
	type reading struct {
		Value int
	}
	require.NoError(t, RegisterProperty[reading]("Value", WithSerializer(TypeSerializer{
		Down: func(any, *Options) (any, error) { return nil, failing },
	})))
	_, err = Deflate(reading{Value: 1})
	assert.ErrorIs(t, err, failing)
	assert.EqualError(t, err, `Unable to serialize an instance of "reading" in projection "default": `+
		`Unable to serialize property "Value": sensor offline`)
}

func TestMorphTags(t *testing.T) {
	type sample struct {
		A int `json:"a" morph:"alpha,optional" morph.summary:"x,nullable"`
		B int `morph.:"ignored" morphx:"ignored"`
		C int `morph:"-"`
	}
	st := reflect.TypeFor[sample]()

	got := morphTags(st.Field(0).Tag)
	assert.Equal(t, []morphTag{
		{projection: DefaultProjection, value: "alpha,optional"},
		{projection: "summary", value: "x,nullable"},
	}, got)
	assert.Empty(t, morphTags(st.Field(1).Tag))

	parsed, err := parseTag("sample", "C", morphTags(st.Field(2).Tag)[0].value)
	require.NoError(t, err)
	assert.True(t, parsed.skip)

	parsed, err = parseTag("sample", "A", " alpha , optional,nullable ,")
	require.NoError(t, err)
	assert.Equal(t, tagSpec{name: "alpha", optional: true, nullable: true}, parsed)
	assert.Len(t, parsed.options(), 3)

	parsed, err = parseTag("sample", "A", ",optional")
	require.NoError(t, err)
	assert.Equal(t, "", parsed.name)
	assert.Len(t, parsed.options(), 1)

	_, err = parseTag("sample", "A", "a,omitempty")
	assert.ErrorIs(t, err, merr.ErrTargetInvalid)
}

func TestChain(t *testing.T) {
	type tagged struct {
		Animal `morph:"animal"`
		Name   string
	}
	assert.Equal(t, []reflect.Type{reflect.TypeFor[Dog](), reflect.TypeFor[Animal]()}, ancestors(reflect.TypeFor[*Puppy]()))
	assert.True(t, inherits(reflect.TypeFor[Puppy](), reflect.TypeFor[Animal]()))
	assert.False(t, inherits(reflect.TypeFor[Animal](), reflect.TypeFor[Puppy]()))
	assert.Nil(t, baseOf(reflect.TypeFor[tagged]()))
	assert.Nil(t, baseOf(reflect.TypeFor[int]()))

	var puppy Puppy
	v, ok := locate(reflect.ValueOf(&puppy), reflect.TypeFor[Animal](), false)
	require.True(t, ok)
	v.Field(0).SetString("Rex")
	assert.Equal(t, "Rex", puppy.Name)

	_, ok = locate(reflect.ValueOf(puppy), reflect.TypeFor[Point](), false)
	assert.False(t, ok)
}
