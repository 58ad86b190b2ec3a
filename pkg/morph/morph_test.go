package morph

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

// resetRegistry 清空全局注册表，测试之间互不影响。
func resetRegistry() {
	store.mu.Lock()
	store.containers = make(map[storeKey]*Container)
	store.mu.Unlock()
	store.generation.Inc()
}

type Book struct {
	Title string `morph:"title"`
	Pages int    `morph:"pages"`
	Notes string
}

type Person struct {
	Name string `morph:"name"`
	Age  int    `morph:"years"`
}

type Position struct {
	X, Y int
}

type Shape struct {
	Position Position `morph:"position"`
}

type Circle struct {
	Shape
	Radius int `morph:"radius"`
}

type Rect struct {
	Width int `morph:"width"`
}

type Square struct {
	Rect
}

type Owner struct {
	Nickname *string `morph:"nickname"`
}

type Member struct {
	Name string `morph:"name"`
	Age  int    `morph:"age"`
}

type Staff struct {
	Member
	Seniority int `morph:"age"`
}

type Library struct {
	Books   []Book         `morph:"books"`
	Index   map[string]int `morph:"index"`
	Shelves [2]string      `morph:"shelves"`
	Opened  time.Time      `morph:"opened"`
	Cover   []byte         `morph:"cover,optional"`
}

type Node struct {
	Value int   `morph:"value"`
	Next  *Node `morph:"next,optional"`
}

func positionSerializer() TypeSerializer {
	return TypeSerializer{
		Down: func(v any, _ *Options) (any, error) {
			p := v.(Position)
			return []any{int64(p.X), int64(p.Y)}, nil
		},
		Up: func(s any, _ *Options) (any, error) {
			xy, ok := s.([]any)
			if !ok || len(xy) != 2 {
				return nil, merr.WrapErrValueType("[x, y]", s)
			}
			return Position{X: int(xy[0].(int64)), Y: int(xy[1].(int64))}, nil
		},
	}
}

type MorphSuite struct {
	suite.Suite
}

func (s *MorphSuite) SetupTest() {
	resetRegistry()
	s.Require().NoError(Configure(DefaultConfig()))
}

func (s *MorphSuite) TestUndecoratedFieldsAreIgnored() {
	s.Require().NoError(RegisterStruct[Book]())

	out, err := Deflate(Book{Title: "X", Pages: 10, Notes: "ignored"})
	s.Require().NoError(err)
	s.Equal(map[string]any{"title": "X", "pages": int64(10)}, out)

	book, err := InflateAs[Book](out)
	s.Require().NoError(err)
	s.Equal(Book{Title: "X", Pages: 10}, book)
}

func (s *MorphSuite) TestRename() {
	s.Require().NoError(RegisterStruct[Person]())

	out, err := Deflate(Person{Name: "John", Age: 35})
	s.Require().NoError(err)
	s.Equal(map[string]any{"name": "John", "years": int64(35)}, out)

	person, err := Inflate(reflect.TypeFor[*Person](), out)
	s.Require().NoError(err)
	s.Equal(&Person{Name: "John", Age: 35}, person)
}

func (s *MorphSuite) TestInheritedCustomTypeProperty() {
	s.Require().NoError(RegisterType[Position](positionSerializer()))
	s.Require().NoError(RegisterStruct[Shape]())
	s.Require().NoError(RegisterStruct[Circle]())

	circle := Circle{Shape: Shape{Position: Position{X: 23, Y: 34}}, Radius: 11}
	out, err := Deflate(circle)
	s.Require().NoError(err)
	s.Equal(map[string]any{"position": []any{int64(23), int64(34)}, "radius": int64(11)}, out)

	back, err := InflateAs[Circle](out)
	s.Require().NoError(err)
	s.Equal(circle, back)
}

func (s *MorphSuite) TestRedefineInheritedProperty() {
	s.Require().NoError(RegisterStruct[Rect]())

	err := RegisterProperty[Square]("Width")
	s.ErrorIs(err, merr.ErrPropertyRedefined)
	s.Contains(err.Error(), "redefine")
	s.Contains(err.Error(), "Width")
}

func (s *MorphSuite) TestNullNotAllowed() {
	s.Require().NoError(RegisterStruct[Owner]())

	_, err := Deflate(Owner{})
	s.ErrorIs(err, merr.ErrValueNull)
	s.EqualError(err, `Unable to serialize an instance of "Owner" in projection "default": `+
		`Unable to serialize property "Nickname": Value is null; Hint: make it nullable`)
}

func (s *MorphSuite) TestDuplicatedInheritedTag() {
	s.Require().NoError(RegisterStruct[Member]())

	err := RegisterStruct[Staff]()
	s.ErrorIs(err, merr.ErrTagDuplicated)
	s.Contains(err.Error(), `"age" tag already used`)
}

func (s *MorphSuite) TestDuplicatedTag() {
	type twin struct {
		A int `morph:"age"`
		B int `morph:"age"`
	}

	err := RegisterStruct[twin]()
	s.ErrorIs(err, merr.ErrTagDuplicated)
	s.Contains(err.Error(), `"age" tag already used by property "A"`)
}

func (s *MorphSuite) TestExplicitNullOnOptional() {
	type draft struct {
		V *string `morph:"v,optional"`
	}
	s.Require().NoError(RegisterStruct[draft]())

	_, err := Inflate(reflect.TypeFor[draft](), map[string]any{"v": nil})
	s.ErrorIs(err, merr.ErrValueNull)
	s.Contains(err.Error(), `Unable to deserialize property "V": Value is null; Hint: make it nullable`)

	got, err := InflateAs[draft](map[string]any{})
	s.NoError(err)
	s.Nil(got.V)
}

func (s *MorphSuite) TestPassThrough() {
	out, err := Deflate(nil)
	s.NoError(err)
	s.Nil(out)

	out, err = Deflate(Undefined)
	s.NoError(err)
	s.True(IsUndefined(out))

	s.Require().NoError(RegisterStruct[Book]())
	out, err = Inflate(reflect.TypeFor[Book](), nil)
	s.NoError(err)
	s.Nil(out)

	book, err := InflateAs[*Book](nil)
	s.NoError(err)
	s.Nil(book)
}

func (s *MorphSuite) TestInflateRequiresConstructor() {
	_, err := Inflate(nil, map[string]any{})
	s.ErrorIs(err, merr.ErrInvalidArgument)

	_, err = Inflate(reflect.TypeFor[func()](), map[string]any{})
	s.ErrorIs(err, merr.ErrConstructorMissing)
}

func (s *MorphSuite) TestUnregisteredType() {
	_, err := Deflate(Book{Title: "X"})
	s.ErrorIs(err, merr.ErrSerializerIncomplete)
	s.Contains(err.Error(), `"Book"`)

	_, err = Inflate(reflect.TypeFor[Book](), map[string]any{})
	s.ErrorIs(err, merr.ErrSerializerIncomplete)
}

func (s *MorphSuite) TestCollections() {
	s.Require().NoError(RegisterStruct[Book]())
	s.Require().NoError(RegisterStruct[Library]())

	opened := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	lib := Library{
		Books:   []Book{{Title: "A", Pages: 1}, {Title: "B", Pages: 2}},
		Index:   map[string]int{"a": 0, "b": 1},
		Shelves: [2]string{"left", "right"},
		Opened:  opened,
		Cover:   []byte("png"),
	}
	out, err := Deflate(lib)
	s.Require().NoError(err)
	s.Equal(map[string]any{
		"books": []any{
			map[string]any{"title": "A", "pages": int64(1)},
			map[string]any{"title": "B", "pages": int64(2)},
		},
		"index":   map[string]any{"a": int64(0), "b": int64(1)},
		"shelves": []any{"left", "right"},
		"opened":  "2024-03-01T09:30:00Z",
		"cover":   "cG5n",
	}, out)

	back, err := InflateAs[Library](out)
	s.Require().NoError(err)
	s.Equal(lib.Books, back.Books)
	s.Equal(lib.Index, back.Index)
	s.Equal(lib.Shelves, back.Shelves)
	s.True(lib.Opened.Equal(back.Opened))
	s.Equal(lib.Cover, back.Cover)

	serialized := out.(map[string]any)
	serialized["shelves"] = []any{"a", "b", "c"}
	_, err = InflateAs[Library](serialized)
	s.ErrorIs(err, merr.ErrValueType)
}

func (s *MorphSuite) TestCollectionElementErrors() {
	s.Require().NoError(RegisterStruct[Owner]())

	_, err := Deflate([]Owner{{}})
	s.ErrorIs(err, merr.ErrValueNull)
	s.Contains(err.Error(), "Unable to serialize element 0")

	out, err := Deflate([]*Owner{nil})
	s.NoError(err)
	s.Equal([]any{nil}, out)
}

func (s *MorphSuite) TestPlainObject() {
	s.Require().NoError(RegisterStruct[Person]())

	out, err := Inflate(reflect.TypeFor[Person](), map[string]any{"name": "Ann", "years": int64(3)}, WithPlainObject(true))
	s.Require().NoError(err)
	s.Equal(map[string]any{"Name": "Ann", "Age": 3}, out)
}

func (s *MorphSuite) TestDeflateAs() {
	s.Require().NoError(RegisterStruct[Person]())

	out, err := Deflate(map[string]any{"Name": "Ann", "Age": 3}, AsType[Person]())
	s.Require().NoError(err)
	s.Equal(map[string]any{"name": "Ann", "years": int64(3)}, out)

	_, err = Deflate(map[string]any{"Name": "Ann"}, AsType[Person]())
	s.ErrorIs(err, merr.ErrValueUndefined)
	s.Contains(err.Error(), `Unable to serialize property "Age"`)
}

func (s *MorphSuite) TestDepthLimit() {
	s.Require().NoError(RegisterStruct[Node]())

	list := &Node{Value: 1, Next: &Node{Value: 2, Next: &Node{Value: 3, Next: &Node{Value: 4}}}}
	out, err := Deflate(list)
	s.Require().NoError(err)
	back, err := InflateAs[*Node](out)
	s.Require().NoError(err)
	s.Equal(list, back)

	_, err = Deflate(list, WithMaxDepth(2))
	s.ErrorIs(err, merr.ErrDepthExceeded)
}

func (s *MorphSuite) TestBSONBackend() {
	type Event struct {
		At    time.Time `morph:"at"`
		Count int32     `morph:"count"`
		Size  uint16    `morph:"size"`
	}
	s.Require().NoError(RegisterStruct[Event](InBackend("bson")))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out, err := Deflate(Event{At: at, Count: 3, Size: 7}, WithBackend("bson"))
	s.Require().NoError(err)
	s.Equal(map[string]any{"at": at, "count": int32(3), "size": int32(7)}, out)

	_, err = Deflate(Event{At: at}, WithBackend("json"))
	s.ErrorIs(err, merr.ErrSerializerIncomplete)

	_, err = Deflate(Event{}, WithBackend("xml"))
	s.ErrorIs(err, merr.ErrBackendNotFound)
}

func (s *MorphSuite) TestConfigure() {
	s.Require().NoError(Configure(Config{Projection: "summary", MaxDepth: 8}))
	cfg := CurrentConfig()
	s.Equal("json", cfg.Backend)
	s.Equal("summary", cfg.Projection)
	s.Equal("summary", NewOptions().Projection)

	s.ErrorIs(Configure(Config{Backend: "xml"}), merr.ErrBackendNotFound)
	s.ErrorIs(Configure(Config{MaxDepth: -1}), merr.ErrInvalidArgument)
	s.Equal("summary", CurrentConfig().Projection)

	err := Configure(Config{Backend: "xml", MaxDepth: -1, AsyncPoolSize: -2})
	s.ErrorIs(err, merr.ErrBackendNotFound)
	s.ErrorIs(err, merr.ErrInvalidArgument)
	s.Contains(err.Error(), "max depth must not be negative")
	s.Contains(err.Error(), "async pool size must not be negative")
}

func TestMorph(t *testing.T) {
	suite.Run(t, new(MorphSuite))
}

func TestOptionalNullableMatrix(t *testing.T) {
	type required struct {
		V *string `morph:"v"`
	}
	type optional struct {
		V *string `morph:"v,optional"`
	}
	type nullable struct {
		V *string `morph:"v,nullable"`
	}
	type both struct {
		V *string `morph:"v,optional,nullable"`
	}

	resetRegistry()
	require.NoError(t, Configure(DefaultConfig()))
	require.NoError(t, RegisterStruct[required]())
	require.NoError(t, RegisterStruct[optional]())
	require.NoError(t, RegisterStruct[nullable]())
	require.NoError(t, RegisterStruct[both]())

	cases := []struct {
		name          string
		t             reflect.Type
		undefinedDown error
		nullDown      map[string]any
		nullDownErr   error
		undefinedUp   error
		nullUp        error
	}{
		{
			name:          "required",
			t:             reflect.TypeFor[required](),
			undefinedDown: merr.ErrValueUndefined,
			nullDownErr:   merr.ErrValueNull,
			undefinedUp:   merr.ErrValueUndefined,
			nullUp:        merr.ErrValueNull,
		},
		{
			name:     "optional",
			t:        reflect.TypeFor[optional](),
			nullDown: map[string]any{},
			nullUp:   merr.ErrValueNull,
		},
		{
			name:          "nullable",
			t:             reflect.TypeFor[nullable](),
			undefinedDown: merr.ErrValueUndefined,
			nullDown:      map[string]any{"v": nil},
			undefinedUp:   merr.ErrValueUndefined,
		},
		{
			name:     "optional and nullable",
			t:        reflect.TypeFor[both](),
			nullDown: map[string]any{"v": nil},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Deflate(map[string]any{}, As(c.t))
			if c.undefinedDown != nil {
				assert.ErrorIs(t, err, c.undefinedDown)
				assert.Contains(t, err.Error(), "make it optional")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, map[string]any{}, out)
			}

			out, err = Deflate(map[string]any{"V": Undefined}, As(c.t))
			if c.undefinedDown != nil {
				assert.ErrorIs(t, err, c.undefinedDown)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, map[string]any{}, out)
			}

			out, err = Deflate(reflect.New(c.t).Elem().Interface())
			if c.nullDownErr != nil {
				assert.ErrorIs(t, err, c.nullDownErr)
				assert.Contains(t, err.Error(), "make it nullable")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, c.nullDown, out)
			}

			_, err = Inflate(c.t, map[string]any{})
			if c.undefinedUp != nil {
				assert.ErrorIs(t, err, c.undefinedUp)
			} else {
				assert.NoError(t, err)
			}

			got, err := Inflate(c.t, map[string]any{"v": nil})
			if c.nullUp != nil {
				assert.ErrorIs(t, err, c.nullUp)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, reflect.New(c.t).Elem().Interface(), got)
			}

			value := "x"
			got, err = Inflate(c.t, map[string]any{"v": "x"})
			assert.NoError(t, err)
			assert.Equal(t, &value, reflect.ValueOf(got).Field(0).Interface())
		})
	}
}
