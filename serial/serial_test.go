package serial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type address struct {
	Street string
	Zip    int
}

type person struct {
	Name  string
	Age   int
	Tags  []string
	Home  *address
	Work  *address
	Meta  map[string]any
	Born  time.Time
	Notes string `serial:"n"`
	Skip  string `serial:"-"`

	secret string
}

type node struct {
	Val  int
	Next *node
}

type shape interface{ Area() float64 }

type square struct{ Side float64 }

func (s square) Area() float64 { return s.Side * s.Side }

type drawing struct {
	Shapes []shape
	Main   shape
}

// stampedEvent gets MarshalBinary and UnmarshalBinary from time.Time.
type stampedEvent struct {
	time.Time
	Name string
	Seq  int
}

// semver keeps its state unexported and is only written through its
// binary methods.
type semver struct {
	major, minor uint16
}

func (v semver) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint16(binary.BigEndian.AppendUint16(nil, v.major), v.minor), nil
}

func (v *semver) UnmarshalBinary(b []byte) error {
	if len(b) != 4 {
		return fmt.Errorf("semver: %d bytes", len(b))
	}
	v.major, v.minor = binary.BigEndian.Uint16(b), binary.BigEndian.Uint16(b[2:])
	return nil
}

func samplePerson() *person {
	home := &address{Street: "Main St 1", Zip: 12345}
	return &person{
		Name: "Ada",
		Age:  36,
		Tags: []string{"a", "b"},
		Home: home,
		Work: home,
		Meta: map[string]any{
			"n":    1,
			"f":    1.5,
			"list": []any{"x", int64(2), nil},
		},
		Born:   time.Date(1990, 12, 10, 8, 30, 0, 0, time.UTC),
		Notes:  "renamed",
		Skip:   "dropped",
		secret: "hidden",
	}
}

func TestRoundTripPrimitives(t *testing.T) {
	p := NewPool()
	values := []any{
		true, 42, int8(-7), int16(300), int32(-70000), int64(1 << 40),
		uint(7), uint8(255), uint16(65535), uint32(1 << 31), uint64(1<<64 - 1),
		float32(1.25), 3.14159, complex(1, -2), "héllo", "",
		[]byte("raw"), []int{1, 2, 3}, [3]string{"a", "b", "c"},
		map[string]int{"one": 1},
		time.Date(2024, 2, 29, 23, 59, 59, 999, time.UTC),
		time.Duration(90 * time.Second),
	}
	for _, v := range values {
		t.Run(fmt.Sprintf("%T", v), func(t *testing.T) {
			b, err := p.Serialize(v)
			require.NoError(t, err)
			got, err := p.Deserialize(b)
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.IsType(t, v, got)
		})
	}
}

func TestRoundTripNil(t *testing.T) {
	p := NewPool()
	b, err := p.Serialize(nil)
	require.NoError(t, err)
	require.NotEmpty(t, b)
	got, err := p.Deserialize(b)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoundTripStruct(t *testing.T) {
	p := NewPool()
	in := samplePerson()
	b, err := p.Serialize(in)
	require.NoError(t, err)

	v, err := p.Deserialize(b)
	require.NoError(t, err)
	got, ok := v.(*person)
	require.True(t, ok, "got %T", v)

	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Age, got.Age)
	assert.Equal(t, in.Tags, got.Tags)
	assert.Equal(t, *in.Home, *got.Home)
	assert.Equal(t, in.Meta, got.Meta)
	assert.True(t, in.Born.Equal(got.Born))
	assert.Equal(t, "renamed", got.Notes)
	assert.Empty(t, got.Skip)
	assert.Empty(t, got.secret)
	assert.Same(t, got.Home, got.Work, "shared pointer must stay shared")
}

func TestRoundTripInterfaces(t *testing.T) {
	p := NewPool()
	sq := square{Side: 2}
	in := drawing{Shapes: []shape{sq, nil, square{Side: 3}}, Main: sq}

	b, err := p.Serialize(in)
	require.NoError(t, err)
	got, err := Decode[drawing](p, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, 4.0, got.Main.Area())
}

func TestRoundTripCycle(t *testing.T) {
	p := NewPool()
	a := &node{Val: 1}
	b := &node{Val: 2, Next: a}
	a.Next = b

	data, err := p.Serialize(a)
	require.NoError(t, err)
	got, err := Decode[*node](p, data)
	require.NoError(t, err)

	require.NotNil(t, got.Next)
	assert.Equal(t, 1, got.Val)
	assert.Equal(t, 2, got.Next.Val)
	assert.Same(t, got, got.Next.Next)
}

func TestRoundTripSelfReferencingMap(t *testing.T) {
	p := NewPool()
	m := map[string]any{"id": 42, "tags": []string{"a", "b"}}
	m["self"] = m

	b, err := p.Serialize(m)
	require.NoError(t, err)
	v, err := p.Deserialize(b)
	require.NoError(t, err)

	got, ok := v.(map[string]any)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, 42, got["id"])
	assert.Equal(t, []string{"a", "b"}, got["tags"])
	self, ok := got["self"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, reflect.ValueOf(got).Pointer(), reflect.ValueOf(self).Pointer())
}

func TestEmptySliceStaysEmpty(t *testing.T) {
	p := NewPool()
	b, err := p.Serialize([]string{})
	require.NoError(t, err)
	v, err := p.Deserialize(b)
	require.NoError(t, err)
	got, ok := v.([]string)
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)

	b, err = p.Serialize(&person{Name: "nil tags"})
	require.NoError(t, err)
	pp, err := Decode[*person](p, b)
	require.NoError(t, err)
	assert.Nil(t, pp.Tags)
	assert.Nil(t, pp.Home)
}

func TestDeserializeErrors(t *testing.T) {
	p := NewPool()
	good, err := p.Serialize(samplePerson())
	require.NoError(t, err)

	unknown, err := msgpack.Marshal(uint64(1))
	require.NoError(t, err)
	name, err := msgpack.Marshal("example.com/nowhere.Missing")
	require.NoError(t, err)
	unknown = append(unknown, name...)

	cases := map[string]struct {
		in    []byte
		cause error
	}{
		"empty":      {in: nil, cause: ErrMalformed},
		"truncated":  {in: good[:len(good)/2]},
		"trailing":   {in: append(append([]byte{}, good...), 0x01), cause: ErrMalformed},
		"garbage":    {in: []byte{0xc1, 0xc1}},
		"bad typeid": {in: []byte{0x09}, cause: ErrMalformed},
		"unknown":    {in: unknown, cause: ErrUnknownType},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := p.Deserialize(tc.in)
			require.Error(t, err)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, ErrSerialization)
			assert.ErrorIs(t, err, ErrDeserialization)
			assert.NotErrorIs(t, err, ErrCompression)
			assert.Equal(t, KindDeserialization, KindOf(err))
			if tc.cause != nil {
				assert.ErrorIs(t, err, tc.cause)
			}
		})
	}
}

func TestBackReferenceTypeMismatch(t *testing.T) {
	// A hand-built []any whose second element claims to be a *address but
	// points back at the *node read first.
	reg := NewRegistry()
	require.NoError(t, reg.Register(&address{}))
	require.NoError(t, reg.Register(&node{}))
	in := NewInstance(reg)
	in.reset()
	in.enc.Reset(&in.buf)
	require.NoError(t, in.writeType(reflect.TypeFor[[]any]()))
	require.NoError(t, in.enc.EncodeUint(1)) // new slice
	require.NoError(t, in.enc.EncodeArrayLen(2))
	require.NoError(t, in.writeAny(reflect.ValueOf(&node{Val: 1})))
	require.NoError(t, in.writeType(reflect.TypeFor[*address]()))
	require.NoError(t, in.enc.EncodeUint(1+2)) // reference 1 is the *node
	forged := append([]byte{}, in.buf.Bytes()...)

	_, err := NewInstance(reg).Deserialize(forged)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSerializeUnsupported(t *testing.T) {
	type withFunc struct{ F func() }
	p := NewPool()
	for name, v := range map[string]any{
		"chan":     make(chan int),
		"func":     func() {},
		"field":    withFunc{F: func() {}},
		"unnamed":  struct{ A int }{A: 1},
		"in slice": []any{1, make(chan int)},
	} {
		t.Run(name, func(t *testing.T) {
			b, err := p.Serialize(v)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, ErrSerialization)
			assert.ErrorIs(t, err, ErrUnsupportedType)
			assert.NotErrorIs(t, err, ErrDeserialization)
			assert.Equal(t, KindSerialization, KindOf(err))
		})
	}
}

func TestMaxDepth(t *testing.T) {
	p := NewPool(WithMaxDepth(8))
	var head *node
	for i := 0; i < 20; i++ {
		head = &node{Val: i, Next: head}
	}
	_, err := p.Serialize(head)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxDepth)

	_, err = p.DeepCopy(head)
	assert.ErrorIs(t, err, ErrMaxDepth)

	data, err := NewPool().Serialize(head)
	require.NoError(t, err)
	_, err = p.Deserialize(data)
	assert.ErrorIs(t, err, ErrMaxDepth)
	assert.ErrorIs(t, err, ErrDeserialization)
}

type evolvedV1 struct {
	ID   int32
	Name string
	Old  []string
}

type evolvedV2 struct {
	ID   int64
	Name string
	New  bool
}

func TestStructEvolution(t *testing.T) {
	writer := NewPool(WithRegistry(NewRegistry()))
	b, err := writer.Serialize(evolvedV1{ID: 7, Name: "x", Old: []string{"gone"}})
	require.NoError(t, err)

	t1 := reflect.TypeFor[evolvedV1]()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterName(t1.PkgPath()+"."+t1.Name(), evolvedV2{}))
	reader := NewPool(WithRegistry(reg))

	got, err := Decode[evolvedV2](reader, b)
	require.NoError(t, err)
	assert.Equal(t, evolvedV2{ID: 7, Name: "x"}, got)
}

func TestStructEvolutionOverflow(t *testing.T) {
	type wide struct{ N int64 }
	type narrow struct{ N int8 }
	writer := NewPool(WithRegistry(NewRegistry()))
	b, err := writer.Serialize(wide{N: 1000})
	require.NoError(t, err)

	tw := reflect.TypeFor[wide]()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterName(tw.PkgPath()+"."+tw.Name(), narrow{}))
	_, err = NewPool(WithRegistry(reg)).Deserialize(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReaderNeedsRegistration(t *testing.T) {
	b, err := NewPool(WithRegistry(NewRegistry())).Serialize(samplePerson())
	require.NoError(t, err)

	reg := NewRegistry()
	reader := NewPool(WithRegistry(reg))
	_, err = reader.Deserialize(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, reg.Register(&person{}))
	got, err := Decode[*person](reader, b)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
}

func TestRegistryParse(t *testing.T) {
	reg := NewRegistry()
	for _, want := range []reflect.Type{
		reflect.TypeFor[map[string][]*int](),
		reflect.TypeFor[[3]uint8](),
		reflect.TypeFor[[]map[int]any](),
		reflect.TypeFor[map[[2]string]map[string]bool](),
		reflect.TypeFor[**float64](),
	} {
		name, err := reg.nameOf(want)
		require.NoError(t, err)
		got, err := NewRegistry().typeOf(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := reg.typeOf("map[[]int]string")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = reg.typeOf("[abc]int")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = reg.typeOf("map[string")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegisterNameConflict(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterName("shared", address{}))
	require.NoError(t, reg.RegisterName("shared", address{}))
	err := reg.RegisterName("shared", node{})
	assert.ErrorIs(t, err, ErrNameConflict)
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.RegisterName("", address{}))
}

func TestDeepCopy(t *testing.T) {
	p := NewPool()
	in := samplePerson()

	v, err := p.DeepCopy(in)
	require.NoError(t, err)
	got := v.(*person)

	assert.NotSame(t, in, got)
	assert.NotSame(t, in.Home, got.Home)
	assert.Same(t, got.Home, got.Work)
	assert.Equal(t, "hidden", got.secret)
	assert.Equal(t, "dropped", got.Skip)
	assert.True(t, in.Born.Equal(got.Born))

	got.Tags[0] = "changed"
	got.Home.Zip = 1
	got.Meta["n"] = 2
	assert.Equal(t, "a", in.Tags[0])
	assert.Equal(t, 12345, in.Home.Zip)
	assert.Equal(t, 1, in.Meta["n"])
}

func TestDeepCopyCycle(t *testing.T) {
	a := &node{Val: 1}
	a.Next = &node{Val: 2, Next: a}

	got, err := Copy(NewPool(), a)
	require.NoError(t, err)
	assert.NotSame(t, a, got)
	assert.Same(t, got, got.Next.Next)

	m := map[string]any{}
	m["self"] = m
	cm, err := Copy[map[string]any](nil, m)
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(cm).Pointer(), reflect.ValueOf(cm["self"]).Pointer())
	assert.NotEqual(t, reflect.ValueOf(m).Pointer(), reflect.ValueOf(cm).Pointer())
}

func TestDeepCopyUnsupported(t *testing.T) {
	_, err := DeepCopy([]any{make(chan int)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, KindSerialization, KindOf(err))

	v, err := DeepCopy(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodeTypeMismatch(t *testing.T) {
	b, err := Serialize(42)
	require.NoError(t, err)

	_, err = Decode[string](nil, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.NotErrorIs(t, err, ErrSerialization)

	n, err := Decode[int](nil, b)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	var none any
	b, err = Serialize(none)
	require.NoError(t, err)
	s, err := Decode[*person](nil, b)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPoolConcurrent(t *testing.T) {
	p := NewPool()
	const workers, iters = 16, 200

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				in := &node{Val: w*iters + i}
				in.Next = &node{Val: -1, Next: in}
				b, err := p.Serialize(in)
				if err != nil {
					errs <- err
					return
				}
				got, err := Decode[*node](p, b)
				if err != nil {
					errs <- err
					return
				}
				if got.Val != in.Val || got.Next.Next != got {
					errs <- fmt.Errorf("worker %d: bad round trip %d", w, got.Val)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	st := p.Stats()
	assert.Equal(t, int64(2*workers*iters), st.Borrowed)
	assert.Equal(t, st.Borrowed, st.Returned)
	assert.LessOrEqual(t, st.Created, st.Borrowed)
}

func TestPoolDiscardsLargeBuffers(t *testing.T) {
	p := NewPool(WithMaxBufferSize(64))
	_, err := p.Serialize(strings.Repeat("x", 4096))
	require.NoError(t, err)
	_, err = p.Serialize("small")
	require.NoError(t, err)

	st := p.Stats()
	assert.Equal(t, int64(1), st.Discarded)
	assert.Equal(t, int64(2), st.Returned)
}

func TestPoolRunReturnsInstance(t *testing.T) {
	p := NewPool()
	err := p.Run(func(in *Instance) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("fn failed")
	err = p.Run(func(in *Instance) error {
		b, err := in.Serialize("in run")
		if err != nil {
			return err
		}
		v, err := in.Deserialize(b)
		if err != nil {
			return err
		}
		if v != "in run" {
			return fmt.Errorf("got %v", v)
		}
		return want
	})
	assert.ErrorIs(t, err, want)

	st := p.Stats()
	assert.Equal(t, int64(2), st.Borrowed)
	assert.Equal(t, int64(2), st.Returned)
}

func TestInstanceReusable(t *testing.T) {
	in := NewInstance(nil)
	_, err := in.Serialize(make(chan int))
	require.Error(t, err)

	b, err := in.Serialize(samplePerson())
	require.NoError(t, err)
	_, err = in.Deserialize(b[:3])
	require.Error(t, err)

	v, err := in.Deserialize(b)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v.(*person).Name)
}

func TestEmbeddedMarshalerKeepsFields(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := stampedEvent{Time: at, Name: "deploy", Seq: 7}
	p := NewPool()

	b, err := p.Serialize(in)
	require.NoError(t, err)
	got, err := Decode[stampedEvent](p, b)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.Time))
	assert.Equal(t, "deploy", got.Name)
	assert.Equal(t, 7, got.Seq)

	c, err := Copy(p, &in)
	require.NoError(t, err)
	assert.True(t, at.Equal(c.Time))
	assert.Equal(t, "deploy", c.Name)
	assert.Equal(t, 7, c.Seq)
}

func TestOwnMarshalerIsUsed(t *testing.T) {
	p := NewPool()
	b, err := p.Serialize(map[string]semver{"api": {major: 2, minor: 5}})
	require.NoError(t, err)
	got, err := Decode[map[string]semver](p, b)
	require.NoError(t, err)
	assert.Equal(t, semver{major: 2, minor: 5}, got["api"])
}

func TestOversizedTypeTags(t *testing.T) {
	tagged := func(name string, body func(enc *msgpack.Encoder), pad int) []byte {
		var b bytes.Buffer
		enc := msgpack.NewEncoder(&b)
		require.NoError(t, enc.EncodeUint(1))
		require.NoError(t, enc.EncodeString(name))
		body(enc)
		b.Write(make([]byte, pad))
		return b.Bytes()
	}

	cases := map[string][]byte{
		"nested array": tagged("[16777216][16777216]uint8", func(enc *msgpack.Encoder) {
			require.NoError(t, enc.EncodeArrayLen(0))
		}, 0),
		"slice of large arrays": tagged("[][1048576]uint8", func(enc *msgpack.Encoder) {
			require.NoError(t, enc.EncodeUint(1))
			require.NoError(t, enc.EncodeArrayLen(1000))
		}, 2000),
		"map of large arrays": tagged("map[string][8388608]uint8", func(enc *msgpack.Encoder) {
			require.NoError(t, enc.EncodeUint(1))
			require.NoError(t, enc.EncodeMapLen(1))
			require.NoError(t, enc.EncodeString("k"))
		}, 64),
		"pointer to large array": tagged("*[16777216]uint8", func(enc *msgpack.Encoder) {
			require.NoError(t, enc.EncodeUint(1))
		}, 64),
	}
	p := NewPool()
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := p.Deserialize(in)
			require.Error(t, err)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, ErrDeserialization)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	// Arrays that fit the input still decode.
	grid := [2][3]int64{{1, 2, 3}, {4, 5, 6}}
	b, err := p.Serialize(grid)
	require.NoError(t, err)
	got, err := Decode[[2][3]int64](p, b)
	require.NoError(t, err)
	assert.Equal(t, grid, got)
}

func TestRegisterTypeBeforeFirstWrite(t *testing.T) {
	b, err := NewPool(WithRegistry(NewRegistry())).Serialize(samplePerson())
	require.NoError(t, err)

	reader := NewPool(WithRegistry(NewRegistry()))
	require.NoError(t, reader.RegisterType(reflect.TypeFor[*person]()))
	got, err := Decode[*person](reader, b)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Same(t, got.Home, got.Work)
	assert.True(t, samplePerson().Born.Equal(got.Born))
}
