package codec

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type orderRow struct {
	ID      int64     `json:"id" msgpack:"id" cbor:"id"`
	Status  string    `json:"status" msgpack:"status" cbor:"status"`
	Created time.Time `json:"created" msgpack:"created" cbor:"created"`
}

var rows = []orderRow{
	{ID: 7, Status: "paid", Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	{ID: 8, Status: "new", Created: time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)},
}

func sameRows(t *testing.T, got []orderRow) {
	t.Helper()
	if len(got) != len(rows) {
		t.Fatalf("got %d rows", len(got))
	}
	for i := range rows {
		if got[i].ID != rows[i].ID || got[i].Status != rows[i].Status || !got[i].Created.Equal(rows[i].Created) {
			t.Fatalf("row %d: got %+v want %+v", i, got[i], rows[i])
		}
	}
}

func TestRowCodecs(t *testing.T) {
	codecs := map[string]Codec[[]orderRow]{
		"json":    JSON[[]orderRow]{},
		"msgpack": Msgpack[[]orderRow]{},
		"cbor":    MustCBOR[[]orderRow](true),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(rows)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			sameRows(t, got)
		})
	}
}

func TestMsgpackSortsMapKeys(t *testing.T) {
	c := Msgpack[map[string]int]{}
	a, _ := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	for i := 0; i < 10; i++ {
		b, _ := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
		if string(a) != string(b) {
			t.Fatalf("map encoding not stable")
		}
	}
}

func TestCBORDecodesIntoStringMaps(t *testing.T) {
	c := MustCBOR[any](false)
	b, err := c.Encode(map[string]any{"id": 7})
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(map[string]any); !ok {
		t.Fatalf("decoded %T", v)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("order 7"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(got, wrapperspb.String("order 7")) {
		t.Fatalf("got %v", got)
	}
}

func TestCountAndExists(t *testing.T) {
	b, _ := Count{}.Encode(42)
	if string(b) != "42" {
		t.Fatalf("count payload %q", b)
	}
	if n, err := (Count{}).Decode(b); err != nil || n != 42 {
		t.Fatalf("count = %d %v", n, err)
	}
	if _, err := (Count{}).Decode([]byte("x")); err == nil {
		t.Fatalf("expected error")
	}

	b, _ = Exists{}.Encode(true)
	if ok, err := (Exists{}).Decode(b); err != nil || !ok {
		t.Fatalf("exists = %v %v", ok, err)
	}
	if _, err := (Exists{}).Decode([]byte("yes")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	if s, err := c.Decode([]byte("1234")); err != nil || s != "1234" {
		t.Fatalf("got %q %v", s, err)
	}
	if s, err := (Limit[string]{Inner: String{}}).Decode([]byte("unbounded")); err != nil || s != "unbounded" {
		t.Fatalf("MaxDecode 0 must disable the check")
	}
}
