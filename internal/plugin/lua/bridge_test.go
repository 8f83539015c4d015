package lua

import (
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	L := glua.NewState()
	t.Cleanup(L.Close)
	return NewBridge(L)
}

func TestBridgeRoundTrip(t *testing.T) {
	b := newTestBridge(t)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"float", 1.5, 1.5},
		{"float32", float32(0.25), 0.25},
		{"string", "abc", "abc"},
		{"bytes", []byte{0, 'a'}, "\x00a"},
		{"strings", []string{"a", "b"}, []any{"a", "b"}},
		{"int16s", []int16{-1, 2}, []any{int64(-1), int64(2)}},
		{"string map", map[string]string{"k": "v"}, map[string]any{"k": "v"}},
		{"nested", map[string]any{"list": []any{1, "x"}}, map[string]any{"list": []any{int64(1), "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ToGoValue(b.ToLuaValue(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("round trip = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBridgeStruct(t *testing.T) {
	b := newTestBridge(t)

	type packet struct {
		StreamID int
		PTS      int64
		Payload  []byte
		Skip     string `lua:"-"`
		Renamed  string `lua:"alias"`
		hidden   int
	}

	got := b.ToGoValue(b.ToLuaValue(&packet{StreamID: 3, PTS: 90000, Payload: []byte("es"), Skip: "x", Renamed: "r", hidden: 1}))
	want := map[string]any{"stream_id": int64(3), "pts": int64(90000), "payload": "es", "alias": "r"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("struct = %#v, want %#v", got, want)
	}
}

func TestBridgeCircularTable(t *testing.T) {
	b := newTestBridge(t)
	if err := b.L.DoString(`cyc = {name = "loop"}; cyc.self = cyc`); err != nil {
		t.Fatal(err)
	}
	got, ok := b.ToGoValue(b.L.GetGlobal("cyc")).(map[string]any)
	if !ok {
		t.Fatalf("cyc converted to %T", got)
	}
	if got["name"] != "loop" || got["self"] != nil {
		t.Errorf("cyc = %#v", got)
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"StreamID": "stream_id",
		"PTS":      "pts",
		"Payload":  "payload",
		"CLev":     "clev",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	src := []any{int64(1), 2.5, "x"}

	floats := make([]float32, 2)
	if n := Floats(src, floats); n != 2 || floats[0] != 1 || floats[1] != 2.5 {
		t.Errorf("Floats = %d %v", n, floats)
	}

	ints := make([]int16, 4)
	if n := Ints(src, ints); n != 3 || ints[1] != 2 || ints[2] != 0 {
		t.Errorf("Ints = %d %v", n, ints)
	}

	if v, ok := Int(int64(7)); !ok || v != 7 {
		t.Errorf("Int = %d %v", v, ok)
	}
	if _, ok := Number("7"); ok {
		t.Error("Number should reject strings")
	}
}
