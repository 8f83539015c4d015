package loader

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestTOMLLoaderLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"vlc.toml": {Data: []byte(`
[bank]
hide_delay = 500
retention = "unloaded"

[plugins]
paths = ["/opt/vlc/plugins"]
`)},
	}

	config, err := NewTOMLLoaderWithFS(fsys, "vlc.toml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bank, ok := config["bank"].(map[string]any)
	if !ok {
		t.Fatalf("bank section = %T", config["bank"])
	}
	if bank["hide_delay"] != int64(500) {
		t.Errorf("hide_delay = %v", bank["hide_delay"])
	}
	if bank["retention"] != "unloaded" {
		t.Errorf("retention = %v", bank["retention"])
	}
}

func TestTOMLLoaderMissingFile(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(fstest.MapFS{}, "missing.toml").Load()
	if err != nil || config != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", config, err)
	}

	config, err = NewTOMLLoader("").Load()
	if err != nil || config != nil {
		t.Errorf("Load() with empty path = %v, %v; want nil, nil", config, err)
	}
}

func TestTOMLLoaderParseError(t *testing.T) {
	_, err := NewTOMLLoader("").LoadFromReader(strings.NewReader("[bank\nhide_delay = 1"))

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Path != "<reader>" {
		t.Errorf("Path = %q", pe.Path)
	}
	if pe.Line == 0 {
		t.Errorf("Line not set: %v", pe)
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"bank":    map[string]any{"hide_delay": 10000, "strict": false},
		"logging": map[string]any{"level": "info"},
	}
	src := map[string]any{
		"bank":    map[string]any{"strict": true},
		"logging": "replaced",
	}

	got := DeepMerge(dst, src)
	want := map[string]any{
		"bank":    map[string]any{"hide_delay": 10000, "strict": true},
		"logging": "replaced",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeepMerge() = %v, want %v", got, want)
	}

	if got := DeepMerge(nil, nil); got == nil || len(got) != 0 {
		t.Errorf("DeepMerge(nil, nil) = %v", got)
	}
}

type staticLoader map[string]any

func (s staticLoader) Load() (map[string]any, error) { return s, nil }

type failingLoader struct{}

func (failingLoader) Load() (map[string]any, error) { return nil, errors.New("boom") }

func TestChain(t *testing.T) {
	got, err := Chain(
		staticLoader{"bank": map[string]any{"hide_delay": 1, "strict": true}},
		staticLoader(nil),
		staticLoader{"bank": map[string]any{"hide_delay": 2}},
	)
	if err != nil {
		t.Fatal(err)
	}
	bank := got["bank"].(map[string]any)
	if bank["hide_delay"] != 2 || bank["strict"] != true {
		t.Errorf("Chain() bank = %v", bank)
	}

	if _, err := Chain(staticLoader{}, failingLoader{}); err == nil {
		t.Error("Chain() should stop at a failing loader")
	}
}
