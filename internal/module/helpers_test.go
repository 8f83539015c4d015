package module

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type testCopy struct {
	name string
}

func (c *testCopy) Copy(dst, src []byte) int {
	return copy(dst, src)
}

type testDecoder struct{}

func (testDecoder) Run(cfg *DecoderConfig) error {
	for range cfg.Input {
	}
	return nil
}

// memcpyDef returns a builtin fast-copy definition with a fixed score.
func memcpyDef(name string, score int) *Definition {
	return &Definition{
		Name:      name,
		LongName:  name + " copy",
		Functions: MustFunctionTable(Provide(Memcpy, FastCopyFunctions(&testCopy{name: name}))),
		Probe: func(ProbeData) (int, error) {
			return score, nil
		},
	}
}

// countingDef counts probe calls.
func countingDef(name string, score int, calls *atomic.Int32) *Definition {
	def := memcpyDef(name, score)
	def.Probe = func(ProbeData) (int, error) {
		calls.Add(1)
		return score, nil
	}
	return def
}

type testLibrary struct {
	def      *Definition
	path     string
	unloads  atomic.Int32
	unloadFn func() error
}

func (l *testLibrary) Definition() *Definition { return l.def }
func (l *testLibrary) Path() string            { return l.path }

func (l *testLibrary) Unload() error {
	l.unloads.Add(1)
	if l.unloadFn != nil {
		return l.unloadFn()
	}
	return nil
}

// testScanner builds fresh libraries on every scan, the way a real scanner
// reloads from disk.
type testScanner struct {
	mu      sync.Mutex
	defs    func() []*Definition
	errs    []*LoadError
	scans   int
	created []*testLibrary
}

func (s *testScanner) Scan(ctx context.Context) ([]Library, []*LoadError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++

	var libs []Library
	for _, def := range s.defs() {
		lib := &testLibrary{def: def, path: fmt.Sprintf("/plugins/%s", def.Name)}
		s.created = append(s.created, lib)
		libs = append(libs, lib)
	}
	return libs, s.errs
}

func (s *testScanner) library(name string) *testLibrary {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.created) - 1; i >= 0; i-- {
		if s.created[i].def.Name == name {
			return s.created[i]
		}
	}
	return nil
}

func scannerOf(defs ...func() *Definition) *testScanner {
	return &testScanner{defs: func() []*Definition {
		out := make([]*Definition, 0, len(defs))
		for _, mk := range defs {
			out = append(out, mk())
		}
		return out
	}}
}

func newBank(t interface {
	Helper()
	Fatalf(string, ...any)
}, opts ...Option) *Bank {
	t.Helper()
	b := New(opts...)
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

func moduleState(b *Bank, name string) (State, bool) {
	info, ok := b.Lookup(name)
	return info.State, ok
}
