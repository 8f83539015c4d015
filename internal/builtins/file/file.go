// Package file provides the builtin access module for local files.
package file

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/Jasonic/vlc/internal/module"
)

// Name is the module name.
const Name = "file"

// Probe scores.
const (
	ScoreFileURL = 50 // file:// MRL or bare path
	ScoreExists  = 60 // the path exists on disk
)

// ErrNotOpen is returned when a thread has no open file.
var ErrNotOpen = errors.New("file access: not open")

type access struct{}

// Path resolves an MRL to a local path. Other schemes report ok == false.
func Path(mrl string) (path string, ok bool) {
	if strings.HasPrefix(mrl, "file:") {
		u, err := url.Parse(mrl)
		if err != nil {
			return "", false
		}
		return u.Path, u.Path != ""
	}
	if i := strings.Index(mrl, "://"); i > 0 {
		return "", false
	}
	return mrl, mrl != ""
}

func (access) Open(t *module.Thread, mrl string) error {
	path, ok := Path(mrl)
	if !ok {
		return fmt.Errorf("file access: unsupported MRL %q", mrl)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file access: %w", err)
	}
	t.Private = f
	return nil
}

func (access) Read(t *module.Thread, p []byte) (int, error) {
	f, ok := t.Private.(*os.File)
	if !ok {
		return 0, ErrNotOpen
	}
	return f.Read(p)
}

func (access) Seek(t *module.Thread, offset int64) error {
	f, ok := t.Private.(*os.File)
	if !ok {
		return ErrNotOpen
	}
	_, err := f.Seek(offset, io.SeekStart)
	return err
}

func (access) Close(t *module.Thread) {
	if f, ok := t.Private.(*os.File); ok {
		f.Close()
		t.Private = nil
	}
}

func probe(data module.ProbeData) (int, error) {
	path, ok := Path(data.Target)
	if !ok {
		return 0, nil
	}
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return ScoreExists, nil
	}
	return ScoreFileURL, nil
}

// Definition returns the module definition.
func Definition() *module.Definition {
	return &module.Definition{
		Name:      Name,
		LongName:  "Standard filesystem file input",
		Version:   "1.0.0",
		Functions: module.MustFunctionTable(module.Provide(module.Acc, module.AccessFunctions(access{}))),
		Probe:     probe,
		Config: []module.ConfigItem{
			{Kind: module.ConfigFrame, Text: "File input"},
			{Kind: module.ConfigSpin, Name: "file-caching", Text: "Caching value in ms", Default: "300", Min: 0, Max: 60000},
		},
	}
}
