package module

import (
	"fmt"
	"reflect"
)

// InterfaceFunctions drives a user interface module.
type InterfaceFunctions interface {
	Open(t *Thread) error
	Close(t *Thread)
	Run(t *Thread) error
}

// AccessFunctions reads raw bytes from a medium.
type AccessFunctions interface {
	Open(t *Thread, mrl string) error
	Read(t *Thread, p []byte) (int, error)
	Seek(t *Thread, offset int64) error
	Close(t *Thread)
}

// InputFunctions reads and demultiplexes a stream.
type InputFunctions interface {
	Init(t *Thread)
	Open(t *Thread)
	Close(t *Thread)
	End(t *Thread)
	Read(t *Thread) ([]Packet, error)
	Demux(t *Thread, p Packet) error
	SetProgram(t *Thread, p Program) error
	SetArea(t *Thread, a Area) error
	Rewind(t *Thread) error
	Seek(t *Thread, offset int64) error
}

// DecapsFunctions splits a container packet into elementary stream packets.
type DecapsFunctions interface {
	Open(t *Thread) error
	Demux(t *Thread, p Packet) ([]Packet, error)
	Close(t *Thread)
}

// DecoderFunctions runs a decoder until its input is exhausted.
type DecoderFunctions interface {
	Run(cfg *DecoderConfig) error
}

// MotionFunctions performs motion compensation.
type MotionFunctions interface {
	Compensate(sel MotionSelector, dst, src []byte, stride, height int)
}

// IDCTFunctions performs the inverse discrete cosine transform.
type IDCTFunctions interface {
	Init() any
	SparseAdd(b *Block, dst []byte, stride int, state any, last int)
	Add(b *Block, dst []byte, stride int, state any, last int)
	SparseCopy(b *Block, dst []byte, stride int, state any, last int)
	Copy(b *Block, dst []byte, stride int, state any, last int)
	NormScan(scan *ScanTables)
}

// AudioOutputFunctions plays PCM audio.
type AudioOutputFunctions interface {
	Open(t *Thread) error
	SetFormat(t *Thread) error
	BufInfo(t *Thread, limit int64) int64
	Play(t *Thread, buf []byte)
	Close(t *Thread)
}

// VideoOutputFunctions displays pictures.
type VideoOutputFunctions interface {
	Create(t *Thread) error
	Init(t *Thread) error
	End(t *Thread)
	Destroy(t *Thread)
	Manage(t *Thread) error
	Display(t *Thread)
	SetPalette(t *Thread, p Palette)
}

// ColorConvertFunctions converts YUV pictures for a video output.
type ColorConvertFunctions interface {
	Init(t *Thread) error
	Reset(t *Thread) error
	End(t *Thread)
}

// IMDCTFunctions performs the inverse modified DCT for AC3 audio.
type IMDCTFunctions interface {
	Init(s *IMDCTState)
	IMDCT256(s *IMDCTState, data, delay []float32)
	IMDCT256NoLap(s *IMDCTState, data, delay []float32)
	IMDCT512(s *IMDCTState, data, delay []float32)
	IMDCT512NoLap(s *IMDCTState, data, delay []float32)
}

// DownmixFunctions folds multichannel audio down to stereo.
type DownmixFunctions interface {
	Downmix3F2R(samples []float32, p *DownmixParams)
	Downmix3F1R(samples []float32, p *DownmixParams)
	Downmix2F2R(samples []float32, p *DownmixParams)
	Downmix2F1R(samples []float32, p *DownmixParams)
	Downmix3F0R(samples []float32, p *DownmixParams)
	StreamSample2ChToS16(out []int16, left, right []float32)
	StreamSample1ChToS16(out []int16, center []float32)
}

// FastCopyFunctions copies memory.
type FastCopyFunctions interface {
	Copy(dst, src []byte) int
}

// Cap is a typed key tying a capability to its operation set. Selecting a
// variant through a Cap is checked by the compiler; selecting one the handle
// was not bound to is reported as ErrCapabilityMismatch.
type Cap[T any] struct {
	capability Capability
}

// Capability returns the tag the key stands for.
func (k Cap[T]) Capability() Capability {
	return k.capability
}

// Function table keys.
var (
	Intf    = Cap[InterfaceFunctions]{CapabilityInterface}
	Acc     = Cap[AccessFunctions]{CapabilityAccess}
	In      = Cap[InputFunctions]{CapabilityInput}
	Demux   = Cap[DecapsFunctions]{CapabilityDecaps}
	Dec     = Cap[DecoderFunctions]{CapabilityDecoder}
	Motion  = Cap[MotionFunctions]{CapabilityMotion}
	IDCT    = Cap[IDCTFunctions]{CapabilityIDCT}
	Aout    = Cap[AudioOutputFunctions]{CapabilityAudioOutput}
	Vout    = Cap[VideoOutputFunctions]{CapabilityVideoOutput}
	YUV     = Cap[ColorConvertFunctions]{CapabilityYUV}
	IMDCT   = Cap[IMDCTFunctions]{CapabilityIMDCT}
	Downmix = Cap[DownmixFunctions]{CapabilityDownmix}
	Memcpy  = Cap[FastCopyFunctions]{CapabilityMemcpy}
)

// Entry is one variant of a function table, built with Provide.
type Entry struct {
	capability Capability
	impl       any
}

// Capability returns the capability the entry implements.
func (e Entry) Capability() Capability {
	return e.capability
}

// Provide binds an implementation to its capability.
func Provide[T any](key Cap[T], impl T) Entry {
	return Entry{capability: key.capability, impl: impl}
}

// FunctionTable holds exactly one variant per declared capability.
type FunctionTable struct {
	set     CapabilitySet
	entries map[Capability]any
}

// NewFunctionTable validates entries and builds a table. The table's
// capability set is derived from the entries.
func NewFunctionTable(entries ...Entry) (FunctionTable, error) {
	ft := FunctionTable{entries: make(map[Capability]any, len(entries))}
	for _, e := range entries {
		if !e.capability.Valid() {
			return FunctionTable{}, fmt.Errorf("%w: %s", ErrUnknownCapability, e.capability)
		}
		if isNil(e.impl) {
			return FunctionTable{}, fmt.Errorf("%w: nil implementation for %s", ErrInvalidDefinition, e.capability)
		}
		if ft.set.Has(e.capability) {
			return FunctionTable{}, fmt.Errorf("%w: %s provided twice", ErrInvalidDefinition, e.capability)
		}
		ft.set |= CapabilitySet(e.capability)
		ft.entries[e.capability] = e.impl
	}
	if ft.set.Empty() {
		return FunctionTable{}, fmt.Errorf("%w: no capability provided", ErrInvalidDefinition)
	}
	return ft, nil
}

// MustFunctionTable is NewFunctionTable for compiled-in modules.
func MustFunctionTable(entries ...Entry) FunctionTable {
	ft, err := NewFunctionTable(entries...)
	if err != nil {
		panic(err)
	}
	return ft
}

// Capabilities returns the set of capabilities the table implements.
func (ft FunctionTable) Capabilities() CapabilitySet {
	return ft.set
}

// variant returns the raw implementation for c.
func (ft FunctionTable) variant(c Capability) (any, bool) {
	impl, ok := ft.entries[c]
	return impl, ok
}

// Lookup returns the typed variant for key.
func Lookup[T any](ft FunctionTable, key Cap[T]) (T, bool) {
	var zero T
	impl, ok := ft.variant(key.capability)
	if !ok {
		return zero, false
	}
	typed, ok := impl.(T)
	return typed, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
