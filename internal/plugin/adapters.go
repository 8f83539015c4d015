package plugin

import (
	"errors"
	"fmt"
	"io"

	lua "github.com/yuin/gopher-lua"

	"github.com/Jasonic/vlc/internal/module"
	plua "github.com/Jasonic/vlc/internal/plugin/lua"
)

// ErrPluginCall is returned when a lifecycle function reports failure by
// returning false.
var ErrPluginCall = errors.New("plugin call failed")

// adapter returns the function table entry bridging c to the script.
func (h *Host) adapter(c module.Capability) module.Entry {
	switch c {
	case module.CapabilityInterface:
		return module.Provide(module.Intf, module.InterfaceFunctions(&luaInterface{h}))
	case module.CapabilityAccess:
		return module.Provide(module.Acc, module.AccessFunctions(&luaAccess{h}))
	case module.CapabilityInput:
		return module.Provide(module.In, module.InputFunctions(&luaInput{h}))
	case module.CapabilityDecaps:
		return module.Provide(module.Demux, module.DecapsFunctions(&luaDecaps{h}))
	case module.CapabilityDecoder:
		return module.Provide(module.Dec, module.DecoderFunctions(&luaDecoder{h}))
	case module.CapabilityMotion:
		return module.Provide(module.Motion, module.MotionFunctions(&luaMotion{h}))
	case module.CapabilityIDCT:
		return module.Provide(module.IDCT, module.IDCTFunctions(&luaIDCT{h}))
	case module.CapabilityAudioOutput:
		return module.Provide(module.Aout, module.AudioOutputFunctions(&luaAudioOutput{h}))
	case module.CapabilityVideoOutput:
		return module.Provide(module.Vout, module.VideoOutputFunctions(&luaVideoOutput{h}))
	case module.CapabilityYUV:
		return module.Provide(module.YUV, module.ColorConvertFunctions(&luaColorConvert{h}))
	case module.CapabilityIMDCT:
		return module.Provide(module.IMDCT, module.IMDCTFunctions(&luaIMDCT{h}))
	case module.CapabilityDownmix:
		return module.Provide(module.Downmix, module.DownmixFunctions(&luaDownmix{h}))
	case module.CapabilityMemcpy:
		return module.Provide(module.Memcpy, module.FastCopyFunctions(&luaMemcpy{h}))
	}
	// Capability sets only ever hold known bits; NewFunctionTable rejects
	// the zero entry if one slips through.
	return module.Entry{}
}

// call invokes table.fn and interprets the result as a lifecycle status:
// false, or nil followed by a message, is a failure.
func (h *Host) call(c module.Capability, fn string, optional bool, args ...any) ([]any, error) {
	results, err := h.callField(c.String(), fn, optional, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}
	switch r := results[0].(type) {
	case bool:
		if !r {
			return nil, callFailure(c, fn, results)
		}
	case nil:
		if len(results) > 1 {
			return nil, callFailure(c, fn, results)
		}
	}
	return results, nil
}

func callFailure(c module.Capability, fn string, results []any) error {
	if len(results) > 1 {
		if msg, ok := results[1].(string); ok && msg != "" {
			return fmt.Errorf("%w: %s.%s: %s", ErrPluginCall, c, fn, msg)
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrPluginCall, c, fn)
}

// callThread is call with the session object prepended to args.
func (h *Host) callThread(c module.Capability, fn string, optional bool, t *module.Thread, args ...any) ([]any, error) {
	obj, err := h.object(t)
	if err != nil {
		return nil, err
	}
	return h.call(c, fn, optional, append([]any{obj}, args...)...)
}

// notify is callThread for functions with no error return. Failures are
// logged.
func (h *Host) notify(c module.Capability, fn string, optional bool, t *module.Thread, args ...any) []any {
	results, err := h.callThread(c, fn, optional, t, args...)
	if err != nil {
		h.logger.Warn().Err(err).Str("capability", c.String()).Str("fn", fn).Msg("plugin call failed")
	}
	return results
}

// compute calls a stateless function and logs failures.
func (h *Host) compute(c module.Capability, fn string, args ...any) []any {
	results, err := h.callField(c.String(), fn, false, args...)
	if err != nil {
		h.logger.Warn().Err(err).Str("capability", c.String()).Str("fn", fn).Msg("plugin call failed")
	}
	return results
}

func first(results []any) any {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

func numbers[T ~int16 | ~uint8 | ~uint16 | ~float32](src []T) []any {
	out := make([]any, len(src))
	for i, v := range src {
		out[i] = v
	}
	return out
}

func packetTable(p module.Packet) map[string]any {
	return map[string]any{
		"stream_id": p.StreamID,
		"pts":       p.PTS,
		"payload":   p.Payload,
	}
}

// packets decodes an array of {stream_id, pts, payload} tables.
func packets(v any) []module.Packet {
	arr, _ := v.([]any)
	out := make([]module.Packet, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		var p module.Packet
		p.StreamID, _ = plua.Int(m["stream_id"])
		if pts, ok := plua.Number(m["pts"]); ok {
			p.PTS = int64(pts)
		}
		if payload, ok := m["payload"].(string); ok {
			p.Payload = []byte(payload)
		}
		out = append(out, p)
	}
	return out
}

// intf

type luaInterface struct{ h *Host }

func (a *luaInterface) Open(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityInterface, "open", false, t)
	return err
}

func (a *luaInterface) Close(t *module.Thread) {
	a.h.notify(module.CapabilityInterface, "close", false, t)
	a.h.forget(t)
}

func (a *luaInterface) Run(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityInterface, "run", false, t)
	return err
}

// access

type luaAccess struct{ h *Host }

func (a *luaAccess) Open(t *module.Thread, mrl string) error {
	_, err := a.h.callThread(module.CapabilityAccess, "open", false, t, mrl)
	return err
}

// Read copies the string returned by access.read(obj, n) into p. An empty
// or nil result is end of stream.
func (a *luaAccess) Read(t *module.Thread, p []byte) (int, error) {
	results, err := a.h.callThread(module.CapabilityAccess, "read", false, t, len(p))
	if err != nil {
		return 0, err
	}
	s, _ := first(results).(string)
	if s == "" {
		return 0, io.EOF
	}
	return copy(p, s), nil
}

func (a *luaAccess) Seek(t *module.Thread, offset int64) error {
	if !a.h.hasField(module.CapabilityAccess, "seek") {
		return module.ErrUnsupported
	}
	_, err := a.h.callThread(module.CapabilityAccess, "seek", true, t, offset)
	return err
}

func (a *luaAccess) Close(t *module.Thread) {
	a.h.notify(module.CapabilityAccess, "close", false, t)
	a.h.forget(t)
}

// input

type luaInput struct{ h *Host }

func (a *luaInput) Init(t *module.Thread) {
	a.h.notify(module.CapabilityInput, "init", false, t)
}

func (a *luaInput) Open(t *module.Thread) {
	a.h.notify(module.CapabilityInput, "open", false, t)
}

func (a *luaInput) Close(t *module.Thread) {
	a.h.notify(module.CapabilityInput, "close", false, t)
}

func (a *luaInput) End(t *module.Thread) {
	a.h.notify(module.CapabilityInput, "finish", false, t)
	a.h.forget(t)
}

func (a *luaInput) Read(t *module.Thread) ([]module.Packet, error) {
	results, err := a.h.callThread(module.CapabilityInput, "read", false, t)
	if err != nil {
		return nil, err
	}
	v := first(results)
	if v == nil {
		return nil, io.EOF
	}
	return packets(v), nil
}

func (a *luaInput) Demux(t *module.Thread, p module.Packet) error {
	_, err := a.h.callThread(module.CapabilityInput, "demux", false, t, packetTable(p))
	return err
}

func (a *luaInput) SetProgram(t *module.Thread, p module.Program) error {
	return a.optional(t, "set_program", map[string]any{"id": p.ID, "pid": p.PID})
}

func (a *luaInput) SetArea(t *module.Thread, area module.Area) error {
	return a.optional(t, "set_area", map[string]any{"id": area.ID, "start": area.Start, "size": area.Size})
}

func (a *luaInput) Rewind(t *module.Thread) error {
	return a.optional(t, "rewind")
}

func (a *luaInput) Seek(t *module.Thread, offset int64) error {
	return a.optional(t, "seek", offset)
}

func (a *luaInput) optional(t *module.Thread, fn string, args ...any) error {
	if !a.h.hasField(module.CapabilityInput, fn) {
		return module.ErrUnsupported
	}
	_, err := a.h.callThread(module.CapabilityInput, fn, true, t, args...)
	return err
}

// demux

type luaDecaps struct{ h *Host }

func (a *luaDecaps) Open(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityDecaps, "open", false, t)
	return err
}

func (a *luaDecaps) Demux(t *module.Thread, p module.Packet) ([]module.Packet, error) {
	results, err := a.h.callThread(module.CapabilityDecaps, "demux", false, t, packetTable(p))
	if err != nil {
		return nil, err
	}
	return packets(first(results)), nil
}

func (a *luaDecaps) Close(t *module.Thread) {
	a.h.notify(module.CapabilityDecaps, "close", false, t)
	a.h.forget(t)
}

// dec

type luaDecoder struct{ h *Host }

// Run feeds every packet to dec.run(cfg, packet) and signals end of input
// with dec.run(cfg, nil).
func (a *luaDecoder) Run(cfg *module.DecoderConfig) error {
	state, err := a.h.luaState()
	if err != nil {
		return err
	}
	fields := map[string]any{
		"stream_id": cfg.StreamID,
		"type":      cfg.Type,
	}
	if cfg.Thread != nil {
		fields["name"] = cfg.Thread.Name
		fields["params"] = cfg.Thread.Params
	}
	obj := state.NewObject(fields)

	for p := range cfg.Input {
		if _, err := a.h.call(module.CapabilityDecoder, "run", false, obj, packetTable(p)); err != nil {
			return err
		}
	}
	_, err = a.h.call(module.CapabilityDecoder, "run", false, obj, nil)
	return err
}

// motion

type luaMotion struct{ h *Host }

func (a *luaMotion) Compensate(sel module.MotionSelector, dst, src []byte, stride, height int) {
	results := a.h.compute(module.CapabilityMotion, "compensate",
		map[string]any{"field": sel.Field, "average": sel.Average, "variant": sel.Variant, "index": sel.Index()},
		dst, src, stride, height)
	if s, ok := first(results).(string); ok {
		copy(dst, s)
	}
}

// idct

type luaIDCT struct{ h *Host }

// Init hands idct.init a fresh table that is passed back on every call.
func (a *luaIDCT) Init() any {
	state, err := a.h.luaState()
	if err != nil {
		a.h.logger.Warn().Err(err).Msg("idct init")
		return nil
	}
	obj := state.NewObject(map[string]any{})
	a.h.compute(module.CapabilityIDCT, "init", obj)
	return obj
}

func (a *luaIDCT) SparseAdd(b *module.Block, dst []byte, stride int, st any, last int) {
	a.transform("sparse_add", b, dst, stride, st, last)
}

func (a *luaIDCT) Add(b *module.Block, dst []byte, stride int, st any, last int) {
	a.transform("add", b, dst, stride, st, last)
}

func (a *luaIDCT) SparseCopy(b *module.Block, dst []byte, stride int, st any, last int) {
	a.transform("sparse_copy", b, dst, stride, st, last)
}

func (a *luaIDCT) Copy(b *module.Block, dst []byte, stride int, st any, last int) {
	a.transform("copy", b, dst, stride, st, last)
}

// transform calls fn(block, dst, stride, state, last); the returned string
// replaces dst.
func (a *luaIDCT) transform(fn string, b *module.Block, dst []byte, stride int, st any, last int) {
	if _, ok := st.(*lua.LTable); !ok {
		st = nil
	}
	results := a.h.compute(module.CapabilityIDCT, fn, numbers(b[:]), dst, stride, st, last)
	if s, ok := first(results).(string); ok {
		copy(dst, s)
	}
}

func (a *luaIDCT) NormScan(scan *module.ScanTables) {
	if !a.h.hasField(module.CapabilityIDCT, "norm_scan") {
		return
	}
	results := a.h.compute(module.CapabilityIDCT, "norm_scan", numbers(scan[0][:]), numbers(scan[1][:]))
	if len(results) >= 2 {
		plua.Ints(results[0], scan[0][:])
		plua.Ints(results[1], scan[1][:])
	}
}

// aout

type luaAudioOutput struct{ h *Host }

func (a *luaAudioOutput) Open(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityAudioOutput, "open", false, t)
	return err
}

func (a *luaAudioOutput) SetFormat(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityAudioOutput, "set_format", false, t)
	return err
}

func (a *luaAudioOutput) BufInfo(t *module.Thread, limit int64) int64 {
	n, _ := plua.Number(first(a.h.notify(module.CapabilityAudioOutput, "buf_info", false, t, limit)))
	return int64(n)
}

func (a *luaAudioOutput) Play(t *module.Thread, buf []byte) {
	a.h.notify(module.CapabilityAudioOutput, "play", false, t, buf)
}

func (a *luaAudioOutput) Close(t *module.Thread) {
	a.h.notify(module.CapabilityAudioOutput, "close", false, t)
	a.h.forget(t)
}

// vout

type luaVideoOutput struct{ h *Host }

func (a *luaVideoOutput) Create(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityVideoOutput, "create", false, t)
	return err
}

func (a *luaVideoOutput) Init(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityVideoOutput, "init", false, t)
	return err
}

func (a *luaVideoOutput) End(t *module.Thread) {
	a.h.notify(module.CapabilityVideoOutput, "finish", false, t)
}

func (a *luaVideoOutput) Destroy(t *module.Thread) {
	a.h.notify(module.CapabilityVideoOutput, "destroy", false, t)
	a.h.forget(t)
}

func (a *luaVideoOutput) Manage(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityVideoOutput, "manage", false, t)
	return err
}

func (a *luaVideoOutput) Display(t *module.Thread) {
	a.h.notify(module.CapabilityVideoOutput, "display", false, t)
}

func (a *luaVideoOutput) SetPalette(t *module.Thread, p module.Palette) {
	a.h.notify(module.CapabilityVideoOutput, "set_palette", true, t, map[string]any{
		"red":          numbers(p.Red),
		"green":        numbers(p.Green),
		"blue":         numbers(p.Blue),
		"transparency": numbers(p.Transparency),
	})
}

// yuv

type luaColorConvert struct{ h *Host }

func (a *luaColorConvert) Init(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityYUV, "init", false, t)
	return err
}

func (a *luaColorConvert) Reset(t *module.Thread) error {
	_, err := a.h.callThread(module.CapabilityYUV, "reset", false, t)
	return err
}

func (a *luaColorConvert) End(t *module.Thread) {
	a.h.notify(module.CapabilityYUV, "finish", false, t)
	a.h.forget(t)
}

// imdct

type luaIMDCT struct{ h *Host }

func (a *luaIMDCT) Init(s *module.IMDCTState) {
	state, err := a.h.luaState()
	if err != nil {
		a.h.logger.Warn().Err(err).Msg("imdct init")
		return
	}
	obj := state.NewObject(map[string]any{})
	a.h.compute(module.CapabilityIMDCT, "init", obj)
	s.Private = obj
}

func (a *luaIMDCT) IMDCT256(s *module.IMDCTState, data, delay []float32) {
	a.transform("imdct_256", s, data, delay)
}

func (a *luaIMDCT) IMDCT256NoLap(s *module.IMDCTState, data, delay []float32) {
	a.transform("imdct_256_nolap", s, data, delay)
}

func (a *luaIMDCT) IMDCT512(s *module.IMDCTState, data, delay []float32) {
	a.transform("imdct_512", s, data, delay)
}

func (a *luaIMDCT) IMDCT512NoLap(s *module.IMDCTState, data, delay []float32) {
	a.transform("imdct_512_nolap", s, data, delay)
}

// transform calls fn(state, data, delay) and copies the returned data and
// delay arrays back.
func (a *luaIMDCT) transform(fn string, s *module.IMDCTState, data, delay []float32) {
	var st any
	if s != nil {
		if obj, ok := s.Private.(*lua.LTable); ok {
			st = obj
		}
	}
	results := a.h.compute(module.CapabilityIMDCT, fn, st, numbers(data), numbers(delay))
	if len(results) > 0 {
		plua.Floats(results[0], data)
	}
	if len(results) > 1 {
		plua.Floats(results[1], delay)
	}
}

// downmix

type luaDownmix struct{ h *Host }

func (a *luaDownmix) Downmix3F2R(samples []float32, p *module.DownmixParams) {
	a.downmix("downmix_3f_2r", samples, p)
}

func (a *luaDownmix) Downmix3F1R(samples []float32, p *module.DownmixParams) {
	a.downmix("downmix_3f_1r", samples, p)
}

func (a *luaDownmix) Downmix2F2R(samples []float32, p *module.DownmixParams) {
	a.downmix("downmix_2f_2r", samples, p)
}

func (a *luaDownmix) Downmix2F1R(samples []float32, p *module.DownmixParams) {
	a.downmix("downmix_2f_1r", samples, p)
}

func (a *luaDownmix) Downmix3F0R(samples []float32, p *module.DownmixParams) {
	a.downmix("downmix_3f_0r", samples, p)
}

func (a *luaDownmix) downmix(fn string, samples []float32, p *module.DownmixParams) {
	params := map[string]any{}
	if p != nil {
		params["unit"] = p.Unit
		params["clev"] = p.CLev
		params["slev"] = p.SLev
	}
	plua.Floats(first(a.h.compute(module.CapabilityDownmix, fn, numbers(samples), params)), samples)
}

func (a *luaDownmix) StreamSample2ChToS16(out []int16, left, right []float32) {
	plua.Ints(first(a.h.compute(module.CapabilityDownmix, "stream_sample_2ch_to_s16", numbers(left), numbers(right))), out)
}

func (a *luaDownmix) StreamSample1ChToS16(out []int16, center []float32) {
	plua.Ints(first(a.h.compute(module.CapabilityDownmix, "stream_sample_1ch_to_s16", numbers(center))), out)
}

// memcpy

type luaMemcpy struct{ h *Host }

// Copy returns the number of bytes copied from the string memcpy.copy
// returns.
func (a *luaMemcpy) Copy(dst, src []byte) int {
	s, _ := first(a.h.compute(module.CapabilityMemcpy, "copy", dst, src)).(string)
	return copy(dst, s)
}
