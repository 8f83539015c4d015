package module

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Need selects the best loaded module for capability c and pins it.
//
// Every loaded module declaring c is probed with data; the scorer ranks the
// results and the strictly highest positive score wins, ties going to the
// earliest registered module. Unloaded and faulty modules are skipped. A probe
// that panics or fails marks its module faulty and aborts the request with a
// *ProbeError; a faulty dynamic module nobody holds is unloaded right away.
// When nothing scores above zero a *NotFoundError is returned.
//
// Probes run under the bank lock, one after another.
func (b *Bank) Need(ctx context.Context, c Capability, data ProbeData) (*Handle, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data.Capability = c

	b.mu.Lock()
	h, events, faulty, err := b.needLocked(c, data)
	b.mu.Unlock()

	if faulty != nil {
		events = append(events, b.unloadFaulty(faulty))
	}
	b.emit(events...)
	return h, err
}

// needLocked probes and scores candidates. When a probe fails and the
// faulty module's library can go at once, it is returned for unloading.
// Must be called with mu held.
func (b *Bank) needLocked(c Capability, data ProbeData) (*Handle, []Event, *descriptor, error) {
	if !b.initialized {
		return nil, nil, nil, ErrNotInitialized
	}

	var (
		best      *descriptor
		bestScore int
	)
	for _, d := range b.modules {
		if d.state != StateLoaded || !d.def.Capabilities().Has(c) {
			continue
		}

		raw, err := d.probe(data)
		if err != nil {
			d.state = StateFaulty
			perr := &ProbeError{Module: d.name(), Err: err}
			b.logger.Error().Err(err).Str("module", d.name()).Stringer("capability", c).Msg("probe failed, module marked faulty")
			events := []Event{{Type: EventFaulty, Module: d.name(), Capability: c, Error: perr}}
			if b.takeFaultyLocked(d) {
				return nil, events, d, perr
			}
			return nil, events, nil, perr
		}

		score := b.scorer.Score(d.info(), raw, data)
		b.logger.Trace().Str("module", d.name()).Stringer("capability", c).Int("raw", raw).Int("score", score).Msg("probed")
		if score > bestScore {
			best, bestScore = d, score
		}
	}

	if best == nil {
		b.logger.Debug().Stringer("capability", c).Str("target", data.Target).Msg("no capable module")
		return nil, nil, nil, &NotFoundError{Capability: c}
	}

	variant, ok := best.def.Functions.variant(c)
	if !ok {
		// Functions.Capabilities() and the entry map are built together.
		return nil, nil, nil, &NotFoundError{Capability: c}
	}

	best.usage++
	best.idle = 0

	h := &Handle{
		id:         uuid.New(),
		bank:       b,
		module:     best,
		capability: c,
		variant:    variant,
	}
	b.logger.Debug().
		Str("module", best.name()).
		Stringer("capability", c).
		Int("score", bestScore).
		Int("usage", best.usage).
		Str("handle", h.id.String()).
		Msg("module needed")
	return h, []Event{{Type: EventNeeded, Module: best.name(), Capability: c}}, nil, nil
}

// Need selects a module for key's capability and resolves its typed
// operation set.
func Need[T any](ctx context.Context, b *Bank, key Cap[T], data ProbeData) (*Lease[T], error) {
	h, err := b.Need(ctx, key.capability, data)
	if err != nil {
		return nil, err
	}
	fns, err := Functions(h, key)
	if err != nil {
		b.Unneed(h)
		return nil, err
	}
	return &Lease[T]{Handle: h, fns: fns}, nil
}
