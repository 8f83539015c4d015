// Package module implements the module bank: the registry of capability
// providers, the probe contest that picks one for a request, and the
// lifecycle that unloads dynamic providers nobody uses.
//
// # Capabilities
//
// A provider declares one or more capabilities (Interface, Access, Input,
// Decaps, Decoder, MotionComp, IDCT, AudioOutput, VideoOutput, ColorConvert,
// IMDCT, Downmix, Memcpy). For each it supplies an implementation of that
// capability's Go interface. Function tables are built with typed keys so a
// provider cannot register the wrong interface for a capability:
//
//	ft := module.MustFunctionTable(
//	    module.Provide(module.Vout, myVout{}),
//	    module.Provide(module.Aout, myAout{}),
//	)
//
// # Selection
//
// Need probes every loaded module that declares the requested capability.
// The Scorer turns each probe's raw score into a rank; the highest positive
// rank wins and ties go to the module registered first. The winner is pinned
// until its Handle is released with Unneed:
//
//	lease, err := module.Need(ctx, bank, module.Vout, module.ProbeData{Target: "x11"})
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//	lease.Functions().Display(thread)
//
// # Lifecycle
//
// Builtin modules are registered at Init and stay until End. Dynamic modules
// come from a Scanner. Every call to Manage ages the modules nobody holds;
// a dynamic module idle for HideDelay consecutive sweeps is unloaded and,
// depending on the Retention policy, removed or kept as unloaded until the
// next Reset.
package module
