// Package bridge is the Instance Driver and Func-Wrapper Factory from
// spec.md §4.8-4.9: it owns a guest module's lifecycle (load, run, resume,
// exit), assembles the global JS-like object tree the import table reads
// its "global" value from, and mints FuncWrapper proxies on demand.
//
// Grounded on the teacher's internal/gojs/run.go (lifecycle shape) and
// internal/gojs/state.go (the State.Close/exit wiring), adapted to the
// hostimports/rtstate split this module uses to avoid an import cycle.
package bridge

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wasmrun/gojshost/internal/argsenv"
	"github.com/wasmrun/gojshost/internal/hostimports"
	"github.com/wasmrun/gojshost/internal/jsvalue"
	"github.com/wasmrun/gojshost/internal/memview"
	"github.com/wasmrun/gojshost/internal/obslog"
	"github.com/wasmrun/gojshost/internal/rtstate"
	"github.com/wasmrun/gojshost/internal/sysshim"
	"github.com/wasmrun/gojshost/internal/timer"
)

// ErrModuleNotLoaded is returned by Run/Resume/GetSP before LoadModule.
var ErrModuleNotLoaded = errors.New("bridge: no module loaded")

// ErrAlreadyExited is returned by Run/Resume after the guest has exited.
var ErrAlreadyExited = errors.New("bridge: module already exited")

// Driver owns one guest module instance end to end: instantiation, the
// run/resume loop, and the exit code the guest eventually reports.
//
// Not safe for concurrent use from multiple goroutines; spec.md §3 models
// the guest as single-threaded and cooperative, and the driver mirrors that.
type Driver struct {
	Runtime   wazero.Runtime
	Log       *logrus.Entry
	RoundTrip RoundTripper

	// Stdout/Stderr receive the guest's buffered console output (spec.md
	// §4.5); default to os.Stdout/os.Stderr when nil.
	Stdout io.Writer
	Stderr io.Writer

	state *rtstate.State
	mod   api.Module

	// argc/argv are written into the guest's linear memory by LoadModule, via
	// argsenv.Write, and are what the guest's "run" export actually expects
	// as its two parameters — GOOS=js never reads WASI-style args_get, so
	// wazero's own ModuleConfig.WithArgs/WithEnv plumbing goes unused here.
	argc, argv uint32

	// runID correlates one loaded instance's log lines; stamped fresh in
	// LoadModule so concurrent Driver instances are distinguishable in logs.
	runID string

	exited   bool
	exitCode int32
	exitErr  error

	// exitCh is the one-shot exit future spec.md §4.8 describes: Run blocks
	// on it after the guest's initial "run" call returns, since a GOOS=js
	// guest's "run" export returns to the host whenever it parks (e.g. after
	// scheduleTimeoutEvent) without having exited yet. onWasmExit and
	// settleExit both close it exactly once, whichever actually finishes the
	// run — a later timer fire resuming the guest to completion, or a trap.
	exitCh   chan struct{}
	exitOnce sync.Once
}

// New returns a Driver bound to an already-configured wazero.Runtime. The
// caller retains ownership of closing the runtime once done with it.
func New(rt wazero.Runtime, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{Runtime: rt, Log: log, exitCh: make(chan struct{})}
}

// signalExit closes exitCh the first time the guest's run is actually
// finished, whether that happens synchronously inside Run's own call or
// later from a timer-driven Resume.
func (d *Driver) signalExit() {
	d.exitOnce.Do(func() { close(d.exitCh) })
}

// LoadModule instantiates compiled against a "go" host module built from
// this driver's state, and captures the resulting api.Module for later
// Run/Resume/GetSP calls. env is exposed to the guest as os.Environ();
// args become os.Args (args[0] conventionally the program name). Both are
// serialised into the guest's linear memory once instantiation completes,
// per spec.md's argv/envp layout.
func (d *Driver) LoadModule(ctx context.Context, compiled wazero.CompiledModule, args []string, env map[string]string) (api.Module, error) {
	stdout, stderr := d.Stdout, d.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	d.runID = uuid.NewString()

	state := rtstate.New(time.Now())
	state.Sys = sysshim.New(stdout, stderr, d.Log)
	state.Sys.SetRunID(d.runID)

	builder := d.Runtime.NewHostModuleBuilder("go")
	hb := hostimports.New(state, d.onWasmExit, d.Log)
	builder = hb.Register(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, errors.Wrap(err, "instantiating go host module")
	}

	mod, err := d.Runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, errors.Wrap(err, "instantiating guest module")
	}

	state.View = memview.New(mod.Memory())
	d.argc, d.argv, err = argsenv.Write(ctx, state.View, args, env)
	if err != nil {
		return nil, errors.Wrap(err, "writing argv/envp")
	}

	global := d.newGlobal(state)
	state.Values = jsvalue.NewValues(global, state)
	state.MakeFuncWrapper = func(id uint32) jsvalue.Callable {
		return &FuncWrapper{ID: id, State: state, Mod: mod, RunID: d.runID, Log: d.Log}
	}
	state.Timers = timer.New(resumerFunc(func(rctx context.Context) error {
		return d.resume(rctx)
	}), d.Log, d.runID)

	d.state = state
	d.mod = mod
	d.exited = false
	d.exitErr = nil
	d.exitCh = make(chan struct{})
	d.exitOnce = sync.Once{}
	return mod, nil
}

// resumerFunc adapts a plain function to timer.Resumer.
type resumerFunc func(ctx context.Context) error

func (f resumerFunc) Resume(ctx context.Context) error { return f(ctx) }

// Run calls the guest's exported "run" function, starting it from main, and
// awaits the guest's exit future before returning: a GOOS=js guest's "run"
// export can return to the host merely because it parked (e.g. after
// scheduling a timeout), well before it actually exits. Run only completes
// once runtime.wasmExit has actually fired, whether that happens inside this
// same call or later, off a timer-driven Resume.
func (d *Driver) Run(ctx context.Context) (int32, error) {
	if d.mod == nil {
		return 0, ErrModuleNotLoaded
	}
	if d.exited {
		return 0, ErrAlreadyExited
	}
	_, callErr := d.mod.ExportedFunction("run").Call(ctx, uint64(d.argc), uint64(d.argv))
	code, err := d.settleExit(callErr)
	if err != nil {
		return code, err
	}
	if d.exited {
		return code, nil
	}

	select {
	case <-d.exitCh:
		if d.exitErr != nil {
			return 0, d.exitErr
		}
		return d.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Resume calls the guest's exported "resume" function, continuing it past a
// previously staged event (a fired timer or func-wrapper invocation).
func (d *Driver) Resume(ctx context.Context) error {
	if d.mod == nil {
		return ErrModuleNotLoaded
	}
	if d.exited {
		return ErrAlreadyExited
	}
	_, err := d.mod.ExportedFunction("resume").Call(ctx)
	_, err2 := d.settleExit(err)
	return err2
}

func (d *Driver) resume(ctx context.Context) error { return d.Resume(ctx) }

// GetSP returns the guest's current stack pointer, per spec.md §4.8.
func (d *Driver) GetSP(ctx context.Context) (uint32, error) {
	if d.mod == nil {
		return 0, ErrModuleNotLoaded
	}
	results, err := d.mod.ExportedFunction("getsp").Call(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "getsp")
	}
	return uint32(results[0]), nil
}

// Exited reports whether the guest has finished, either by calling
// runtime.wasmExit or by trapping, and the exit code wasmExit reported (0
// after a trap).
func (d *Driver) Exited() (bool, int32) { return d.exited, d.exitCode }

// onWasmExit is the hostimports.ExitFunc this driver registers: it is
// called synchronously from within the wasmExit import. Closing the module
// here (matching the teacher's runtime.WasmExit) is what actually unwinds
// the guest's call stack, so the pending run/resume's Call returns a
// *sys.ExitError rather than running off the end of main.
func (d *Driver) onWasmExit(ctx context.Context, mod api.Module, code int32) {
	d.exited = true
	d.exitCode = code
	if d.state != nil {
		d.state.Reset()
	}
	obslog.GuestExit(d.Log, d.runID, code)
	_ = mod.CloseWithExitCode(ctx, uint32(code))
	d.signalExit()
}

// settleExit normalizes a guest call's outcome. A *sys.ExitError is the
// expected way run/resume unwinds once wasmExit closes the module — that is
// success, not a trap, so its code (already captured by onWasmExit) is
// returned with a nil error. Anything else is a genuine abort.
func (d *Driver) settleExit(err error) (int32, error) {
	if err == nil {
		return d.exitCode, nil
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode()), nil
	}
	d.exited = true
	d.exitErr = err
	d.signalExit()
	return 0, err
}
