// Package gojs allows you to run wasm binaries compiled by Go when
// `GOARCH=wasm GOOS=js`. See Run for a worked example.
//
// # Experimental
//
// Go defines js "EXPERIMENTAL... exempt from the Go compatibility promise."
// This package follows that lead: its host-side bridge tracks whatever the
// GOOS=js runtime currently expects, and may need to change shape as new Go
// releases change that contract.
package gojs

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"

	"github.com/wasmrun/gojshost/internal/bridge"
)

// roundTripperKey is unexported: callers set it via WithRoundTripper, never
// directly, mirroring the teacher's context-key convention for optional,
// rarely-set configuration.
type roundTripperKey struct{}

// WithRoundTripper sets the http.RoundTripper used to satisfy net/http calls
// made by Wasm compiled with GOARCH=wasm GOOS=js, which shells out to the
// "fetch" global rather than a real socket.
//
// For example:
//
//	ctx = gojs.WithRoundTripper(ctx, http.DefaultTransport)
//	code, err := gojs.Run(ctx, r, compiled, gojs.Config{Args: os.Args})
//
// Without this, a guest's outbound HTTP call fails since "fetch" is left
// undefined on the global object.
func WithRoundTripper(ctx context.Context, rt http.RoundTripper) context.Context {
	return context.WithValue(ctx, roundTripperKey{}, rt)
}

func roundTripperFromContext(ctx context.Context) http.RoundTripper {
	rt, _ := ctx.Value(roundTripperKey{}).(http.RoundTripper)
	return rt
}

// Config configures a single Run of a GOARCH=wasm GOOS=js binary.
type Config struct {
	// Args become os.Args in the guest; conventionally Args[0] is the
	// program name.
	Args []string
	// Env becomes the guest's os.Environ().
	Env map[string]string
	// Stdout/Stderr receive the guest's buffered console output. Default to
	// os.Stdout/os.Stderr when nil.
	Stdout, Stderr io.Writer
	// Log receives structured diagnostics (guest exit, timer misbehavior,
	// stub syscall hits). Defaults to logrus's standard logger when nil.
	Log *logrus.Entry
}

// Run instantiates a new "go" host module plus the given compiled guest
// module, runs it to completion, and returns its exit code.
//
// # Parameters
//
//   - ctx: context to use when instantiating and running the module; carry
//     an http.RoundTripper via WithRoundTripper if the guest performs
//     net/http calls.
//   - r: runtime to instantiate both the host and guest module in.
//   - compiled: guest binary compiled with `GOARCH=wasm GOOS=js`.
//   - config: args, env, and I/O for this run.
//
// # Example
//
// After compiling your Wasm binary with wazero.Runtime's CompileModule, run
// it like below:
//
//	// Use a compilation cache to reduce the cost of repeated runs.
//	cacheDir, _ := wazero.NewCompilationCacheWithDir(".build")
//	rc := wazero.NewRuntimeConfig().WithCompilationCache(cacheDir)
//	r := wazero.NewRuntimeWithConfig(ctx, rc)
//
//	code, err := gojs.Run(ctx, r, compiled, gojs.Config{Args: []string{"app"}})
//
// # Notes
//
//   - When err is nil, the guest module has been closed by its own
//     runtime.wasmExit by the time Run returns. When err is non-nil, Run
//     does not close the guest module itself.
//   - A non-zero code with a nil error means the guest called os.Exit(code);
//     err is only non-nil for genuine host-side failures (a trap, a failed
//     instantiation).
func Run(ctx context.Context, r wazero.Runtime, compiled wazero.CompiledModule, config Config) (int32, error) {
	d := bridge.New(r, config.Log)
	d.Stdout = config.Stdout
	d.Stderr = config.Stderr
	d.RoundTrip = roundTripperFromContext(ctx)

	if _, err := d.LoadModule(ctx, compiled, config.Args, config.Env); err != nil {
		return 0, err
	}
	return d.Run(ctx)
}
