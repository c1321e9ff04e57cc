package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"

	"github.com/wasmrun/gojshost/gojs"
)

func defaultRoundTripper() http.RoundTripper { return http.DefaultTransport }

var (
	runEnvs            []string
	runEnvInherit      bool
	runTimeout         time.Duration
	runCompCacheDir    string
	runRoundTripEnable bool
)

var runCmd = &cobra.Command{
	Use:   "run <path to wasm file> [-- <wasm args>]",
	Short: "Runs a GOARCH=wasm GOOS=js binary to completion",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runEnvs, "env", nil,
		"key=value pair of environment variable to expose to the binary. Can be specified multiple times.")
	runCmd.Flags().BoolVar(&runEnvInherit, "env-inherit", false,
		"Inherits environment variables from the calling process; --env entries override inherited ones with the same key.")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0,
		"If the binary runs longer than this duration, abort it. Zero disables the timeout.")
	runCmd.Flags().StringVar(&runCompCacheDir, "compilation-cache", "",
		"Writeable directory for native code compiled from wasm, reused across runs.")
	runCmd.Flags().BoolVar(&runRoundTripEnable, "enable-fetch", false,
		"Wires the guest's net/http calls through the host's default HTTP transport.")
}

func runRun(cmd *cobra.Command, args []string) error {
	wasmPath := args[0]
	wasmArgs := args[1:]
	if len(wasmArgs) > 0 && wasmArgs[0] == "--" {
		wasmArgs = wasmArgs[1:]
	}

	env, err := parseEnv(runEnvs, runEnvInherit)
	if err != nil {
		return err
	}

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("reading wasm binary: %w", err)
	}

	rtc := wazero.NewRuntimeConfig()
	if runCompCacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(runCompCacheDir)
		if err != nil {
			return fmt.Errorf("invalid --compilation-cache: %w", err)
		}
		rtc = rtc.WithCompilationCache(cache)
	}

	ctx := context.Background()
	if runRoundTripEnable {
		ctx = gojs.WithRoundTripper(ctx, defaultRoundTripper())
	}
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
		rtc = rtc.WithCloseOnContextDone(true)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtc)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("compiling wasm binary: %w", err)
	}

	wasmExe := filepath.Base(wasmPath)
	code, err := gojs.Run(ctx, rt, compiled, gojs.Config{
		Args:   append([]string{wasmExe}, wasmArgs...),
		Env:    env,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Log:    newLogger(),
	})
	if err != nil {
		return fmt.Errorf("running wasm binary: %w", err)
	}
	if code != 0 {
		return exitCodeError(code)
	}
	return nil
}

// parseEnv builds the environment map passed to gojs.Config, optionally
// seeded from the calling process's own environment.
func parseEnv(envs []string, inherit bool) (map[string]string, error) {
	env := map[string]string{}
	if inherit {
		for _, e := range os.Environ() {
			k, v, ok := strings.Cut(e, "=")
			if ok {
				env[k] = v
			}
		}
	}
	for _, e := range envs {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --env value %q, want key=value", e)
		}
		env[k] = v
	}
	return env, nil
}
