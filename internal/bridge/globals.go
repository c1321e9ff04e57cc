package bridge

import (
	"context"
	"crypto/rand"
	"net/http"

	"github.com/wasmrun/gojshost/internal/jsvalue"
	"github.com/wasmrun/gojshost/internal/rtstate"
	"github.com/wasmrun/gojshost/internal/sysshim"
)

// RoundTripper is the fetch transport a Driver optionally dispatches
// outbound HTTP requests through (spec.md's supplemented fetch feature).
// A nil RoundTripper leaves "fetch" undefined on the global object, just as
// the teacher's newJsGlobal does when constructed without one.
type RoundTripper = http.RoundTripper

// newGlobal assembles the "global" object the guest's js.Global() resolves
// to: the handful of constructors and singletons Go's GOOS=js runtime
// references during init and during syscall/net/time operations.
//
// Grounded on the teacher's internal/gojs/builtin.go newJsGlobal, generalized
// to this module's jsvalue.JSVal/Getter/Caller model.
func (d *Driver) newGlobal(state *rtstate.State) *jsvalue.JSVal {
	objectConstructor := jsvalue.NewJSVal(0, "Object").
		WithFunction("constructor", callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
			return &jsvalue.Object{Properties: map[string]interface{}{}}, nil
		}))
	arrayConstructor := jsvalue.NewJSVal(0, "Array").
		WithFunction("constructor", callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
			return &jsvalue.ObjectArray{}, nil
		}))
	uint8ArrayConstructor := jsvalue.NewJSVal(0, "Uint8Array").
		WithFunction("constructor", callableFunc(func(_ context.Context, args ...interface{}) (interface{}, error) {
			n := uint32(args[0].(float64))
			return &jsvalue.ByteArray{Slice: make([]byte, n)}, nil
		}))
	headersConstructor := jsvalue.NewJSVal(0, "Headers").
		WithFunction("constructor", callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
			return &headers{headers: http.Header{}}, nil
		}))
	dateConstructor := jsvalue.NewJSVal(0, "Date").
		WithFunction("constructor", callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
			return jsDate, nil
		}))

	crypto := jsvalue.NewJSVal(0, "crypto").
		WithFunction("getRandomValues", callableFunc(func(_ context.Context, args ...interface{}) (interface{}, error) {
			b := args[0].(*jsvalue.ByteArray)
			n, err := rand.Read(b.Slice)
			return uint32(n), err
		}))

	process := jsvalue.NewJSVal(0, "process").
		WithProperties(map[string]interface{}{
			"pid":  float64(1),
			"ppid": float64(0),
		}).
		WithFunction(sysshim.ProcessCwd, stubFunc(state.Sys, sysshim.ProcessCwd)).
		WithFunction(sysshim.ProcessChdir, stubFunc(state.Sys, sysshim.ProcessChdir)).
		WithFunction(sysshim.ProcessGetuid, identityFunc).
		WithFunction(sysshim.ProcessGetgid, identityFunc).
		WithFunction(sysshim.ProcessGeteuid, identityFunc).
		WithFunction(sysshim.ProcessGetegid, identityFunc).
		WithFunction(sysshim.ProcessGetgroups, stubFunc(state.Sys, sysshim.ProcessGetgroups)).
		WithFunction(sysshim.ProcessUmask, stubFunc(state.Sys, sysshim.ProcessUmask))

	fs := jsvalue.NewJSVal(0, "fs")
	for _, name := range []string{
		sysshim.FsOpen, sysshim.FsStat, sysshim.FsFstat, sysshim.FsLstat, sysshim.FsClose,
		sysshim.FsRead, sysshim.FsReaddir, sysshim.FsMkdir, sysshim.FsRmdir, sysshim.FsRename,
		sysshim.FsUnlink, sysshim.FsUtimes, sysshim.FsChmod, sysshim.FsFchmod, sysshim.FsChown,
		sysshim.FsFchown, sysshim.FsLchown, sysshim.FsTruncate, sysshim.FsFtruncate,
		sysshim.FsReadlink, sysshim.FsLink, sysshim.FsSymlink,
	} {
		fs.WithFunction(name, stubFunc(state.Sys, name))
	}
	// fsync is the one fs entrypoint spec.md calls out as a no-op success
	// rather than ENOSYS, since buffered console writes have nothing to sync.
	fs.WithFunction(sysshim.FsFsync, callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
		return nil, nil
	}))

	global := jsvalue.NewJSVal(jsvalue.RefGlobal, "global").
		WithProperties(map[string]interface{}{
			"Object":          objectConstructor,
			"Array":           arrayConstructor,
			"Uint8Array":      uint8ArrayConstructor,
			"crypto":          crypto,
			"AbortController": jsvalue.Undefined,
			"Headers":         headersConstructor,
			"process":         process,
			"fs":              fs,
			"Date":            dateConstructor,
		})

	if d.RoundTrip != nil {
		global.WithFunction("fetch", &httpFetch{rt: d.RoundTrip})
	} else {
		global.WithProperties(map[string]interface{}{"fetch": jsvalue.Undefined})
	}

	return global
}

// callableFunc adapts a plain function to jsvalue.Callable.
type callableFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

func (f callableFunc) Invoke(ctx context.Context, args ...interface{}) (interface{}, error) {
	return f(ctx, args...)
}

// stubFunc returns a Callable that records a stub hit and always fails with
// ENOSYS, for fs/process entrypoints spec.md's Non-goals exclude.
func stubFunc(sys *sysshim.Shim, name string) jsvalue.Callable {
	return callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
		return nil, sys.Stub(name)
	})
}

// identityFunc backs process.getuid/getgid/geteuid/getegid: spec.md has
// process identity queries always resolve to sysshim.ProcessIdentity (-1),
// distinct from the entrypoints that raise the ENOSYS sentinel.
var identityFunc = callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
	return float64(sysshim.ProcessIdentity), nil
})

// jsDate backs `new Date()`.getTimezoneOffset(), the only Date method Go's
// zoneinfo_js.go time.initLocal calls through the js bridge.
var jsDate = jsvalue.NewJSVal(0, "jsDate").
	WithFunction("getTimezoneOffset", callableFunc(func(context.Context, ...interface{}) (interface{}, error) {
		return uint32(0), nil // UTC
	}))
