// Package hostimports wires the 25 `go.*` functions a GOOS=js/GOARCH=wasm
// guest links against onto a wazero.HostModuleBuilder. Every import receives
// a single 32-bit stack pointer; operand and result offsets relative to that
// pointer are fixed per import (spec.md §4.7).
//
// Grounded on the teacher's internal/gojs/syscall.go, runtime.go and
// builtin.go, adapted to wazero's public api.Module/HostModuleBuilder
// surface: the teacher's internal spfunc proxy (which splices generated
// wasm bytecode to hand a raw sp to host functions) is not reusable outside
// wazero's own module, but is also unnecessary — HostFunctionBuilder.WithFunc
// already gives a host function direct access to sp and api.Module.
package hostimports

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmrun/gojshost/internal/jsvalue"
	"github.com/wasmrun/gojshost/internal/memview"
	"github.com/wasmrun/gojshost/internal/rtstate"
)

// ExitFunc is called from runtime.wasmExit with the guest's exit code.
type ExitFunc func(ctx context.Context, mod api.Module, code int32)

// Builder wires every go.* import onto a wazero.HostModuleBuilder against a
// shared State and an exit hook the driver supplies.
type Builder struct {
	State *rtstate.State
	Exit  ExitFunc
	Log   *logrus.Entry
}

// New returns a Builder; log may be nil (defaults to the standard logger).
func New(state *rtstate.State, exit ExitFunc, log *logrus.Entry) *Builder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Builder{State: state, Exit: exit, Log: log}
}

// Register defines all "go" module imports on builder.
func (b *Builder) Register(builder wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	fn := func(name string, f func(ctx context.Context, mod api.Module, sp uint32)) {
		builder = builder.NewFunctionBuilder().WithFunc(f).Export(name)
	}

	fn("debug", b.debug)

	fn("runtime.wasmExit", b.wasmExit)
	fn("runtime.wasmWrite", b.wasmWrite)
	fn("runtime.resetMemoryDataView", b.resetMemoryDataView)
	fn("runtime.nanotime1", b.nanotime1)
	fn("runtime.walltime", b.walltime)
	fn("runtime.scheduleTimeoutEvent", b.scheduleTimeoutEvent)
	fn("runtime.clearTimeoutEvent", b.clearTimeoutEvent)
	fn("runtime.getRandomData", b.getRandomData)

	fn("syscall/js.finalizeRef", b.finalizeRef)
	fn("syscall/js.stringVal", b.stringVal)
	fn("syscall/js.valueGet", b.valueGet)
	fn("syscall/js.valueSet", b.valueSet)
	fn("syscall/js.valueDelete", b.valueDelete)
	fn("syscall/js.valueIndex", b.valueIndex)
	fn("syscall/js.valueSetIndex", b.valueSetIndex)
	fn("syscall/js.valueCall", b.valueCall)
	fn("syscall/js.valueInvoke", b.valueInvoke)
	fn("syscall/js.valueNew", b.valueNew)
	fn("syscall/js.valueLength", b.valueLength)
	fn("syscall/js.valuePrepareString", b.valuePrepareString)
	fn("syscall/js.valueLoadString", b.valueLoadString)
	fn("syscall/js.valueInstanceOf", b.valueInstanceOf)
	fn("syscall/js.copyBytesToGo", b.copyBytesToGo)
	fn("syscall/js.copyBytesToJS", b.copyBytesToJS)

	return builder
}

func (b *Builder) view() *memview.View { return b.State.View }

// refreshSP re-reads the guest's stack pointer via its exported getsp
// function. Mandatory after any operation that may have re-entered the
// guest (a value invocation that called back into compiled Go code can grow
// or relocate the guest's stack).
func refreshSP(ctx context.Context, mod api.Module) uint32 {
	results, err := mod.ExportedFunction("getsp").Call(ctx)
	if err != nil {
		panic(errors.Wrap(err, "getsp"))
	}
	return uint32(results[0])
}

func (b *Builder) debug(ctx context.Context, _ api.Module, sp uint32) {
	v := b.view().GetUint64(ctx, sp+8)
	b.Log.WithField("value", v).Debug("debug import invoked")
}

func (b *Builder) wasmExit(ctx context.Context, mod api.Module, sp uint32) {
	code := b.view().GetInt32(ctx, sp+8)
	b.Exit(ctx, mod, code)
}

func (b *Builder) wasmWrite(ctx context.Context, mod api.Module, sp uint32) {
	view := b.view()
	fd := uint32(view.GetInt64(ctx, sp+8))
	ptr := uint32(view.GetInt64(ctx, sp+16))
	n := view.GetInt32(ctx, sp+24)
	p := view.ReadBytes(ctx, ptr, uint32(n))
	if _, err := b.State.Sys.Write(ctx, fd, p); err != nil {
		panic(errors.Wrap(err, "wasmWrite"))
	}
}

func (b *Builder) resetMemoryDataView(_ context.Context, mod api.Module, _ uint32) {
	b.view().SetBuffer(mod.Memory())
}

func (b *Builder) nanotime1(ctx context.Context, _ api.Module, sp uint32) {
	elapsed := time.Since(b.State.TimeOrigin)
	b.view().SetInt64(ctx, sp+8, elapsed.Nanoseconds())
}

func (b *Builder) walltime(ctx context.Context, _ api.Module, sp uint32) {
	now := time.Now()
	view := b.view()
	view.SetInt64(ctx, sp+8, now.Unix())
	view.SetInt32(ctx, sp+16, int32(now.Nanosecond()))
}

func (b *Builder) scheduleTimeoutEvent(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	delayMs := view.GetInt32(ctx, sp+8)
	id := b.State.Timers.Schedule(ctx, delayMs)
	view.SetUint32(ctx, sp+16, id)
}

func (b *Builder) clearTimeoutEvent(ctx context.Context, _ api.Module, sp uint32) {
	id := b.view().GetUint32(ctx, sp+8)
	b.State.Timers.Clear(id)
}

func (b *Builder) getRandomData(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	ptr := view.GetUint32(ctx, sp+8)
	n := view.GetUint32(ctx, sp+16)
	buf := view.ReadBytes(ctx, ptr, n)
	if _, err := rand.Read(buf); err != nil {
		panic(errors.Wrap(err, "getRandomData"))
	}
}

func (b *Builder) finalizeRef(ctx context.Context, _ api.Module, sp uint32) {
	ref := jsvalue.Ref(b.view().GetUint64(ctx, sp+8))
	b.State.Values.RemoveRef(ref.ID())
}

func (b *Builder) stringVal(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	x := view.LoadString(ctx, sp+8)
	ref := b.State.Values.StoreValue(x)
	view.SetUint64(ctx, sp+24, uint64(ref))
}

func (b *Builder) valueGet(ctx context.Context, mod api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	p := view.LoadString(ctx, sp+16)

	v := b.State.Values.LoadValue(vRef)
	result := b.get(ctx, v, p)
	ref := b.State.Values.StoreValue(result)

	sp = refreshSP(ctx, mod)
	view.SetUint64(ctx, sp+32, uint64(ref))
}

// get dispatches a property read, special-casing Go errors the way the
// guest's syscall package expects: "message" is the error text, "code" is
// the ENOSYS-style symbol another part of the runtime matches against.
func (b *Builder) get(ctx context.Context, v interface{}, p string) interface{} {
	if g, ok := v.(jsvalue.Getter); ok {
		return g.Get(ctx, p)
	}
	if e, ok := v.(error); ok {
		switch p {
		case "message":
			return e.Error()
		case "code":
			if c, ok := e.(interface{ Code() string }); ok {
				return c.Code()
			}
			return e.Error()
		}
	}
	panic(errors.Errorf("TODO: get(v=%v, p=%s)", v, p))
}

func (b *Builder) valueSet(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	p := view.LoadString(ctx, sp+16)
	xRef := jsvalue.Ref(view.GetUint64(ctx, sp+32))

	v := b.State.Values.LoadValue(vRef)
	x := b.State.Values.LoadValue(xRef)

	switch t := v.(type) {
	case *rtstate.State:
		if p == "_pendingEvent" && x == nil {
			t.PendingEvent = nil
			return
		}
	case *rtstate.Event:
		if p == "result" {
			t.Result = x
			return
		}
	case *jsvalue.Object:
		t.Set(p, x)
		return
	}
	panic(errors.Errorf("TODO: valueSet(v=%v, p=%s, x=%v)", v, p, x))
}

func (b *Builder) valueDelete(_ context.Context, _ api.Module, _ uint32) {
	panic(errors.New("valueDelete is not used by the guest runtime this host supports"))
}

func (b *Builder) valueIndex(ctx context.Context, mod api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	i := view.GetUint32(ctx, sp+16)

	v := b.State.Values.LoadValue(vRef)
	arr := v.(*jsvalue.ObjectArray)
	ref := b.State.Values.StoreValue(arr.Slice[i])

	sp = refreshSP(ctx, mod)
	view.SetUint64(ctx, sp+24, uint64(ref))
}

func (b *Builder) valueSetIndex(_ context.Context, _ api.Module, _ uint32) {
	panic(errors.New("valueSetIndex is not used by the guest runtime this host supports"))
}

func (b *Builder) valueCall(ctx context.Context, mod api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	m := view.LoadString(ctx, sp+16)
	args := b.loadArgs(ctx, sp+32)

	this := vRef
	v := b.State.Values.LoadValue(this)

	var xRef jsvalue.Ref
	var ok uint32
	caller, isCaller := v.(jsvalue.Caller)
	if !isCaller {
		panic(errors.Errorf("TODO: valueCall(v=%v, m=%s)", v, m))
	}
	if result, err := caller.Call(ctx, this, m, args...); err != nil {
		xRef = b.State.Values.StoreValue(err)
		ok = 0
	} else {
		xRef = b.State.Values.StoreValue(result)
		ok = 1
	}

	sp = refreshSP(ctx, mod)
	view.SetUint64(ctx, sp+56, uint64(xRef))
	view.SetUint32(ctx, sp+64, ok)
}

func (b *Builder) valueInvoke(_ context.Context, _ api.Module, _ uint32) {
	panic(errors.New("valueInvoke is not used by the guest runtime this host supports"))
}

func (b *Builder) valueNew(ctx context.Context, mod api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	args := b.loadArgs(ctx, sp+16)

	v := b.State.Values.LoadValue(vRef)
	caller, isCaller := v.(jsvalue.Caller)

	var xRef jsvalue.Ref
	var ok uint32
	if !isCaller {
		panic(errors.Errorf("TODO: valueNew(v=%v, args=%v)", v, args))
	}
	if result, err := caller.Call(ctx, vRef, "constructor", args...); err != nil {
		xRef = b.State.Values.StoreValue(err)
		ok = 0
	} else {
		xRef = b.State.Values.StoreValue(result)
		ok = 1
	}

	sp = refreshSP(ctx, mod)
	view.SetUint64(ctx, sp+40, uint64(xRef))
	view.SetUint32(ctx, sp+48, ok)
}

func (b *Builder) valueLength(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	v := b.State.Values.LoadValue(vRef)
	arr := v.(*jsvalue.ObjectArray)
	view.SetInt64(ctx, sp+16, int64(len(arr.Slice)))
}

func (b *Builder) valuePrepareString(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	v := b.State.Values.LoadValue(vRef)
	s := valueString(v)

	sRef := b.State.Values.StoreValue(s)
	view.SetUint64(ctx, sp+16, uint64(sRef))
	view.SetInt64(ctx, sp+24, int64(len(s)))
}

func (b *Builder) valueLoadString(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	vRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	bAddr := view.GetUint32(ctx, sp+16)
	bLen := view.GetUint32(ctx, sp+24)

	v := b.State.Values.LoadValue(vRef)
	s := valueString(v)
	dst := view.ReadBytes(ctx, bAddr, bLen)
	copy(dst, s)
}

func (b *Builder) valueInstanceOf(_ context.Context, _ api.Module, _ uint32) {
	panic(errors.New("valueInstanceOf is not used by the guest runtime this host supports"))
}

func (b *Builder) copyBytesToGo(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	dstAddr := view.GetUint32(ctx, sp+8)
	dstLen := view.GetUint32(ctx, sp+16)
	srcRef := jsvalue.Ref(view.GetUint64(ctx, sp+32))

	dst := view.ReadBytes(ctx, dstAddr, dstLen)
	v := b.State.Values.LoadValue(srcRef)

	var n, ok uint32
	if src, isBytes := v.(*jsvalue.ByteArray); isBytes {
		n = uint32(copy(dst, src.Slice))
		ok = 1
	}
	view.SetUint32(ctx, sp+40, n)
	view.SetUint32(ctx, sp+48, ok)
}

func (b *Builder) copyBytesToJS(ctx context.Context, _ api.Module, sp uint32) {
	view := b.view()
	dstRef := jsvalue.Ref(view.GetUint64(ctx, sp+8))
	srcAddr := view.GetUint32(ctx, sp+16)
	srcLen := view.GetUint32(ctx, sp+24)

	src := view.ReadBytes(ctx, srcAddr, srcLen)
	v := b.State.Values.LoadValue(dstRef)

	var n, ok uint32
	if dst, isBytes := v.(*jsvalue.ByteArray); isBytes {
		n = uint32(copy(dst.Slice, src))
		ok = 1
	}
	view.SetUint32(ctx, sp+40, n)
	view.SetUint32(ctx, sp+48, ok)
}

// loadArgs decodes an array of argsLen refs starting at argsArray into Go
// values, following the guest's (ptr, len) argument-array convention.
func (b *Builder) loadArgs(ctx context.Context, addr uint32) []interface{} {
	view := b.view()
	argsArray := view.GetUint32(ctx, addr)
	argsLen := view.GetUint32(ctx, addr+8)

	args := make([]interface{}, argsLen)
	for i := uint32(0); i < argsLen; i++ {
		ref := jsvalue.Ref(view.GetUint64(ctx, argsArray+i*8))
		args[i] = b.State.Values.LoadValue(ref)
	}
	return args
}

// valueString coerces v to its JavaScript string representation, used by
// o.String() for string, boolean and number types (and, as a fallback, by
// anything %v can format sensibly).
func valueString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
