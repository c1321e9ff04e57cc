// Package jsvalue implements the external-value table described in
// spec.md §3/§4.3: NaN-boxed Ref handles into a host-side, reference
// counted table of arbitrary Go values, plus the small reflective object
// model (Getter/Caller/Callable) that lets a handful of Go types stand in
// for JavaScript's Object/Array/property/function semantics.
//
// This mirrors wazero's internal/gojs (js.go + state.go + values package),
// generalized so it can be imported outside wazero's own module tree.
package jsvalue

import (
	"context"
	"fmt"
	"math"
)

// Undefined is the sentinel Go value representing JavaScript's undefined.
// It is distinct from nil (which represents JavaScript's null).
var Undefined = struct{ name string }{name: "undefined"}

// NaN is the float64 NaN constant, kept here so callers comparing decoded
// values don't need a math import solely for this.
var NaN = math.NaN()

// Getter implements property access by name, e.g. `v.Get("address")`.
type Getter interface {
	Get(ctx context.Context, propertyKey string) interface{}
}

// Caller implements calling a method by name, e.g.
// `document.Call("createElement", "div")`. this is the Ref the call was
// issued against, available for callees that need to distinguish receivers.
type Caller interface {
	Call(ctx context.Context, this Ref, method string, args ...interface{}) (interface{}, error)
}

// Callable is a value invoked directly (not through a named method), the
// result of js.FuncOf on the guest side.
type Callable interface {
	Invoke(ctx context.Context, args ...interface{}) (interface{}, error)
}

// JSVal is a generic object in the host-side value model: a named bag of
// properties and callable methods. It corresponds to a generic js.Value in
// Go's `GOOS=js` runtime.
type JSVal struct {
	Ref        Ref
	Name       string
	properties map[string]interface{}
	functions  map[string]Callable
}

// NewJSVal creates an empty JSVal bound to ref, used for display/debugging.
func NewJSVal(ref Ref, name string) *JSVal {
	return &JSVal{Ref: ref, Name: name, properties: map[string]interface{}{}, functions: map[string]Callable{}}
}

// WithProperties merges properties into v, returning v for chaining.
func (v *JSVal) WithProperties(properties map[string]interface{}) *JSVal {
	for k, val := range properties {
		v.properties[k] = val
	}
	return v
}

// WithFunction registers fn under method, returning v for chaining. fn is
// also exposed as a plain property, since a Get(method) performed before a
// Call (e.g. to validate it is a function) must see it too.
func (v *JSVal) WithFunction(method string, fn Callable) *JSVal {
	v.functions[method] = fn
	v.properties[method] = fn
	return v
}

// Get implements Getter.
func (v *JSVal) Get(_ context.Context, propertyKey string) interface{} {
	if val, ok := v.properties[propertyKey]; ok {
		return val
	}
	panic(fmt.Sprintf("TODO: get %s.%s", v.Name, propertyKey))
}

// Call implements Caller.
func (v *JSVal) Call(ctx context.Context, _ Ref, method string, args ...interface{}) (interface{}, error) {
	if fn, ok := v.functions[method]; ok {
		return fn.Invoke(ctx, args...)
	}
	panic(fmt.Sprintf("TODO: call %s.%s", v.Name, method))
}

// ByteArray is the result of `new Uint8Array(n)`: binary data living
// outside the guest's linear memory, referenced by id. It wraps a slice
// because a bare slice is not a valid map key for the inverse lookup.
type ByteArray struct {
	Slice []byte
}

// Get implements Getter.
func (a *ByteArray) Get(_ context.Context, propertyKey string) interface{} {
	switch propertyKey {
	case "byteLength":
		return uint32(len(a.Slice))
	}
	panic(fmt.Sprintf("TODO: get byteArray.%s", propertyKey))
}

// ObjectArray is the result of `new Array()`, typically used for indexed
// argument lists (e.g. func-wrapper callback args).
type ObjectArray struct {
	Slice []interface{}
}

// Get implements Getter for the "length" property.
func (a *ObjectArray) Get(_ context.Context, propertyKey string) interface{} {
	if propertyKey == "length" {
		return uint32(len(a.Slice))
	}
	panic(fmt.Sprintf("TODO: get objectArray.%s", propertyKey))
}

// Object is the result of `new Object()`, typically used for named
// argument maps (e.g. fetch's options object).
type Object struct {
	Properties map[string]interface{}
}

// Get implements Getter.
func (o *Object) Get(_ context.Context, propertyKey string) interface{} {
	return o.Properties[propertyKey]
}

// Set stores a named property, e.g. `opt.Set("method", req.Method)`.
func (o *Object) Set(propertyKey string, val interface{}) {
	o.Properties[propertyKey] = val
}
