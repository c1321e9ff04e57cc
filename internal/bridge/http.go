package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"sort"

	"github.com/wasmrun/gojshost/internal/jsvalue"
)

// thenable is what a Promise executor invokes as its success/failure
// callback: a guest-side function proxy that also needs a receiver Ref
// threaded through, unlike the plain jsvalue.Callable interface. *FuncWrapper
// is the only production implementation.
type thenable interface {
	InvokeWithThis(ctx context.Context, this jsvalue.Ref, args ...interface{}) (interface{}, error)
}

// httpFetch backs the global "fetch" function, routing a guest's
// net/http.Transport.RoundTrip call (compiled against GOOS=js) through a
// real http.RoundTripper. A nil RoundTripper means no Driver.RoundTrip was
// configured, in which case "fetch" is left undefined on global instead of
// wired to this type (see newGlobal).
//
// Grounded on the teacher's internal/gojs/http.go httpFetch/fetchPromise.
type httpFetch struct{ rt http.RoundTripper }

var _ jsvalue.Callable = (*httpFetch)(nil)

func (h *httpFetch) Invoke(ctx context.Context, args ...interface{}) (interface{}, error) {
	url := args[0].(string)
	method := "GET"
	if opt, ok := args[1].(*jsvalue.Object); ok {
		if m, ok := opt.Properties["method"].(string); ok {
			method = m
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	return &fetchPromise{rt: h.rt, req: req}, nil
}

// fetchPromise is the object returned by fetch(), whose only observed
// method is "then" — net/http's roundtrip_js.go never calls "catch".
type fetchPromise struct {
	rt  http.RoundTripper
	req *http.Request
}

var _ jsvalue.Caller = (*fetchPromise)(nil)

func (p *fetchPromise) Call(ctx context.Context, this jsvalue.Ref, method string, args ...interface{}) (interface{}, error) {
	if method != "then" {
		panic(fmt.Sprintf("TODO: fetchPromise.%s", method))
	}
	res, err := p.rt.RoundTrip(p.req)
	if err != nil {
		failure := args[1].(thenable)
		// HTTP is at the syscall abstraction the guest's net package expects,
		// so any Go error value is a valid rejection reason.
		return failure.InvokeWithThis(ctx, this, err)
	}
	success := args[0].(thenable)
	return success.InvokeWithThis(ctx, this, &fetchResult{res: res})
}

// fetchResult wraps a completed http.Response, mirroring the subset of the
// Response interface Go's roundtrip_js.go reads (status, headers, body).
type fetchResult struct {
	res *http.Response
}

var _ jsvalue.Getter = (*fetchResult)(nil)
var _ jsvalue.Caller = (*fetchResult)(nil)

func (r *fetchResult) Get(_ context.Context, propertyKey string) interface{} {
	switch propertyKey {
	case "headers":
		names := make([]string, 0, len(r.res.Header))
		for k := range r.res.Header {
			names = append(names, k)
		}
		sort.Strings(names)
		return &headers{names: names, headers: r.res.Header}
	case "body":
		return jsvalue.Undefined // arrayPromise below is what's actually read
	case "status":
		return uint32(r.res.StatusCode)
	}
	panic(fmt.Sprintf("TODO: get fetchResult.%s", propertyKey))
}

func (r *fetchResult) Call(_ context.Context, _ jsvalue.Ref, method string, _ ...interface{}) (interface{}, error) {
	switch method {
	case "arrayBuffer":
		return &arrayPromise{reader: r.res.Body}, nil
	}
	panic(fmt.Sprintf("TODO: call fetchResult.%s", method))
}

// headers is both the `Headers` constructor's instance and the header
// iterator roundtrip_js.go drives via entries()/next().
type headers struct {
	headers http.Header
	names   []string
	i       int
}

var _ jsvalue.Getter = (*headers)(nil)
var _ jsvalue.Caller = (*headers)(nil)

func (h *headers) Get(_ context.Context, propertyKey string) interface{} {
	switch propertyKey {
	case "done":
		return h.i == len(h.names)
	case "value":
		name := h.names[h.i]
		value := h.headers.Get(name)
		h.i++
		return &jsvalue.ObjectArray{Slice: []interface{}{name, value}}
	}
	panic(fmt.Sprintf("TODO: get headers.%s", propertyKey))
}

func (h *headers) Call(_ context.Context, _ jsvalue.Ref, method string, args ...interface{}) (interface{}, error) {
	switch method {
	case "entries":
		sort.Strings(h.names)
		return h, nil
	case "next":
		return h, nil
	case "append":
		name := textproto.CanonicalMIMEHeaderKey(args[0].(string))
		value := args[1].(string)
		h.names = append(h.names, name)
		h.headers.Add(name, value)
		return nil, nil
	}
	panic(fmt.Sprintf("TODO: call headers.%s", method))
}

// arrayPromise is the body.arrayBuffer() result: a one-shot promise that
// reads the whole response body once "then" is invoked.
type arrayPromise struct {
	reader io.ReadCloser
}

var _ jsvalue.Caller = (*arrayPromise)(nil)

func (p *arrayPromise) Call(ctx context.Context, this jsvalue.Ref, method string, args ...interface{}) (interface{}, error) {
	if method != "then" {
		panic(fmt.Sprintf("TODO: call arrayPromise.%s", method))
	}
	defer p.reader.Close()
	b, err := io.ReadAll(p.reader)
	if err != nil {
		failure := args[1].(thenable)
		return failure.InvokeWithThis(ctx, this, err)
	}
	success := args[0].(thenable)
	return success.InvokeWithThis(ctx, this, &jsvalue.ByteArray{Slice: b})
}
