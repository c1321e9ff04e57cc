package bridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmrun/gojshost/internal/jsvalue"
)

type fakeRoundTripper struct {
	resp *http.Response
	err  error
}

func (f *fakeRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return f.resp, f.err
}

func TestHttpFetch_SuccessResolvesWithFetchResult(t *testing.T) {
	ctx := context.Background()
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"X-Test": []string{"1"}},
		Body:       io.NopCloser(bytes.NewBufferString("body")),
	}
	f := &httpFetch{rt: &fakeRoundTripper{resp: resp}}

	opt := &jsvalue.Object{Properties: map[string]interface{}{"method": "GET"}}
	promiseAny, err := f.Invoke(ctx, "http://example.com", opt)
	require.NoError(t, err)
	promise := promiseAny.(*fetchPromise)

	var capturedResult interface{}
	success := &capturingCallable{capture: &capturedResult}
	failure := &capturingCallable{}

	_, err = promise.Call(ctx, jsvalue.RefUndefined, "then", success, failure)
	require.NoError(t, err)

	result := capturedResult.(*fetchResult)
	require.EqualValues(t, 200, result.Get(ctx, "status"))
}

func TestHttpFetch_TransportErrorRejects(t *testing.T) {
	ctx := context.Background()
	wantErr := io.ErrClosedPipe
	f := &httpFetch{rt: &fakeRoundTripper{err: wantErr}}

	opt := &jsvalue.Object{Properties: map[string]interface{}{"method": "GET"}}
	promiseAny, err := f.Invoke(ctx, "http://example.com", opt)
	require.NoError(t, err)
	promise := promiseAny.(*fetchPromise)

	var capturedErr interface{}
	success := &capturingCallable{}
	failure := &capturingCallable{capture: &capturedErr}

	_, err = promise.Call(ctx, jsvalue.RefUndefined, "then", success, failure)
	require.NoError(t, err)
	require.ErrorIs(t, capturedErr.(error), wantErr)
}

func TestHeaders_EntriesIteratesSortedNames(t *testing.T) {
	ctx := context.Background()
	h := &headers{names: []string{"B", "A"}, headers: http.Header{"A": {"a-val"}, "B": {"b-val"}}}

	it, err := h.Call(ctx, jsvalue.RefUndefined, "entries")
	require.NoError(t, err)
	iter := it.(*headers)

	require.Equal(t, false, iter.Get(ctx, "done"))
	first := iter.Get(ctx, "value").(*jsvalue.ObjectArray)
	require.Equal(t, "A", first.Slice[0])

	require.Equal(t, false, iter.Get(ctx, "done"))
	second := iter.Get(ctx, "value").(*jsvalue.ObjectArray)
	require.Equal(t, "B", second.Slice[0])

	require.Equal(t, true, iter.Get(ctx, "done"))
}

func TestArrayPromise_ThenReadsWholeBody(t *testing.T) {
	ctx := context.Background()
	p := &arrayPromise{reader: io.NopCloser(bytes.NewBufferString("all the bytes"))}

	var captured interface{}
	success := &capturingCallable{capture: &captured}
	failure := &capturingCallable{}

	_, err := p.Call(ctx, jsvalue.RefUndefined, "then", success, failure)
	require.NoError(t, err)

	ba := captured.(*jsvalue.ByteArray)
	require.Equal(t, "all the bytes", string(ba.Slice))
}

// capturingCallable stands in for a *FuncWrapper in tests that exercise
// fetchPromise/arrayPromise directly (rather than through a real guest),
// since those only ever invoke args[0]/args[1] via InvokeWithThis.
type capturingCallable struct {
	capture *interface{}
}

func (c *capturingCallable) InvokeWithThis(_ context.Context, _ jsvalue.Ref, args ...interface{}) (interface{}, error) {
	if c.capture != nil && len(args) > 0 {
		*c.capture = args[0]
	}
	return nil, nil
}
