package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-constellata/a2a-server-go/dispatch"
	"github.com/terra-constellata/a2a-server-go/internal/jsonrpc"
)

type pingParams struct{}

func (*pingParams) Validate() error { return nil }

type greetParams struct {
	Name string `json:"name"`
}

func (p *greetParams) Validate() error {
	if p.Name == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

func pingMethod() dispatch.Method {
	return dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
		return map[string]bool{"pong": true}, nil
	})
}

func mustHandle(t *testing.T, d *dispatch.Dispatcher, raw string) *jsonrpc.Response {
	t.Helper()
	res := d.Handle(context.Background(), []byte(raw))
	if res == nil {
		t.Fatalf("expected a response for payload: %s", raw)
	}
	return res
}

func mustErrorCode(t *testing.T, res *jsonrpc.Response, want jsonrpc.ErrorCode) *jsonrpc.Error {
	t.Helper()
	if res.Error == nil {
		t.Fatalf("expected error response, got result: %s", res.Result)
	}
	if res.Error.Code != want {
		t.Fatalf("unexpected error code: got %d, want %d", res.Error.Code, want)
	}
	return res.Error
}

func TestHandleRequest(t *testing.T) {
	t.Run("success correlates id and result", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("PING", pingMethod()); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"PING","params":{},"id":1}`)

		b, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if want := `{"jsonrpc":"2.0","result":{"pong":true},"id":1}`; string(b) != want {
			t.Fatalf("unexpected response:\n got %s\nwant %s", b, want)
		}
	})

	t.Run("unknown method yields -32601 with request id", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("PING", pingMethod()); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"UNKNOWN","params":{},"id":2}`)
		rpcErr := mustErrorCode(t, res, jsonrpc.ErrorCodeMethodNotFound)
		if res.ID.Value() != int64(2) {
			t.Fatalf("id not preserved: %v", res.ID.Value())
		}
		if data, _ := rpcErr.Data.(string); !strings.Contains(data, "UNKNOWN") {
			t.Fatalf("error data does not carry the method name: %v", rpcErr.Data)
		}
	})

	t.Run("schema failure and business rule failure are distinguishable", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("GREET", dispatch.Typed(func(ctx context.Context, p *greetParams) (any, error) {
			return "hello " + p.Name, nil
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		schemaRes := mustHandle(t, d, `{"jsonrpc":"2.0","method":"GREET","params":{"name":"x","bogus":true},"id":3}`)
		schemaErr := mustErrorCode(t, schemaRes, jsonrpc.ErrorCodeInvalidParams)

		ruleRes := mustHandle(t, d, `{"jsonrpc":"2.0","method":"GREET","params":{"name":""},"id":4}`)
		ruleErr := mustErrorCode(t, ruleRes, jsonrpc.ErrorCodeInvalidParams)

		if schemaErr.Message == ruleErr.Message {
			t.Fatalf("expected distinct messages for the two causes, both: %q", schemaErr.Message)
		}
	})

	t.Run("handler error yields -32603 with description in data", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("BOOM", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			return nil, errors.New("kaput")
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"BOOM","params":{},"id":5}`)
		rpcErr := mustErrorCode(t, res, jsonrpc.ErrorCodeInternalError)
		if res.ID.Value() != int64(5) {
			t.Fatalf("id not preserved: %v", res.ID.Value())
		}
		if data, _ := rpcErr.Data.(string); !strings.Contains(data, "kaput") {
			t.Fatalf("error data does not carry the failure: %v", rpcErr.Data)
		}
	})

	t.Run("handler panic yields -32603", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("PANIC", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			panic("unexpected")
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"PANIC","params":{},"id":6}`)
		rpcErr := mustErrorCode(t, res, jsonrpc.ErrorCodeInternalError)
		if data, _ := rpcErr.Data.(string); !strings.Contains(data, "unexpected") {
			t.Fatalf("error data does not carry the panic value: %v", rpcErr.Data)
		}
	})

	t.Run("string ids are preserved", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("PING", pingMethod()); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"PING","params":{},"id":"abc"}`)
		if res.ID.Value() != "abc" {
			t.Fatalf("id not preserved: %v", res.ID.Value())
		}
	})
}

func TestHandleMalformedPayload(t *testing.T) {
	d := dispatch.New()

	cases := []struct {
		name string
		raw  string
	}{
		{"invalid JSON", `{not json`},
		{"wrong version", `{"jsonrpc":"1.0","method":"PING","id":1}`},
		{"missing method", `{"jsonrpc":"2.0","id":1}`},
		{"response shaped", `{"jsonrpc":"2.0","result":{},"id":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := mustHandle(t, d, tc.raw)
			mustErrorCode(t, res, jsonrpc.ErrorCodeInvalidRequest)
			if !res.ID.IsNil() {
				t.Fatalf("expected null id, got: %v", res.ID.Value())
			}

			b, err := json.Marshal(res)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(b), `"id":null`) {
				t.Fatalf("expected id:null on the wire, got: %s", b)
			}
		})
	}
}

func TestHandleNotification(t *testing.T) {
	t.Run("handler invoked exactly once, no response", func(t *testing.T) {
		var calls atomic.Int32
		called := make(chan struct{})

		d := dispatch.New()
		if err := d.Register("PING", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			calls.Add(1)
			close(called)
			return map[string]bool{"pong": true}, nil
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		if res := d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"PING","params":{}}`)); res != nil {
			t.Fatalf("notification produced a response: %+v", res)
		}

		select {
		case <-called:
		case <-time.After(time.Second):
			t.Fatalf("notification handler was not invoked")
		}

		if err := d.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
		if got := calls.Load(); got != 1 {
			t.Fatalf("handler invoked %d times, want 1", got)
		}
	})

	t.Run("handler failure is logged, never surfaced", func(t *testing.T) {
		var buf syncBuffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		d := dispatch.New(dispatch.WithLogger(log))
		if err := d.Register("BOOM", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			return nil, errors.New("kaput")
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		if res := d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"BOOM","params":{}}`)); res != nil {
			t.Fatalf("notification produced a response: %+v", res)
		}
		if err := d.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}

		if !strings.Contains(buf.String(), "error handling notification") {
			t.Fatalf("expected failure to be logged, log was:\n%s", buf.String())
		}
	})

	t.Run("unknown method is logged and dropped", func(t *testing.T) {
		var buf syncBuffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		d := dispatch.New(dispatch.WithLogger(log))
		if res := d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"NOPE","params":{}}`)); res != nil {
			t.Fatalf("notification produced a response: %+v", res)
		}
		if err := d.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}

		if !strings.Contains(buf.String(), "unknown method") {
			t.Fatalf("expected drop to be logged, log was:\n%s", buf.String())
		}
	})

	t.Run("handler outlives a cancelled caller context", func(t *testing.T) {
		done := make(chan struct{})

		d := dispatch.New()
		if err := d.Register("SLOW", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("context already cancelled: %w", ctx.Err())
			}
			close(done)
			return nil, nil
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		if res := d.Handle(ctx, []byte(`{"jsonrpc":"2.0","method":"SLOW","params":{}}`)); res != nil {
			t.Fatalf("notification produced a response: %+v", res)
		}
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("handler did not run after caller cancellation")
		}
	})
}

// Dispatch-layer classification must be a pure function of (registry,
// payload): repeated calls with no registration changes classify
// identically.
func TestClassificationIsDeterministic(t *testing.T) {
	d := dispatch.New()
	if err := d.Register("GREET", dispatch.Typed(func(ctx context.Context, p *greetParams) (any, error) {
		return "hello " + p.Name, nil
	})); err != nil {
		t.Fatalf("register: %v", err)
	}

	payloads := []string{
		`{not json`,
		`{"jsonrpc":"2.0","method":"UNKNOWN","params":{},"id":1}`,
		`{"jsonrpc":"2.0","method":"GREET","params":{"bogus":true},"id":1}`,
		`{"jsonrpc":"2.0","method":"GREET","params":{"name":""},"id":1}`,
	}

	for _, raw := range payloads {
		first := mustHandle(t, d, raw)
		second := mustHandle(t, d, raw)

		b1, _ := json.Marshal(first)
		b2, _ := json.Marshal(second)
		if !bytes.Equal(b1, b2) {
			t.Fatalf("classification not deterministic for %s:\n%s\n%s", raw, b1, b2)
		}
	}
}

func TestRegistry(t *testing.T) {
	t.Run("empty name rejected", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("", pingMethod()); err == nil {
			t.Fatalf("expected error for empty method name")
		}
	})

	t.Run("last registration wins", func(t *testing.T) {
		d := dispatch.New()
		if err := d.Register("PING", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			return "first", nil
		})); err != nil {
			t.Fatalf("register: %v", err)
		}
		if err := d.Register("PING", dispatch.Typed(func(ctx context.Context, _ *pingParams) (any, error) {
			return "second", nil
		})); err != nil {
			t.Fatalf("register: %v", err)
		}

		res := mustHandle(t, d, `{"jsonrpc":"2.0","method":"PING","params":{},"id":1}`)
		if string(res.Result) != `"second"` {
			t.Fatalf("expected the later handler to win, got: %s", res.Result)
		}
	})

	t.Run("method names are sorted", func(t *testing.T) {
		d := dispatch.New()
		for _, name := range []string{"ZULU", "ALPHA", "MIKE"} {
			if err := d.Register(name, pingMethod()); err != nil {
				t.Fatalf("register: %v", err)
			}
		}

		names := d.MethodNames()
		want := []string{"ALPHA", "MIKE", "ZULU"}
		if len(names) != len(want) {
			t.Fatalf("got %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("got %v, want %v", names, want)
			}
		}
	})
}

// syncBuffer is a goroutine-safe bytes.Buffer for capturing log output
// written from notification goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
