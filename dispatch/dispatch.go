package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/terra-constellata/a2a-server-go/internal/jsonrpc"
	"github.com/terra-constellata/a2a-server-go/internal/logctx"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used by the dispatcher. If not provided,
// logs are discarded. The dispatcher wraps the logger so that records
// carry the rpc context group of the message being dispatched.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = slog.New(logctx.Handler{Handler: log.Handler()})
	}
}

// Dispatcher owns the method registry and the inbound handling pipeline.
// The registry is safe for concurrent use: registration typically happens
// before serving begins, but late registration is synchronized against
// concurrent dispatch.
type Dispatcher struct {
	mu      sync.RWMutex
	methods map[string]Method

	log *slog.Logger

	notifications sync.WaitGroup
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		methods: make(map[string]Method),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register stores the method under name, overwriting any prior entry
// (last registration wins). The only constraint on names is that they
// are non-empty.
func (d *Dispatcher) Register(name string, m Method) error {
	if name == "" {
		return fmt.Errorf("method name must not be empty")
	}

	d.mu.Lock()
	d.methods[name] = m
	d.mu.Unlock()

	d.log.Info("registered method", slog.String("method", name))
	return nil
}

// MethodNames returns the currently registered method names, sorted.
func (d *Dispatcher) MethodNames() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	d.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Schemas returns the JSON Schema for each registered method, keyed by
// method name. Diagnostic only; it carries no protocol semantics.
func (d *Dispatcher) Schemas() map[string]*jsonschema.Schema {
	d.mu.RLock()
	defer d.mu.RUnlock()

	schemas := make(map[string]*jsonschema.Schema, len(d.methods))
	for name, m := range d.methods {
		schemas[name] = m.schema
	}
	return schemas
}

func (d *Dispatcher) lookup(name string) (Method, bool) {
	d.mu.RLock()
	m, ok := d.methods[name]
	d.mu.RUnlock()
	return m, ok
}

// Handle processes one raw JSON-RPC payload. It returns the response to
// serialize back to the sender, or nil when the payload was a
// notification and no body should be produced.
//
// Handle never panics and never returns a malformed response: every
// failure inside the pipeline is converted to a structured JSON-RPC
// error. Failures that occur before a request id can be determined carry
// a null id.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (resp *jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "unhandled panic during dispatch", slog.Any("panic", r))
			resp = jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInternalError, "Internal error", fmt.Sprintf("%v", r))
		}
	}()

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "Invalid Request", err.Error())
	}

	if req.IsNotification() {
		ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, Type: "notification"})
		d.dispatchNotification(ctx, &req)
		return nil
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})
	return d.dispatchRequest(ctx, &req)
}

func (d *Dispatcher) dispatchRequest(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	m, ok := d.lookup(req.Method)
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "Method not found", fmt.Sprintf("method %q not found", req.Method))
	}

	msg, err := m.decode(req.Params)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Invalid A2A message parameters", err.Error())
	}

	if err := msg.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "Business rule validation failed", err.Error())
	}

	result, err := d.invoke(ctx, m, msg)
	if err != nil {
		d.log.ErrorContext(ctx, "error executing method", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal error", err.Error())
	}

	res, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		d.log.ErrorContext(ctx, "failed to encode method result", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal error", err.Error())
	}
	return res
}

// invoke calls the handler, converting a panic into an error so that the
// request path can map it to an internal error response.
func (d *Dispatcher) invoke(ctx context.Context, m Method, msg Validator) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return m.handler(ctx, msg)
}

// dispatchNotification schedules the notification's handler as detached
// background work and returns immediately. Every failure on this path is
// swallowed after logging: the sender receives no feedback by contract.
func (d *Dispatcher) dispatchNotification(ctx context.Context, req *jsonrpc.Request) {
	m, ok := d.lookup(req.Method)
	if !ok {
		d.log.WarnContext(ctx, "notification for unknown method")
		return
	}

	// Detach from the caller: the transport answers before the handler
	// runs, and its cancellation must not abort the handler.
	ctx = context.WithoutCancel(ctx)

	d.notifications.Add(1)
	go func() {
		defer d.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.ErrorContext(ctx, "panic handling notification", slog.Any("panic", r))
			}
		}()

		msg, err := m.decode(req.Params)
		if err != nil {
			d.log.WarnContext(ctx, "invalid notification parameters", slog.String("err", err.Error()))
			return
		}

		if err := msg.Validate(); err != nil {
			d.log.WarnContext(ctx, "notification failed business rules", slog.String("err", err.Error()))
			return
		}

		if _, err := m.handler(ctx, msg); err != nil {
			d.log.ErrorContext(ctx, "error handling notification", slog.String("err", err.Error()))
		}
	}()
}

// Shutdown waits for in-flight notification handlers to finish, or for
// ctx to be done, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.notifications.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
