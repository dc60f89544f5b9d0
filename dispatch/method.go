package dispatch

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Validator is implemented by method parameter types. Validate holds the
// business rules applied after structural decoding succeeds; parameter
// types with no business rules return nil.
type Validator interface {
	Validate() error
}

// msgPtr constrains PT to be a pointer to T that satisfies Validator, so
// that Typed can allocate the params value itself.
type msgPtr[T any] interface {
	*T
	Validator
}

// Method is a registered unit of dispatch: a structural decoder for the
// method's params, the handler invoked with the decoded message, and the
// reflected JSON Schema advertised for diagnostics.
type Method struct {
	decode  func(params json.RawMessage) (Validator, error)
	handler func(ctx context.Context, msg Validator) (any, error)
	schema  *jsonschema.Schema
}

// Schema returns the JSON Schema reflected from the method's params type.
func (m Method) Schema() *jsonschema.Schema {
	return m.schema
}

// Typed builds a Method from a strongly typed handler. Params are decoded
// into T with unknown fields rejected, business rules are applied via
// T's Validate method, and the handler only ever sees a message that
// passed both stages. The method's schema is reflected from T.
//
//	dispatch.Typed(func(ctx context.Context, msg *a2a.GeospatialAnomaly) (any, error) { ... })
func Typed[T any, PT msgPtr[T]](fn func(ctx context.Context, msg PT) (any, error)) Method {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	return Method{
		decode: func(params json.RawMessage) (Validator, error) {
			msg := PT(new(T))
			if len(params) > 0 {
				dec := json.NewDecoder(bytes.NewReader(params))
				dec.DisallowUnknownFields()
				if err := dec.Decode(msg); err != nil {
					return nil, err
				}
			}
			return msg, nil
		},
		handler: func(ctx context.Context, msg Validator) (any, error) {
			return fn(ctx, msg.(PT))
		},
		schema: r.Reflect(new(T)),
	}
}
