// Package jsoncodec registers a gRPC codec that marshals plain Go structs as
// JSON. Services exposed with hand-written descriptors use it instead of
// generated protobuf messages.
package jsoncodec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype negotiated on the wire (application/grpc+json).
const Name = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec implements encoding.Codec with encoding/json.
type Codec struct{}

// Marshal encodes v as JSON.
func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal decodes JSON into v.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns the codec name.
func (Codec) Name() string {
	return Name
}

// CallOption forces the JSON codec on client calls.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
