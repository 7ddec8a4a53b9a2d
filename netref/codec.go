package netref

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec decodes a lookup response body.
type Codec interface {
	// ContentType is sent as the Accept header.
	ContentType() string
	Decode(r io.Reader, v any) error
}

var (
	// JSON decodes application/json bodies.
	JSON Codec = jsonCodec{}
	// MsgPack decodes application/msgpack bodies. Struct fields are matched
	// by their json tags, so one referent type serves both codecs.
	MsgPack Codec = msgpackCodec{}
)

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v) //nolint:wrapcheck // wrapped by the caller
}

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string { return "application/msgpack" }

func (msgpackCodec) Decode(r io.Reader, v any) error {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	return dec.Decode(v) //nolint:wrapcheck // wrapped by the caller
}
