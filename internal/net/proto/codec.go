package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload reports a payload that failed to decode or validate.
var ErrInvalidPayload = errors.New("invalid payload")

// DefaultCompressionThreshold is the payload size from which bodies are
// zstd-compressed.
const DefaultCompressionThreshold = 512

// Codec turns payloads into envelopes and back.
type Codec struct {
	registry   *Registry
	threshold  int
	validate   bool
	enc        *zstd.Encoder
	dec        *zstd.Decoder
	validators map[MessageType]*validator.Schema
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCompressionThreshold sets the body size from which payloads are
// compressed. Zero or less disables compression.
func WithCompressionThreshold(n int) CodecOption {
	return func(c *Codec) {
		c.threshold = n
	}
}

// WithValidation toggles schema validation of inbound payloads.
func WithValidation(enabled bool) CodecOption {
	return func(c *Codec) {
		c.validate = enabled
	}
}

// NewCodec builds a codec over reg, compiling a validator for every typed
// payload when validation is enabled.
func NewCodec(reg *Registry, opts ...CodecOption) (*Codec, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	c := &Codec{
		registry:   reg,
		threshold:  DefaultCompressionThreshold,
		validate:   true,
		validators: make(map[MessageType]*validator.Schema),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*MaxPayloadSize))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	c.enc = enc
	c.dec = dec

	if c.validate {
		if err := c.compileValidators(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Codec) compileValidators() error {
	compiler := validator.NewCompiler()
	urls := make(map[MessageType]string)
	for _, spec := range c.registry.Specs() {
		schema := PayloadSchema(spec)
		if schema == nil {
			continue
		}
		data, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("marshal schema %s: %w", spec.Name, err)
		}
		url := "tes3mp://schemas/" + spec.Name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("add schema %s: %w", spec.Name, err)
		}
		urls[spec.Type] = url
	}
	for t, url := range urls {
		compiled, err := compiler.Compile(url)
		if err != nil {
			return fmt.Errorf("compile schema %s: %w", t, err)
		}
		c.validators[t] = compiled
	}
	return nil
}

// Registry returns the registry the codec encodes against.
func (c *Codec) Registry() *Registry {
	return c.registry
}

// Encode frames payload as message t on channel. A []byte payload is sent
// verbatim; anything else is JSON encoded.
func (c *Codec) Encode(t MessageType, channel Channel, payload any, flags Flags) (Envelope, error) {
	var body []byte
	switch p := payload.(type) {
	case nil:
	case []byte:
		body = p
	case json.RawMessage:
		body = p
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s: %w", t, err)
		}
		body = encoded
	}
	flags &^= FlagCompressed
	if c.threshold > 0 && len(body) >= c.threshold {
		body = c.enc.EncodeAll(body, make([]byte, 0, len(body)/2))
		flags |= FlagCompressed
	}
	if len(body) > MaxPayloadSize {
		return Envelope{}, fmt.Errorf("encode %s: %w", t, ErrPayloadTooLarge)
	}
	return Envelope{Type: t, Channel: channel, Flags: flags, Payload: body}, nil
}

// Body returns the envelope payload, decompressed if needed.
func (c *Codec) Body(env Envelope) ([]byte, error) {
	if !env.Flags.Has(FlagCompressed) {
		return env.Payload, nil
	}
	body, err := c.dec.DecodeAll(env.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %v: %w", env.Type, err, ErrInvalidPayload)
	}
	return body, nil
}

// Decode returns a pointer to the typed payload of env, or the raw body for
// messages without a typed payload.
func (c *Codec) Decode(env Envelope) (any, error) {
	spec, ok := c.registry.Lookup(env.Type)
	if !ok {
		return nil, fmt.Errorf("decode %d: %w", env.Type, ErrUnknownMessage)
	}
	body, err := c.Body(env)
	if err != nil {
		return nil, err
	}
	if !spec.HasPayload() {
		return body, nil
	}
	if schema, ok := c.validators[env.Type]; ok {
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %v: %w", spec.Name, err, ErrInvalidPayload)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("validate %s: %v: %w", spec.Name, err, ErrInvalidPayload)
		}
	}
	out := spec.NewPayload()
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", spec.Name, err, ErrInvalidPayload)
	}
	return out, nil
}

// Close releases the compression state.
func (c *Codec) Close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
