package network

import (
	"context"

	"github.com/michaelt919/TES3MP/logging"
)

const (
	// EventUnknownMessage is emitted when an envelope carries a message type
	// missing from the registry.
	EventUnknownMessage logging.EventType = "network.unknown_message"
	// EventMalformedEnvelope is emitted when inbound bytes cannot be decoded.
	EventMalformedEnvelope logging.EventType = "network.malformed_envelope"
	// EventAuthorityViolation is emitted when a mutation targets an entity
	// whose authority the peer does not hold correctly.
	EventAuthorityViolation logging.EventType = "network.authority_violation"
	// EventLaneOverflow is emitted when a channel lane rejects a message
	// because its queue is full.
	EventLaneOverflow logging.EventType = "network.lane_overflow"
	// EventDeliveryFailed is emitted when the transport could not hand a
	// frame to a remote peer.
	EventDeliveryFailed logging.EventType = "network.delivery_failed"
	// EventHandlerFailed is emitted when a decoded message was rejected by
	// its handler.
	EventHandlerFailed logging.EventType = "network.handler_failed"
	// EventDialFailed is emitted when a configured remote peer could not be
	// reached.
	EventDialFailed logging.EventType = "network.dial_failed"
)

// MessagePayload identifies the message involved in a network event.
type MessagePayload struct {
	MessageType uint16 `json:"messageType"`
	Channel     string `json:"channel,omitempty"`
	From        string `json:"from,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ViolationPayload describes a rejected mutation.
type ViolationPayload struct {
	Op      string `json:"op"`
	Inbound bool   `json:"inbound"`
}

// LanePayload captures the state of an overflowing lane.
type LanePayload struct {
	Channel  string `json:"channel"`
	Capacity int    `json:"capacity"`
}

// DialPayload names the endpoint of a failed outbound connection.
type DialPayload struct {
	Endpoint string `json:"endpoint"`
	Reason   string `json:"reason"`
}

// UnknownMessage publishes a warning for an unregistered message type.
func UnknownMessage(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventUnknownMessage,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// MalformedEnvelope publishes a warning for undecodable bytes.
func MalformedEnvelope(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMalformedEnvelope,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// AuthorityViolation publishes a warning for a rejected mutation.
func AuthorityViolation(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ViolationPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventAuthorityViolation,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// LaneOverflow publishes an error when a lane drops a message.
func LaneOverflow(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LanePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventLaneOverflow,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// DeliveryFailed publishes a warning when a frame could not be written.
func DeliveryFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDeliveryFailed,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// HandlerFailed publishes a warning when a handler rejected a message.
func HandlerFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventHandlerFailed,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// DialFailed publishes an error when an outbound peer connection failed.
func DialFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DialPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDialFailed,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
