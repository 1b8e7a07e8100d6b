package socketmode

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEnvelope    = errors.New("unrecognized Socket Mode envelope")
	ErrUnknownInteraction = errors.New("unrecognized interaction payload")
)

// Envelope types, as they appear in the "type" field of inbound frames.
const (
	TypeHello         = "hello"
	TypeDisconnect    = "disconnect"
	TypeEventsAPI     = "events_api"
	TypeInteractive   = "interactive"
	TypeSlashCommands = "slash_commands"
)

// Disconnect reasons. See https://docs.slack.dev/apis/events-api/using-socket-mode#disconnect.
const (
	ReasonWarning          = "warning"
	ReasonRefreshRequested = "refresh_requested"
	ReasonLinkDisabled     = "link_disabled"
)

// wireEnvelope is the union of all the fields in inbound Socket Mode frames.
type wireEnvelope struct {
	Type                   string          `json:"type"`
	EnvelopeID             string          `json:"envelope_id,omitempty"`
	Payload                json.RawMessage `json:"payload,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	RetryAttempt           int             `json:"retry_attempt,omitempty"`
	RetryReason            string          `json:"retry_reason,omitempty"`

	// Lifecycle frames.
	Reason         string    `json:"reason,omitempty"`
	NumConnections int       `json:"num_connections,omitempty"`
	DebugInfo      DebugInfo `json:"debug_info,omitzero"`
}

type DebugInfo struct {
	Host                      string `json:"host,omitempty"`
	BuildNumber               int    `json:"build_number,omitempty"`
	ApproximateConnectionTime int    `json:"approximate_connection_time,omitempty"`
	StartedAt                 int64  `json:"started,omitempty"`
}

// Header contains the fields that all envelopes share. SocketID and
// RequestID are not part of the wire format: the [Client] sets them
// to identify the connection and the message that the envelope came from.
type Header struct {
	Type                   string
	EnvelopeID             string
	AcceptsResponsePayload bool
	RetryAttempt           int
	RetryReason            string

	SocketID  int
	RequestID string
}

// Envelope is a classified inbound frame: [*Hello], [*Disconnect],
// [*EventsAPI], [*Interactive], [*SlashCommands], or [*Unknown].
type Envelope interface {
	Meta() *Header
}

func (h *Header) Meta() *Header {
	return h
}

// RequiresAck reports whether the envelope must be acknowledged.
// Lifecycle frames don't have an envelope ID, so they don't.
func (h *Header) RequiresAck() bool {
	return h.EnvelopeID != ""
}

type Hello struct {
	Header
	NumConnections int
	DebugInfo      DebugInfo
}

type Disconnect struct {
	Header
	Reason    string
	DebugInfo DebugInfo
}

type EventsAPI struct {
	Header
	Payload EventCallback
}

type Interactive struct {
	Header
	Payload Interaction
}

type SlashCommands struct {
	Header
	Payload SlashCommand
}

// Unknown is an envelope with an unrecognized type. It is still
// acknowledged (without a response) if it has an envelope ID.
type Unknown struct {
	Header
	Payload json.RawMessage
}

// Classify parses a raw inbound frame into an [Envelope]. It fails only if the
// frame isn't a JSON object with a "type" field, or if its payload doesn't
// match the declared type. Interaction payloads are classified further
// (see [ClassifyInteraction]), and unrecognized ones become [*UnknownInteraction].
func Classify(data []byte) (Envelope, error) {
	w := new(wireEnvelope)
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrUnknownEnvelope)
	}

	h := Header{
		Type:                   w.Type,
		EnvelopeID:             w.EnvelopeID,
		AcceptsResponsePayload: w.AcceptsResponsePayload,
		RetryAttempt:           w.RetryAttempt,
		RetryReason:            w.RetryReason,
	}

	switch w.Type {
	case TypeHello:
		return &Hello{Header: h, NumConnections: w.NumConnections, DebugInfo: w.DebugInfo}, nil

	case TypeDisconnect:
		return &Disconnect{Header: h, Reason: w.Reason, DebugInfo: w.DebugInfo}, nil

	case TypeEventsAPI:
		e := &EventsAPI{Header: h}
		if err := unmarshalPayload(w, &e.Payload); err != nil {
			return nil, err
		}
		e.Payload.EventType = eventType(e.Payload.Event)
		return e, nil

	case TypeInteractive:
		i, err := ClassifyInteraction(w.Payload)
		if errors.Is(err, ErrUnknownInteraction) {
			i, err = unknownInteraction(w.Payload)
		}
		if err != nil {
			return nil, err
		}
		return &Interactive{Header: h, Payload: i}, nil

	case TypeSlashCommands:
		s := &SlashCommands{Header: h}
		if err := unmarshalPayload(w, &s.Payload); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return &Unknown{Header: h, Payload: w.Payload}, nil
	}
}

func unmarshalPayload(w *wireEnvelope, v any) error {
	if len(w.Payload) == 0 {
		return fmt.Errorf("missing %s payload", w.Type)
	}
	if err := json.Unmarshal(w.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", w.Type, err)
	}
	return nil
}

// eventType extracts the inner event's type, for event-type routing.
func eventType(raw json.RawMessage) string {
	var e struct {
		Type string `json:"type"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &e) != nil {
		return ""
	}
	return e.Type
}

// Ack is an outbound acknowledgement of an inbound envelope.
// See https://docs.slack.dev/apis/events-api/using-socket-mode#acknowledge.
type Ack struct {
	EnvelopeID string `json:"envelope_id"`
	Payload    any    `json:"payload,omitempty"`
}
