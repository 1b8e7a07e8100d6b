package socketmode

import (
	"fmt"

	"github.com/tzrikka/socketmode/pkg/dispatch"
	"github.com/tzrikka/socketmode/pkg/request"
)

type payloadKindKey struct{}

// PayloadKind returns the kind of payload that the request is processing
// (e.g. "event", "slash_command", "block_actions"), or an empty string
// if the request didn't originate from a Socket Mode envelope.
func PayloadKind(rc *request.Context) string {
	if v, ok := rc.Get(payloadKindKey{}); ok {
		return v.(string)
	}
	return ""
}

func payloadKind(env Envelope) string {
	switch e := env.(type) {
	case *EventsAPI:
		return "event"
	case *SlashCommands:
		return "slash_command"
	case *Interactive:
		return e.Payload.Kind()
	default:
		return env.Meta().Type
	}
}

// route dispatches the envelope's payload to the matching strategy in the
// dispatch table, and returns the response to acknowledge it with, if any.
func route(rc *request.Context, hs Handlers, env Envelope) (any, error) {
	switch e := env.(type) {
	case *EventsAPI:
		return nil, handle(rc, hs.Events, &e.Payload)
	case *SlashCommands:
		return respond(rc, hs.SlashCommands, &e.Payload)
	case *Interactive:
		return routeInteraction(rc, hs, e.Payload)
	default:
		return nil, nil
	}
}

func routeInteraction(rc *request.Context, hs Handlers, i Interaction) (any, error) {
	switch p := i.(type) {
	case *BlockActions:
		return nil, handle(rc, hs.BlockActions, p)
	case *MessageShortcut:
		return nil, handle(rc, hs.MessageShortcuts, p)
	case *GlobalShortcut:
		return nil, handle(rc, hs.GlobalShortcuts, p)
	case *ViewClosed:
		return nil, handle(rc, hs.ViewClosed, p)
	case *DialogCancellation:
		return nil, handle(rc, hs.DialogCancellations, p)
	case *WorkflowStepEdit:
		return nil, handle(rc, hs.WorkflowStepEdits, p)

	case *ViewSubmission:
		return respond(rc, hs.ViewSubmissions, p)
	case *BlockOptionsRequest:
		return respond(rc, hs.BlockOptions, p)
	case *InteractiveMessage:
		return respond(rc, hs.InteractiveMessages, p)
	case *InteractiveMessageOptionsRequest:
		return respond(rc, hs.MessageOptions, p)
	case *DialogSubmission:
		return respond(rc, hs.DialogSubmissions, p)
	case *DialogOptionsRequest:
		return respond(rc, hs.DialogOptions, p)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInteraction, i.Kind())
	}
}

func handle[P any](rc *request.Context, h dispatch.Handler[P], p P) error {
	if h == nil {
		return nil
	}
	logHandlers(rc, h, p)
	return h.Handle(rc, p)
}

// respond converts typed nil responses into untyped ones,
// so they aren't serialized as a JSON "null" payload.
func respond[P, R any](rc *request.Context, h dispatch.ResponseHandler[P, *R], p P) (any, error) {
	if h == nil {
		return nil, nil
	}
	logHandlers(rc, h, p)
	r, err := h.Handle(rc, p)
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

func logHandlers[P any](rc *request.Context, h any, p P) {
	if e := rc.Logger().Debug(); e.Enabled() {
		e.Str("handlers", dispatch.Describe(dispatch.Handlers(rc, h, p))).Msg("dispatching Socket Mode payload")
	}
}
