package socketmode

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tzrikka/socketmode/pkg/dispatch"
	"github.com/tzrikka/socketmode/pkg/request"
)

func classify(t *testing.T, data string) Envelope {
	t.Helper()
	env, err := Classify([]byte(data))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	return env
}

func TestRouteEmptyTable(t *testing.T) {
	rc := request.Begin(t.Context(), 0, "1", "request")
	defer rc.End()

	envs := []string{
		`{"type":"events_api","envelope_id":"1","payload":{"type":"event_callback","event":{"type":"app_mention"}}}`,
		`{"type":"slash_commands","envelope_id":"1","payload":{"command":"/x"}}`,
		`{"type":"interactive","envelope_id":"1","payload":{"type":"view_submission","view":{"callback_id":"v"}}}`,
		`{"type":"interactive","envelope_id":"1","payload":{"type":"interactive_message","callback_id":"c"}}`,
		`{"type":"unrecognized","envelope_id":"1"}`,
	}
	for _, data := range envs {
		resp, err := route(rc, Handlers{}, classify(t, data))
		if resp != nil || err != nil {
			t.Errorf("route(%s) = (%v, %v), want (nil, nil)", data, resp, err)
		}
	}
}

func TestRouteCustomStrategy(t *testing.T) {
	custom := dispatch.ResponseHandlerFunc[*SlashCommand, *SlashCommandResponse](
		func(_ *request.Context, p *SlashCommand) (*SlashCommandResponse, error) {
			return &SlashCommandResponse{Text: "custom " + p.Command}, nil
		})

	hs := NewRegistry().Handlers()
	hs.SlashCommands = custom

	rc := request.Begin(t.Context(), 0, "1", "request")
	defer rc.End()

	resp, err := route(rc, hs, classify(t, `{"type":"slash_commands","envelope_id":"1","payload":{"command":"/any"}}`))
	if err != nil {
		t.Fatalf("route() error = %v", err)
	}
	want := &SlashCommandResponse{Text: "custom /any"}
	if !reflect.DeepEqual(resp, want) {
		t.Errorf("route() = %#v, want %#v", resp, want)
	}
}

func TestRouteUnmatchedKey(t *testing.T) {
	var calls int
	r := NewRegistry()
	r.OnViewSubmission("matching", func(*request.Context, *ViewSubmission) (*ViewSubmissionResponse, error) {
		calls++
		return &ViewSubmissionResponse{ResponseAction: "clear"}, nil
	})

	rc := request.Begin(t.Context(), 0, "1", "request")
	defer rc.End()

	env := classify(t, `{"type":"interactive","envelope_id":"1","payload":{"type":"view_submission","view":{"callback_id":"other"}}}`)
	resp, err := route(rc, r.Handlers(), env)
	if resp != nil || err != nil {
		t.Errorf("route() = (%v, %v), want (nil, nil)", resp, err)
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times, want 0", calls)
	}

	env = classify(t, `{"type":"interactive","envelope_id":"1","payload":{"type":"view_submission","view":{"callback_id":"matching"}}}`)
	resp, err = route(rc, r.Handlers(), env)
	if err != nil {
		t.Fatalf("route() error = %v", err)
	}
	if got, ok := resp.(*ViewSubmissionResponse); !ok || got.ResponseAction != "clear" {
		t.Errorf("route() = %#v", resp)
	}
}

func TestRouteNarrowedHandlers(t *testing.T) {
	var h1, h2 int
	r := NewRegistry()
	r.OnMessageShortcut("", dispatch.Singleton[dispatch.Handler[*MessageShortcut]](
		dispatch.HandlerFunc[*MessageShortcut](func(*request.Context, *MessageShortcut) error {
			h1++
			return nil
		})))
	r.OnMessageShortcut("X", dispatch.Singleton[dispatch.Handler[*MessageShortcut]](
		dispatch.HandlerFunc[*MessageShortcut](func(*request.Context, *MessageShortcut) error {
			h2++
			return nil
		})))

	for _, id := range []string{"Y", "X"} {
		rc := request.Begin(t.Context(), 0, "1", "request")
		env := classify(t, `{"type":"interactive","envelope_id":"1","payload":{"type":"message_action","callback_id":"`+id+`"}}`)
		if _, err := route(rc, r.Handlers(), env); err != nil {
			t.Errorf("route(%s) error = %v", id, err)
		}
		rc.End()
	}

	if h1 != 2 || h2 != 1 {
		t.Errorf("handler invocations = (%d, %d), want (2, 1)", h1, h2)
	}
}

func TestRouteUnknownInteraction(t *testing.T) {
	rc := request.Begin(t.Context(), 0, "1", "request")
	defer rc.End()

	_, err := route(rc, Handlers{}, classify(t, `{"type":"interactive","envelope_id":"1","payload":{"type":"future"}}`))
	if !errors.Is(err, ErrUnknownInteraction) {
		t.Errorf("route() error = %v, want %v", err, ErrUnknownInteraction)
	}
}

func TestPayloadKind(t *testing.T) {
	rc := request.Begin(t.Context(), 0, "1", "request")
	defer rc.End()

	if got := PayloadKind(rc); got != "" {
		t.Errorf("PayloadKind() = %q, want empty", got)
	}
	rc.Set(payloadKindKey{}, "block_actions")
	if got := PayloadKind(rc); got != "block_actions" {
		t.Errorf("PayloadKind() = %q, want %q", got, "block_actions")
	}
}
