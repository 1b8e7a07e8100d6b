package socketmode

import (
	"encoding/json"
	"fmt"
)

// Interaction payload types, as they appear in the "type" field of
// interactive envelope payloads.
// See https://docs.slack.dev/reference/interaction-payloads.
const (
	InteractionBlockActions       = "block_actions"
	InteractionBlockSuggestion    = "block_suggestion"
	InteractionInteractiveMessage = "interactive_message"
	InteractionDialogSubmission   = "dialog_submission"
	InteractionDialogCancellation = "dialog_cancellation"
	InteractionDialogSuggestion   = "dialog_suggestion"
	InteractionMessageAction      = "message_action"
	InteractionShortcut           = "shortcut"
	InteractionViewSubmission     = "view_submission"
	InteractionViewClosed         = "view_closed"
	InteractionWorkflowStepEdit   = "workflow_step_edit"
)

// Interaction is one of the payload types of interactive envelopes.
type Interaction interface {
	// Kind identifies the payload type. It is usually the same as the
	// wire "type", except for payloads that share the same wire type.
	Kind() string
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

type Team struct {
	ID     string `json:"id"`
	Domain string `json:"domain,omitempty"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Common contains the fields that all interaction payloads share.
type Common struct {
	Type      string `json:"type"`
	Team      Team   `json:"team"`
	User      User   `json:"user"`
	APIAppID  string `json:"api_app_id,omitempty"`
	Token     string `json:"token,omitempty"`
	TriggerID string `json:"trigger_id,omitempty"`
}

type View struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	CallbackID      string          `json:"callback_id,omitempty"`
	ExternalID      string          `json:"external_id,omitempty"`
	PrivateMetadata string          `json:"private_metadata,omitempty"`
	Hash            string          `json:"hash,omitempty"`
	State           json.RawMessage `json:"state,omitempty"`
	Blocks          json.RawMessage `json:"blocks,omitempty"`
}

// BlockAction is a single interaction with a Block Kit element.
type BlockAction struct {
	ActionID string          `json:"action_id"`
	BlockID  string          `json:"block_id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Value    string          `json:"value,omitempty"`
	ActionTS string          `json:"action_ts,omitempty"`
	Selected json.RawMessage `json:"selected_option,omitempty"`
}

// BlockActions is a "block_actions" payload.
type BlockActions struct {
	Common
	Actions     []BlockAction   `json:"actions"`
	Channel     *Channel        `json:"channel,omitempty"`
	Container   json.RawMessage `json:"container,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
	View        *View           `json:"view,omitempty"`
	ResponseURL string          `json:"response_url,omitempty"`
}

func (*BlockActions) Kind() string { return InteractionBlockActions }

// HasAction reports whether any of the payload's actions has the given action ID.
func (b *BlockActions) HasAction(actionID string) bool {
	for _, a := range b.Actions {
		if a.ActionID == actionID {
			return true
		}
	}
	return false
}

// BlockOptionsRequest is a "block_suggestion" payload: a request to
// populate the options of an external select menu.
type BlockOptionsRequest struct {
	Common
	ActionID  string          `json:"action_id"`
	BlockID   string          `json:"block_id,omitempty"`
	Value     string          `json:"value"`
	Container json.RawMessage `json:"container,omitempty"`
	View      *View           `json:"view,omitempty"`
}

func (*BlockOptionsRequest) Kind() string { return InteractionBlockSuggestion }

type AttachmentAction struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Value           string   `json:"value,omitempty"`
	SelectedOptions []Option `json:"selected_options,omitempty"`
}

// InteractiveMessage is an "interactive_message" payload that reports a
// click on a legacy message attachment button or menu.
type InteractiveMessage struct {
	Common
	CallbackID      string             `json:"callback_id"`
	Actions         []AttachmentAction `json:"actions"`
	Channel         Channel            `json:"channel"`
	ActionTS        string             `json:"action_ts,omitempty"`
	MessageTS       string             `json:"message_ts,omitempty"`
	AttachmentID    string             `json:"attachment_id,omitempty"`
	OriginalMessage json.RawMessage    `json:"original_message,omitempty"`
	ResponseURL     string             `json:"response_url"`
	IsAppUnfurl     bool               `json:"is_app_unfurl,omitempty"`
}

func (*InteractiveMessage) Kind() string { return InteractionInteractiveMessage }

// InteractiveMessageOptionsRequest is an "interactive_message" payload without
// a response URL: a request to populate the options of a legacy message menu.
type InteractiveMessageOptionsRequest struct {
	Common
	CallbackID   string  `json:"callback_id"`
	Name         string  `json:"name"`
	Value        string  `json:"value"`
	Channel      Channel `json:"channel"`
	ActionTS     string  `json:"action_ts,omitempty"`
	MessageTS    string  `json:"message_ts,omitempty"`
	AttachmentID string  `json:"attachment_id,omitempty"`
}

func (*InteractiveMessageOptionsRequest) Kind() string { return "interactive_message_options" }

type DialogSubmission struct {
	Common
	CallbackID  string            `json:"callback_id"`
	State       string            `json:"state,omitempty"`
	Submission  map[string]string `json:"submission"`
	Channel     Channel           `json:"channel"`
	ActionTS    string            `json:"action_ts,omitempty"`
	ResponseURL string            `json:"response_url,omitempty"`
}

func (*DialogSubmission) Kind() string { return InteractionDialogSubmission }

type DialogCancellation struct {
	Common
	CallbackID  string  `json:"callback_id"`
	State       string  `json:"state,omitempty"`
	Channel     Channel `json:"channel"`
	ActionTS    string  `json:"action_ts,omitempty"`
	ResponseURL string  `json:"response_url,omitempty"`
}

func (*DialogCancellation) Kind() string { return InteractionDialogCancellation }

// DialogOptionsRequest is a "dialog_suggestion" payload: a request
// to populate the options of a legacy dialog's external select menu.
type DialogOptionsRequest struct {
	Common
	CallbackID string  `json:"callback_id"`
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	State      string  `json:"state,omitempty"`
	Channel    Channel `json:"channel"`
	ActionTS   string  `json:"action_ts,omitempty"`
}

func (*DialogOptionsRequest) Kind() string { return InteractionDialogSuggestion }

// MessageShortcut is a "message_action" payload.
type MessageShortcut struct {
	Common
	CallbackID  string          `json:"callback_id"`
	Channel     Channel         `json:"channel"`
	Message     json.RawMessage `json:"message,omitempty"`
	MessageTS   string          `json:"message_ts,omitempty"`
	ActionTS    string          `json:"action_ts,omitempty"`
	ResponseURL string          `json:"response_url,omitempty"`
}

func (*MessageShortcut) Kind() string { return InteractionMessageAction }

// GlobalShortcut is a "shortcut" payload.
type GlobalShortcut struct {
	Common
	CallbackID string `json:"callback_id"`
	ActionTS   string `json:"action_ts,omitempty"`
}

func (*GlobalShortcut) Kind() string { return InteractionShortcut }

type ViewSubmission struct {
	Common
	View         View            `json:"view"`
	ResponseURLs json.RawMessage `json:"response_urls,omitempty"`
}

func (*ViewSubmission) Kind() string { return InteractionViewSubmission }

type ViewClosed struct {
	Common
	View      View `json:"view"`
	IsCleared bool `json:"is_cleared"`
}

func (*ViewClosed) Kind() string { return InteractionViewClosed }

type WorkflowStepEdit struct {
	Common
	CallbackID   string          `json:"callback_id"`
	WorkflowStep json.RawMessage `json:"workflow_step,omitempty"`
}

func (*WorkflowStepEdit) Kind() string { return InteractionWorkflowStepEdit }

// UnknownInteraction is an interaction payload with an unrecognized type.
type UnknownInteraction struct {
	Type string
	Raw  json.RawMessage
}

func (u *UnknownInteraction) Kind() string { return u.Type }

// ClassifyInteraction parses the payload of an interactive envelope. Most
// payload types are identified by their "type" field alone, but legacy
// "interactive_message" payloads are either button clicks (which have a
// response URL) or menu options requests (which don't). It returns
// [ErrUnknownInteraction] if the payload type is not recognized.
func ClassifyInteraction(raw json.RawMessage) (Interaction, error) {
	var probe struct {
		Type        string  `json:"type"`
		ResponseURL *string `json:"response_url"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse interaction payload: %w", err)
	}

	var i Interaction
	switch probe.Type {
	case InteractionBlockActions:
		i = new(BlockActions)
	case InteractionBlockSuggestion:
		i = new(BlockOptionsRequest)
	case InteractionInteractiveMessage:
		if probe.ResponseURL != nil {
			i = new(InteractiveMessage)
		} else {
			i = new(InteractiveMessageOptionsRequest)
		}
	case InteractionDialogSubmission:
		i = new(DialogSubmission)
	case InteractionDialogCancellation:
		i = new(DialogCancellation)
	case InteractionDialogSuggestion:
		i = new(DialogOptionsRequest)
	case InteractionMessageAction:
		i = new(MessageShortcut)
	case InteractionShortcut:
		i = new(GlobalShortcut)
	case InteractionViewSubmission:
		i = new(ViewSubmission)
	case InteractionViewClosed:
		i = new(ViewClosed)
	case InteractionWorkflowStepEdit:
		i = new(WorkflowStepEdit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInteraction, probe.Type)
	}

	if err := json.Unmarshal(raw, i); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", probe.Type, err)
	}
	return i, nil
}

func unknownInteraction(raw json.RawMessage) (Interaction, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse interaction payload: %w", err)
	}
	return &UnknownInteraction{Type: probe.Type, Raw: raw}, nil
}
