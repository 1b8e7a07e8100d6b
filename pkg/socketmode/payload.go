package socketmode

import (
	"encoding/json"
)

// EventCallback is the payload of an "events_api" envelope.
// See https://docs.slack.dev/apis/events-api#callback-field.
type EventCallback struct {
	Type               string          `json:"type"`
	Token              string          `json:"token,omitempty"`
	TeamID             string          `json:"team_id,omitempty"`
	APIAppID           string          `json:"api_app_id,omitempty"`
	Event              json.RawMessage `json:"event"`
	EventID            string          `json:"event_id"`
	EventTime          int64           `json:"event_time,omitempty"`
	EventContext       string          `json:"event_context,omitempty"`
	Authorizations     json.RawMessage `json:"authorizations,omitempty"`
	IsExtSharedChannel bool            `json:"is_ext_shared_channel,omitempty"`

	// EventType is the "type" field of the inner event.
	EventType string `json:"-"`
}

// SlashCommand is the payload of a "slash_commands" envelope.
// See https://docs.slack.dev/interactivity/implementing-slash-commands.
type SlashCommand struct {
	Token               string `json:"token,omitempty"`
	TeamID              string `json:"team_id"`
	TeamDomain          string `json:"team_domain,omitempty"`
	EnterpriseID        string `json:"enterprise_id,omitempty"`
	ChannelID           string `json:"channel_id"`
	ChannelName         string `json:"channel_name,omitempty"`
	UserID              string `json:"user_id"`
	UserName            string `json:"user_name,omitempty"`
	Command             string `json:"command"`
	Text                string `json:"text"`
	APIAppID            string `json:"api_app_id,omitempty"`
	IsEnterpriseInstall string `json:"is_enterprise_install,omitempty"`
	ResponseURL         string `json:"response_url"`
	TriggerID           string `json:"trigger_id,omitempty"`
}

// SlashCommandResponse is an immediate message in response to a [SlashCommand].
type SlashCommandResponse struct {
	ResponseType string          `json:"response_type,omitempty"` // "ephemeral" or "in_channel".
	Text         string          `json:"text,omitempty"`
	Blocks       json.RawMessage `json:"blocks,omitempty"`
}

// ViewSubmissionResponse is a [response action] for a [ViewSubmission].
//
// [response action]: https://docs.slack.dev/surfaces/modals#updating_response
type ViewSubmissionResponse struct {
	ResponseAction string            `json:"response_action"` // "errors", "update", "push", or "clear".
	Errors         map[string]string `json:"errors,omitempty"`
	View           json.RawMessage   `json:"view,omitempty"`
}

// Option is an option in an external select menu. Block Kit
// menus use Text, and legacy dialogs and messages use Label.
type Option struct {
	Text  json.RawMessage `json:"text,omitempty"`
	Label string          `json:"label,omitempty"`
	Value string          `json:"value"`
}

type OptionGroup struct {
	Label   json.RawMessage `json:"label"`
	Options []Option        `json:"options"`
}

// OptionsResponse populates an external select menu, in response to a
// [BlockOptionsRequest], [InteractiveMessageOptionsRequest], or [DialogOptionsRequest].
// Slack expects exactly one of the two fields, so an empty
// response is serialized as an empty list of options.
type OptionsResponse struct {
	Options      []Option      `json:"options"`
	OptionGroups []OptionGroup `json:"option_groups"`
}

func (r OptionsResponse) MarshalJSON() ([]byte, error) {
	if len(r.OptionGroups) > 0 {
		return json.Marshal(struct {
			OptionGroups []OptionGroup `json:"option_groups"`
		}{r.OptionGroups})
	}

	opts := r.Options
	if opts == nil {
		opts = []Option{}
	}
	return json.Marshal(struct {
		Options []Option `json:"options"`
	}{opts})
}

// MessageResponse replaces or supplements a legacy [InteractiveMessage].
type MessageResponse struct {
	Text            string          `json:"text,omitempty"`
	ResponseType    string          `json:"response_type,omitempty"`
	ReplaceOriginal bool            `json:"replace_original,omitempty"`
	DeleteOriginal  bool            `json:"delete_original,omitempty"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
	Blocks          json.RawMessage `json:"blocks,omitempty"`
}

type DialogError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// DialogSubmissionResponse reports validation errors in a [DialogSubmission].
type DialogSubmissionResponse struct {
	Errors []DialogError `json:"errors,omitempty"`
}
