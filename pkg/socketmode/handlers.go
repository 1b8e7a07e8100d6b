package socketmode

import (
	"github.com/tzrikka/socketmode/pkg/dispatch"
	"github.com/tzrikka/socketmode/pkg/request"
)

// Handlers is the dispatch table of a [Client]: one strategy per payload
// kind. Kinds without a response fan out to all of their handlers, and
// kinds with a response select a single handler. Any field may be replaced
// with a custom strategy, and a nil field means that payloads of that kind
// are acknowledged without any handling.
//
// [Registry.Handlers] returns a table of registry-backed strategies.
type Handlers struct {
	Events              dispatch.Handler[*EventCallback]
	BlockActions        dispatch.Handler[*BlockActions]
	MessageShortcuts    dispatch.Handler[*MessageShortcut]
	GlobalShortcuts     dispatch.Handler[*GlobalShortcut]
	ViewClosed          dispatch.Handler[*ViewClosed]
	DialogCancellations dispatch.Handler[*DialogCancellation]
	WorkflowStepEdits   dispatch.Handler[*WorkflowStepEdit]

	SlashCommands       dispatch.ResponseHandler[*SlashCommand, *SlashCommandResponse]
	ViewSubmissions     dispatch.ResponseHandler[*ViewSubmission, *ViewSubmissionResponse]
	BlockOptions        dispatch.ResponseHandler[*BlockOptionsRequest, *OptionsResponse]
	InteractiveMessages dispatch.ResponseHandler[*InteractiveMessage, *MessageResponse]
	MessageOptions      dispatch.ResponseHandler[*InteractiveMessageOptionsRequest, *OptionsResponse]
	DialogSubmissions   dispatch.ResponseHandler[*DialogSubmission, *DialogSubmissionResponse]
	DialogOptions       dispatch.ResponseHandler[*DialogOptionsRequest, *OptionsResponse]
}

// Registry collects handler registrations for all payload kinds. Handlers
// of kinds without a response are invoked together, and each may be
// narrowed to specific payloads (e.g. a specific event type or action ID).
// Handlers of kinds with a response are keyed, and at most one of them is
// invoked per payload. Register all handlers before connecting.
type Registry struct {
	Events              *dispatch.Composite[*EventCallback]
	BlockActions        *dispatch.Composite[*BlockActions]
	MessageShortcuts    *dispatch.Composite[*MessageShortcut]
	GlobalShortcuts     *dispatch.Composite[*GlobalShortcut]
	ViewClosed          *dispatch.Composite[*ViewClosed]
	DialogCancellations *dispatch.Composite[*DialogCancellation]
	WorkflowStepEdits   *dispatch.Composite[*WorkflowStepEdit]

	// Keyed by the command string (e.g. "/deploy").
	SlashCommands *dispatch.Switching[*SlashCommand, *SlashCommandResponse]
	// Keyed by the view's callback ID.
	ViewSubmissions *dispatch.Switching[*ViewSubmission, *ViewSubmissionResponse]
	// Keyed by the menu's action ID.
	BlockOptions *dispatch.Switching[*BlockOptionsRequest, *OptionsResponse]
	// Keyed by the attachment's callback ID.
	InteractiveMessages *dispatch.Switching[*InteractiveMessage, *MessageResponse]
	// Keyed by the menu's name.
	MessageOptions *dispatch.Switching[*InteractiveMessageOptionsRequest, *OptionsResponse]
	// Keyed by the dialog's callback ID.
	DialogSubmissions *dispatch.Switching[*DialogSubmission, *DialogSubmissionResponse]
	// Keyed by the menu's name.
	DialogOptions *dispatch.Switching[*DialogOptionsRequest, *OptionsResponse]
}

func NewRegistry() *Registry {
	return &Registry{
		Events:              dispatch.NewComposite[*EventCallback](),
		BlockActions:        dispatch.NewComposite[*BlockActions](),
		MessageShortcuts:    dispatch.NewComposite[*MessageShortcut](),
		GlobalShortcuts:     dispatch.NewComposite[*GlobalShortcut](),
		ViewClosed:          dispatch.NewComposite[*ViewClosed](),
		DialogCancellations: dispatch.NewComposite[*DialogCancellation](),
		WorkflowStepEdits:   dispatch.NewComposite[*WorkflowStepEdit](),

		SlashCommands: dispatch.NewSwitching(func(p *SlashCommand) string {
			return p.Command
		}, dispatch.Noop[*SlashCommand, *SlashCommandResponse]()),
		ViewSubmissions: dispatch.NewSwitching(func(p *ViewSubmission) string {
			return p.View.CallbackID
		}, dispatch.Noop[*ViewSubmission, *ViewSubmissionResponse]()),
		BlockOptions: dispatch.NewSwitching(func(p *BlockOptionsRequest) string {
			return p.ActionID
		}, dispatch.Noop[*BlockOptionsRequest, *OptionsResponse]()),
		InteractiveMessages: dispatch.NewSwitching(func(p *InteractiveMessage) string {
			return p.CallbackID
		}, dispatch.Noop[*InteractiveMessage, *MessageResponse]()),
		MessageOptions: dispatch.NewSwitching(func(p *InteractiveMessageOptionsRequest) string {
			return p.Name
		}, dispatch.Noop[*InteractiveMessageOptionsRequest, *OptionsResponse]()),
		DialogSubmissions: dispatch.NewSwitching(func(p *DialogSubmission) string {
			return p.CallbackID
		}, dispatch.Noop[*DialogSubmission, *DialogSubmissionResponse]()),
		DialogOptions: dispatch.NewSwitching(func(p *DialogOptionsRequest) string {
			return p.Name
		}, dispatch.Noop[*DialogOptionsRequest, *OptionsResponse]()),
	}
}

// Handlers returns a dispatch table that is backed by the registry.
func (r *Registry) Handlers() Handlers {
	return Handlers{
		Events:              r.Events,
		BlockActions:        r.BlockActions,
		MessageShortcuts:    r.MessageShortcuts,
		GlobalShortcuts:     r.GlobalShortcuts,
		ViewClosed:          r.ViewClosed,
		DialogCancellations: r.DialogCancellations,
		WorkflowStepEdits:   r.WorkflowStepEdits,

		SlashCommands:       r.SlashCommands,
		ViewSubmissions:     r.ViewSubmissions,
		BlockOptions:        r.BlockOptions,
		InteractiveMessages: r.InteractiveMessages,
		MessageOptions:      r.MessageOptions,
		DialogSubmissions:   r.DialogSubmissions,
		DialogOptions:       r.DialogOptions,
	}
}

// OnEvent registers a handler for events of the given inner event
// type (e.g. "app_mention"), or for all events if it's empty.
func (r *Registry) OnEvent(eventType string, f dispatch.Factory[dispatch.Handler[*EventCallback]]) {
	if eventType == "" {
		r.Events.Add(f)
		return
	}
	r.Events.AddFiltered(func(p *EventCallback) bool { return p.EventType == eventType }, f)
}

// OnBlockAction registers a handler for block actions with the
// given action ID, or for all block actions if it's empty.
func (r *Registry) OnBlockAction(actionID string, f dispatch.Factory[dispatch.Handler[*BlockActions]]) {
	if actionID == "" {
		r.BlockActions.Add(f)
		return
	}
	r.BlockActions.AddFiltered(func(p *BlockActions) bool { return p.HasAction(actionID) }, f)
}

// OnMessageShortcut registers a handler for message shortcuts with the
// given callback ID, or for all message shortcuts if it's empty.
func (r *Registry) OnMessageShortcut(callbackID string, f dispatch.Factory[dispatch.Handler[*MessageShortcut]]) {
	if callbackID == "" {
		r.MessageShortcuts.Add(f)
		return
	}
	r.MessageShortcuts.AddFiltered(func(p *MessageShortcut) bool { return p.CallbackID == callbackID }, f)
}

// OnGlobalShortcut registers a handler for global shortcuts with the
// given callback ID, or for all global shortcuts if it's empty.
func (r *Registry) OnGlobalShortcut(callbackID string, f dispatch.Factory[dispatch.Handler[*GlobalShortcut]]) {
	if callbackID == "" {
		r.GlobalShortcuts.Add(f)
		return
	}
	r.GlobalShortcuts.AddFiltered(func(p *GlobalShortcut) bool { return p.CallbackID == callbackID }, f)
}

// OnViewClosed registers a handler for closed views with the
// given callback ID, or for all closed views if it's empty.
func (r *Registry) OnViewClosed(callbackID string, f dispatch.Factory[dispatch.Handler[*ViewClosed]]) {
	if callbackID == "" {
		r.ViewClosed.Add(f)
		return
	}
	r.ViewClosed.AddFiltered(func(p *ViewClosed) bool { return p.View.CallbackID == callbackID }, f)
}

// OnSlashCommand registers the handler of a slash command, replacing any previous one.
func (r *Registry) OnSlashCommand(command string, f func(rc *request.Context, p *SlashCommand) (*SlashCommandResponse, error)) {
	r.SlashCommands.RegisterFunc(command, f)
}

// OnViewSubmission registers the handler of view submissions with
// the given callback ID, replacing any previous one.
func (r *Registry) OnViewSubmission(callbackID string, f func(rc *request.Context, p *ViewSubmission) (*ViewSubmissionResponse, error)) {
	r.ViewSubmissions.RegisterFunc(callbackID, f)
}

// OnBlockOptions registers the options provider of the external select
// menu with the given action ID, replacing any previous one.
func (r *Registry) OnBlockOptions(actionID string, f func(rc *request.Context, p *BlockOptionsRequest) (*OptionsResponse, error)) {
	r.BlockOptions.RegisterFunc(actionID, f)
}
