package orchestrator

import (
	"context"

	"github.com/loomlabs/loom/internal/types"
)

// HandlerRole tags an IOHandler as an input source, output sink, or
// callable action.
type HandlerRole string

const (
	// RoleInput marks handlers that ingest external data into the flow.
	RoleInput HandlerRole = "input"

	// RoleOutput marks handlers that emit terminal results.
	RoleOutput HandlerRole = "output"

	// RoleAction marks handlers whose results feed back into the flow.
	RoleAction HandlerRole = "action"
)

// String returns the string representation of the handler role.
func (r HandlerRole) String() string {
	return string(r)
}

// IsValid checks if the HandlerRole is a known value.
func (r HandlerRole) IsValid() bool {
	switch r {
	case RoleInput, RoleOutput, RoleAction:
		return true
	default:
		return false
	}
}

// IOHandler is a named, role-tagged unit of external capability registered
// with the orchestrator: a chat platform, a scheduler, a search client, a
// blockchain call. Execute is the only obligation; timeouts are the
// handler's own responsibility.
type IOHandler interface {
	Name() string
	Role() HandlerRole
	Execute(ctx context.Context, data any) (any, error)
}

// Subscriber is an optional capability of input handlers: a push source
// whose callback feeds arriving data into the autonomous flow. Subscribe
// returns the function that detaches the subscription.
type Subscriber interface {
	Subscribe(fn func(data any)) (unsubscribe func())
}

// FuncHandler adapts a function to the IOHandler interface.
type FuncHandler struct {
	name string
	role HandlerRole
	fn   func(ctx context.Context, data any) (any, error)
}

// NewFuncHandler creates an IOHandler from a function.
func NewFuncHandler(name string, role HandlerRole, fn func(ctx context.Context, data any) (any, error)) *FuncHandler {
	return &FuncHandler{name: name, role: role, fn: fn}
}

// Name implements IOHandler.
func (h *FuncHandler) Name() string { return h.name }

// Role implements IOHandler.
func (h *FuncHandler) Role() HandlerRole { return h.role }

// Execute implements IOHandler.
func (h *FuncHandler) Execute(ctx context.Context, data any) (any, error) {
	return h.fn(ctx, data)
}

// Message is the normalized unit of content flowing through the queue. The
// ID deduplicates processing within a room; Room scopes conversation
// memory.
type Message struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

// defaultRoom scopes content that arrives without a conversation context.
const defaultRoom = "default"

// normalizeMessage coerces arbitrary handler data into a Message, filling
// in an id and room when absent.
func normalizeMessage(data any, source string) Message {
	var msg Message
	switch t := data.(type) {
	case Message:
		msg = t
	case *Message:
		if t != nil {
			msg = *t
		}
	default:
		msg = Message{Payload: data}
	}

	if msg.ID == "" {
		msg.ID = types.NewID().String()
	}
	if msg.Room == "" {
		msg.Room = defaultRoom
	}
	if msg.Source == "" {
		msg.Source = source
	}
	return msg
}

// Suggestion names a handler to invoke with the given data.
type Suggestion struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// ProcessedResult is the outcome of running content through a Processor.
type ProcessedResult struct {
	Content          any            `json:"content"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	EnrichedContext  string         `json:"enriched_context,omitempty"`
	SuggestedOutputs []Suggestion   `json:"suggested_outputs,omitempty"`
	AlreadyProcessed bool           `json:"already_processed,omitempty"`
}

// Capabilities lists the output and action handlers available to a
// processor when it decides what to suggest.
type Capabilities struct {
	AvailableOutputs []string
	AvailableActions []string
}

// Processor turns raw content into a ProcessedResult. The first registered
// processor whose CanHandle returns true wins; registration order is the
// tie-break.
type Processor interface {
	CanHandle(msg Message) bool
	Process(ctx context.Context, msg Message, memories string, caps Capabilities) (*ProcessedResult, error)
}

// DispatchedOutput records one output handler invocation performed during
// an autonomous flow run.
type DispatchedOutput struct {
	Name   string `json:"name"`
	Data   any    `json:"data"`
	Result any    `json:"result,omitempty"`
}
