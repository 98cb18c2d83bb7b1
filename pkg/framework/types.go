package framework

import (
	"context"
	"time"
)

// Named is implemented by Runnables which want their name in the logs.
type Named interface {
	Name() string
}

// Runnable is a background job of a Loop, e.g. the reader of a link.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is anything posted to a Loop: received byte chunks, decoded
// events, session notifications.
type Message interface {
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}

// Controller consumes the messages of an iteration.
// All controllers of a Loop run on the same goroutine, one after another,
// which makes the Loop the single cooperative context of the program.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// TimeSource tells the time of the current iteration.
type TimeSource interface {
	Time() time.Time
}

// ControlContext is what a Controller sees of one iteration.
type ControlContext interface {
	TimeSource
	Context() context.Context
	PriorityLevel() int
	// Messages are the messages pending when the iteration started, minus
	// those taken by controllers at earlier levels.
	Messages() MessageStore
	// PostRun installs one-shot hooks run after the controllers of the
	// current level. Hooks installed by a hook run in the next iteration.
	PostRun(hooks ...Controller)

	LoopControl
}

// PriorityLevels is the number of controller levels, 0 runs first.
const PriorityLevels int = 16

// Priority levels.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvLink is the level links decode received bytes at,
	// ahead of everything consuming the decoded events.
	PrLvLink = PrLvHigh
	// PrLvControl is where event consumers usually sit.
	PrLvControl = PrLvNormal
)

// LoopControl is the part of a Loop safe to use from anywhere.
type LoopControl interface {
	// PreRunAt installs one-shot hooks run before the controllers of a
	// level in the next iteration.
	PreRunAt(priorityLevel int, controllers ...Controller)
	// PostRunAt installs one-shot hooks run after the controllers of a
	// level.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// PostMessage enqueues the message. Safe from any goroutine.
	PostMessage(Message)
	// TriggerNext asks for another iteration right after the current one
	// instead of waiting for the tick.
	TriggerNext()
}

// MessageStore holds the messages of an iteration.
type MessageStore interface {
	ProcessMessages(MessageProcessor)
	Len() int

	MessageAppender
}

// MessageAppender appends messages for the controllers still to run.
type MessageAppender interface {
	AddMessages(msgs ...Message)
}

// MessageProcessor visits messages one by one.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is the visit of one message.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message from the store; untaken messages
	// are seen by later controllers and carried to the next iteration.
	MessageTaken()
	// StopProcessing skips the rest of the messages.
	StopProcessing()

	MessageAppender
}
