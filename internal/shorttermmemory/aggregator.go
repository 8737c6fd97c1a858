package shorttermmemory

import (
	"iter"
	"slices"

	"github.com/casualjim/recall/messages"
	"github.com/google/uuid"
)

// AggregatedMessages is an ordered slice of thread entries.
type AggregatedMessages []messages.Message[messages.ModelMessage]

// Len returns the number of messages in the collection.
func (a AggregatedMessages) Len() int {
	return len(a)
}

// New creates an empty thread.
func New() *Aggregator {
	return &Aggregator{
		id:       uuid.Must(uuid.NewV7()),
		messages: make(AggregatedMessages, 0),
	}
}

// Aggregator is the message history of a conversation together with its token usage.
// It is not safe for concurrent use; a session owns its thread from a single turn loop.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int // length at fork time
	usage    Usage
}

// ID returns the identifier of this aggregator. Forks get a fresh one.
func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

// Len returns the total number of messages.
func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen returns the number of messages added since the aggregator was forked.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of all messages.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

// MessagesIter iterates over the messages in order without copying them.
func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

// AddMessage appends a message of any payload type.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(messages.Widen(m))
}

// AddUserPrompt appends a committed participant utterance.
func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(messages.Widen(m))
}

// AddAssistantMessage appends text the agent said.
func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(messages.Widen(m))
}

// AddToolCall appends an assistant turn requesting tool invocations.
func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(messages.Widen(m))
}

// AddToolResponse appends the result of a tool invocation.
func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(messages.Widen(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

// Usage returns the accumulated token usage.
func (a *Aggregator) Usage() Usage {
	return a.usage
}

// AddUsage accumulates the usage of one completion.
func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Fork returns a new aggregator that starts with a copy of the current messages
// and no usage of its own.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuid.Must(uuid.NewV7()),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages b gained after it was forked and adds its usage.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}
