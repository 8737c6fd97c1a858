package executor

import (
	"errors"

	"github.com/casualjim/recall/agent"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/google/uuid"
)

// DefaultMaxTurns bounds the completions one utterance may trigger.
const DefaultMaxTurns = 5

// Command is one participant utterance to answer.
type Command struct {
	id        uuid.UUID
	Agent     agent.Agent
	Thread    *shorttermmemory.Aggregator
	Prompt    string
	Sender    string
	SessionID uuid.UUID
	Room      string
	// Topic receives ToolCall and Metrics events; nil disables publishing.
	Topic    broker.Topic
	MaxTurns int
	Stream   bool
	// ContextVariables is evaluated before every completion so instructions
	// reflect state changed by tool calls.
	ContextVariables func() agent.ContextVars
}

// NewCommand creates a streaming command with the default turn budget.
func NewCommand(ag agent.Agent, thread *shorttermmemory.Aggregator, prompt string) (Command, error) {
	var err error
	if ag == nil {
		err = errors.Join(err, errors.New("agent is required"))
	}
	if thread == nil {
		err = errors.Join(err, errors.New("thread is required"))
	}
	if err != nil {
		return Command{}, err
	}

	return Command{
		id:       uuid.Must(uuid.NewV7()),
		Agent:    ag,
		Thread:   thread,
		Prompt:   prompt,
		Sender:   "user",
		MaxTurns: DefaultMaxTurns,
		Stream:   true,
	}, nil
}

// ID identifies the run on provider requests and thread messages.
func (c *Command) ID() uuid.UUID {
	if c.id == uuid.Nil {
		c.id = uuid.Must(uuid.NewV7())
	}
	return c.id
}

func (c *Command) Validate() error {
	if c.Agent == nil {
		return errors.New("agent cannot be nil")
	}
	if c.Thread == nil {
		return errors.New("thread cannot be nil")
	}
	if c.MaxTurns <= 0 {
		return errors.New("max turns must be positive")
	}
	return nil
}

func (c *Command) contextVars() agent.ContextVars {
	if c.ContextVariables == nil {
		return agent.ContextVars{}
	}
	return c.ContextVariables()
}
