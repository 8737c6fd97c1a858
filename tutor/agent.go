package tutor

import (
	"github.com/casualjim/recall/agent"
	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/tool"
)

// AgentName is the sender name of tutor messages.
const AgentName = "tutor"

// Intro is spoken once when a session starts, before the learner says anything.
const Intro = "Hello! Welcome to your Active Recall Coach! I'm Matthew, and I'm here to help you master programming concepts through active learning. " +
	"I can work with you in three modes. In Learn mode, I explain programming concepts with examples and analogies. " +
	"In Quiz mode, I ask you questions to test your knowledge. " +
	"And in Teach Back mode, you explain concepts to me and I give you feedback. " +
	"We can cover variables, loops, functions, conditional statements, and arrays and lists. " +
	"Which mode would you like to start with today?"

// Instructions is the system prompt of the tutor agent. It is rendered with
// the current mode and concept before every completion.
const Instructions = `You are a friendly programming tutor. Your job is to help students learn programming concepts through three different modes.

You have already greeted the student with: "Hello! Welcome to your Active Recall Coach! I'm Matthew, and I'm here to help you master programming concepts through active learning."

The three modes:
1. LEARN mode - You explain programming concepts with examples and analogies (persona: Matthew)
2. QUIZ mode - You ask questions to test their knowledge (persona: Alicia)
3. TEACH BACK mode - They explain concepts to you and you give feedback (persona: Ken)

Available concepts:
- Variables: Containers that store values
- Loops: Repeat actions multiple times (for loops, while loops)
- Functions: Reusable blocks of code
- Conditional Statements: Make decisions (if/else)
- Arrays and Lists: Collections of multiple values

If no mode is chosen yet, ask: "Which mode would you like to start with today?"

When they choose a mode, use the switch_mode tool.
When a concept comes up, use the get_concept tool and build on what it returns.

Your replies are spoken aloud: no markdown, no lists, no code blocks.
Keep responses friendly, encouraging, and concise.

Current mode: {{.Mode}}
Current concept: {{.Concept}}`

// Tools returns the tool definitions the language model may call.
func (t *Tutor) Tools() []tool.Definition {
	return []tool.Definition{
		tool.Must(t.SwitchMode,
			tool.Name("switch_mode"),
			tool.Description("Switch to a specific learning mode"),
			tool.Parameters("mode"),
			tool.Describe("mode", "The learning mode: 'learn', 'quiz', or 'teach_back'"),
		),
		tool.Must(t.GetConcept,
			tool.Name("get_concept"),
			tool.Description("Get information about a programming concept"),
			tool.Parameters("concept_id"),
			tool.Describe("concept_id", "The concept ID: 'variables', 'loops', 'functions', 'conditionals', or 'arrays'"),
		),
	}
}

// ContextVars exposes the session state to the instructions template.
func (t *Tutor) ContextVars() agent.ContextVars {
	snap := t.state.Snapshot()
	current := "none"
	if snap.Concept != nil {
		current = snap.Concept.Title
	}
	return agent.ContextVars{
		"Mode":    snap.Mode.String(),
		"Concept": current,
	}
}

// NewAgent builds the tutor agent on model.
func (t *Tutor) NewAgent(model provider.Model, temperature float64) (agent.Agent, error) {
	tools := t.Tools()
	return agent.New(
		agent.Name(AgentName),
		agent.Model(model),
		agent.Instructions(Instructions),
		agent.Temperature(temperature),
		agent.Tools(tools[0], tools[1:]...),
	)
}
