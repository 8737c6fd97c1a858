// Package agent describes a conversational agent: the model it talks to, the
// instructions it follows and the tools it may call.
package agent

import (
	"errors"
	"strings"
	"text/template"

	"github.com/casualjim/recall/provider"
	"github.com/casualjim/recall/tool"
	"github.com/fogfish/opts"
)

// ContextVars are the values instructions are rendered with.
type ContextVars map[string]any

// Agent is the definition an executor runs a conversation turn with.
type Agent interface {
	Name() string
	Model() provider.Model
	Instructions() string
	Tools() []tool.Definition
	// Temperature returns nil when the provider default applies.
	Temperature() *float64
	RenderInstructions(ContextVars) (string, error)
}

var _ Agent = (*defaultAgent)(nil)

type defaultAgent struct {
	name         string
	model        provider.Model
	instructions string
	tools        []tool.Definition
	temperature  *float64
}

func (a *defaultAgent) Name() string {
	return a.name
}

func (a *defaultAgent) Model() provider.Model {
	return a.model
}

func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

func (a *defaultAgent) Instructions() string {
	return a.instructions
}

func (a *defaultAgent) Temperature() *float64 {
	return a.temperature
}

// RenderInstructions executes the instructions as a text/template with cv.
// Referencing a variable that cv does not carry is an error.
func (a *defaultAgent) RenderInstructions(cv ContextVars) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	return renderTemplate(a.name, a.instructions, cv)
}

func renderTemplate(name, templateStr string, cv ContextVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Option configures an agent.
type Option = opts.Option[defaultAgent]

var (
	Name         = opts.ForName[defaultAgent, string]("name")
	Model        = opts.ForName[defaultAgent, provider.Model]("model")
	Instructions = opts.ForName[defaultAgent, string]("instructions")
)

// Temperature sets the sampling temperature.
func Temperature(t float64) Option {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.temperature = &t
		return nil
	})
}

// Tools adds tools the model may call.
func Tools(tool tool.Definition, extraTools ...tool.Definition) Option {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.tools = append(o.tools, tool)
		o.tools = append(o.tools, extraTools...)
		return nil
	})
}

// ErrNoModel is returned by New when no model was configured.
var ErrNoModel = errors.New("agent: no model configured")

// New creates an agent. A model is required.
func New(options ...Option) (Agent, error) {
	agent := &defaultAgent{}
	if err := opts.Apply(agent, options); err != nil {
		return nil, err
	}
	if agent.model == nil {
		return nil, ErrNoModel
	}
	return agent, nil
}
