package openai

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/recall/provider"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is the OpenAI compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Llama3370B is the model the tutor talks to by default.
const Llama3370B = "llama-3.3-70b-versatile"

var modelRegistry = haxmap.New[string, provider.Model]()

// Groq returns the named model served by Groq. An empty baseURL uses GroqBaseURL.
func Groq(name, apiKey, baseURL string) provider.Model {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return Model(name, option.WithBaseURL(baseURL), option.WithAPIKey(apiKey))
}

// Model returns the model registered under name, creating it with opts on first use.
// Later calls with the same name return the first instance and ignore opts.
func Model(name string, opts ...option.RequestOption) provider.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() provider.Model {
		return NewModel(name, opts...)
	})
	return m
}

// NewModel creates an unregistered model.
func NewModel(name string, opts ...option.RequestOption) provider.Model {
	return &model{
		name: name,
		opts: opts,
	}
}

var _ provider.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
