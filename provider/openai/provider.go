package openai

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/casualjim/recall/internal/shorttermmemory"
	"github.com/casualjim/recall/messages"
	"github.com/casualjim/recall/provider"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Provider talks to an OpenAI compatible chat completions endpoint.
type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client: openai.NewClient(options...),
	}
}

func (p *Provider) buildRequest(_ context.Context, params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("completion %s has no model", params.RunID)
	}
	result, user := messagesToOpenAI(params.Instructions, params.Thread.MessagesIter())

	tools := make([]openai.ChatCompletionToolParam, len(params.Tools))
	for i, tool := range params.Tools {
		if tool.Function == nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %s has nil function", tool.Name)
		}

		jv, err := toFunctionParameters(tool.Schema())
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert schema of tool %s: %w", tool.Name, err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(tool.Name),
			Parameters: openai.F(jv),
		}
		if strings.TrimSpace(tool.Description) != "" {
			def.Description = openai.String(tool.Description)
		}

		tools[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}

	oaiParams := openai.ChatCompletionNewParams{
		Messages: openai.F(result),
		Model:    openai.F(params.Model.Name()),
		N:        openai.Int(1),
	}
	if params.Temperature != nil {
		oaiParams.Temperature = openai.Float(*params.Temperature)
	}
	if len(tools) > 0 {
		oaiParams.Tools = openai.F(tools)
	}
	if params.Stream {
		oaiParams.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		})
	}
	if strings.TrimSpace(user) != "" {
		oaiParams.User = openai.String(user)
	}

	return oaiParams, nil
}

func toFunctionParameters(schema any) (shared.FunctionParameters, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	result := make(shared.FunctionParameters)
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams, err := p.buildRequest(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer strm.Close()

	var (
		acc   openai.ChatCompletionAccumulator
		usage openai.CompletionUsage
	)
	for strm.Next() {
		if ctx.Err() != nil {
			break
		}

		chunk := strm.Current()
		acc.AddChunk(chunk)
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			ok := send(ctx, events, provider.Chunk{
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Text:      chunk.Choices[0].Delta.Content,
				Timestamp: strfmt.DateTime(time.Now()),
			})
			if !ok {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		// the reader may be gone, only report when there is room
		select {
		case events <- errorEvent(command, err):
		default:
		}
		return
	}
	if err := strm.Err(); err != nil {
		send(ctx, events, errorEvent(command, err))
		return
	}

	compl := acc.ChatCompletion
	compl.Usage = usage
	send(ctx, events, completionToStreamEvent(&compl, command))
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		send(ctx, events, errorEvent(command, err))
		return
	}

	send(ctx, events, completionToStreamEvent(chat, command))
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- provider.StreamEvent, ev provider.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(command *provider.CompletionParams, err error) provider.Error {
	return provider.Error{
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func messagesToOpenAI(instructions string, iter iter.Seq[messages.Message[messages.ModelMessage]]) ([]openai.ChatCompletionMessageParamUnion, string) {
	result := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	var user string
	for message := range iter {
		switch msg := message.Payload.(type) {
		case messages.ToolResponse:
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content))
		case messages.UserMessage:
			if message.Sender != "" {
				user = message.Sender
			}
			if msg.Content != "" {
				result = append(result, openai.UserMessageParts(openai.TextPart(msg.Content)))
			}
		case messages.ToolCallMessage:
			tcd := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				tcd[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   openai.String(tc.ID),
					Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
					Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      openai.String(tc.Name),
						Arguments: openai.String(tc.Arguments),
					}),
				}
			}
			result = append(result, openai.ChatCompletionMessageParam{
				Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
				ToolCalls: openai.F[any](tcd),
			})
		case messages.AssistantMessage:
			if msg.Content != "" {
				am := openai.ChatCompletionAssistantMessageParam{
					Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
				}
				am.Content.Value = append(am.Content.Value, openai.TextPart(msg.Content))
				result = append(result, am)
			}
		}
	}
	return result, user
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return errorEvent(command, fmt.Errorf("completion %s returned no choices", chat.ID))
	}

	resp := provider.Response{
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Usage:     toUsage(chat.Usage),
		Timestamp: strfmt.DateTime(time.Now()),
	}

	choice := chat.Choices[0].Message
	if len(choice.ToolCalls) > 0 {
		tcd := make([]messages.ToolCallData, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			tcd[i] = messages.ToolCallData{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
		resp.Message = messages.ToolCallMessage{ToolCalls: tcd}
		return resp
	}

	resp.Message = messages.AssistantMessage{Content: choice.Content}
	return resp
}

func toUsage(u openai.CompletionUsage) shorttermmemory.Usage {
	return shorttermmemory.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CachedTokens:     u.PromptTokensDetails.CachedTokens,
	}
}
