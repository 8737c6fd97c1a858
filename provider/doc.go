// Package provider is the seam between the tutor and a chat completion service.
//
// A Provider receives the agent instructions, the conversation thread and the
// tool definitions, and answers on a channel of StreamEvent values: zero or more
// Chunk events carrying text deltas, then exactly one Response or Error. The
// channel is closed when the completion is over.
//
//	events, err := model.Provider().ChatCompletion(ctx, provider.CompletionParams{
//		RunID:        runID,
//		Instructions: instructions,
//		Thread:       thread,
//		Model:        model,
//		Tools:        tools,
//		Stream:       true,
//	})
//	for ev := range events {
//		switch ev := ev.(type) {
//		case provider.Chunk:
//		case provider.Response:
//		case provider.Error:
//		}
//	}
package provider
