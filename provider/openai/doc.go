/*
Package openai implements provider.Provider on the OpenAI chat completions API.
The tutor uses it against Groq, which serves the same API under its own base URL.

	model := openai.Groq(openai.Llama3370B, os.Getenv("GROQ_API_KEY"), "")
	events, err := model.Provider().ChatCompletion(ctx, params)

Models are registered by name and create their provider lazily on first use.
Streaming requests ask the service to report token usage on the final chunk so
the Response event carries it in both modes.
*/
package openai
