// Package shorttermmemory holds the conversation of one tutoring session: the
// ordered messages exchanged with the language model and the tokens they cost.
//
// A turn works on a fork of the session thread. When the turn completes, the
// fork is joined back so only finished exchanges become part of the history;
// a failed turn is dropped with its fork and leaves no dangling tool calls.
//
//	turn := thread.Fork()
//	turn.AddUserPrompt(msg)
//	// ... model and tool messages ...
//	thread.Join(turn)
package shorttermmemory
