/*
Package tool turns plain Go functions into capabilities a language model can call.

A Definition carries the name and description sent to the model, the argument
names, and the function itself. The argument schema is reflected from the
function signature, and Call decodes the model's JSON arguments back into Go
values before invoking the function.

	switchMode := tool.Must(t.SwitchMode,
		tool.Name("switch_mode"),
		tool.Description("Switch to a specific learning mode"),
		tool.Parameters("mode"),
		tool.Describe("mode", "The learning mode: 'learn', 'quiz', or 'teach_back'"),
	)

	reply, err := switchMode.Call(ctx, `{"mode":"teach back"}`)

A leading context.Context argument is filled in by Call and is not part of the
schema. Results are rendered as text: strings as-is, Stringers and
TextMarshalers through their methods, everything else as JSON. A non-nil error
result is returned as the call error.
*/
package tool
