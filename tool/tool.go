package tool

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a function the language model may call.
type Definition struct {
	Name        string
	Description string
	// Parameters names the function arguments in order, skipping a leading context.Context.
	Parameters []string
	// ParameterDescriptions documents arguments by name for the model.
	ParameterDescriptions map[string]string
	Function              any
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Option configures a Definition.
type Option = opts.Option[Definition]

var (
	// Name sets the name the model calls the tool by.
	Name = opts.ForName[Definition, string]("Name")
	// Description sets the human readable explanation sent to the model.
	Description = opts.ForName[Definition, string]("Description")
)

// Parameters names the function arguments in declaration order.
func Parameters(names ...string) Option {
	return opts.Type[Definition](func(d *Definition) error {
		d.Parameters = append([]string(nil), names...)
		return nil
	})
}

// Describe documents a single named argument.
func Describe(param, description string) Option {
	return opts.Type[Definition](func(d *Definition) error {
		if d.ParameterDescriptions == nil {
			d.ParameterDescriptions = make(map[string]string)
		}
		d.ParameterDescriptions[param] = description
		return nil
	})
}

// New creates a Definition for fn. fn must be a function; its first argument may be a
// context.Context, which is supplied at call time and never advertised to the model.
func New(fn any, options ...Option) (Definition, error) {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return Definition{}, errors.New("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	def.Function = fn
	if def.Name == "" {
		def.Name = functionName(fn)
	}

	args := argTypes(reflect.TypeOf(fn))
	if len(def.Parameters) == 0 {
		for i := range args {
			def.Parameters = append(def.Parameters, fmt.Sprintf("param%d", i))
		}
	}
	if len(def.Parameters) != len(args) {
		return Definition{}, fmt.Errorf("tool %s: %d parameter names for %d arguments", def.Name, len(def.Parameters), len(args))
	}
	return def, nil
}

// Must is New that panics on error; meant for package level tool declarations.
func Must(fn any, options ...Option) Definition {
	def, err := New(fn, options...)
	if err != nil {
		panic(err)
	}
	return def
}

func functionName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "tool"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// argTypes returns the model visible argument types of a function type.
func argTypes(typ reflect.Type) []reflect.Type {
	var result []reflect.Type
	for i := range typ.NumIn() {
		in := typ.In(i)
		if i == 0 && in == contextType {
			continue
		}
		result = append(result, in)
	}
	return result
}

// Schema returns the JSON schema of the tool arguments.
func (d Definition) Schema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	if d.Function == nil {
		return schema
	}

	for i, typ := range argTypes(reflect.TypeOf(d.Function)) {
		name := d.Parameters[i]
		prop := reflector.ReflectFromType(typ)
		prop.Version = ""
		if desc, ok := d.ParameterDescriptions[name]; ok {
			prop.Description = desc
		}
		schema.Properties.Set(name, prop)
		schema.Required = append(schema.Required, name)
	}
	return schema
}

// Call invokes the tool with the JSON encoded arguments produced by the model
// and renders the result as text.
func (d Definition) Call(ctx context.Context, arguments string) (string, error) {
	if d.Function == nil {
		return "", fmt.Errorf("tool %s has nil function", d.Name)
	}
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	if !gjson.Valid(arguments) {
		return "", fmt.Errorf("tool %s: arguments are not valid json", d.Name)
	}
	parsed := gjson.Parse(arguments)

	fn := reflect.ValueOf(d.Function)
	typ := fn.Type()
	callArgs := make([]reflect.Value, 0, typ.NumIn())
	param := 0
	for i := range typ.NumIn() {
		in := typ.In(i)
		if i == 0 && in == contextType {
			callArgs = append(callArgs, reflect.ValueOf(ctx))
			continue
		}
		name := d.Parameters[param]
		param++

		val, err := convert(parsed.Get(name), in)
		if err != nil {
			return "", fmt.Errorf("tool %s: argument %s: %w", d.Name, name, err)
		}
		callArgs = append(callArgs, val)
	}

	return render(fn.Call(callArgs))
}

func convert(val gjson.Result, typ reflect.Type) (reflect.Value, error) {
	if !val.Exists() {
		return reflect.Zero(typ), nil
	}

	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		out.SetString(val.String())
	case reflect.Bool:
		out.SetBool(val.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(val.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.SetUint(val.Uint())
	case reflect.Float32, reflect.Float64:
		out.SetFloat(val.Float())
	default:
		if err := json.Unmarshal([]byte(val.Raw), out.Addr().Interface()); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

func render(results []reflect.Value) (string, error) {
	var text string
	for _, res := range results {
		if res.Type() == errorType {
			if !res.IsNil() {
				return "", res.Interface().(error)
			}
			continue
		}

		s, err := renderValue(res.Interface())
		if err != nil {
			return "", err
		}
		text = s
	}
	return text, nil
}

func renderValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case encoding.TextMarshaler:
		b, err := val.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return val.String(), nil
	case int:
		return strconv.Itoa(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("marshal tool result: %w", err)
		}
		return string(b), nil
	}
}
