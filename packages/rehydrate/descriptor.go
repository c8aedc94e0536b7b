package rehydrate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
)

// Attribute keys a descriptor is stored under on a result record.
const (
	AttrModuleLocation = "moduleLocation"
	AttrModuleName     = "moduleName"
	AttrFunctionName   = "functionName"
	AttrArguments      = "serializedArguments"
	AttrReceiver       = "serializedOwningInstance"
)

// Receiver identifies the value a method is bound to: a type name registered
// with the module and the JSON state its factory rebuilds the value from.
type Receiver struct {
	Type  string          `json:"type"`
	State json.RawMessage `json:"state,omitempty"`
}

// Descriptor is everything needed to call a test invocation again.
type Descriptor struct {
	ModuleLocation string
	ModuleName     string
	FunctionName   string
	Arguments      json.RawMessage // JSON array
	Receiver       *Receiver
}

// NewDescriptor encodes args and, when receiver is not nil, the receiver's
// state under typeName.
func NewDescriptor(location, name, function string, args []any, typeName string, receiver any) (Descriptor, error) {
	d := Descriptor{
		ModuleLocation: location,
		ModuleName:     name,
		FunctionName:   function,
	}
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return Descriptor{}, fmt.Errorf("encode arguments of %s: %w", function, err)
	}
	d.Arguments = encoded

	if receiver != nil {
		if typeName == "" {
			typeName = TypeName(receiver)
		}
		state, err := json.Marshal(receiver)
		if err != nil {
			return Descriptor{}, fmt.Errorf("encode receiver of %s: %w", function, err)
		}
		d.Receiver = &Receiver{Type: typeName, State: state}
	}
	return d, nil
}

// TypeName is the default registration name of v's type: the bare type name
// without pointer or package.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// Attributes renders d as result attributes. Binary fields are base64 encoded.
func (d Descriptor) Attributes() (map[string]string, error) {
	attrs := map[string]string{
		AttrModuleLocation: d.ModuleLocation,
		AttrFunctionName:   d.FunctionName,
		AttrArguments:      base64.StdEncoding.EncodeToString(d.Arguments),
	}
	if d.ModuleName != "" {
		attrs[AttrModuleName] = d.ModuleName
	}
	if d.Receiver != nil {
		data, err := json.Marshal(d.Receiver)
		if err != nil {
			return nil, fmt.Errorf("encode receiver: %w", err)
		}
		attrs[AttrReceiver] = base64.StdEncoding.EncodeToString(data)
	}
	return attrs, nil
}

// HasDescriptor reports whether attrs carry a replay descriptor.
func HasDescriptor(attrs map[string]string) bool {
	return attrs[AttrFunctionName] != "" && (attrs[AttrModuleLocation] != "" || attrs[AttrModuleName] != "")
}

// FromAttributes reads a descriptor back from result attributes.
func FromAttributes(attrs map[string]string) (Descriptor, error) {
	if !HasDescriptor(attrs) {
		return Descriptor{}, &RehydrationError{Reason: "attributes carry no replay descriptor"}
	}
	d := Descriptor{
		ModuleLocation: attrs[AttrModuleLocation],
		ModuleName:     attrs[AttrModuleName],
		FunctionName:   attrs[AttrFunctionName],
	}

	if raw := attrs[AttrArguments]; raw != "" {
		args, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Descriptor{}, &RehydrationError{Function: d.FunctionName, Reason: "arguments are not base64", Err: err}
		}
		d.Arguments = args
	}

	if raw := attrs[AttrReceiver]; raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Descriptor{}, &RehydrationError{Function: d.FunctionName, Reason: "receiver is not base64", Err: err}
		}
		var r Receiver
		if err := json.Unmarshal(data, &r); err != nil {
			return Descriptor{}, &RehydrationError{Function: d.FunctionName, Reason: "receiver is not valid JSON", Err: err}
		}
		d.Receiver = &r
	}
	return d, nil
}
