package rehydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/suite"

	"github.com/abdul-hamid-achik/snot/packages/logging"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Rehydrator resolves descriptors against a Registry and invokes them.
type Rehydrator struct {
	registry *Registry
	logger   *log.Logger
}

func New(registry *Registry) *Rehydrator {
	if registry == nil {
		registry = Default
	}
	return &Rehydrator{registry: registry, logger: logging.New("rehydrate")}
}

func (r *Rehydrator) WithLogger(logger *log.Logger) *Rehydrator {
	r.logger = logger
	return r
}

// call is a resolved invocation.
type call struct {
	module   *Module
	receiver any
	fn       reflect.Value
	args     []reflect.Value
}

// resolve turns d into a callable without running anything.
func (r *Rehydrator) resolve(ctx context.Context, d Descriptor) (*call, error) {
	m, ok := r.registry.Lookup(d.ModuleLocation, d.ModuleName)
	if !ok {
		return nil, &RehydrationError{
			Module:   firstNonEmpty(d.ModuleName, d.ModuleLocation),
			Function: d.FunctionName,
			Reason:   "module is not registered",
		}
	}

	c := &call{module: m}
	if d.Receiver != nil {
		factory, ok := m.types[d.Receiver.Type]
		if !ok {
			return nil, &RehydrationError{Module: m.label(), Function: d.FunctionName, Reason: fmt.Sprintf("receiver type %q is not registered", d.Receiver.Type)}
		}
		recv, err := factory(d.Receiver.State)
		if err != nil {
			return nil, &RehydrationError{Module: m.label(), Function: d.FunctionName, Reason: "rebuilding receiver", Err: err}
		}
		method := reflect.ValueOf(recv).MethodByName(d.FunctionName)
		if !method.IsValid() {
			return nil, &RehydrationError{Module: m.label(), Function: d.FunctionName, Reason: fmt.Sprintf("%s has no method %s", d.Receiver.Type, d.FunctionName)}
		}
		c.receiver = recv
		c.fn = method
	} else {
		fn, ok := m.funcs[d.FunctionName]
		if !ok {
			return nil, &RehydrationError{Module: m.label(), Function: d.FunctionName, Reason: "function is not registered"}
		}
		c.fn = fn
	}

	args, err := decodeArguments(ctx, c.fn.Type(), d.Arguments)
	if err != nil {
		return nil, &RehydrationError{Module: m.label(), Function: d.FunctionName, Reason: "decoding arguments", Err: err}
	}
	c.args = args
	return c, nil
}

// Invoke replays d with its fixtures. The returned error is a
// *RehydrationError when d cannot be resolved, otherwise the first error of
// the setups, the call itself and the teardowns.
func (r *Rehydrator) Invoke(ctx context.Context, d Descriptor) error {
	c, err := r.resolve(ctx, d)
	if err != nil {
		return err
	}
	r.logger.Debug("replaying", "module", c.module.label(), "function", d.FunctionName, "receiver", c.receiver != nil)
	return c.run(ctx)
}

func (c *call) run(ctx context.Context) (err error) {
	var teardowns []func() error
	defer func() {
		for i := len(teardowns) - 1; i >= 0; i-- {
			if terr := teardowns[i](); terr != nil && err == nil {
				err = terr
			}
		}
	}()

	if c.module.Setup != nil {
		if err := c.module.Setup(ctx); err != nil {
			return fmt.Errorf("module setup: %w", err)
		}
	}
	if c.module.Teardown != nil {
		teardowns = append(teardowns, func() error {
			if err := c.module.Teardown(ctx); err != nil {
				return fmt.Errorf("module teardown: %w", err)
			}
			return nil
		})
	}

	if s, ok := c.receiver.(suite.SetupAllSuite); ok {
		if err := guard("suite setup", s.SetupSuite); err != nil {
			return err
		}
	}
	if s, ok := c.receiver.(suite.TearDownAllSuite); ok {
		teardowns = append(teardowns, func() error { return guard("suite teardown", s.TearDownSuite) })
	}

	if s, ok := c.receiver.(suite.SetupTestSuite); ok {
		if err := guard("test setup", s.SetupTest); err != nil {
			return err
		}
	}
	if s, ok := c.receiver.(suite.TearDownTestSuite); ok {
		teardowns = append(teardowns, func() error { return guard("test teardown", s.TearDownTest) })
	}

	return invoke(c.fn, c.args)
}

func invoke(fn reflect.Value, args []reflect.Value) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	out := fn.Call(args)
	if n := len(out); n > 0 && fn.Type().Out(n-1) == errorType && !out[n-1].IsNil() {
		return out[n-1].Interface().(error)
	}
	return nil
}

func guard(stage string, fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: panic: %v", stage, p)
		}
	}()
	fn()
	return nil
}

// decodeArguments decodes a JSON array into the parameters of fnType. A
// leading context.Context parameter is filled with ctx.
func decodeArguments(ctx context.Context, fnType reflect.Type, data json.RawMessage) ([]reflect.Value, error) {
	var raw []json.RawMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("arguments are not a JSON array: %w", err)
		}
	}

	var args []reflect.Value
	first := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		args = append(args, reflect.ValueOf(ctx))
		first = 1
	}

	fixed := fnType.NumIn() - first
	if fnType.IsVariadic() {
		fixed--
		if len(raw) < fixed {
			return nil, fmt.Errorf("want at least %d arguments, got %d", fixed, len(raw))
		}
	} else if len(raw) != fixed {
		return nil, fmt.Errorf("want %d arguments, got %d", fixed, len(raw))
	}

	for i, msg := range raw {
		var t reflect.Type
		if i < fixed {
			t = fnType.In(first + i)
		} else {
			t = fnType.In(fnType.NumIn() - 1).Elem()
		}
		v := reflect.New(t)
		if err := json.Unmarshal(msg, v.Interface()); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, v.Elem())
	}
	return args, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
