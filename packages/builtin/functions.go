package builtin

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Func func(args []string) any

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

// WithClock replaces the time source used by the time functions.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["date"] = r.funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["shortId"] = funcShortID
	r.funcs["hostname"] = funcHostname
	r.funcs["env"] = funcEnv
	r.funcs["upper"] = funcUpper
	r.funcs["lower"] = funcLower
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}

	name := matches[1]
	argsStr := matches[2]

	fn, ok := r.funcs[name]
	if !ok {
		return nil, false
	}

	var args []string
	if argsStr != "" {
		args = parseArgs(argsStr)
	}

	return fn(args), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func (r *Registry) funcNow(_ []string) any {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *Registry) funcTimestamp(_ []string) any {
	return r.now().Unix()
}

func (r *Registry) funcTimestampMs(_ []string) any {
	return r.now().UnixMilli()
}

func (r *Registry) funcDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return r.now().UTC().Format(format)
}

func funcUUID(_ []string) any {
	return uuid.New().String()
}

func funcShortID(_ []string) any {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func funcHostname(_ []string) any {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func funcEnv(args []string) any {
	if len(args) < 1 {
		return ""
	}
	if v := os.Getenv(args[0]); v != "" {
		return v
	}
	if len(args) >= 2 {
		return args[1]
	}
	return ""
}

func funcUpper(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return strings.ToUpper(args[0])
}

func funcLower(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return strings.ToLower(args[0])
}
