package loader

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dshills/plugconf/internal/codec"
	"github.com/dshills/plugconf/internal/value"
)

// DefaultEnvPrefix is the prefix of variables read by NewEnvLoader.
const DefaultEnvPrefix = "PLUGCONF_"

// EnvSeparator separates nesting levels in variable names:
// PLUGCONF_SERVER__LISTEN_PORT sets server.listen_port.
const EnvSeparator = "__"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string                   // Environment variable prefix (e.g., "PLUGCONF_")
	mapping map[string]value.Position // Env var -> config position
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "PLUGCONF_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: make(map[string]value.Position),
		environ: os.Environ,
	}
}

// AddMapping maps an environment variable to an explicit position,
// bypassing name conversion.
func (l *EnvLoader) AddMapping(envVar string, pos value.Position) {
	l.mapping[envVar] = pos
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// Load reads environment variables and returns them as a map tree.
// Variables are applied in name order so the result is deterministic.
// Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (*value.Value, error) {
	vars := make(map[string]string)
	for _, env := range l.environ() {
		name, val, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if _, mapped := l.mapping[name]; mapped || strings.HasPrefix(name, l.prefix) {
			vars[name] = val
		}
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	root := value.EmptyMap()
	for _, name := range names {
		pos, ok := l.mapping[name]
		if !ok {
			pos = l.envToPosition(name)
		}
		if pos.IsRoot() {
			continue
		}
		if err := value.SetAt(root, pos, ParseValue(vars[name])); err != nil {
			return nil, fmt.Errorf("environment variable %s: %w", name, err)
		}
	}
	return root, nil
}

// envToPosition converts PLUGCONF_EDITOR__TAB_SIZE to editor.tab_size.
func (l *EnvLoader) envToPosition(env string) value.Position {
	name := strings.TrimPrefix(env, l.prefix)
	var pos value.Position
	for _, part := range strings.Split(name, EnvSeparator) {
		if part == "" {
			continue
		}
		pos = pos.Key(strings.ToLower(part))
	}
	return pos
}

// ParseValue attempts to parse the string value into an appropriate type:
// booleans, integers, floats with a decimal point, and JSON arrays or
// objects. Everything else stays a string.
func ParseValue(s string) *value.Value {
	// Empty string
	if s == "" {
		return value.String(s)
	}

	lower := strings.ToLower(s)
	if lower == "true" || lower == "yes" || lower == "on" {
		return value.Bool(true)
	}
	if lower == "false" || lower == "no" || lower == "off" {
		return value.Bool(false)
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}

	// Only with a decimal point to avoid misinterpreting ints
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Float(f)
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		if v, err := (codec.JSON{}).Decode([]byte(s)); err == nil {
			return v
		}
	}

	return value.String(s)
}
