// Package plugin keeps the validated settings of each registered plugin.
//
// Every plugin registers a definition. Settings are only ever committed
// after they validate, so a plugin always sees a complete tree with its
// defaults filled in. Changes are published through a notifier at
// positions of the form [plugins][<name>][settings][...].
package plugin

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/merge"
	"github.com/dshills/plugconf/internal/notify"
	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/validate"
	"github.com/dshills/plugconf/internal/value"
)

// NotifySource is the source of changes published by the manager.
const NotifySource = "plugin"

// Config is a snapshot of one plugin's configuration.
type Config struct {
	// Name is the unique plugin identifier.
	Name string

	// Enabled controls whether the plugin is active.
	Enabled bool

	// Settings holds the validated settings tree.
	Settings *value.Value
}

type entry struct {
	def      schema.Definition
	enabled  bool
	settings *value.Value
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier publishes setting changes through n.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithValidation sets the options used for every validation.
func WithValidation(opts ...validate.Option) Option {
	return func(m *Manager) {
		m.validator = validate.New(opts...)
	}
}

// WithObserver receives an event for every committed update.
func WithObserver(o observe.Observer) Option {
	return func(m *Manager) {
		m.observer = observe.OrNop(o)
	}
}

// Manager manages plugin configuration and definitions.
//
// Manager is safe for concurrent use. Notifications are sent after the
// manager's lock is released, so observers may call back into it.
type Manager struct {
	mu sync.RWMutex

	notifier  *notify.Notifier
	validator *validate.Validator
	observer  observe.Observer

	plugins map[string]*entry
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		validator: validate.New(),
		observer:  observe.Nop{},
		plugins:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SettingsPosition returns the position of a plugin's settings in the
// published tree.
func SettingsPosition(name string) value.Position {
	return value.Position{}.Key("plugins").Key(name).Key("settings")
}

// Register registers a plugin with its definition. The plugin starts
// enabled with the settings obtained by validating an empty map, which
// fails when the definition has required fields without defaults. A nil
// definition accepts any settings.
func (m *Manager) Register(name string, def schema.Definition) error {
	if def == nil {
		def = schema.NewAny()
	}
	settings := value.EmptyMap()
	if err := m.validator.Validate(settings, def, SettingsPosition(name)); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plugins[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	m.plugins[name] = &entry{def: def, enabled: true, settings: settings}
	return nil
}

// RegisterSchema decodes a definition from its external notation and
// registers it.
func (m *Manager) RegisterSchema(name string, raw *value.Value) error {
	def, err := schema.Decode(raw)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return m.Register(name, def)
}

// Unregister removes a plugin registration.
// Returns true if the plugin was registered.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.plugins[name]
	delete(m.plugins, name)
	return ok
}

// IsRegistered returns true if the plugin is registered.
func (m *Manager) IsRegistered(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[name]
	return ok
}

// Names returns the registered plugin names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definition returns a plugin's definition.
func (m *Manager) Definition(name string) (schema.Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	if !ok {
		return nil, false
	}
	return e.def, true
}

// Config returns a snapshot of the plugin's configuration.
func (m *Manager) Config(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	if !ok {
		return Config{}, false
	}
	return Config{Name: name, Enabled: e.enabled, Settings: e.settings.Clone()}, true
}

// Settings returns a copy of the plugin's settings.
func (m *Manager) Settings(name string) (*value.Value, bool) {
	c, ok := m.Config(name)
	return c.Settings, ok
}

// Setting returns a copy of the setting at pos inside the plugin's
// settings.
func (m *Manager) Setting(name string, pos value.Position) (*value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	if !ok {
		return nil, false
	}
	v, ok := value.Lookup(e.settings, pos)
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Configure merges overlay into the plugin's current settings, validates
// the result and commits it. Nothing is committed when validation fails.
// The returned records describe what changed.
func (m *Manager) Configure(name string, overlay *value.Value) ([]diff.Record, error) {
	return m.update(name, func(current *value.Value) *value.Value {
		next := current.Clone()
		merge.Merge(next, overlay)
		return next
	})
}

// Replace validates settings from scratch, injecting defaults, and commits
// them in place of the current settings.
func (m *Manager) Replace(name string, settings *value.Value) ([]diff.Record, error) {
	return m.update(name, func(*value.Value) *value.Value {
		if settings == nil {
			return value.EmptyMap()
		}
		return settings.Clone()
	})
}

// Set stores v at pos inside the plugin's settings, validating the result.
func (m *Manager) Set(name string, pos value.Position, v *value.Value) ([]diff.Record, error) {
	var setErr error
	records, err := m.update(name, func(current *value.Value) *value.Value {
		next := current.Clone()
		if v == nil {
			v = value.Null()
		}
		setErr = value.SetAt(next, pos, v.Clone())
		return next
	})
	if setErr != nil {
		return nil, fmt.Errorf("set %s %s: %w", name, pos, setErr)
	}
	return records, err
}

func (m *Manager) update(name string, build func(current *value.Value) *value.Value) ([]diff.Record, error) {
	m.mu.Lock()
	e, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	base := SettingsPosition(name)
	next := build(e.settings)
	if err := m.validator.Validate(next, e.def, base); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	records := diff.Collect(e.settings, next, diff.WithBase(base))
	e.settings = next
	m.mu.Unlock()

	if len(records) > 0 {
		m.observer.Observe(observe.Event{
			Op:       observe.OpPluginUpdate,
			Position: base,
			Message:  fmt.Sprintf("%d changes", len(records)),
			New:      next.Clone(),
		})
		if m.notifier != nil {
			m.notifier.NotifyDiff(records, NotifySource)
		}
	}
	return records, nil
}

// SetEnabled enables or disables a plugin.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	e, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	old := e.enabled
	e.enabled = enabled
	m.mu.Unlock()

	if old != enabled && m.notifier != nil {
		pos := value.Position{}.Key("plugins").Key(name).Key("enabled")
		m.notifier.NotifySet(pos, value.Bool(old), value.Bool(enabled), NotifySource)
	}
	return nil
}

// IsEnabled returns whether a plugin is enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.plugins[name]
	return ok && e.enabled
}

// SubscribePlugin subscribes to changes of one plugin.
func (m *Manager) SubscribePlugin(name string, observer notify.Observer) (*notify.Subscription, error) {
	if m.notifier == nil {
		return nil, ErrNoNotifier
	}
	return m.notifier.SubscribePath(value.Position{}.Key("plugins").Key(name), observer), nil
}

// Load applies a tree of the form
//
//	{"plugins": {"<name>": {"enabled": bool, "settings": {...}}}}
//
// to the registered plugins. Settings are merged over the current ones.
// Plugins that are not registered are reported, as are entries that fail
// validation; valid entries are applied regardless.
func (m *Manager) Load(tree *value.Value) error {
	plugins, ok := value.Lookup(tree, value.Position{}.Key("plugins"))
	if !ok {
		return nil
	}
	pm, err := plugins.AsMap()
	if err != nil {
		return fmt.Errorf("plugins: expected map, found %s", plugins.Describe())
	}

	var errs []error
	for name, node := range pm.All() {
		if !m.IsRegistered(name) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotRegistered, name))
			continue
		}
		if err := m.loadOne(name, node); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) loadOne(name string, node *value.Value) error {
	nm, err := node.AsMap()
	if err != nil {
		return fmt.Errorf("plugins.%s: expected map, found %s", name, node.Describe())
	}
	if enabled, ok := nm.Get("enabled"); ok {
		b, err := enabled.AsBool()
		if err != nil {
			return fmt.Errorf("plugins.%s.enabled: %w", name, err)
		}
		if err := m.SetEnabled(name, b); err != nil {
			return err
		}
	}
	if settings, ok := nm.Get("settings"); ok {
		if _, err := m.Configure(name, settings); err != nil {
			return err
		}
	}
	return nil
}

// Tree exports every plugin in the form accepted by Load, in name order.
func (m *Manager) Tree() *value.Value {
	plugins := value.NewMap()
	for _, name := range m.Names() {
		c, ok := m.Config(name)
		if !ok {
			continue
		}
		plugins.Set(name, value.MapOf(
			value.KV("enabled", value.Bool(c.Enabled)),
			value.KV("settings", c.Settings),
		))
	}
	return value.MapOf(value.KV("plugins", value.FromMap(plugins)))
}
