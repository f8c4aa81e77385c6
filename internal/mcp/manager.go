package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/batalabs/microcode/internal/agent"
)

// ErrUnknownServer is returned for operations on a server that is not bound.
var ErrUnknownServer = errors.New("unknown MCP server")

// Binding is a connected server and the tool names it registered.
type Binding struct {
	Name      string
	Handle    *Handle
	ToolNames []string
}

// Manager owns the session's server bindings. It is not safe for concurrent
// use; the session loop is its only caller.
type Manager struct {
	registrar Registrar
	connect   func(ctx context.Context, name string, sc ServerConfig) (*Handle, error)
	logf      func(string, ...any)
	bindings  map[string]*Binding
}

// NewManager returns an empty manager. logf may be nil.
func NewManager(r Registrar, logf func(string, ...any)) *Manager {
	if r == nil {
		r = SDKRegistrar{}
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Manager{
		registrar: r,
		connect:   Connect,
		logf:      logf,
		bindings:  make(map[string]*Binding),
	}
}

// StartAll connects every server in cfg and registers its tools with p.
// Servers that fail are logged and skipped; their errors are returned
// together.
func (m *Manager) StartAll(ctx context.Context, cfg Config, p agent.Program) error {
	var errs []error
	for _, name := range cfg.Names() {
		if _, err := m.Add(ctx, p, name, cfg.Servers[name]); err != nil {
			m.logf("mcp: server %q: %v", name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Add connects a new server and registers its tools with p.
func (m *Manager) Add(ctx context.Context, p agent.Program, name string, sc ServerConfig) (*Binding, error) {
	if _, exists := m.bindings[name]; exists {
		return nil, fmt.Errorf("MCP server %q is already connected", name)
	}
	h, err := m.connect(ctx, name, sc)
	if err != nil {
		return nil, err
	}
	names, err := m.registrar.Register(ctx, p, name, h)
	if err != nil {
		h.Close()
		return nil, err
	}
	b := &Binding{Name: name, Handle: h, ToolNames: names}
	m.bindings[name] = b
	m.logf("mcp: server %q connected with %d tools", name, len(names))
	return b, nil
}

// Remove disconnects name and withdraws its tools from p.
func (m *Manager) Remove(p agent.Program, name string) error {
	b, ok := m.bindings[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownServer, name)
	}
	delete(m.bindings, name)
	if p != nil {
		p.RegisterTools(name, nil)
	}
	if err := b.Handle.Close(); err != nil {
		m.logf("mcp: closing %q: %v", name, err)
	}
	return nil
}

// Rebind registers every bound server's tools with p and returns the
// resulting tool names per server. Bindings are not modified; callers apply
// the result with Commit once the rest of their transaction succeeds.
func (m *Manager) Rebind(ctx context.Context, p agent.Program) (map[string][]string, error) {
	out := make(map[string][]string, len(m.bindings))
	for _, name := range m.Names() {
		names, err := m.registrar.Register(ctx, p, name, m.bindings[name].Handle)
		if err != nil {
			return nil, fmt.Errorf("re-registering MCP server %q: %w", name, err)
		}
		out[name] = names
	}
	return out, nil
}

// Commit replaces each binding's tool names with the ones from Rebind.
func (m *Manager) Commit(toolNames map[string][]string) {
	for name, names := range toolNames {
		if b, ok := m.bindings[name]; ok {
			b.ToolNames = names
		}
	}
}

// Names returns bound server names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.bindings))
	for name := range m.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Binding returns the binding for name.
func (m *Manager) Binding(name string) (*Binding, bool) {
	b, ok := m.bindings[name]
	return b, ok
}

// ToolCount returns the number of tools across all bindings.
func (m *Manager) ToolCount() int {
	n := 0
	for _, b := range m.bindings {
		n += len(b.ToolNames)
	}
	return n
}

// CloseAll disconnects every server.
func (m *Manager) CloseAll() {
	for _, name := range m.Names() {
		if err := m.bindings[name].Handle.Close(); err != nil {
			m.logf("mcp: closing %q: %v", name, err)
		}
		delete(m.bindings, name)
	}
}
