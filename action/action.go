package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/job"
)

// Handler answers one request. The returned value is encoded as the
// request's result.
type Handler func(ctx context.Context, params job.Parameters) (any, error)

// Action is a named request handler together with the parameters every
// request must carry.
type Action struct {
	Name     string
	Required []string
	Handler  Handler
}

// Table maps request types to actions. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewTable creates an empty action table.
func NewTable() *Table {
	return &Table{actions: make(map[string]Action)}
}

// Register adds actions to the table. Names must be unique.
func (t *Table) Register(actions ...Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range actions {
		if a.Name == "" || a.Handler == nil {
			return fmt.Errorf("action: register %q: name and handler are required", a.Name)
		}
		if _, ok := t.actions[a.Name]; ok {
			return fmt.Errorf("%w: %q", vmjobs.ErrDuplicateAction, a.Name)
		}
		t.actions[a.Name] = a
	}
	return nil
}

// Get returns the action registered under name.
func (t *Table) Get(name string) (Action, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.actions[name]
	return a, ok
}

// Names returns the registered request types in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.actions))
	for name := range t.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch checks the required parameters of the named action and runs it.
func (t *Table) Dispatch(ctx context.Context, name string, params job.Parameters) (any, error) {
	a, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: request type %q is not supported", vmjobs.ErrUnknownAction, name)
	}
	if err := CheckRequired(params, a.Required...); err != nil {
		return nil, err
	}
	return a.Handler(ctx, params)
}

// CheckRequired returns ErrParameterNotFound for the first missing key.
func CheckRequired(params job.Parameters, keys ...string) error {
	for _, key := range keys {
		if !params.Has(key) {
			return fmt.Errorf("%w: parameter %q is not found in request parameters",
				vmjobs.ErrParameterNotFound, key)
		}
	}
	return nil
}
