package policy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/hookrelay/internal/config"
	"github.com/gyaneshwarpardhi/hookrelay/internal/throttle"
)

// Registry maps policy names to their implementations.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// FromConfig registers all built-in policies using conf. The cooldown store
// is passed in so it survives config reloads.
func FromConfig(conf config.ReplyConf, store throttle.Store) *Registry {
	r := NewRegistry()
	r.Register(NewUnconditional(conf.TemplateName, conf.TemplateLanguage))
	r.Register(NewCooldown(conf.TemplateName, conf.TemplateLanguage, store))
	r.Register(NewContent(conf.HelpText))
	return r
}

// Register adds a policy. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[p.Name()]; exists {
		panic(fmt.Sprintf("policy registry: duplicate name %q", p.Name()))
	}
	r.policies[p.Name()] = p
}

// Get returns the policy for the given name (case-insensitive).
func (r *Registry) Get(name string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("no reply policy registered as %q", name)
	}
	return p, nil
}

// Names returns all registered policy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.policies))
	for k := range r.policies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
