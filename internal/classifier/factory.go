package classifier

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kiranshivaraju/errtrack/internal/store"
)

// ErrUnsupportedEntityType is matched (via errors.Is) by the error Create
// returns for an unregistered entity type.
var ErrUnsupportedEntityType = errors.New("unsupported entity type")

// Factory resolves entity-type tags to classifiers. It is safe for
// concurrent use.
type Factory struct {
	tracker Tracker

	mu          sync.RWMutex
	classifiers map[string]*ruleClassifier
}

// NewFactory returns a factory serving the given profiles. It panics on an
// invalid profile, which is a programming error.
func NewFactory(tracker Tracker, profiles ...Profile) *Factory {
	f := &Factory{
		tracker:     tracker,
		classifiers: make(map[string]*ruleClassifier, len(profiles)),
	}
	for _, p := range profiles {
		if err := f.Register(p); err != nil {
			panic(err)
		}
	}
	return f
}

// Register adds or replaces the profile for p.EntityType.
func (f *Factory) Register(p Profile) error {
	p.EntityType = canonicalType(p.EntityType)
	if p.EntityType == "" {
		return &store.ValidationError{Field: "entity_type", Reason: "profile entity type must not be empty"}
	}
	for i, r := range p.Rules {
		if r.Substring == "" {
			return &store.ValidationError{Field: "rules", Reason: fmt.Sprintf("%s rule %d has an empty substring", p.EntityType, i)}
		}
		if !r.Category.Valid() {
			return &store.ValidationError{Field: "rules", Reason: fmt.Sprintf("%s rule %d has unknown category %q", p.EntityType, i, r.Category)}
		}
	}

	c := newRuleClassifier(p, f.tracker)
	f.mu.Lock()
	f.classifiers[p.EntityType] = c
	f.mu.Unlock()
	return nil
}

// Create returns the classifier registered for entityType.
func (f *Factory) Create(entityType string) (Classifier, error) {
	f.mu.RLock()
	c, ok := f.classifiers[canonicalType(entityType)]
	f.mu.RUnlock()
	if !ok {
		return nil, &store.ValidationError{
			Field:  "entity_type",
			Reason: fmt.Sprintf("unsupported entity type %q", entityType),
			Err:    ErrUnsupportedEntityType,
		}
	}
	return c, nil
}

// EntityTypes returns the registered entity types in sorted order.
func (f *Factory) EntityTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.classifiers))
	for t := range f.classifiers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func canonicalType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
