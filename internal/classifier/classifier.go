// Package classifier maps raw sync failures of one CRM entity kind onto an
// error category and a set of extension attributes, then records them
// through a Tracker.
package classifier

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// Tracker persists one occurrence of an error. store.Store satisfies it.
type Tracker interface {
	TrackError(ctx context.Context, params store.TrackParams) (*models.TrackResult, error)
}

// Classifier categorizes and tracks errors for a single entity type.
type Classifier interface {
	EntityType() string
	Categorize(message string, fields map[string]any) models.Category
	ExtractExtensions(entityID string, fields map[string]any) map[string]any
	Track(ctx context.Context, entityID, message string, fields map[string]any) (*models.TrackResult, error)
}

// Rule assigns Category to messages containing Substring, ignoring case.
type Rule struct {
	Substring string
	Category  models.Category
}

// Profile is the data that distinguishes one entity kind from another.
// Rules are evaluated in order and the first match wins; unmatched
// messages fall back to system_error.
type Profile struct {
	EntityType string
	Rules      []Rule
	// ExtensionKeys lists the context keys promoted to extensions.
	ExtensionKeys []string
	// IDKey, when set, also records the entity id as an extension under
	// this key unless the context already carries it.
	IDKey string
}

type compiledRule struct {
	needle   string
	category models.Category
}

type ruleClassifier struct {
	entityType string
	rules      []compiledRule
	keys       []string
	idKey      string
	tracker    Tracker
}

func newRuleClassifier(p Profile, tracker Tracker) *ruleClassifier {
	rules := make([]compiledRule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, compiledRule{needle: strings.ToLower(r.Substring), category: r.Category})
	}
	return &ruleClassifier{
		entityType: p.EntityType,
		rules:      rules,
		keys:       append([]string(nil), p.ExtensionKeys...),
		idKey:      p.IDKey,
		tracker:    tracker,
	}
}

func (c *ruleClassifier) EntityType() string {
	return c.entityType
}

func (c *ruleClassifier) Categorize(message string, _ map[string]any) models.Category {
	lower := strings.ToLower(message)
	for _, r := range c.rules {
		if strings.Contains(lower, r.needle) {
			return r.category
		}
	}
	return models.CategorySystem
}

func (c *ruleClassifier) ExtractExtensions(entityID string, fields map[string]any) map[string]any {
	ext := make(map[string]any)
	for _, k := range c.keys {
		if v, ok := fields[k]; ok && v != nil {
			ext[k] = v
		}
	}
	if c.idKey != "" && entityID != "" {
		if _, ok := ext[c.idKey]; !ok {
			ext[c.idKey] = entityID
		}
	}
	return ext
}

// Track records the error with the full context as details.
func (c *ruleClassifier) Track(ctx context.Context, entityID, message string, fields map[string]any) (*models.TrackResult, error) {
	return c.tracker.TrackError(ctx, store.TrackParams{
		EntityType: c.entityType,
		EntityID:   entityID,
		Message:    message,
		Category:   c.Categorize(message, fields),
		Details:    fields,
		Extensions: c.ExtractExtensions(entityID, fields),
	})
}
