package template

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"

	"notification-engine/internal/models"
)

//go:embed phrases.json
var defaultPhrases []byte

// PhraseCatalog holds the motivational closing lines, pooled by event
// category. The pools are data, loaded at startup, so they can be swapped or
// localized without touching code.
type PhraseCatalog struct {
	pools map[string][]string
}

// LoadPhrases parses a category → phrase-list JSON document.
func LoadPhrases(data []byte) (*PhraseCatalog, error) {
	pools := make(map[string][]string)
	if err := json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("failed to parse phrase catalog: %w", err)
	}
	return &PhraseCatalog{pools: pools}, nil
}

// DefaultPhrases returns the built-in catalog.
func DefaultPhrases() *PhraseCatalog {
	catalog, err := LoadPhrases(defaultPhrases)
	if err != nil {
		// the embedded file is validated by tests; an empty catalog is the
		// safe fallback if it is ever edited into invalid JSON
		return &PhraseCatalog{pools: map[string][]string{}}
	}
	return catalog
}

// Pick draws one phrase uniformly at random from the category's pool,
// falling back to the general pool. Returns "" when no pool has phrases.
func (c *PhraseCatalog) Pick(category string, rng *rand.Rand) string {
	pool := c.pools[category]
	if len(pool) == 0 {
		pool = c.pools[CategoryGeneral]
	}
	if len(pool) == 0 {
		return ""
	}
	return pool[rng.Intn(len(pool))]
}

// Phrase pool categories.
const (
	CategorySales    = "sales"
	CategoryRecovery = "recovery"
	CategoryService  = "service"
	CategoryGeneral  = "general"
)

// CategoryFor maps a trigger event to its phrase pool. Total: unknown events
// fall through to the general pool.
func CategoryFor(triggerEvent string) string {
	switch triggerEvent {
	case models.EventOrderCreated, models.EventOrderShipped:
		return CategorySales
	case models.EventOrderCancelled, models.EventCartAbandoned, models.EventPaymentFailed:
		return CategoryRecovery
	case models.EventReviewNegative:
		return CategoryService
	default:
		return CategoryGeneral
	}
}
