// Package pipeline merges resolved places into a canonical record set and
// serialises it to the output files.
package pipeline

import "blogplaces/models"

// Aggregator deduplicates places by identity key. On a collision the record
// with more reviews stays as the representative (ties keep the earlier one),
// and provenance is unioned either way so no source attribution is lost.
type Aggregator struct {
	order []string
	byKey map[string]*models.Place
	adds  int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byKey: make(map[string]*models.Place)}
}

// Add merges one place into the set. Arrival order does not affect which
// record ends up representative, only the first-seen position of its key.
func (a *Aggregator) Add(p *models.Place) {
	if p == nil {
		return
	}
	a.adds++
	key := p.Key()
	existing, ok := a.byKey[key]
	if !ok {
		a.order = append(a.order, key)
		a.byKey[key] = p
		return
	}

	if p.Reviews > existing.Reviews {
		for _, u := range existing.SourceURLs {
			p.AddSource(u)
		}
		a.byKey[key] = p
		return
	}
	for _, u := range p.SourceURLs {
		existing.AddSource(u)
	}
}

// AddAll merges a batch.
func (a *Aggregator) AddAll(ps []*models.Place) {
	for _, p := range ps {
		a.Add(p)
	}
}

// Places returns the deduplicated records in first-seen key order.
func (a *Aggregator) Places() []*models.Place {
	out := make([]*models.Place, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.byKey[key])
	}
	return out
}

// Merged returns how many additions collapsed into existing records.
func (a *Aggregator) Merged() int {
	return a.adds - len(a.order)
}

// Len returns the number of distinct places.
func (a *Aggregator) Len() int {
	return len(a.order)
}
