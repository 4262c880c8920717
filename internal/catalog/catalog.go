// Package catalog holds the process-wide reference lists the router and the
// in-process workers read on every turn: the NLU rule table, the building
// list and the FAQ list. Each list is loaded on first use and kept for the
// lifetime of the process; a failed load is retried on the next call.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"campus-assistant/internal/domain"
)

type RuleSource interface {
	LoadRules(ctx context.Context) ([]domain.Rule, error)
}

type BuildingSource interface {
	ListBuildings(ctx context.Context) ([]domain.Building, error)
}

type FAQSource interface {
	ListFAQs(ctx context.Context) ([]domain.FAQ, error)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	rules     lazy[domain.Rule]
	buildings lazy[domain.Building]
	faqs      lazy[domain.FAQ]
}

// New creates a Catalog. A nil source yields an empty list for that kind.
func New(rules RuleSource, buildings BuildingSource, faqs FAQSource) *Catalog {
	c := &Catalog{}
	if rules != nil {
		c.rules.load = rules.LoadRules
	}
	if buildings != nil {
		c.buildings.load = buildings.ListBuildings
	}
	if faqs != nil {
		c.faqs.load = faqs.ListFAQs
	}
	return c
}

// NewStatic returns a Catalog that is already populated and never loads.
func NewStatic(rules []domain.Rule, buildings []domain.Building, faqs []domain.FAQ) *Catalog {
	c := &Catalog{}
	c.rules.set(rules)
	c.buildings.set(buildings)
	c.faqs.set(faqs)
	return c
}

func (c *Catalog) Rules(ctx context.Context) ([]domain.Rule, error) {
	rules, err := c.rules.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: rules: %w", err)
	}
	return rules, nil
}

func (c *Catalog) Buildings(ctx context.Context) ([]domain.Building, error) {
	buildings, err := c.buildings.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: buildings: %w", err)
	}
	return buildings, nil
}

func (c *Catalog) FAQs(ctx context.Context) ([]domain.FAQ, error) {
	faqs, err := c.faqs.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: faqs: %w", err)
	}
	return faqs, nil
}

// Warm loads every list concurrently and returns the first failure. Lists
// that loaded stay cached even when another one fails.
func (c *Catalog) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.Rules(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.Buildings(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.FAQs(gctx)
		return err
	})
	return g.Wait()
}

type lazy[T any] struct {
	mu     sync.RWMutex
	loaded bool
	items  []T
	load   func(context.Context) ([]T, error)
}

func (l *lazy[T]) get(ctx context.Context) ([]T, error) {
	l.mu.RLock()
	if l.loaded {
		items := l.items
		l.mu.RUnlock()
		return items, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.items, nil
	}
	if l.load == nil {
		l.loaded = true
		return nil, nil
	}
	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	l.items = items
	l.loaded = true
	return items, nil
}

func (l *lazy[T]) set(items []T) {
	l.mu.Lock()
	l.items = items
	l.loaded = true
	l.mu.Unlock()
}
