package pos

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/erp/pos/internal/application/pos")

// catalogSnapshot is replaced wholesale on every successful load
type catalogSnapshot struct {
	products      []pos.Product
	productIndex  map[string]int
	categories    []pos.Category
	categoryIndex map[string]int
	loadedAt      time.Time
}

// CatalogCache keeps the last successfully loaded catalog in memory.
// A failed load leaves the previous catalog in place.
type CatalogCache struct {
	source    CatalogSource
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger

	mu   sync.RWMutex
	snap *catalogSnapshot
}

// NewCatalogCache creates an empty cache; call Load to fill it
func NewCatalogCache(source CatalogSource, publisher shared.EventPublisher, metrics Metrics, logger *zap.Logger) *CatalogCache {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{
		source:    source,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		snap:      &catalogSnapshot{productIndex: map[string]int{}, categoryIndex: map[string]int{}},
	}
}

// Load fetches categories and products concurrently and swaps them in
// together. On any failure nothing is replaced. There is no retry.
func (c *CatalogCache) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "CatalogCache.Load")
	defer span.End()

	var (
		categories []pos.Category
		products   []pos.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = c.source.FetchCategories(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = c.source.FetchProducts(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		c.metrics.CatalogLoadFailed()
		c.logger.Error("Catalog load failed, keeping previous catalog",
			zap.Int("cached_products", c.Len()),
			zap.Error(err))
		return err
	}

	snap := &catalogSnapshot{
		products:      make([]pos.Product, 0, len(products)),
		productIndex:  make(map[string]int, len(products)),
		categories:    make([]pos.Category, 0, len(categories)),
		categoryIndex: make(map[string]int, len(categories)),
		loadedAt:      time.Now(),
	}
	for _, p := range products {
		p.Normalize()
		if i, dup := snap.productIndex[p.SKU]; dup {
			// last one wins, position of the first is kept
			snap.products[i] = p
			continue
		}
		snap.productIndex[p.SKU] = len(snap.products)
		snap.products = append(snap.products, p)
	}
	for _, cat := range categories {
		if i, dup := snap.categoryIndex[cat.ID]; dup {
			snap.categories[i] = cat
			continue
		}
		snap.categoryIndex[cat.ID] = len(snap.categories)
		snap.categories = append(snap.categories, cat)
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	c.metrics.CatalogLoaded(len(snap.products))
	c.logger.Info("Catalog loaded",
		zap.Int("products", len(snap.products)),
		zap.Int("categories", len(snap.categories)))

	if c.publisher != nil {
		_ = c.publisher.Publish(ctx, pos.NewCatalogLoadedEvent(len(snap.products), len(snap.categories)))
	}
	return nil
}

func (c *CatalogCache) current() *catalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Search returns products whose name contains query (case-insensitive)
// and whose category matches categoryFilter. An empty filter, "all" or
// "display-all" matches every category. Backend order is preserved.
func (c *CatalogCache) Search(query, categoryFilter string) []pos.Product {
	snap := c.current()
	q := strings.ToLower(strings.TrimSpace(query))
	allCategories := pos.IsAllCategories(categoryFilter)
	filter := strings.TrimSpace(categoryFilter)

	out := make([]pos.Product, 0, len(snap.products))
	for _, p := range snap.products {
		if !p.MatchesName(q) {
			continue
		}
		if !allCategories && !strings.EqualFold(p.CategoryID, filter) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Product looks up a product by SKU
func (c *CatalogCache) Product(sku string) (pos.Product, bool) {
	snap := c.current()
	i, ok := snap.productIndex[sku]
	if !ok {
		return pos.Product{}, false
	}
	return snap.products[i], true
}

// Products returns every cached product in backend order
func (c *CatalogCache) Products() []pos.Product {
	snap := c.current()
	out := make([]pos.Product, len(snap.products))
	copy(out, snap.products)
	return out
}

// Categories returns every cached category in backend order
func (c *CatalogCache) Categories() []pos.Category {
	snap := c.current()
	out := make([]pos.Category, len(snap.categories))
	copy(out, snap.categories)
	return out
}

// Category looks up a category by id
func (c *CatalogCache) Category(id string) (pos.Category, bool) {
	snap := c.current()
	i, ok := snap.categoryIndex[id]
	if !ok {
		return pos.Category{}, false
	}
	return snap.categories[i], true
}

// Len returns the number of cached products
func (c *CatalogCache) Len() int {
	return len(c.current().products)
}

// LoadedAt returns when the cache was last replaced; zero if never
func (c *CatalogCache) LoadedAt() time.Time {
	return c.current().loadedAt
}
