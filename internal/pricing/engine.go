// Package pricing resolves the effective unit price of a catalog article for
// an optional customer. Resolution walks an ordered chain of tiers; the first
// tier that matches wins and no tiers are merged.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoPrice is returned when no tier in the chain produced a price.
var ErrNoPrice = errors.New("pricing: no tier matched")

// Source loads the candidate price data the tiers evaluate.
type Source interface {
	// CustomerPriceList returns the usable price list assigned to the
	// customer, or nil when there is none.
	CustomerPriceList(ctx context.Context, customerID uint) (*uint, error)
	// DefaultPriceList returns the usable default price list, or nil.
	DefaultPriceList(ctx context.Context) (*uint, error)
	// ListPrices returns custom prices keyed by article id for the given
	// articles in one list.
	ListPrices(ctx context.Context, listID uint, articleIDs []uint) (map[uint]decimal.Decimal, error)
}

// Resolution is the effective price of one article.
type Resolution struct {
	ArticleID   uint               `json:"article_id"`
	Price       decimal.Decimal    `json:"price"`
	Source      models.PriceSource `json:"source"`
	Tier        string             `json:"tier"`
	PriceListID *uint              `json:"price_list_id,omitempty"`
}

// Snapshot holds every candidate price loaded for one resolution batch.
type Snapshot struct {
	CustomerListID *uint
	CustomerPrices map[uint]decimal.Decimal
	DefaultListID  *uint
	DefaultPrices  map[uint]decimal.Decimal
}

type Engine struct {
	source Source
	tiers  []Tier
	logger *zap.Logger
}

type EngineDeps struct {
	Source Source
	// Tiers overrides the fallback chain; DefaultTiers() when empty.
	Tiers  []Tier
	Logger *zap.Logger
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Source == nil {
		return nil, errors.New("pricing engine: source is required")
	}
	tiers := deps.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: deps.Source, tiers: tiers, logger: logger}, nil
}

// Resolve computes the effective unit price of article for customerID.
// Inactive articles resolve normally so already-billed lines stay editable.
func (e *Engine) Resolve(ctx context.Context, article *models.Article, customerID *uint) (Resolution, error) {
	if article == nil {
		return Resolution{}, errors.New("pricing: article is required")
	}
	snap, err := e.Load(ctx, customerID, []uint{article.ID})
	if err != nil {
		return Resolution{}, err
	}
	return e.Apply(snap, article)
}

// ResolveCatalog resolves every article against one batch-loaded snapshot.
// Results are in the order of articles and match Resolve article by article.
func (e *Engine) ResolveCatalog(ctx context.Context, articles []models.Article, customerID *uint) ([]Resolution, error) {
	if len(articles) == 0 {
		return []Resolution{}, nil
	}
	ids := make([]uint, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}
	snap, err := e.Load(ctx, customerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Resolution, len(articles))
	for i := range articles {
		res, err := e.Apply(snap, &articles[i])
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	e.logger.Debug("resolved catalog prices",
		zap.Int("articles", len(articles)),
		zap.Bool("customer_list", snap.CustomerListID != nil),
		zap.Bool("default_list", snap.DefaultListID != nil),
	)
	return out, nil
}

// Load fetches the customer and default list candidates for articleIDs.
// Each list is read at most once.
func (e *Engine) Load(ctx context.Context, customerID *uint, articleIDs []uint) (*Snapshot, error) {
	snap := &Snapshot{}

	if customerID != nil {
		listID, err := e.source.CustomerPriceList(ctx, *customerID)
		if err != nil {
			return nil, fmt.Errorf("load customer price list: %w", err)
		}
		if listID != nil {
			prices, err := e.source.ListPrices(ctx, *listID, articleIDs)
			if err != nil {
				return nil, fmt.Errorf("load customer list prices: %w", err)
			}
			snap.CustomerListID = listID
			snap.CustomerPrices = prices
		}
	}

	listID, err := e.source.DefaultPriceList(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default price list: %w", err)
	}
	if listID == nil {
		return snap, nil
	}
	snap.DefaultListID = listID
	if snap.CustomerListID != nil && *snap.CustomerListID == *listID {
		snap.DefaultPrices = snap.CustomerPrices
		return snap, nil
	}
	prices, err := e.source.ListPrices(ctx, *listID, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("load default list prices: %w", err)
	}
	snap.DefaultPrices = prices
	return snap, nil
}

// Apply runs the tier chain for one article against a loaded snapshot.
func (e *Engine) Apply(snap *Snapshot, article *models.Article) (Resolution, error) {
	for _, tier := range e.tiers {
		res, ok := tier.Match(snap, article)
		if !ok {
			continue
		}
		res.ArticleID = article.ID
		res.Tier = tier.Name
		return res, nil
	}
	return Resolution{}, fmt.Errorf("article %d: %w", article.ID, ErrNoPrice)
}
