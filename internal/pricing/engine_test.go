package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	customerLists map[uint]uint
	defaultList   *uint
	prices        map[uint]map[uint]decimal.Decimal
	listCalls     map[uint]int
	err           error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		customerLists: map[uint]uint{},
		prices:        map[uint]map[uint]decimal.Decimal{},
		listCalls:     map[uint]int{},
	}
}

func (f *fakeSource) CustomerPriceList(_ context.Context, customerID uint) (*uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.customerLists[customerID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeSource) DefaultPriceList(context.Context) (*uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.defaultList, nil
}

func (f *fakeSource) ListPrices(_ context.Context, listID uint, articleIDs []uint) (map[uint]decimal.Decimal, error) {
	f.listCalls[listID]++
	out := map[uint]decimal.Decimal{}
	for _, id := range articleIDs {
		if p, ok := f.prices[listID][id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeSource) setPrice(listID, articleID uint, price string) {
	if f.prices[listID] == nil {
		f.prices[listID] = map[uint]decimal.Decimal{}
	}
	f.prices[listID][articleID] = decimal.RequireFromString(price)
}

func uintPtr(v uint) *uint { return &v }

func bekRat() *models.Article {
	return &models.Article{ID: 1, Code: "BEK-RAT", DefaultPrice: decimal.NewFromInt(500), VATRate: decimal.NewFromInt(25), IsActive: true}
}

func newEngine(t *testing.T, src Source) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineDeps{Source: src})
	require.NoError(t, err)
	return engine
}

func TestEngine_ArticleDefaultWhenNoLists(t *testing.T) {
	engine := newEngine(t, newFakeSource())

	res, err := engine.Resolve(context.Background(), bekRat(), nil)
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(500)))
	require.Equal(t, models.PriceSourceStandard, res.Source)
	require.Equal(t, TierArticleDefault, res.Tier)
	require.Nil(t, res.PriceListID)
}

func TestEngine_CustomerListDominatesStandardList(t *testing.T) {
	src := newFakeSource()
	src.defaultList = uintPtr(10)
	src.customerLists[7] = 20
	src.setPrice(10, 1, "480")
	src.setPrice(20, 1, "450")
	engine := newEngine(t, src)

	res, err := engine.Resolve(context.Background(), bekRat(), uintPtr(7))
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(450)))
	require.Equal(t, models.PriceSourceCustomerList, res.Source)
	require.Equal(t, uint(20), *res.PriceListID)

	res, err = engine.Resolve(context.Background(), bekRat(), nil)
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(480)))
	require.Equal(t, models.PriceSourceStandard, res.Source)
	require.Equal(t, TierStandardList, res.Tier)
}

func TestEngine_CustomerListWinsEvenWhenHigher(t *testing.T) {
	src := newFakeSource()
	src.defaultList = uintPtr(10)
	src.customerLists[7] = 20
	src.setPrice(10, 1, "300")
	src.setPrice(20, 1, "650")
	engine := newEngine(t, src)

	res, err := engine.Resolve(context.Background(), bekRat(), uintPtr(7))
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(650)))
	require.Equal(t, models.PriceSourceCustomerList, res.Source)
}

func TestEngine_CustomerListWithoutEntryFallsThrough(t *testing.T) {
	src := newFakeSource()
	src.defaultList = uintPtr(10)
	src.customerLists[7] = 20
	src.setPrice(10, 1, "480")
	engine := newEngine(t, src)

	res, err := engine.Resolve(context.Background(), bekRat(), uintPtr(7))
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(480)))
	require.Equal(t, models.PriceSourceStandard, res.Source)
}

func TestEngine_InactiveArticleStillResolves(t *testing.T) {
	engine := newEngine(t, newFakeSource())
	article := bekRat()
	article.IsActive = false

	res, err := engine.Resolve(context.Background(), article, nil)
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(500)))
}

func TestEngine_ResolveCatalogMatchesSingleResolution(t *testing.T) {
	src := newFakeSource()
	src.defaultList = uintPtr(10)
	src.customerLists[7] = 20
	src.setPrice(10, 1, "480")
	src.setPrice(10, 2, "95")
	src.setPrice(20, 1, "450")
	src.setPrice(20, 3, "12.50")
	engine := newEngine(t, src)

	articles := []models.Article{
		*bekRat(),
		{ID: 2, Code: "KAB-10", DefaultPrice: decimal.NewFromInt(100)},
		{ID: 3, Code: "SKR-4", DefaultPrice: decimal.NewFromInt(15)},
		{ID: 4, Code: "ARB-H", DefaultPrice: decimal.NewFromInt(650)},
	}

	for _, customer := range []*uint{nil, uintPtr(7), uintPtr(99)} {
		src.listCalls = map[uint]int{}
		bulk, err := engine.ResolveCatalog(context.Background(), articles, customer)
		require.NoError(t, err)
		require.Len(t, bulk, len(articles))
		for _, calls := range src.listCalls {
			require.Equal(t, 1, calls, "each list must be loaded once per batch")
		}

		for i := range articles {
			single, err := engine.Resolve(context.Background(), &articles[i], customer)
			require.NoError(t, err)
			require.True(t, single.Price.Equal(bulk[i].Price), "article %s", articles[i].Code)
			require.Equal(t, single.Source, bulk[i].Source)
			require.Equal(t, single.Tier, bulk[i].Tier)
		}
	}
}

func TestEngine_SourceErrorPropagates(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection reset")
	engine := newEngine(t, src)

	_, err := engine.Resolve(context.Background(), bekRat(), nil)
	require.ErrorContains(t, err, "connection reset")
}

func TestEngine_CustomChainWithoutFallback(t *testing.T) {
	engine, err := NewEngine(EngineDeps{Source: newFakeSource(), Tiers: []Tier{CustomerListTier()}})
	require.NoError(t, err)

	_, err = engine.Resolve(context.Background(), bekRat(), nil)
	require.ErrorIs(t, err, ErrNoPrice)
}

func TestNewEngine_RequiresSource(t *testing.T) {
	_, err := NewEngine(EngineDeps{})
	require.Error(t, err)
}
