package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPriceList_SecondDefaultDemotesFirst(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := svc.Create(ctx, PriceListInput{Name: "Standard 2025", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.Create(ctx, PriceListInput{Name: "Standard 2026", IsDefault: true})
	require.NoError(t, err)

	var defaults []models.PriceList
	require.NoError(t, db.Where("is_default = ?", true).Find(&defaults).Error)
	require.Len(t, defaults, 1)
	require.Equal(t, second.ID, defaults[0].ID)

	// Promoting the first back via update demotes the second.
	_, err = svc.Update(ctx, first.ID, PriceListInput{Name: "Standard 2025", IsDefault: true})
	require.NoError(t, err)
	defaults = nil
	require.NoError(t, db.Where("is_default = ?", true).Find(&defaults).Error)
	require.Len(t, defaults, 1)
	require.Equal(t, first.ID, defaults[0].ID)
}

func TestPriceList_DeleteDefaultConflicts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "BEK-RAT", "500", "25")

	pl, err := svc.Create(ctx, PriceListInput{Name: "Standard", IsDefault: true})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, pl.ID, a.ID, PriceListItemInput{CustomPrice: d("480")})
	require.NoError(t, err)

	err = svc.Delete(ctx, pl.ID)
	require.ErrorIs(t, err, ErrCannotDeleteDefault)
	require.ErrorIs(t, err, ErrConflict)

	got, err := svc.Get(ctx, pl.ID)
	require.NoError(t, err)
	require.True(t, got.IsDefault)
	n, err := svc.ItemCount(ctx, pl.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPriceList_DeleteCascadesItemsAndUnassignsCustomers(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "BEK-RAT", "500", "25")

	pl, err := svc.Create(ctx, PriceListInput{Name: "Kund AB"})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, pl.ID, a.ID, PriceListItemInput{CustomPrice: d("450")})
	require.NoError(t, err)
	cust := models.Customer{Name: "Kund AB", PriceListID: &pl.ID}
	require.NoError(t, db.Create(&cust).Error)

	require.NoError(t, svc.Delete(ctx, pl.ID))

	var items int64
	require.NoError(t, db.Model(&models.PriceListItem{}).Where("price_list_id = ?", pl.ID).Count(&items).Error)
	require.Zero(t, items)
	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, cust.ID).Error)
	require.Nil(t, reloaded.PriceListID)

	_, err = svc.Get(ctx, pl.ID)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestPriceList_UpsertItemUpdatesInPlace(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "KAB-10", "100", "25")

	pl, err := svc.Create(ctx, PriceListInput{Name: "Standard", IsDefault: true})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, pl.ID, a.ID, PriceListItemInput{CustomPrice: d("95")})
	require.NoError(t, err)
	item, err := svc.UpsertItem(ctx, pl.ID, a.ID, PriceListItemInput{CustomPrice: d("90"), DiscountPercent: d("10")})
	require.NoError(t, err)
	require.True(t, item.CustomPrice.Equal(d("90")))

	items, err := svc.Items(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].CustomPrice.Equal(d("90")))
	require.True(t, items[0].DiscountPercent.Equal(d("10")))
	require.NotNil(t, items[0].Article)
	require.Equal(t, "KAB-10", items[0].Article.Code)
}

func TestPriceList_Validation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "KAB-10", "100", "25")

	_, err := svc.Create(ctx, PriceListInput{Name: " "})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "required", ve.Violations["name"])

	pl, err := svc.Create(ctx, PriceListInput{Name: "Standard"})
	require.NoError(t, err)

	_, err = svc.UpsertItem(ctx, pl.ID, a.ID, PriceListItemInput{CustomPrice: d("-1"), DiscountPercent: d("101")})
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "must_not_be_negative", ve.Violations["custom_price"])
	require.Equal(t, "out_of_range", ve.Violations["discount_percent"])

	_, err = svc.UpsertItem(ctx, pl.ID, 999, PriceListItemInput{CustomPrice: d("1")})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpsertItem(ctx, 999, a.ID, PriceListItemInput{CustomPrice: d("1")})
	require.ErrorIs(t, err, ErrNotFound)

	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from := until.AddDate(0, 1, 0)
	_, err = svc.Create(ctx, PriceListInput{Name: "Window", ValidFrom: &from, ValidUntil: &until})
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "before_valid_from", ve.Violations["valid_until"])
}

func TestPriceList_CopyIsNonDefaultWithAllItems(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "BEK-RAT", "500", "25")
	b := seedArticle(t, db, "KAB-10", "100", "25")

	src, err := svc.Create(ctx, PriceListInput{Name: "Standard", IsDefault: true})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, src.ID, a.ID, PriceListItemInput{CustomPrice: d("480")})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, src.ID, b.ID, PriceListItemInput{CustomPrice: d("95"), DiscountPercent: d("5")})
	require.NoError(t, err)

	dup, err := svc.Copy(ctx, src.ID, "Standard copy")
	require.NoError(t, err)
	require.False(t, dup.IsDefault)
	require.True(t, dup.IsActive)

	items, err := svc.Items(ctx, dup.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "BEK-RAT", items[0].Article.Code)
	require.True(t, items[0].CustomPrice.Equal(d("480")))
	require.True(t, items[1].DiscountPercent.Equal(d("5")))

	reloaded, err := svc.Get(ctx, src.ID)
	require.NoError(t, err)
	require.True(t, reloaded.IsDefault)

	_, err = svc.Copy(ctx, 999, "Nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPriceList_CopyFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "BEK-RAT", "500", "25")

	src, err := svc.Create(ctx, PriceListInput{Name: "Standard"})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, src.ID, a.ID, PriceListItemInput{CustomPrice: d("480")})
	require.NoError(t, err)
	// An item pointing at a vanished article cannot be copied.
	require.NoError(t, db.Create(&models.PriceListItem{PriceListID: src.ID, ArticleID: 4242, CustomPrice: d("1"), DiscountPercent: d("0")}).Error)

	_, err = svc.Copy(ctx, src.ID, "Broken copy")
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.PriceList{}).Where("name = ?", "Broken copy").Count(&n).Error)
	require.Zero(t, n)
}

func TestPriceList_ListCountsItems(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPriceListService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	a := seedArticle(t, db, "BEK-RAT", "500", "25")

	std, err := svc.Create(ctx, PriceListInput{Name: "Standard", IsDefault: true})
	require.NoError(t, err)
	_, err = svc.UpsertItem(ctx, std.ID, a.ID, PriceListItemInput{CustomPrice: d("480")})
	require.NoError(t, err)
	inactive := false
	_, err = svc.Create(ctx, PriceListInput{Name: "Archived", IsActive: &inactive})
	require.NoError(t, err)

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(1), active[0].ItemCount)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Standard", all[0].Name)

	require.NoError(t, svc.RemoveItem(ctx, std.ID, a.ID))
	require.ErrorIs(t, svc.RemoveItem(ctx, std.ID, a.ID), ErrNotFound)
}
