package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/internal/pricing"
	"github.com/diewo77/fieldbill/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ArticleInput struct {
	Code         string          `json:"code" validate:"required,max=50"`
	Name         string          `json:"name" validate:"required,max=255"`
	Unit         string          `json:"unit" validate:"max=50"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	Category     string          `json:"category" validate:"max=100"`
	IsActive     *bool           `json:"is_active"`
}

func (in ArticleInput) validate() error {
	v := validation.Violations{}
	validation.Struct(in, v)
	validation.Required("code", in.Code, v)
	validation.Required("name", in.Name, v)
	validation.NonNegative("default_price", in.DefaultPrice, v)
	validation.Percent("vat_rate", in.VATRate, v)
	return invalid(v)
}

// PricedArticle is a catalog entry with its effective price for one customer.
type PricedArticle struct {
	Article        models.Article     `json:"article"`
	EffectivePrice decimal.Decimal    `json:"effective_price"`
	PriceWithVAT   decimal.Decimal    `json:"price_with_vat"`
	PriceSource    models.PriceSource `json:"price_source"`
	Tier           string             `json:"tier"`
}

// CategoryGroup is one category of the grouped catalog.
type CategoryGroup struct {
	Category string          `json:"category"`
	Articles []PricedArticle `json:"articles"`
}

// CatalogService owns articles and answers catalog pricing queries.
type CatalogService struct {
	DB     *gorm.DB
	Engine *pricing.Engine
	Logger *zap.Logger
}

func NewCatalogService(db *gorm.DB, engine *pricing.Engine, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{DB: db, Engine: engine, Logger: logger}
}

func (s *CatalogService) Create(ctx context.Context, in ArticleInput) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	a := models.Article{
		Code:         models.NormalizeCode(in.Code),
		Name:         in.Name,
		Unit:         in.Unit,
		DefaultPrice: in.DefaultPrice.Round(2),
		VATRate:      in.VATRate.Round(2),
		Category:     in.Category,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.ensureCodeFree(ctx, a.Code, 0); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("create article: %w", err)
	}
	return &a, nil
}

func (s *CatalogService) Update(ctx context.Context, id uint, in ArticleInput) (*models.Article, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	code := models.NormalizeCode(in.Code)
	if err := s.ensureCodeFree(ctx, code, id); err != nil {
		return nil, err
	}
	a.Code = code
	a.Name = in.Name
	a.Unit = in.Unit
	a.DefaultPrice = in.DefaultPrice.Round(2)
	a.VATRate = in.VATRate.Round(2)
	a.Category = in.Category
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if err := s.DB.WithContext(ctx).Save(a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("update article: %w", err)
	}
	return a, nil
}

func (s *CatalogService) ensureCodeFree(ctx context.Context, code string, exceptID uint) error {
	var n int64
	q := s.DB.WithContext(ctx).Model(&models.Article{}).Where("code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check article code: %w", err)
	}
	if n > 0 {
		return ErrDuplicateCode
	}
	return nil
}

// Deactivate hides the article from catalog listings; existing lines keep it.
func (s *CatalogService) Deactivate(ctx context.Context, id uint) (*models.Article, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(a).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate article: %w", err)
	}
	a.IsActive = false
	return a, nil
}

// Delete hard-deletes an article no price list references.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	var refs int64
	if err := s.DB.WithContext(ctx).Model(&models.PriceListItem{}).Where("article_id = ?", id).Count(&refs).Error; err != nil {
		return fmt.Errorf("count article references: %w", err)
	}
	if refs > 0 {
		return &DependencyError{Resource: "article", ID: id, Dependents: "price_list_items", Count: refs}
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lines keep their code/name snapshot.
		if err := tx.Model(&models.CaseBillingItem{}).Where("article_id = ?", id).Update("article_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Article{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	s.Logger.Info("article deleted", zap.Uint("article_id", id))
	return nil
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, "load article", "article", id)
	}
	return &a, nil
}

// ActiveArticles returns the active catalog ordered by category then code.
func (s *CatalogService) ActiveArticles(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category, code").
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// ListWithPrices returns every active article with its effective price for
// customerID (nil for no customer).
func (s *CatalogService) ListWithPrices(ctx context.Context, customerID *uint) ([]PricedArticle, error) {
	articles, err := s.ActiveArticles(ctx)
	if err != nil {
		return nil, err
	}
	resolutions, err := s.Engine.ResolveCatalog(ctx, articles, customerID)
	if err != nil {
		return nil, wrapUnlessKind(err, "resolve catalog")
	}
	out := make([]PricedArticle, len(articles))
	for i := range articles {
		out[i] = priced(articles[i], resolutions[i])
	}
	return out, nil
}

// Grouped returns ListWithPrices grouped by category, categories sorted by name.
func (s *CatalogService) Grouped(ctx context.Context, customerID *uint) ([]CategoryGroup, error) {
	items, err := s.ListWithPrices(ctx, customerID)
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var groups []CategoryGroup
	for _, it := range items {
		i, ok := index[it.Article.Category]
		if !ok {
			i = len(groups)
			index[it.Article.Category] = i
			groups = append(groups, CategoryGroup{Category: it.Article.Category})
		}
		groups[i].Articles = append(groups[i].Articles, it)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })
	return groups, nil
}

// ResolveArticle prices a single article, active or not.
func (s *CatalogService) ResolveArticle(ctx context.Context, articleID uint, customerID *uint) (*PricedArticle, error) {
	a, err := s.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	res, err := s.Engine.Resolve(ctx, a, customerID)
	if err != nil {
		return nil, wrapUnlessKind(err, "resolve price")
	}
	p := priced(*a, res)
	return &p, nil
}

func priced(a models.Article, res pricing.Resolution) PricedArticle {
	return PricedArticle{
		Article:        a,
		EffectivePrice: res.Price,
		PriceWithVAT:   models.WithVAT(res.Price, a.VATRate),
		PriceSource:    res.Source,
		Tier:           res.Tier,
	}
}
