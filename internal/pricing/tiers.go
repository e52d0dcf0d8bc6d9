package pricing

import (
	"github.com/diewo77/fieldbill/internal/models"
)

// Tier is one step of the fallback chain. Match returns ok=false to defer
// to the next tier.
type Tier struct {
	Name  string
	Match func(snap *Snapshot, article *models.Article) (Resolution, bool)
}

// Tier names.
const (
	TierCustomerList   = "customer_list"
	TierStandardList   = "standard_list"
	TierArticleDefault = "article_default"
)

// DefaultTiers returns the customer list → standard list → article default chain.
func DefaultTiers() []Tier {
	return []Tier{CustomerListTier(), StandardListTier(), ArticleDefaultTier()}
}

// CustomerListTier matches when the customer's assigned list prices the article.
func CustomerListTier() Tier {
	return Tier{
		Name: TierCustomerList,
		Match: func(snap *Snapshot, article *models.Article) (Resolution, bool) {
			if snap.CustomerListID == nil {
				return Resolution{}, false
			}
			price, ok := snap.CustomerPrices[article.ID]
			if !ok {
				return Resolution{}, false
			}
			return Resolution{Price: price, Source: models.PriceSourceCustomerList, PriceListID: snap.CustomerListID}, true
		},
	}
}

// StandardListTier matches when the default list prices the article.
func StandardListTier() Tier {
	return Tier{
		Name: TierStandardList,
		Match: func(snap *Snapshot, article *models.Article) (Resolution, bool) {
			if snap.DefaultListID == nil {
				return Resolution{}, false
			}
			price, ok := snap.DefaultPrices[article.ID]
			if !ok {
				return Resolution{}, false
			}
			return Resolution{Price: price, Source: models.PriceSourceStandard, PriceListID: snap.DefaultListID}, true
		},
	}
}

// ArticleDefaultTier always matches with the article's own default price.
func ArticleDefaultTier() Tier {
	return Tier{
		Name: TierArticleDefault,
		Match: func(_ *Snapshot, article *models.Article) (Resolution, bool) {
			return Resolution{Price: article.DefaultPrice, Source: models.PriceSourceStandard}, true
		},
	}
}
