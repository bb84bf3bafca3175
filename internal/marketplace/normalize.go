package marketplace

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/model"
)

const (
	neutralRating    = 0.9
	ratingConfidence = 100
)

// excludedAbbreviations are condition codes that mean damaged.
var excludedAbbreviations = map[string]bool{
	"dmg":  true,
	"dm":   true,
	"d":    true,
	"poor": true,
}

// Normalizer filters raw listings and converts them to offers.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer. A nil logger discards warnings.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// NormalizeOffers applies the listing filters in order: excluded condition,
// heavily played (only when excludeHeavilyPlayed), missing seller, price or
// quantity, then unresolved card id. idMap maps product id to scryfall id for
// listings that do not carry a card id.
func NormalizeOffers(raw []RawListing, idMap map[string]string, excludeHeavilyPlayed bool) []model.Offer {
	return NewNormalizer(nil).NormalizeOffers(raw, idMap, excludeHeavilyPlayed)
}

// NormalizeOffers is the logging variant of the package function.
func (n *Normalizer) NormalizeOffers(raw []RawListing, idMap map[string]string, excludeHeavilyPlayed bool) []model.Offer {
	offers := make([]model.Offer, 0, len(raw))
	for _, l := range raw {
		if IsExcludedCondition(l.Condition) {
			continue
		}
		if excludeHeavilyPlayed && IsHeavilyPlayed(l.Condition) {
			continue
		}
		if strings.TrimSpace(l.SellerID) == "" || l.Price == nil || l.Quantity < 1 {
			continue
		}

		cardID := l.CardID
		if cardID == "" {
			cardID = idMap[l.ProductID]
		}
		if cardID == "" {
			n.logger.Warn("listing without resolvable card id",
				zap.String("marketplace", l.Marketplace),
				zap.String("product_id", l.ProductID),
				zap.String("seller_id", l.SellerID),
			)
			continue
		}

		offers = append(offers, model.Offer{
			Marketplace:       l.Marketplace,
			SellerID:          l.SellerID,
			CardID:            cardID,
			ProductID:         l.ProductID,
			Condition:         l.Condition,
			Price:             *l.Price,
			QuantityAvailable: l.Quantity,
			Shipping: model.Shipping{
				Base:   l.ShippingBase,
				FreeAt: l.FreeShippingAt,
			},
			SellerRating: NormalizeSellerRating(l.SellerRating, l.SellerSales),
		})
	}
	return offers
}

// IsExcludedCondition reports whether a condition is never bought: anything
// mentioning "damaged" plus the common damaged abbreviations.
func IsExcludedCondition(condition string) bool {
	c := strings.ToLower(strings.TrimSpace(condition))
	if strings.Contains(c, "damaged") {
		return true
	}
	return excludedAbbreviations[c]
}

// IsHeavilyPlayed reports whether a condition is heavily played.
func IsHeavilyPlayed(condition string) bool {
	c := strings.ToLower(strings.TrimSpace(condition))
	return strings.Contains(c, "heavily") || c == "hp"
}

// NormalizeSellerRating maps a rating to [0,1]. Percentages (>1) are divided
// by 100, and sellers with fewer than 100 known sales are pulled toward 0.9
// in proportion to how few sales they have. A nil rating stays nil.
func NormalizeSellerRating(rating *float64, salesCount *int) *float64 {
	if rating == nil {
		return nil
	}
	r := *rating
	if r > 1 {
		r /= 100
	}
	if salesCount != nil && *salesCount < ratingConfidence {
		confidence := math.Min(math.Max(float64(*salesCount), 0)/ratingConfidence, 1)
		r = r*confidence + neutralRating*(1-confidence)
	}
	r = math.Max(0, math.Min(1, r))
	return &r
}
