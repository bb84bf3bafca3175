package model

// Card is the minimal identity we need for scoring. The inventory system owns
// it; we only read it.
type Card struct {
	ScryfallID string
	Name       string
	SetCode    string
}

// CardLookup is what a marketplace needs to find a card in its catalog.
type CardLookup struct {
	ScryfallID string `json:"scryfall_id"`
	Name       string `json:"name"`
	SetCode    string `json:"set_code,omitempty"`
}

// Lookup returns the catalog lookup for the card.
func (c Card) Lookup() CardLookup {
	return CardLookup{ScryfallID: c.ScryfallID, Name: c.Name, SetCode: c.SetCode}
}

// StockLevel is on-hand quantity for a card together with its reorder point.
type StockLevel struct {
	Card             Card
	OnHand           int
	ReorderThreshold int
}

// Healthy reports whether stock is strictly above the reorder threshold.
func (s StockLevel) Healthy() bool {
	return s.OnHand > s.ReorderThreshold
}

// Shipping describes a seller's shipping terms. FreeAt is the order total at
// which shipping becomes free, nil when the seller never ships free.
type Shipping struct {
	Base   float64  `json:"base"`
	FreeAt *float64 `json:"free_at,omitempty"`
}

// Offer is one seller's listing for a card, normalized across marketplaces.
type Offer struct {
	Marketplace       string   `json:"marketplace"`
	SellerID          string   `json:"seller_id"`
	CardID            string   `json:"card_id"`
	ProductID         string   `json:"product_id,omitempty"`
	Condition         string   `json:"condition,omitempty"`
	Price             float64  `json:"price"`
	QuantityAvailable int      `json:"quantity_available"`
	Shipping          Shipping `json:"shipping"`
	SellerRating      *float64 `json:"seller_rating,omitempty"` // 0..1
}

// Rating returns the seller rating or 0 when unknown.
func (o Offer) Rating() float64 {
	if o.SellerRating == nil {
		return 0
	}
	return *o.SellerRating
}
