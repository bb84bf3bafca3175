package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/mtgautobuy/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

var (
	testCardNames  = []string{"Sol Ring", "Mind Stone", "Fellwar Stone", "Counterspell", "Lightning Bolt", "Swords to Plowshares"}
	testSetCodes   = []string{"c21", "cmr", "2xm", "mh2", "dmu"}
	testConditions = []string{"Near Mint", "Lightly Played", "Moderately Played", "Heavily Played", "Damaged"}
)

// GenerateTestScryfallID generates a random uuid-shaped scryfall id
func (f *TestDataFactory) GenerateTestScryfallID() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		f.rand.Uint32(), f.rand.Intn(1<<16), f.rand.Intn(1<<16), f.rand.Intn(1<<16), f.rand.Int63n(1<<48))
}

// GenerateTestCardName generates a random test card name
func (f *TestDataFactory) GenerateTestCardName() string {
	return testCardNames[f.rand.Intn(len(testCardNames))]
}

// GenerateTestSetCode generates a random set code
func (f *TestDataFactory) GenerateTestSetCode() string {
	return testSetCodes[f.rand.Intn(len(testSetCodes))]
}

// GenerateTestCondition generates a random listing condition
func (f *TestDataFactory) GenerateTestCondition() string {
	return testConditions[f.rand.Intn(len(testConditions))]
}

// GenerateTestPrice generates a random price in dollars, rounded to cents
func (f *TestDataFactory) GenerateTestPrice() float64 {
	cents := f.rand.Intn(50000) + 25 // Between $0.25 and $500
	return float64(cents) / 100
}

// GenerateTestCard generates a card with a fresh id
func (f *TestDataFactory) GenerateTestCard() model.Card {
	return model.Card{
		ScryfallID: f.GenerateTestScryfallID(),
		Name:       f.GenerateTestCardName(),
		SetCode:    f.GenerateTestSetCode(),
	}
}

// GenerateTestStockLevel generates a stock level for card
func (f *TestDataFactory) GenerateTestStockLevel(card model.Card) model.StockLevel {
	return model.StockLevel{
		Card:             card,
		OnHand:           f.rand.Intn(10),
		ReorderThreshold: f.rand.Intn(5) + 1,
	}
}

// GenerateTestOffer generates a listing for cardID on marketplace
func (f *TestDataFactory) GenerateTestOffer(marketplace, cardID string) model.Offer {
	rating := float64(f.rand.Intn(51)+50) / 100
	return model.Offer{
		Marketplace:       marketplace,
		SellerID:          fmt.Sprintf("seller-%d", f.rand.Intn(1000)),
		CardID:            cardID,
		Condition:         f.GenerateTestCondition(),
		Price:             f.GenerateTestPrice(),
		QuantityAvailable: f.rand.Intn(8) + 1,
		Shipping:          model.Shipping{Base: 0.99},
		SellerRating:      &rating,
	}
}

// GenerateTestDate generates a random date within the last year
func (f *TestDataFactory) GenerateTestDate() time.Time {
	days := f.rand.Intn(365)
	return time.Now().AddDate(0, 0, -days)
}

// Stock builds a stock level without randomness
func Stock(id, name string, onHand, threshold int) model.StockLevel {
	return model.StockLevel{
		Card:             model.Card{ScryfallID: id, Name: name},
		OnHand:           onHand,
		ReorderThreshold: threshold,
	}
}

// Offer builds an offer without randomness
func Offer(marketplace, seller, cardID string, price float64, qty int) model.Offer {
	return model.Offer{
		Marketplace:       marketplace,
		SellerID:          seller,
		CardID:            cardID,
		Condition:         "Near Mint",
		Price:             price,
		QuantityAvailable: qty,
	}
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
