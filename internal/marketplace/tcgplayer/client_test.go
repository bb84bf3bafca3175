package tcgplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/model"
)

type countingWaiter struct{ n int32 }

func (w *countingWaiter) WaitForToken(ctx context.Context) error {
	atomic.AddInt32(&w.n, 1)
	return ctx.Err()
}

type fakeResolver struct {
	lookups   []model.CardLookup
	calls     int
	requested []string
}

func (f *fakeResolver) Lookups(_ context.Context, ids []string) ([]model.CardLookup, error) {
	f.calls++
	f.requested = append(f.requested, ids...)
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.CardLookup
	for _, l := range f.lookups {
		if want[l.ScryfallID] {
			out = append(out, l)
		}
	}
	return out, nil
}

// fakeAPI serves a tiny catalog: product names map to ids, and every product
// has the listings in listings[productID].
type fakeAPI struct {
	mu           sync.Mutex
	products     map[string][]map[string]any
	listings     map[int][]map[string]any
	failSearch   map[string]bool
	failPricing  bool
	authHeaders  []string
	pricingSizes []int
	searches     int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/catalog/products":
			f.searches++
			name := r.URL.Query().Get("productName")
			if r.URL.Query().Get("categoryId") != "1" {
				t.Errorf("unexpected categoryId %q", r.URL.Query().Get("categoryId"))
			}
			if f.failSearch[name] {
				http.Error(w, `{"success":false}`, http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": f.products[name]})

		case strings.HasPrefix(r.URL.Path, "/pricing/marketprices/"):
			if f.failPricing {
				http.Error(w, `{"success":false}`, http.StatusBadGateway)
				return
			}
			ids := strings.Split(strings.TrimPrefix(r.URL.Path, "/pricing/marketprices/"), ",")
			f.pricingSizes = append(f.pricingSizes, len(ids))
			results := []map[string]any{}
			for _, id := range ids {
				var pid int
				_, _ = fmt.Sscanf(id, "%d", &pid)
				results = append(results, f.listings[pid]...)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": results})

		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(t *testing.T, api *fakeAPI, cfg Config) (*Client, *countingWaiter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "configured-key"
	}
	w := &countingWaiter{}
	return New(cfg, w, cache.NewMemoryCache(100, time.Hour), nil, nil), w, srv
}

func TestSearchProductIDs_SetCodeRefinement(t *testing.T) {
	api := &fakeAPI{
		products: map[string][]map[string]any{
			"Sol Ring": {
				{"productId": 100, "name": "Sol Ring", "groupName": "Commander Legends"},
				{"productId": 200, "name": "Sol Ring", "groupName": "C21 Commander 2021"},
			},
			"Mind Stone": {
				{"productId": 300, "name": "Mind Stone"},
			},
		},
	}
	c, w, _ := newTestClient(t, api, Config{})

	mapping, err := c.SearchProductIDs(context.Background(), []model.CardLookup{
		{ScryfallID: "sol-ring", Name: "Sol Ring", SetCode: "C21"},
		{ScryfallID: "mind-stone", Name: "Mind Stone", SetCode: "xyz"},
		{ScryfallID: "unknown", Name: "Nope"},
	}, "call-key")
	if err != nil {
		t.Fatalf("SearchProductIDs failed: %v", err)
	}

	if mapping["sol-ring"] != "200" {
		t.Errorf("set code should refine to 200, got %q", mapping["sol-ring"])
	}
	if mapping["mind-stone"] != "300" {
		t.Errorf("unmatched set code should fall back to first result, got %q", mapping["mind-stone"])
	}
	if _, ok := mapping["unknown"]; ok {
		t.Error("card with no results should be skipped")
	}
	if atomic.LoadInt32(&w.n) != 3 {
		t.Errorf("expected a limiter wait per request, got %d", w.n)
	}
	for _, h := range api.authHeaders {
		if h != "Bearer call-key" {
			t.Errorf("unexpected Authorization header %q", h)
		}
	}

	// Cached mappings skip the network
	before := api.searches
	if _, err := c.SearchProductIDs(context.Background(), []model.CardLookup{{ScryfallID: "sol-ring", Name: "Sol Ring"}}, ""); err != nil {
		t.Fatal(err)
	}
	if api.searches != before {
		t.Error("cached product id should not trigger a search")
	}
}

func TestSearchProductIDs_PerCardFailureIsSkipped(t *testing.T) {
	api := &fakeAPI{
		products:   map[string][]map[string]any{"Mind Stone": {{"productId": 300, "name": "Mind Stone"}}},
		failSearch: map[string]bool{"Sol Ring": true},
	}
	c, _, _ := newTestClient(t, api, Config{})

	mapping, err := c.SearchProductIDs(context.Background(), []model.CardLookup{
		{ScryfallID: "sol-ring", Name: "Sol Ring"},
		{ScryfallID: "mind-stone", Name: "Mind Stone"},
	}, "")
	if err != nil {
		t.Fatalf("per-card failure should not abort: %v", err)
	}
	if len(mapping) != 1 || mapping["mind-stone"] != "300" {
		t.Errorf("unexpected mapping %v", mapping)
	}
}

func TestFetchListingsForProducts_BatchesOf100(t *testing.T) {
	api := &fakeAPI{listings: map[int][]map[string]any{}}
	c, w, _ := newTestClient(t, api, Config{})

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}
	if _, err := c.FetchListingsForProducts(context.Background(), ids, ""); err != nil {
		t.Fatalf("FetchListingsForProducts failed: %v", err)
	}

	if len(api.pricingSizes) != 3 || api.pricingSizes[0] != 100 || api.pricingSizes[1] != 100 || api.pricingSizes[2] != 50 {
		t.Errorf("unexpected batch sizes %v", api.pricingSizes)
	}
	if atomic.LoadInt32(&w.n) != 3 {
		t.Errorf("expected 3 limiter waits, got %d", w.n)
	}
}

func TestFetchListingsForProducts_FailedBatchSkipped(t *testing.T) {
	api := &fakeAPI{failPricing: true}
	c, _, _ := newTestClient(t, api, Config{})

	raw, err := c.FetchListingsForProducts(context.Background(), []string{"1", "2"}, "")
	if err != nil {
		t.Fatalf("failed batch should be skipped, got %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("expected no listings, got %d", len(raw))
	}
}

func TestFetchAndNormalizeOffers(t *testing.T) {
	api := &fakeAPI{
		products: map[string][]map[string]any{
			"Sol Ring":   {{"productId": 100, "name": "Sol Ring"}},
			"Mind Stone": {{"productId": 300, "name": "Mind Stone"}},
		},
		listings: map[int][]map[string]any{
			100: {
				{"productId": 100, "sellerKey": "s1", "condition": "Near Mint", "price": 1.5, "quantity": 4, "shippingPrice": 0.99, "sellerRating": 99.5, "sellerSales": 12000},
				{"productId": 100, "sellerKey": "s2", "condition": "Damaged", "price": 0.5, "quantity": 9},
				{"productId": 100, "sellerKey": "s3", "condition": "Heavily Played", "price": 0.9, "quantity": 2},
			},
			300: {
				{"productId": 300, "sellerKey": "", "condition": "Near Mint", "price": 0.3, "quantity": 1},
				{"productId": 300, "sellerKey": "s4", "condition": "Lightly Played", "price": 0.35, "quantity": 0},
			},
		},
	}
	c, _, _ := newTestClient(t, api, Config{ExcludeHeavilyPlayed: true})
	resolver := &fakeResolver{lookups: []model.CardLookup{
		{ScryfallID: "sol-ring", Name: "Sol Ring"},
		{ScryfallID: "mind-stone", Name: "Mind Stone"},
	}}
	c.resolver = resolver

	offers, err := c.FetchAndNormalizeOffers(context.Background(), []string{"sol-ring", "mind-stone"}, "", nil)
	if err != nil {
		t.Fatalf("FetchAndNormalizeOffers failed: %v", err)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver should be used when lookups are missing")
	}
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer after filters, got %+v", offers)
	}
	o := offers[0]
	if o.CardID != "sol-ring" || o.SellerID != "s1" || o.Marketplace != Name || o.ProductID != "100" {
		t.Errorf("unexpected offer %+v", o)
	}
	if o.SellerRating == nil || *o.SellerRating != 0.995 {
		t.Errorf("unexpected rating %v", o.SellerRating)
	}
}

func TestFetchAndNormalizeOffers_ResolvesOnlyMissingLookups(t *testing.T) {
	api := &fakeAPI{
		products: map[string][]map[string]any{
			"Sol Ring":   {{"productId": 100, "name": "Sol Ring"}},
			"Mind Stone": {{"productId": 300, "name": "Mind Stone"}},
		},
		listings: map[int][]map[string]any{
			100: {{"productId": 100, "sellerKey": "s1", "condition": "Near Mint", "price": 1.5, "quantity": 1}},
			300: {{"productId": 300, "sellerKey": "s2", "condition": "Near Mint", "price": 0.4, "quantity": 2}},
		},
	}
	c, _, _ := newTestClient(t, api, Config{})
	resolver := &fakeResolver{lookups: []model.CardLookup{
		{ScryfallID: "sol-ring", Name: "Sol Ring"},
		{ScryfallID: "mind-stone", Name: "Mind Stone"},
	}}
	c.resolver = resolver

	given := []model.CardLookup{{ScryfallID: "sol-ring", Name: "Sol Ring"}}
	offers, err := c.FetchAndNormalizeOffers(context.Background(), []string{"sol-ring", "mind-stone"}, "", given)
	if err != nil {
		t.Fatalf("FetchAndNormalizeOffers failed: %v", err)
	}
	if len(resolver.requested) != 1 || resolver.requested[0] != "mind-stone" {
		t.Errorf("resolver should only see the card without a lookup, got %v", resolver.requested)
	}
	if len(given) != 1 {
		t.Errorf("caller lookups should not be modified, got %+v", given)
	}

	cards := map[string]bool{}
	for _, o := range offers {
		cards[o.CardID] = true
	}
	if !cards["sol-ring"] || !cards["mind-stone"] {
		t.Errorf("expected offers for both cards, got %+v", offers)
	}
}

func TestFetchOffers_UsesGivenLookups(t *testing.T) {
	api := &fakeAPI{
		products: map[string][]map[string]any{"Sol Ring": {{"productId": 100, "name": "Sol Ring"}}},
		listings: map[int][]map[string]any{
			100: {{"productId": 100, "sellerKey": "s1", "condition": "Near Mint", "price": 1.5, "quantity": 1}},
		},
	}
	c, _, _ := newTestClient(t, api, Config{})

	offers, err := c.FetchOffers(context.Background(), []model.CardLookup{{ScryfallID: "sol-ring", Name: "Sol Ring"}})
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(offers) != 1 {
		t.Errorf("expected 1 offer, got %d", len(offers))
	}
	if c.Name() != "tcgplayer" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestClient_RequiresAPIKey(t *testing.T) {
	c := New(Config{}, &countingWaiter{}, nil, nil, nil)
	_, err := c.SearchProductIDs(context.Background(), []model.CardLookup{{ScryfallID: "a", Name: "A"}}, "")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	api := &fakeAPI{products: map[string][]map[string]any{}}
	c, _, _ := newTestClient(t, api, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SearchProductIDs(ctx, []model.CardLookup{{ScryfallID: "a", Name: "A"}}, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
