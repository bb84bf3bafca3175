// Package marketplace holds what every marketplace integration shares: the
// client contract, the raw listing shape and the offer normalizer.
package marketplace

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/guarzo/mtgautobuy/internal/model"
)

// Client fetches normalized offers for a set of cards from one marketplace.
type Client interface {
	Name() string
	FetchOffers(ctx context.Context, lookups []model.CardLookup) ([]model.Offer, error)
}

// RawListing is a marketplace listing before filtering. CardID is set when
// the marketplace already knows the scryfall id. Pointer fields are nil when
// the marketplace did not send them.
type RawListing struct {
	Marketplace    string
	ProductID      string
	CardID         string
	SellerID       string
	SellerName     string
	Condition      string
	Price          *float64
	Quantity       int
	ShippingBase   float64
	FreeShippingAt *float64
	SellerRating   *float64
	SellerSales    *int
}

// DecodeBody wraps body according to the Content-Encoding header. Unknown
// encodings fall back to the raw body.
func DecodeBody(header http.Header, body io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding"))) {
	case "gzip":
		return gzip.NewReader(body)
	case "br":
		return brotli.NewReader(body), nil
	case "deflate":
		return flate.NewReader(body), nil
	default:
		return body, nil
	}
}
