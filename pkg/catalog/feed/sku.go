package feed

import (
	"time"

	"github.com/google/uuid"
)

// SKU is the normalized catalog record built from one offer element.
// It is the common currency between the feed, the record store, and the
// search index.
type SKU struct {
	UUID          uuid.UUID
	MarketplaceID int
	ProductID     int64

	Title         string
	Description   string
	Brand         string
	SellerID      int
	SellerName    string
	FirstImageURL string

	CategoryID        int
	CategoryLvl1      string
	CategoryLvl2      string
	CategoryLvl3      string
	CategoryRemaining string

	// Features is the feed-defined open attribute set. Keys repeat in
	// some feeds; the last value wins.
	Features map[string]string

	RatingCount          int
	RatingValue          float64
	PriceBeforeDiscounts float64
	Discount             float64
	PriceAfterDiscounts  float64
	Bonuses              int
	Sales                int
	Currency             string
	Barcode              string

	// InsertedAt and UpdatedAt are assigned by the record store.
	InsertedAt time.Time
	UpdatedAt  time.Time

	// SimilarSKU holds the ids of the closest other records, filled in
	// after the record has been indexed.
	SimilarSKU []uuid.UUID
}

// Document returns the indexable view of the record: everything the
// search engine matches on, without the store timestamps and the
// similarity list.
func (s *SKU) Document() map[string]interface{} {
	return map[string]interface{}{
		"marketplace_id":         s.MarketplaceID,
		"product_id":             s.ProductID,
		"title":                  s.Title,
		"description":            s.Description,
		"brand":                  s.Brand,
		"seller_id":              s.SellerID,
		"seller_name":            s.SellerName,
		"first_image_url":        s.FirstImageURL,
		"category_id":            s.CategoryID,
		"category_lvl_1":         s.CategoryLvl1,
		"category_lvl_2":         s.CategoryLvl2,
		"category_lvl_3":         s.CategoryLvl3,
		"category_remaining":     s.CategoryRemaining,
		"features":               s.Features,
		"rating_count":           s.RatingCount,
		"rating_value":           s.RatingValue,
		"price_before_discounts": s.PriceBeforeDiscounts,
		"discount":               s.Discount,
		"price_after_discounts":  s.PriceAfterDiscounts,
		"bonuses":                s.Bonuses,
		"sales":                  s.Sales,
		"currency":               s.Currency,
		"barcode":                s.Barcode,
	}
}
