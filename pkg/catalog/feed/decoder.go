package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Decoder is a forward-only cursor over the feed's <offer> elements.
// Each call to Next decodes exactly one offer and releases its backing
// storage before the next read, so memory stays bounded by the largest
// single element.
type Decoder struct {
	dec     *xml.Decoder
	cats    *Hierarchy
	skipped int
}

type featureXML struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type offerXML struct {
	MarketplaceID string       `xml:"marketplace_id,attr"`
	ProductID     string       `xml:"id,attr"`
	SellerID      string       `xml:"sellerId"`
	CategoryID    string       `xml:"categoryId"`
	Name          string       `xml:"name"`
	Description   string       `xml:"description"`
	Vendor        string       `xml:"vendor"`
	SellerName    string       `xml:"sellerName"`
	Picture       string       `xml:"picture"`
	RatingCount   string       `xml:"rating_count"`
	RatingValue   string       `xml:"rating_value"`
	PriceBefore   string       `xml:"price_before_discounts"`
	Discount      string       `xml:"discount"`
	PriceAfter    string       `xml:"price_after_discounts"`
	Bonuses       string       `xml:"bonuses"`
	Sales         string       `xml:"sales"`
	Currency      string       `xml:"currency"`
	Barcode       string       `xml:"barcode"`
	Features      []featureXML `xml:"features>feature"`
}

// NewDecoder returns a Decoder reading offers from r. The hierarchy is
// consulted for the category path of every record; it must already
// cover the feed's category section.
func NewDecoder(r io.Reader, cats *Hierarchy) *Decoder {
	return &Decoder{
		dec:  xml.NewDecoder(r),
		cats: cats,
	}
}

// Next returns the next normalized record, or io.EOF after the last
// offer. An offer that fails to decode is logged and skipped so one
// bad record cannot abort the run.
func (d *Decoder) Next() (*SKU, error) {
	for {
		tok, err := d.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read feed - %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "offer" {
			continue
		}

		var off offerXML
		if err := d.dec.DecodeElement(&off, &se); err != nil {
			d.skipped++
			log.WithField("Error", err).Warnln("Skipping malformed offer")
			continue
		}

		sku, err := d.normalize(&off)
		if err != nil {
			d.skipped++
			log.WithField("Error", err).Warnln("Skipping malformed offer")
			continue
		}

		return sku, nil
	}
}

// Skipped returns how many offers failed to decode so far.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// normalize maps one offer to a SKU record. A present but unparseable
// numeric value fails the whole offer; absent or blank values default
// to 0.
func (d *Decoder) normalize(off *offerXML) (*SKU, error) {
	marketplaceID, err := parseInt("marketplace_id", off.MarketplaceID)
	if err != nil {
		return nil, err
	}
	productID, err := parseInt64("id", off.ProductID)
	if err != nil {
		return nil, err
	}
	sellerID, err := parseInt("sellerId", off.SellerID)
	if err != nil {
		return nil, err
	}
	categoryID, err := parseInt("categoryId", off.CategoryID)
	if err != nil {
		return nil, err
	}
	ratingCount, err := parseInt("rating_count", off.RatingCount)
	if err != nil {
		return nil, err
	}
	ratingValue, err := parseFloat("rating_value", off.RatingValue)
	if err != nil {
		return nil, err
	}
	priceBefore, err := parseFloat("price_before_discounts", off.PriceBefore)
	if err != nil {
		return nil, err
	}
	discount, err := parseFloat("discount", off.Discount)
	if err != nil {
		return nil, err
	}
	priceAfter, err := parseFloat("price_after_discounts", off.PriceAfter)
	if err != nil {
		return nil, err
	}
	bonuses, err := parseInt("bonuses", off.Bonuses)
	if err != nil {
		return nil, err
	}
	sales, err := parseInt("sales", off.Sales)
	if err != nil {
		return nil, err
	}

	path := d.cats.Path(categoryID)

	sku := &SKU{
		UUID:                 uuid.New(),
		MarketplaceID:        marketplaceID,
		ProductID:            productID,
		Title:                off.Name,
		Description:          off.Description,
		Brand:                off.Vendor,
		SellerID:             sellerID,
		SellerName:           off.SellerName,
		FirstImageURL:        off.Picture,
		CategoryID:           categoryID,
		Features:             make(map[string]string, len(off.Features)),
		RatingCount:          ratingCount,
		RatingValue:          ratingValue,
		PriceBeforeDiscounts: priceBefore,
		Discount:             discount,
		PriceAfterDiscounts:  priceAfter,
		Bonuses:              bonuses,
		Sales:                sales,
		Currency:             off.Currency,
		Barcode:              off.Barcode,
		SimilarSKU:           []uuid.UUID{},
	}

	if len(path) > 0 {
		sku.CategoryLvl1 = path[0]
	}
	if len(path) > 1 {
		sku.CategoryLvl2 = path[1]
	}
	if len(path) > 2 {
		sku.CategoryLvl3 = path[2]
	}
	if len(path) > 3 {
		sku.CategoryRemaining = strings.Join(path[3:], "/")
	}

	for _, f := range off.Features {
		if f.Name == "" || f.Value == "" {
			continue
		}
		sku.Features[f.Name] = f.Value
	}

	return sku, nil
}

func parseInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q - %w", field, s, err)
	}
	return n, nil
}

func parseInt64(field, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q - %w", field, s, err)
	}
	return n, nil
}

func parseFloat(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q - %w", field, s, err)
	}
	return f, nil
}
