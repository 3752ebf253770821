package woocommerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Product is a product record from GET /products.
type Product struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	Slug              string             `json:"slug"`
	Permalink         FlexString         `json:"permalink"`
	Type              string             `json:"type"`
	Status            string             `json:"status"`
	Featured          bool               `json:"featured"`
	Description       string             `json:"description"`
	ShortDescription  string             `json:"short_description"`
	SKU               FlexString         `json:"sku"`
	Price             FlexString         `json:"price"`
	RegularPrice      FlexString         `json:"regular_price"`
	SalePrice         FlexString         `json:"sale_price"`
	ManageStock       FlexBool           `json:"manage_stock"`
	StockQuantity     FlexInt            `json:"stock_quantity"`
	StockStatus       FlexString         `json:"stock_status"`
	Backorders        FlexString         `json:"backorders"`
	Weight            FlexString         `json:"weight"`
	Dimensions        Dimensions         `json:"dimensions"`
	ShippingRequired  *bool              `json:"shipping_required"`
	DateCreated       Date               `json:"date_created"`
	DateCreatedGMT    Date               `json:"date_created_gmt"`
	DateModifiedGMT   Date               `json:"date_modified_gmt"`
	Categories        []CategoryRef      `json:"categories"`
	Images            []Image            `json:"images"`
	Attributes        []Attribute        `json:"attributes"`
	DefaultAttributes []VariantAttribute `json:"default_attributes"`
	Variations        []int64            `json:"variations"`
	UpsellIDs         []int64            `json:"upsell_ids"`
	CrossSellIDs      []int64            `json:"cross_sell_ids"`
	MetaData          []Meta             `json:"meta_data"`
}

const (
	TypeSimple   = "simple"
	TypeVariable = "variable"
	TypeGrouped  = "grouped"
	TypeExternal = "external"
)

func (p Product) IsVariable() bool {
	return strings.EqualFold(p.Type, TypeVariable)
}

// AsVariation turns a product without variations into the single variation
// that represents it locally.
func (p Product) AsVariation() Variation {
	v := Variation{
		ID:               p.ID,
		SKU:              p.SKU,
		Status:           p.Status,
		Price:            p.Price,
		RegularPrice:     p.RegularPrice,
		SalePrice:        p.SalePrice,
		ManageStock:      p.ManageStock,
		StockQuantity:    p.StockQuantity,
		StockStatus:      p.StockStatus,
		Backorders:       p.Backorders,
		Weight:           p.Weight,
		Dimensions:       p.Dimensions,
		ShippingRequired: p.ShippingRequired,
		DateCreatedGMT:   p.DateCreatedGMT,
		DateModifiedGMT:  p.DateModifiedGMT,
		MetaData:         p.MetaData,
		Synthetic:        true,
	}
	if len(p.Images) > 0 {
		img := p.Images[0]
		v.Image = &img
	}
	return v
}

// Variation is a record from GET /products/{id}/variations.
type Variation struct {
	ID               int64              `json:"id"`
	SKU              FlexString         `json:"sku"`
	Status           string             `json:"status"`
	Price            FlexString         `json:"price"`
	RegularPrice     FlexString         `json:"regular_price"`
	SalePrice        FlexString         `json:"sale_price"`
	ManageStock      FlexBool           `json:"manage_stock"`
	StockQuantity    FlexInt            `json:"stock_quantity"`
	StockStatus      FlexString         `json:"stock_status"`
	Backorders       FlexString         `json:"backorders"`
	Weight           FlexString         `json:"weight"`
	Dimensions       Dimensions         `json:"dimensions"`
	ShippingRequired *bool              `json:"shipping_required"`
	DateCreatedGMT   Date               `json:"date_created_gmt"`
	DateModifiedGMT  Date               `json:"date_modified_gmt"`
	Image            *Image             `json:"image"`
	Attributes       []VariantAttribute `json:"attributes"`
	MetaData         []Meta             `json:"meta_data"`

	// Synthetic is set on variations built from a simple product.
	Synthetic bool `json:"-"`
}

// Category is a record from GET /products/categories.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      int64  `json:"parent"`
	Description string `json:"description"`
	Display     string `json:"display"`
	Image       *Image `json:"image"`
	MenuOrder   int    `json:"menu_order"`
	Count       int    `json:"count"`
}

func (c Category) Hidden() bool {
	return strings.EqualFold(c.Display, "hidden")
}

// CategoryRef is the short category form embedded in a product.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	ID   int64  `json:"id"`
	Src  string `json:"src"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

// UnmarshalJSON accepts the empty array and false some stores send in
// place of a missing image.
func (i *Image) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*i = Image{}
		return nil
	}
	type plain Image
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*i = Image(out)
	return nil
}

// Attribute is a product attribute. Global attributes carry an id and a
// "pa_" slug; custom ones have id 0.
type Attribute struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Position  int          `json:"position"`
	Visible   bool         `json:"visible"`
	Variation bool         `json:"variation"`
	Options   []FlexString `json:"options"`
}

// VariantAttribute is one attribute/option pair on a variation or in a
// product's default_attributes.
type VariantAttribute struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Slug   string     `json:"slug"`
	Option FlexString `json:"option"`
}

type Dimensions struct {
	Length FlexString `json:"length"`
	Width  FlexString `json:"width"`
	Height FlexString `json:"height"`
}

type Meta struct {
	ID    int64           `json:"id"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// StringValue returns the value when it is a JSON string or number.
func (m Meta) StringValue() string {
	var s FlexString
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(string(s))
}

// FlexString accepts a JSON string, number, boolean or null.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*s = ""
	case trimmed[0] == '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	case trimmed[0] == '{' || trimmed[0] == '[':
		*s = ""
	default:
		*s = FlexString(trimmed)
	}
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// FlexBool accepts booleans and the strings WooCommerce uses for them.
// "parent" on a variation's manage_stock means stock is managed on the parent,
// which still counts as managed.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var raw FlexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(raw))) {
	case "true", "1", "yes", "parent":
		*b = true
	default:
		*b = false
	}
	return nil
}

// FlexInt accepts integers, numeric strings and null.
type FlexInt struct {
	Value int64
	Valid bool
}

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var raw FlexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		*i = FlexInt{}
		return nil
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*i = FlexInt{Value: v, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		*i = FlexInt{Value: int64(f), Valid: true}
		return nil
	}
	*i = FlexInt{}
	return nil
}

// Date parses WooCommerce timestamps. The *_gmt fields carry no zone and are
// read as UTC. Unparseable values leave the date zero.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw FlexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	d.Time = ParseDate(string(raw))
	return nil
}

func (d Date) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// ParseDate parses the layouts WooCommerce emits, returning the zero time
// when none match.
func ParseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
