// Package menu holds the catalog item shape the cart accepts, normalized at
// the JSON boundary so the rest of the service sees one representation.
package menu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PlaceholderImage is substituted when an item carries no usable image string.
const PlaceholderImage = "/placeholder.svg"

var (
	ErrMissingID     = errors.New("menu item id is required")
	ErrNegativePrice = errors.New("menu item price must not be negative")
)

// ID identifies a catalog item. Catalog ids arrive as JSON strings or
// integers; both decode to their canonical string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("menu item id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Image is the catalog image reference. Literal is true when the source
// value was a plain string; otherwise URL holds the "src" of an image
// object, if there was one.
type Image struct {
	URL     string
	Literal bool
}

// StringImage builds a literal image reference.
func StringImage(url string) Image {
	return Image{URL: url, Literal: true}
}

func (img *Image) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*img = Image{}
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*img = Image{URL: s, Literal: true}
		return nil
	case len(b) > 0 && b[0] == '{':
		var obj struct {
			Src string `json:"src"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		img.URL = obj.Src
		return nil
	}
	// Numbers, booleans and arrays carry no usable reference.
	return nil
}

func (img Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(img.Resolve())
}

// Resolve returns the string form of the reference, falling back to the
// placeholder when the source was not a string and had no src.
func (img Image) Resolve() string {
	if img.Literal {
		return img.URL
	}
	if img.URL != "" {
		return img.URL
	}
	return PlaceholderImage
}

// Item is a catalog entry as offered to the cart.
type Item struct {
	ID           ID              `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Image        Image           `json:"image"`
	IsSpicy      bool            `json:"is_spicy"`
	IsVegetarian bool            `json:"is_vegetarian"`
}

// wireItem accepts both snake_case and camelCase flag spellings.
type wireItem struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Image           Image           `json:"image"`
	IsSpicy         *bool           `json:"is_spicy"`
	IsSpicyAlt      *bool           `json:"isSpicy"`
	IsVegetarian    *bool           `json:"is_vegetarian"`
	IsVegetarianAlt *bool           `json:"isVegetarian"`
}

func (it *Item) UnmarshalJSON(b []byte) error {
	var w wireItem
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*it = Item{
		ID:           w.ID,
		Name:         w.Name,
		Description:  w.Description,
		Price:        w.Price,
		Category:     w.Category,
		Image:        w.Image,
		IsSpicy:      firstSet(w.IsSpicy, w.IsSpicyAlt),
		IsVegetarian: firstSet(w.IsVegetarian, w.IsVegetarianAlt),
	}
	return nil
}

// Validate checks the invariants the cart relies on.
func (it Item) Validate() error {
	if it.ID == "" {
		return ErrMissingID
	}
	if it.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

func firstSet(flags ...*bool) bool {
	for _, f := range flags {
		if f != nil {
			return *f
		}
	}
	return false
}
