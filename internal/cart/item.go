package cart

import (
	"github.com/oppa-kitchen/storefront/internal/menu"
	"github.com/shopspring/decimal"
)

// LineItem is one menu item plus a quantity. Image is always a resolved
// string; it is fixed when the item first enters the cart.
type LineItem struct {
	ID           menu.ID         `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	IsSpicy      bool            `json:"isSpicy"`
	IsVegetarian bool            `json:"isVegetarian"`
	Quantity     int             `json:"quantity"`
}

// Subtotal is price × quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func newLineItem(item menu.Item) LineItem {
	return LineItem{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Price:        item.Price,
		Category:     item.Category,
		Image:        item.Image.Resolve(),
		IsSpicy:      item.IsSpicy,
		IsVegetarian: item.IsVegetarian,
		Quantity:     1,
	}
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func indexOf(items []LineItem, id menu.ID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// View is the read model of a cart sent to clients.
type View struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// NewView derives totals from items.
func NewView(items []LineItem) View {
	v := View{Items: items, Total: decimal.Zero}
	if v.Items == nil {
		v.Items = []LineItem{}
	}
	for _, it := range items {
		v.Total = v.Total.Add(it.Subtotal())
		v.ItemCount += it.Quantity
	}
	return v
}
