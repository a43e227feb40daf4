package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/pricing"
)

// Line is one product selection in a cart.
type Line struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Slug      string    `json:"slug"`
	Color     string    `json:"color,omitempty"`
	Option    string    `json:"option,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Cart is the persisted cart document.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Cart) find(productID, color, option string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && strings.EqualFold(l.Color, color) && strings.EqualFold(l.Option, option) {
			return i
		}
	}
	return -1
}

func (c *Cart) lineIndex(lineID string) int {
	for i, l := range c.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

// LineView is a cart line priced against the current catalog.
type LineView struct {
	Line
	Title            string             `json:"title"`
	Image            string             `json:"image,omitempty"`
	Category         string             `json:"category,omitempty"`
	Tags             []string           `json:"tags,omitempty"`
	Pricing          pricing.Resolution `json:"pricing"`
	LineTotal        decimal.Decimal    `json:"lineTotal"`
	WeightGrams      *float64           `json:"weightGrams,omitempty"`
	MinOrderQuantity int                `json:"minOrderQuantity,omitempty"`
	BelowMinimum     bool               `json:"belowMinimum,omitempty"`
	Unavailable      bool               `json:"unavailable,omitempty"`
}

// View is the priced cart returned to clients.
type View struct {
	ID        string          `json:"id"`
	Lines     []LineView      `json:"lines"`
	ItemCount int             `json:"itemCount"`
	Summary   pricing.Summary `json:"summary"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
