// Package catalog manages the game product catalog: the product model, listing
// filters, and the service used by the REST handlers.
package catalog

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/gameportal/internal/validation"
)

// Categories accepted for a product.
var Categories = []string{
	"acción", "aventura", "deportes", "estrategia",
	"rol", "simulación", "terror", "indie",
}

// Platforms accepted for a product.
var Platforms = []string{"PC", "PlayStation", "Xbox", "Nintendo Switch", "Mobile"}

func init() {
	validation.Register("game_category", func(fl validator.FieldLevel) bool {
		return slices.Contains(Categories, fl.Field().String())
	})
	validation.Register("game_platform", func(fl validator.FieldLevel) bool {
		return slices.Contains(Platforms, fl.Field().String())
	})
}

// Product is a catalog entry.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description" validate:"required,max=1000"`
	Price       float64   `json:"price" validate:"gte=0"`
	ImageURL    string    `json:"imageUrl" validate:"required"`
	Category    string    `json:"category" validate:"required,game_category"`
	Platform    string    `json:"platform" validate:"required,game_platform"`
	Rating      float64   `json:"rating" validate:"gte=0,lte=5"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductPatch is a partial update; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"imageUrl"`
	Category    *string  `json:"category"`
	Platform    *string  `json:"platform"`
	Rating      *float64 `json:"rating"`
	Featured    *bool    `json:"featured"`
}

// Apply copies the set fields of the patch onto p.
func (patch ProductPatch) Apply(p *Product) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Platform != nil {
		p.Platform = *patch.Platform
	}
	if patch.Rating != nil {
		p.Rating = *patch.Rating
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
}

// Listing defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
)

// Filter selects a page of products. Empty strings match everything.
type Filter struct {
	Category string
	Platform string
	Search   string
	Page     int
	Limit    int
}

// Normalize fills in defaults and clamps the page size.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset is the number of rows skipped before this page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Page is one page of a product listing.
type Page struct {
	Products    []Product `json:"products"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	Total       int       `json:"total"`
}
