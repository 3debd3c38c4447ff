package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/gameportal/internal/storage"
	"github.com/Tyrowin/gameportal/internal/validation"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidProduct wraps validation failures for create and update.
	ErrInvalidProduct = errors.New("invalid product")
)

// Store persists products.
type Store interface {
	CreateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, f Filter) ([]Product, int, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
	CountProducts(ctx context.Context) (int, error)
}

// Service implements the catalog operations on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a catalog service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// List returns one page of products matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	f.Search = strings.TrimSpace(f.Search)

	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}

	return Page{
		Products:    products,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		CurrentPage: f.Page,
		Total:       total,
	}, nil
}

// Get returns the product with the given id.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// Create validates p, assigns an id and timestamps, and stores it.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validation.Struct(p); err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies patch to an existing product and re-validates the result.
func (s *Service) Update(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}

	patch.Apply(&p)
	p.Name = strings.TrimSpace(p.Name)
	if err := validation.Struct(p); err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// Delete removes the product with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// SeedSamples inserts the sample products when the catalog is empty and
// reports how many were added.
func (s *Service) SeedSamples(ctx context.Context) (int, error) {
	count, err := s.store.CountProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i, p := range SampleProducts() {
		if _, err := s.Create(ctx, p); err != nil {
			return i, fmt.Errorf("seed %q: %w", p.Name, err)
		}
	}
	return len(SampleProducts()), nil
}

// SampleProducts returns the products used to seed an empty catalog.
func SampleProducts() []Product {
	return []Product{
		{
			Name:        "The Legend of Zelda: Breath of the Wild",
			Description: "Explora un vasto mundo abierto en esta aventura épica de Link.",
			Price:       59.99,
			ImageURL:    "https://images.unsplash.com/photo-1550745165-9bc0b252726f?w=400",
			Category:    "aventura",
			Platform:    "Nintendo Switch",
			Rating:      4.9,
			Featured:    true,
		},
		{
			Name:        "Cyberpunk 2077",
			Description: "RPG de acción en un futuro distópico en Night City.",
			Price:       49.99,
			ImageURL:    "https://images.unsplash.com/photo-1542751371-adc38448a05e?w=400",
			Category:    "rol",
			Platform:    "PC",
			Rating:      4.2,
		},
	}
}
