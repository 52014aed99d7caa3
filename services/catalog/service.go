package catalog

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"caremarket-rewards/pkg/errutil"
	"caremarket-rewards/pkg/identity"
	"caremarket-rewards/pkg/repository"
)

// Service is the product/category lookup consumed by the reward calculator.
// It deliberately stays thin: the wider marketplace owns product lifecycle,
// the reward core only needs enough of it to resolve categories.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	products repository.Repository[Product]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		products: repository.ProvideStore[Product](p.DB),
	}
}

type ProductInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

func (s *Service) CreateProduct(ctx context.Context, ident identity.Identity, in ProductInput) (*Product, error) {
	if !ident.IsClinic() && !ident.IsAdmin() {
		return nil, errutil.Forbidden("only clinics can manage products", nil)
	}

	if in.Price < 0 {
		return nil, errutil.ValidationFailed("price must be non-negative", nil)
	}

	now := time.Now()
	product := &Product{
		ID:          s.node.Generate().String(),
		ClinicID:    ident.ID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*Product, error) {
	product, err := s.products.FindOne(ctx, &Product{ID: productID})
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errutil.NotFound("product not found", nil)
	}
	return product, nil
}

// ResolveCategory returns the category of a product, or "" when the product
// is unknown. An unknown product never fails a reward calculation.
func (s *Service) ResolveCategory(ctx context.Context, productID string) (string, error) {
	product, err := s.products.FindOne(ctx, &Product{ID: productID})
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", nil
	}
	return product.Category, nil
}
