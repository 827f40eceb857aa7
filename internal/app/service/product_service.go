package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// ProductInput is the admin-editable part of a product.
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image"`
}

type ProductListOptions struct {
	Search string
	Sort   string
	Limit  int
	Offset int
}

type ProductService interface {
	ListProducts(ctx context.Context, opts ProductListOptions) ([]model.Product, error)
	GetProductByID(ctx context.Context, id uint) (*model.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uint, input ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
	// UpsertByName creates the product or updates the one with the same name.
	// The bool reports whether a new product was created.
	UpsertByName(ctx context.Context, input ProductInput) (*model.Product, bool, error)
}

type productService struct {
	productRepo repository.ProductRepository
	collaborators
}

func NewProductService(productRepo repository.ProductRepository, opts ...Option) ProductService {
	return &productService{
		productRepo:   productRepo,
		collaborators: newCollaborators(opts),
	}
}

func (s *productService) ListProducts(ctx context.Context, opts ProductListOptions) ([]model.Product, error) {
	logger.Debug("Listing products", map[string]interface{}{
		"search": opts.Search,
		"sort":   opts.Sort,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})

	products, err := s.productRepo.FindWithFilter(ctx, repository.ProductFilter{
		Search: opts.Search,
		SortBy: repository.ParseProductSort(opts.Sort),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, err
	}

	logger.Info("Products listed", map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

func (s *productService) GetProductByID(ctx context.Context, id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*model.Product, error) {
	input = normalizeProductInput(input)
	logger.Info("Creating product", map[string]interface{}{
		"name":  input.Name,
		"price": input.Price,
		"stock": input.Stock,
	})

	if err := validateProductInput(input); err != nil {
		logger.Warn("Product validation failed", map[string]interface{}{
			"name":  input.Name,
			"error": err.Error(),
		})
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, input.Name, 0); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Image:       input.Image,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, &StoreWriteError{Op: "create product", Err: err}
	}

	s.notifier.ProductsChanged(ctx)
	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return product, nil
}

// UpdateProduct replaces the editable fields. An empty image keeps the
// current one.
func (s *productService) UpdateProduct(ctx context.Context, id uint, input ProductInput) (*model.Product, error) {
	input = normalizeProductInput(input)
	logger.Info("Updating product", map[string]interface{}{
		"product_id": id,
		"name":       input.Name,
	})

	existing, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateProductInput(input); err != nil {
		logger.Warn("Product validation failed", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, input.Name, id); err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Description = input.Description
	existing.Price = input.Price
	existing.Stock = input.Stock
	if input.Image != "" {
		existing.Image = input.Image
	}

	if err := s.productRepo.Update(ctx, existing); err != nil {
		return nil, &StoreWriteError{Op: "update product", Err: err}
	}

	if s.cache != nil {
		s.cache.ApplyLocalStock(existing.ID, existing.Stock)
	}
	s.notifier.ProductsChanged(ctx)
	logger.Info("Product updated", map[string]interface{}{
		"product_id": existing.ID,
	})
	return existing, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uint) error {
	logger.Info("Deleting product", map[string]interface{}{
		"product_id": id,
	})

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return &StoreWriteError{Op: "delete product", Err: err}
	}

	s.notifier.ProductsChanged(ctx)
	return nil
}

func (s *productService) UpsertByName(ctx context.Context, input ProductInput) (*model.Product, bool, error) {
	input = normalizeProductInput(input)

	existing, err := s.productRepo.FindByName(ctx, input.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		product, err := s.CreateProduct(ctx, input)
		return product, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}

	product, err := s.UpdateProduct(ctx, existing.ID, input)
	return product, false, err
}

func (s *productService) ensureUniqueName(ctx context.Context, name string, selfID uint) error {
	existing, err := s.productRepo.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		logger.Warn("Duplicate product name rejected", map[string]interface{}{
			"name":        name,
			"existing_id": existing.ID,
		})
		return ErrDuplicateProductName
	}
	return nil
}

func normalizeProductInput(input ProductInput) ProductInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	return input
}

func validateProductInput(input ProductInput) error {
	switch {
	case input.Name == "":
		return &ValidationError{Field: "name", Message: "Product name is required and must be a non-empty string"}
	case input.Description == "":
		return &ValidationError{Field: "description", Message: "Product description is required and must be a non-empty string"}
	case input.Price <= 0:
		return &ValidationError{Field: "price", Message: "Valid product price is required (must be a positive number)"}
	case input.Stock < 0:
		return &ValidationError{Field: "stock", Message: "Valid stock quantity is required (must be a non-negative integer)"}
	}
	return nil
}
