package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductSort string

const (
	ProductSortName      ProductSort = "name"
	ProductSortPriceLow  ProductSort = "price-low"
	ProductSortPriceHigh ProductSort = "price-high"
)

// ParseProductSort maps a query value onto a known sort, falling back to name.
func ParseProductSort(value string) ProductSort {
	switch ProductSort(strings.ToLower(strings.TrimSpace(value))) {
	case ProductSortPriceLow:
		return ProductSortPriceLow
	case ProductSortPriceHigh:
		return ProductSortPriceHigh
	default:
		return ProductSortName
	}
}

type ProductFilter struct {
	Search string
	SortBy ProductSort
	Limit  int
	Offset int
}

// ErrStockUnavailable is returned by DecrementStockIfAvailable when the
// product exists but holds less stock than requested.
var ErrStockUnavailable = errors.New("stock unavailable")

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context) ([]model.Product, error)
	FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uint) error
	SetStock(ctx context.Context, id uint, stock int) error
	DecrementStockIfAvailable(ctx context.Context, id uint, quantity int) error
	IncrementStock(ctx context.Context, id uint, quantity int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
		"stock": product.Stock,
	})

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]model.Product, error) {
	return r.FindWithFilter(ctx, ProductFilter{})
}

func (r *productRepository) FindWithFilter(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	logger.Debug("Finding products with filter", map[string]interface{}{
		"search":  filter.Search,
		"sort_by": filter.SortBy,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})

	query := r.db.WithContext(ctx).Model(&model.Product{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", strings.ToLower(search))
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", like, like)
	}

	switch filter.SortBy {
	case ProductSortPriceLow:
		query = query.Order("products.price ASC").Order("products.name ASC")
	case ProductSortPriceHigh:
		query = query.Order("products.price DESC").Order("products.name ASC")
	default:
		query = query.Order("products.name ASC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []model.Product
	if err := query.Find(&products).Error; err != nil {
		logger.Error("Failed to find products with filter", err, map[string]interface{}{
			"search": filter.Search,
		})
		return nil, err
	}

	logger.Debug("Products found with filter", map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	logger.Debug("Finding product by ID in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		logLookupFailure("Failed to find product by ID in database", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}

	logger.Debug("Product found by ID in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
		"stock":      product.Stock,
	})
	return &product, nil
}

func (r *productRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	logger.Debug("Finding product by name in database", map[string]interface{}{
		"name": name,
	})

	var product model.Product
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error; err != nil {
		logLookupFailure("Failed to find product by name in database", err, map[string]interface{}{
			"name": name,
		})
		return nil, err
	}

	logger.Debug("Product found by name in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return &product, nil
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})

	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}

	logger.Debug("Product updated in database", map[string]interface{}{
		"product_id": product.ID,
	})
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	logger.Debug("Deleting product from database", map[string]interface{}{
		"product_id": id,
	})

	result := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete product from database", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.Debug("Product deleted from database", map[string]interface{}{
		"product_id": id,
	})
	return nil
}

func (r *productRepository) SetStock(ctx context.Context, id uint, stock int) error {
	logger.Debug("Setting product stock in database", map[string]interface{}{
		"product_id": id,
		"stock":      stock,
	})

	result := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("stock", stock)
	if result.Error != nil {
		logger.Error("Failed to set product stock in database", result.Error, map[string]interface{}{
			"product_id": id,
			"stock":      stock,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementStockIfAvailable subtracts quantity from stock in a single
// conditional statement. Two callers racing for the last units cannot both
// succeed: the loser sees ErrStockUnavailable.
func (r *productRepository) DecrementStockIfAvailable(ctx context.Context, id uint, quantity int) error {
	logger.Debug("Decrementing product stock in database", map[string]interface{}{
		"product_id": id,
		"quantity":   quantity,
	})

	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to decrement product stock in database", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   quantity,
		})
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		logger.Debug("Product stock decrement rejected", map[string]interface{}{
			"product_id": id,
			"quantity":   quantity,
		})
		return ErrStockUnavailable
	}

	logger.Debug("Product stock decremented in database", map[string]interface{}{
		"product_id": id,
		"quantity":   quantity,
	})
	return nil
}

func (r *productRepository) IncrementStock(ctx context.Context, id uint, quantity int) error {
	logger.Debug("Incrementing product stock in database", map[string]interface{}{
		"product_id": id,
		"quantity":   quantity,
	})

	result := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		logger.Error("Failed to increment product stock in database", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   quantity,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.Debug("Product stock incremented in database", map[string]interface{}{
		"product_id": id,
		"quantity":   quantity,
	})
	return nil
}

// logLookupFailure keeps expected misses out of the error log.
func logLookupFailure(msg string, err error, fields map[string]interface{}) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Debug(msg, fields)
		return
	}
	logger.Error(msg, err, fields)
}
