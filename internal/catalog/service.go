package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrProductNotFound indicates the id has no catalog entry.
var ErrProductNotFound = errors.New("catalog: product not found")

const (
	opList       = "catalog.list"
	opSearch     = "catalog.search"
	opCategories = "catalog.categories"
	opGet        = "catalog.get"
	opGetMany    = "catalog.get_many"
	opCreate     = "catalog.create"

	likeEscape = ` ESCAPE '\'`
)

// ServiceConfig describes the dependencies of the catalog store.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service is the sqlite-backed catalog.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the catalog store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("catalog: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Create inserts a product; used when seeding the catalog.
func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if strings.TrimSpace(product.Title) == "" || strings.TrimSpace(product.Category) == "" {
		return Product{}, apperr.Validation(opCreate+".invalid", "title and category are required")
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return Product{}, s.queryFailed(opCreate, err)
	}
	return product, nil
}

// List returns a page of products ordered by id.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	limit, offset := window(filter.Limit, filter.Offset, DefaultListLimit)

	query := s.db.WithContext(ctx).Model(&Product{})
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := containsPattern(term)
		query = query.Where("(LOWER(title) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape+")", pattern, pattern)
	}
	return s.page(ctx, opList, query, "id ASC", limit, offset)
}

// Search returns a page of products matching the filter ordered by rating, best first.
func (s *Service) Search(ctx context.Context, filter SearchFilter) (Page, error) {
	limit, offset := window(filter.Limit, filter.Offset, DefaultSearchLimit)

	query := s.db.WithContext(ctx).Model(&Product{})
	if term := strings.TrimSpace(filter.Query); term != "" {
		pattern := containsPattern(term)
		query = query.Where(
			"(LOWER(title) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape+" OR LOWER(retailer) LIKE ?"+likeEscape+")",
			pattern, pattern, pattern,
		)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.MinRating != nil {
		query = query.Where("rating >= ?", *filter.MinRating)
	}
	return s.page(ctx, opSearch, query, "rating DESC, id ASC", limit, offset)
}

func (s *Service) page(ctx context.Context, operation string, query *gorm.DB, order string, limit, offset int) (Page, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, s.queryFailed(operation, err)
	}
	products := make([]Product, 0, limit)
	if err := query.Session(&gorm.Session{}).Order(order).Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		return Page{}, s.queryFailed(operation, err)
	}
	return Page{Products: products, Total: total, Limit: limit, Offset: offset}, nil
}

// Categories returns the distinct category names in ascending order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories := make([]string, 0)
	if err := s.db.WithContext(ctx).Model(&Product{}).Distinct("category").Order("category ASC").Pluck("category", &categories).Error; err != nil {
		return nil, s.queryFailed(opCategories, err)
	}
	return categories, nil
}

// Get returns the product with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Product{}, apperr.Wrap(apperr.KindNotFound, opGet+".not_found", "Product not found", ErrProductNotFound)
	}
	if err != nil {
		return Product{}, s.queryFailed(opGet, err)
	}
	return product, nil
}

// GetMany returns the products that exist among ids. Missing ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []int64) ([]Product, error) {
	ids = positiveUnique(ids)
	if len(ids) == 0 {
		return []Product{}, nil
	}
	var products []Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&products).Error; err != nil {
		return nil, s.queryFailed(opGetMany, err)
	}
	return products, nil
}

func (s *Service) queryFailed(operation string, err error) error {
	s.logger.Error("catalog query failed", zap.String("operation", operation), zap.Error(err))
	return apperr.Internal(operation+".query_failed", err)
}

func positiveUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
