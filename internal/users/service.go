package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the id has no user record.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrUnknownUsername indicates a login attempt for a username that does not exist.
	ErrUnknownUsername = errors.New("users: unknown username")
	// ErrInvalidUser indicates a creation request without a username or public name.
	ErrInvalidUser = errors.New("users: invalid user")
)

const (
	opLogin   = "users.login"
	opGet     = "users.get"
	opGetMany = "users.get_many"
	opCreate  = "users.create"
)

// ServiceConfig describes the dependencies required for user lookups.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages user records and login-by-username.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Create inserts a new user and returns it with its assigned id.
func (s *Service) Create(ctx context.Context, input NewUser) (User, error) {
	user := User{
		Username:   normalizeUsername(input.Username),
		PublicName: strings.TrimSpace(input.PublicName),
		IconURL:    strings.TrimSpace(input.IconURL),
		CreatedAt:  s.now().UTC(),
	}
	if user.Username == "" || user.PublicName == "" {
		return User{}, apperr.Wrap(apperr.KindValidation, opCreate+".invalid", "username and public_name are required", ErrInvalidUser)
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logger.Error("user insert failed", zap.String("operation", opCreate), zap.Error(err))
		return User{}, apperr.Internal(opCreate+".insert_failed", err)
	}
	return user, nil
}

// Login resolves a known username (case-insensitive) to its user record.
func (s *Service) Login(ctx context.Context, username string) (User, error) {
	normalized := normalizeUsername(username)
	if normalized == "" {
		return User{}, apperr.Wrap(apperr.KindValidation, opLogin+".unknown_user", "unknown user", ErrUnknownUsername)
	}
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Wrap(apperr.KindValidation, opLogin+".unknown_user", "unknown user", ErrUnknownUsername)
	}
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("operation", opLogin), zap.Error(err))
		return User{}, apperr.Internal(opLogin+".query_failed", err)
	}
	return user, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Wrap(apperr.KindNotFound, opGet+".not_found", "not found", ErrUserNotFound)
	}
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("operation", opGet), zap.Int64("user_id", id), zap.Error(err))
		return User{}, apperr.Internal(opGet+".query_failed", err)
	}
	return user, nil
}

// GetMany returns the users that exist among ids, ordered by id. Missing ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []int64) ([]User, error) {
	ids = positiveUnique(ids)
	if len(ids) == 0 {
		return []User{}, nil
	}
	var found []User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&found).Error; err != nil {
		s.logger.Error("user batch lookup failed", zap.String("operation", opGetMany), zap.Int("ids", len(ids)), zap.Error(err))
		return nil, apperr.Internal(opGetMany+".query_failed", err)
	}
	return found, nil
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
