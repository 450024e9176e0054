package access

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrGrantNotFound indicates the user holds no grant on the wishlist.
	ErrGrantNotFound = errors.New("access: grant not found")
	// ErrInvitationNotFound indicates the token is unknown or expired.
	ErrInvitationNotFound = errors.New("access: invitation not found or expired")
	// ErrInvalidInvitation indicates an invitation without a token or with a past deadline.
	ErrInvalidInvitation = errors.New("access: invalid invitation")
)

// ServiceConfig describes the dependencies of the access store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service stores collaborator grants and invitations.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the access store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("access: database connection required")
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

func (s *Service) queryFailed(operation string, err error, fields ...zap.Field) error {
	fields = append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("access query failed", fields...)
	return apperr.Internal(operation+".query_failed", err)
}
