package invites

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/config"
	"github.com/MarcoPoloResearchLab/wishlist/internal/enrich"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyHasAccess indicates a re-acceptance under the reject policy.
	ErrAlreadyHasAccess = errors.New("invites: user already has access")
	// ErrOwnerAcceptance indicates the wishlist owner tried to accept their own invitation.
	ErrOwnerAcceptance = errors.New("invites: owner cannot accept")
)

const (
	opCreate  = "invites.create"
	opPreview = "invites.preview"
	opAccept  = "invites.accept"

	defaultTTL = 7 * 24 * time.Hour
)

// Store persists invitations and the grants they produce.
type Store interface {
	CreateInvitation(ctx context.Context, input access.NewInvitation) (access.Invitation, error)
	ActiveInvitation(ctx context.Context, token string) (access.Invitation, error)
	DeleteInvitation(ctx context.Context, token string) error
	Upsert(ctx context.Context, input access.GrantInput) (access.Grant, error)
	Insert(ctx context.Context, input access.GrantInput) (access.Grant, bool, error)
}

// WishlistLookup fetches the wishlist an invitation points at.
type WishlistLookup interface {
	Get(ctx context.Context, id int64) (wishlists.Wishlist, error)
}

// OwnerGate enforces that only the wishlist owner creates invitations.
type OwnerGate interface {
	RequireOwner(ctx context.Context, userID, wishlistID int64) error
}

// ServiceConfig describes the dependencies of the invitation lifecycle.
type ServiceConfig struct {
	Store        Store
	Wishlists    WishlistLookup
	Permissions  OwnerGate
	Profiles     *enrich.Enricher[int64, users.User]
	Tokens       TokenProvider
	TTL          time.Duration
	AcceptPolicy config.AcceptPolicy
	LinkBaseURL  string
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Service implements create, preview and accept.
type Service struct {
	store       Store
	wishlists   WishlistLookup
	permissions OwnerGate
	profiles    *enrich.Enricher[int64, users.User]
	tokens      TokenProvider
	ttl         time.Duration
	policy      config.AcceptPolicy
	linkBase    string
	now         func() time.Time
	logger      *zap.Logger
}

// Created is returned to the owner after creating an invitation.
type Created struct {
	Token      string      `json:"token"`
	WishlistID int64       `json:"wishlist_id"`
	AccessType access.Role `json:"access_type"`
	CreatedBy  int64       `json:"created_by"`
	ExpiresAt  time.Time   `json:"expires_at"`
	InviteLink string      `json:"invite_link"`
}

// Preview is the public, human-readable view of an active invitation.
type Preview struct {
	Token        string      `json:"token"`
	WishlistID   int64       `json:"wishlist_id"`
	WishlistName string      `json:"wishlist_name"`
	AccessType   access.Role `json:"access_type"`
	ExpiresAt    time.Time   `json:"expires_at"`
	OwnerID      int64       `json:"owner_id"`
	Owner        users.User  `json:"owner"`
}

// Acceptance reports the grant produced by accepting an invitation.
type Acceptance struct {
	OK          bool        `json:"ok"`
	WishlistID  int64       `json:"wishlist_id"`
	Role        access.Role `json:"role"`
	DisplayName *string     `json:"display_name"`
}

// NewService validates the configuration and constructs the lifecycle service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil || cfg.Wishlists == nil || cfg.Permissions == nil || cfg.Profiles == nil {
		return nil, errors.New("invites: store, wishlists, permissions and profiles are required")
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewUUIDTokenProvider()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	policy := cfg.AcceptPolicy
	if policy == "" {
		policy = config.AcceptPolicyUpdate
	}
	if policy != config.AcceptPolicyUpdate && policy != config.AcceptPolicyReject {
		return nil, errors.New("invites: unsupported accept policy " + string(policy))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       cfg.Store,
		wishlists:   cfg.Wishlists,
		permissions: cfg.Permissions,
		profiles:    cfg.Profiles,
		tokens:      tokens,
		ttl:         ttl,
		policy:      policy,
		linkBase:    strings.TrimRight(cfg.LinkBaseURL, "/"),
		now:         clock,
		logger:      logger,
	}, nil
}

// Create issues an invitation for wishlistID. Only the owner may do so.
// A blank accessType grants view_only.
func (s *Service) Create(ctx context.Context, actorID, wishlistID int64, accessType string) (Created, error) {
	if err := s.permissions.RequireOwner(ctx, actorID, wishlistID); err != nil {
		return Created{}, err
	}
	role := access.RoleViewOnly
	if strings.TrimSpace(accessType) != "" {
		parsed, err := access.ParseGrantRole(accessType)
		if err != nil {
			return Created{}, apperr.Wrap(apperr.KindValidation, opCreate+".invalid_access_type", "access_type must be view_only or view_edit", err)
		}
		role = parsed
	}
	token, err := s.tokens.NewToken()
	if err != nil {
		s.logger.Error("invitation token generation failed", zap.String("operation", opCreate), zap.Error(err))
		return Created{}, apperr.Internal(opCreate+".token_failed", err)
	}
	invitation, err := s.store.CreateInvitation(ctx, access.NewInvitation{
		Token:      token,
		WishlistID: wishlistID,
		Role:       role,
		CreatedBy:  actorID,
		ExpiresAt:  s.now().UTC().Add(s.ttl),
	})
	if err != nil {
		return Created{}, err
	}
	s.logger.Info("invitation created",
		zap.Int64("wishlist_id", wishlistID),
		zap.Int64("created_by", actorID),
		zap.String("access_type", role.String()))
	return Created{
		Token:      invitation.Token,
		WishlistID: invitation.WishlistID,
		AccessType: invitation.Role,
		CreatedBy:  invitation.CreatedBy,
		ExpiresAt:  invitation.ExpiresAt(),
		InviteLink: s.linkBase + "/" + invitation.Token,
	}, nil
}

// Preview describes an active invitation without requiring authentication.
func (s *Service) Preview(ctx context.Context, token string) (Preview, error) {
	invitation, wishlist, err := s.activeInvitation(ctx, opPreview, token)
	if err != nil {
		return Preview{}, err
	}
	owner := s.profiles.One(ctx, wishlist.OwnerID, func(id int64) users.User {
		return users.Placeholder(id, "")
	})
	return Preview{
		Token:        invitation.Token,
		WishlistID:   invitation.WishlistID,
		WishlistName: wishlist.Name,
		AccessType:   invitation.Role,
		ExpiresAt:    invitation.ExpiresAt(),
		OwnerID:      wishlist.OwnerID,
		Owner:        owner,
	}, nil
}

// Accept turns an active invitation into a grant for actorID. The granted role is
// always the one fixed when the invitation was created.
func (s *Service) Accept(ctx context.Context, actorID int64, token, displayName string) (Acceptance, error) {
	invitation, wishlist, err := s.activeInvitation(ctx, opAccept, token)
	if err != nil {
		return Acceptance{}, err
	}
	if wishlist.OwnerID == actorID {
		return Acceptance{}, apperr.Wrap(apperr.KindValidation, opAccept+".owner", "owner already has access to this wishlist", ErrOwnerAcceptance)
	}

	input := access.GrantInput{
		WishlistID:  invitation.WishlistID,
		UserID:      actorID,
		Role:        invitation.Role,
		DisplayName: displayName,
		InvitedBy:   invitation.CreatedBy,
	}

	var grant access.Grant
	switch s.policy {
	case config.AcceptPolicyReject:
		inserted, created, err := s.store.Insert(ctx, input)
		if err != nil {
			return Acceptance{}, err
		}
		if !created {
			return Acceptance{}, apperr.Wrap(apperr.KindValidation, opAccept+".already_granted", "user already has access to this wishlist", ErrAlreadyHasAccess)
		}
		grant = inserted
		if err := s.store.DeleteInvitation(ctx, invitation.Token); err != nil {
			s.logger.Error("consumed invitation was not deleted",
				zap.String("operation", opAccept),
				zap.Int64("wishlist_id", invitation.WishlistID),
				zap.Error(err))
		}
	default:
		upserted, err := s.store.Upsert(ctx, input)
		if err != nil {
			return Acceptance{}, err
		}
		grant = upserted
	}

	s.logger.Info("invitation accepted",
		zap.Int64("wishlist_id", grant.WishlistID),
		zap.Int64("user_id", actorID),
		zap.String("role", grant.Role.String()))
	return Acceptance{OK: true, WishlistID: grant.WishlistID, Role: grant.Role, DisplayName: grant.DisplayName}, nil
}

// activeInvitation loads an unexpired invitation and its wishlist. An invitation whose
// wishlist no longer exists is reported as not found.
func (s *Service) activeInvitation(ctx context.Context, operation, token string) (access.Invitation, wishlists.Wishlist, error) {
	if strings.TrimSpace(token) == "" {
		return access.Invitation{}, wishlists.Wishlist{}, apperr.Wrap(apperr.KindNotFound, operation+".not_found", "invite not found or expired", access.ErrInvitationNotFound)
	}
	invitation, err := s.store.ActiveInvitation(ctx, token)
	if err != nil {
		return access.Invitation{}, wishlists.Wishlist{}, err
	}
	wishlist, err := s.wishlists.Get(ctx, invitation.WishlistID)
	if apperr.Is(err, apperr.KindNotFound) {
		return access.Invitation{}, wishlists.Wishlist{}, apperr.Wrap(apperr.KindNotFound, operation+".not_found", "invite not found or expired", access.ErrInvitationNotFound)
	}
	if err != nil {
		return access.Invitation{}, wishlists.Wishlist{}, err
	}
	return invitation, wishlist, nil
}
