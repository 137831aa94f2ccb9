package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/repository"
	"user-session-service/internal/security"
	"user-session-service/internal/storage"
)

// IdentityView is an identity as returned to callers: no password hash, no tokens.
type IdentityView struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	PhoneNo        string      `json:"phoneNo,omitempty"`
	Role           domain.Role `json:"role"`
	CreatedOn      time.Time   `json:"createdOn"`
	UpdatedOn      time.Time   `json:"updatedOn"`
	ActiveSessions int         `json:"activeSessions"`
}

func viewOf(rec storage.Record[domain.Identity]) *IdentityView {
	return &IdentityView{
		ID:             rec.ID,
		Name:           rec.Value.Name,
		Email:          rec.Value.Email,
		PhoneNo:        rec.Value.PhoneNo,
		Role:           rec.Value.Role,
		CreatedOn:      rec.Value.CreatedOn,
		UpdatedOn:      rec.Value.UpdatedOn,
		ActiveSessions: len(rec.Value.Sessions),
	}
}

// CreateIdentityInput is the payload of CreateIdentity.
type CreateIdentityInput struct {
	Name     string
	Email    string
	Password string
	PhoneNo  string
	Role     domain.Role
}

// IdentityPatch lists the fields UpdateIdentityDetails may change; nil means unchanged.
type IdentityPatch struct {
	Name    *string
	Email   *string
	PhoneNo *string
	Role    *domain.Role
}

// IdentityService implements identity administration on top of the identity store.
type IdentityService struct {
	store  repository.Repository
	hasher *security.Hasher
	now    func() time.Time
}

// NewIdentityService returns an IdentityService.
func NewIdentityService(store repository.Repository, hasher *security.Hasher) *IdentityService {
	return &IdentityService{store: store, hasher: hasher, now: time.Now}
}

// CreateIdentity validates in, hashes the password, and stores a new identity with no sessions.
func (s *IdentityService) CreateIdentity(ctx context.Context, in CreateIdentityInput) (*IdentityView, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.PhoneNo)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: role must be 0 or 1", ErrInvalidArgument)
	}

	existing, err := s.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: email})
	if err != nil {
		return nil, storeErr("find identity", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}
	now := s.now().UTC()
	_, rec, err := s.store.Create(ctx, domain.Identity{
		Name:      name,
		Email:     email,
		Password:  hash,
		PhoneNo:   phone,
		Role:      in.Role,
		CreatedOn: now,
		UpdatedOn: now,
	})
	if err != nil {
		return nil, storeErr("create identity", err)
	}
	return viewOf(rec), nil
}

// GetIdentity returns the identity with id. ErrNotFound if absent; ErrInvalidArgument for a malformed id.
func (s *IdentityService) GetIdentity(ctx context.Context, id string) (*IdentityView, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("find identity", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: identity %s", ErrNotFound, id)
	}
	return viewOf(*rec), nil
}

// RoleOf returns the role of the identity with id. ErrNotFound if absent.
func (s *IdentityService) RoleOf(ctx context.Context, id string) (domain.Role, error) {
	v, err := s.GetIdentity(ctx, id)
	if err != nil {
		return domain.RoleUser, err
	}
	return v.Role, nil
}

// GetIdentityByEmail returns the identity with email. ErrNotFound if absent.
func (s *IdentityService) GetIdentityByEmail(ctx context.Context, email string) (*IdentityView, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	rec, err := s.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: email})
	if err != nil {
		return nil, storeErr("find identity", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: identity", ErrNotFound)
	}
	return viewOf(*rec), nil
}

// ListIdentities returns every identity.
func (s *IdentityService) ListIdentities(ctx context.Context) ([]*IdentityView, error) {
	recs, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, storeErr("list identities", err)
	}
	out := make([]*IdentityView, 0, len(recs))
	for _, r := range recs {
		out = append(out, viewOf(r))
	}
	return out, nil
}

// CheckIdentityPresent reports whether an identity with email exists.
func (s *IdentityService) CheckIdentityPresent(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}
	rec, err := s.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: email})
	if err != nil {
		return false, storeErr("find identity", err)
	}
	return rec != nil, nil
}

// UpdateIdentityDetails applies the supplied fields of patch and bumps updatedOn.
func (s *IdentityService) UpdateIdentityDetails(ctx context.Context, id string, patch IdentityPatch) (*IdentityView, error) {
	set := storage.Fields{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		set[domain.FieldName] = name
	}
	if patch.Email != nil {
		email := domain.NormalizeEmail(*patch.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		other, err := s.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: email})
		if err != nil {
			return nil, storeErr("find identity", err)
		}
		if other != nil && other.ID != id {
			return nil, ErrEmailAlreadyRegistered
		}
		set[domain.FieldEmail] = email
	}
	if patch.PhoneNo != nil {
		phone := strings.TrimSpace(*patch.PhoneNo)
		if err := validatePhone(phone); err != nil {
			return nil, err
		}
		set[domain.FieldPhoneNo] = phone
		if phone == "" {
			set[domain.FieldPhoneNo] = nil
		}
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, fmt.Errorf("%w: role must be 0 or 1", ErrInvalidArgument)
		}
		set[domain.FieldRole] = int(*patch.Role)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: at least one field must be updated", ErrInvalidArgument)
	}
	set[domain.FieldUpdatedOn] = s.now().UTC()

	if err := s.store.Update(ctx, id, storage.Update{Set: set}); err != nil {
		return nil, storeErr("update identity", err)
	}
	return s.GetIdentity(ctx, id)
}

// DeleteIdentity deletes every identity with email, together with its sessions.
// ErrNotFound if none match.
func (s *IdentityService) DeleteIdentity(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.store.DeleteByCriteria(ctx, storage.Fields{domain.FieldEmail: email}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: identity", ErrNotFound)
		}
		return storeErr("delete identity", err)
	}
	return nil
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

func validateName(name string) error {
	if n := len([]rune(name)); n < 3 || n > 30 {
		return fmt.Errorf("%w: name must be 3 to 30 characters", ErrInvalidArgument)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidArgument)
	}
	return nil
}

func validatePhone(phone string) error {
	if phone != "" && !phonePattern.MatchString(phone) {
		return fmt.Errorf("%w: phone number must be 10 digits", ErrInvalidArgument)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidArgument)
	}
	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidArgument, security.MaxPasswordBytes)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasNumber || !hasSymbol {
		return fmt.Errorf("%w: password must contain an uppercase letter, a lowercase letter, a number, and a symbol", ErrInvalidArgument)
	}
	return nil
}
