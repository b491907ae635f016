package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signflow/signflow-server/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrValidation         = errors.New("email and password required")
	ErrDuplicateEmail     = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("user not found")
	ErrAdminDeletion      = errors.New("cannot delete admin user")
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// RegisterInput carries a signup request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Register creates an active account. The admin role is granted only when
// grantAdmin is set; every other request yields an agent.
func (s *Service) Register(ctx context.Context, in RegisterInput, grantAdmin bool) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrValidation
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	role := models.RoleAgent
	if grantAdmin && strings.EqualFold(strings.TrimSpace(in.Role), models.RoleAdmin) {
		role = models.RoleAdmin
	}
	u := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials. Unknown emails, wrong passwords and
// deactivated accounts all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !u.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Resolve finds a user by id, falling back to email. It returns (nil, nil)
// when neither matches.
func (s *Service) Resolve(ctx context.Context, id, email string) (*models.User, error) {
	if id != "" {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil || u != nil {
			return u, err
		}
	}
	if email != "" {
		return s.repo.GetByEmail(ctx, email)
	}
	return nil, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}

// ToggleActive flips the active flag and returns the new value.
func (s *Service) ToggleActive(ctx context.Context, id string) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrNotFound
	}
	next := !u.Active
	if err := s.repo.SetActive(ctx, u.ID, next); err != nil {
		return false, err
	}
	return next, nil
}

// Delete removes an agent account. Admin accounts are never deleted here.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	if u.IsAdmin() {
		return ErrAdminDeletion
	}
	return s.repo.Delete(ctx, u.ID)
}

// UpdateProfile sets the display name and/or stored signature image.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, signature *string) (*models.User, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	if err := s.repo.UpdateProfile(ctx, id, name, signature); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// EnsureDefaultAdmin seeds an admin account when the store holds no users.
// It reports whether an account was created.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, email, password string) (bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.Register(ctx, RegisterInput{Email: email, Password: password, Name: "Administrator", Role: models.RoleAdmin}, true); err != nil {
		return false, err
	}
	return true, nil
}
