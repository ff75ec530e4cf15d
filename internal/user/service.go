package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

// Repository interface defines the data access methods for users. Mutating
// methods insert the supplied audit entry in the same transaction as the
// change.
type Repository interface {
	Create(ctx context.Context, u *User, entry *audit.Entry) error
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	SetActive(ctx context.Context, id int64, active bool, entry *audit.Entry) (*User, error)
	UpdateRole(ctx context.Context, id int64, role string, entry *audit.Entry) (*User, error)
	CountActiveAssignments(ctx context.Context, userID int64) (int64, error)
}

// Auditor records entries outside a repository transaction, used for batch
// summaries.
type Auditor interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Service handles user business logic
type Service struct {
	repo          Repository
	auditor       Auditor
	bulkBatchSize int
	logger        *slog.Logger
}

// NewService creates a new user service
func NewService(repo Repository, auditor Auditor, bulkBatchSize int, logger *slog.Logger) *Service {
	if bulkBatchSize <= 0 {
		bulkBatchSize = 50
	}
	return &Service{
		repo:          repo,
		auditor:       auditor,
		bulkBatchSize: bulkBatchSize,
		logger:        logger,
	}
}

// GetUser retrieves one user, applying department scope and field-level
// redaction for the caller.
func (s *Service) GetUser(ctx context.Context, principal *auth.Principal, id int64) (map[string]interface{}, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "user_id", id)
		return nil, err
	}

	isOwn := principal.ID == u.ID
	if !isOwn && !auth.CanAccessDepartment(principal, u.Department) {
		s.logger.Warn("get user denied: department scope",
			"actor_id", principal.ID,
			"actor_department", principal.Department,
			"target_user_id", id)
		return nil, internal.ErrDepartmentScope
	}

	return u.Project(auth.VisibleFields(principal.Role, isOwn)), nil
}

// ListUsers retrieves users visible to the caller. Below the broad-access
// rank the listing is confined to the caller's own department regardless of
// the requested filter.
func (s *Service) ListUsers(ctx context.Context, principal *auth.Principal, filter ListFilter) ([]map[string]interface{}, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if principal.Role.Rank() < auth.BroadAccessRole.Rank() {
		filter.Department = principal.Department
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		fields := auth.VisibleFields(principal.Role, principal.ID == u.ID)
		out = append(out, u.Project(fields))
	}
	return out, nil
}

// CreateUser registers a new account. Requires admin role or above, and the
// new account's role must rank below the actor's.
func (s *Service) CreateUser(ctx context.Context, principal *auth.Principal, dto CreateUserDTO) (*User, error) {
	if !auth.HasRole(principal, auth.RoleAdmin) {
		s.logger.Warn("create user denied: insufficient role", "actor_id", principal.ID)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkGrantableRole(principal, auth.Role(dto.Role)); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(dto.Password, bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, internal.NewInternalError("could not create user", err)
	}

	now := time.Now()
	u := &User{
		Email:        dto.Email,
		PasswordHash: hash,
		Name:         dto.Name,
		Phone:        dto.Phone,
		Position:     dto.Position,
		Role:         dto.Role,
		Department:   dto.Department,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	entry := &audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		ActorID:    principal.ID,
		NewValues:  u.Snapshot(),
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, u, entry); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", dto.Email, "actor_id", principal.ID)
		return nil, err
	}

	s.logger.Info("user created",
		"user_id", u.ID,
		"role", u.Role,
		"department", u.Department,
		"actor_id", principal.ID)

	return u, nil
}

// Deactivate disables an account. The account must hold no active
// assignments, and actors cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, principal *auth.Principal, id int64) (*User, error) {
	if err := s.guardTarget(ctx, principal, id); err != nil {
		return nil, err
	}

	count, err := s.repo.CountActiveAssignments(ctx, id)
	if err != nil {
		s.logger.Error("failed to count active assignments", "error", err, "user_id", id)
		return nil, err
	}
	if count > 0 {
		s.logger.Warn("deactivate refused: user holds assets",
			"user_id", id, "active_assignments", count, "actor_id", principal.ID)
		return nil, internal.NewConflictError(
			fmt.Sprintf("user still has %d active assignments", count),
			internal.ErrCodeActiveAssignments)
	}

	entry := &audit.Entry{
		Action:     audit.ActionDeactivate,
		EntityType: audit.EntityUser,
		EntityID:   id,
		ActorID:    principal.ID,
		CreatedAt:  time.Now(),
	}

	u, err := s.repo.SetActive(ctx, id, false, entry)
	if err != nil {
		s.logger.Error("failed to deactivate user", "error", err, "user_id", id)
		return nil, err
	}

	s.logger.Info("user deactivated", "user_id", id, "actor_id", principal.ID)
	return u, nil
}

// Activate re-enables an account.
func (s *Service) Activate(ctx context.Context, principal *auth.Principal, id int64) (*User, error) {
	if err := s.guardTarget(ctx, principal, id); err != nil {
		return nil, err
	}

	entry := &audit.Entry{
		Action:     audit.ActionActivate,
		EntityType: audit.EntityUser,
		EntityID:   id,
		ActorID:    principal.ID,
		CreatedAt:  time.Now(),
	}

	u, err := s.repo.SetActive(ctx, id, true, entry)
	if err != nil {
		s.logger.Error("failed to activate user", "error", err, "user_id", id)
		return nil, err
	}

	s.logger.Info("user activated", "user_id", id, "actor_id", principal.ID)
	return u, nil
}

// ChangeRole moves an account to a new role. The actor must outrank both the
// target's current role and the role being granted.
func (s *Service) ChangeRole(ctx context.Context, principal *auth.Principal, id int64, dto ChangeRoleDTO) (*User, error) {
	if err := s.guardTarget(ctx, principal, id); err != nil {
		return nil, err
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidRole)
	}

	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkGrantableRole(principal, auth.Role(target.Role)); err != nil {
		return nil, err
	}
	if err := s.checkGrantableRole(principal, auth.Role(dto.Role)); err != nil {
		return nil, err
	}

	entry := &audit.Entry{
		Action:      audit.ActionChangeRole,
		EntityType:  audit.EntityUser,
		EntityID:    id,
		ActorID:     principal.ID,
		Description: fmt.Sprintf("role changed from %s to %s", target.Role, dto.Role),
		CreatedAt:   time.Now(),
	}

	u, err := s.repo.UpdateRole(ctx, id, dto.Role, entry)
	if err != nil {
		s.logger.Error("failed to change role", "error", err, "user_id", id, "role", dto.Role)
		return nil, err
	}

	s.logger.Info("user role changed",
		"user_id", id,
		"old_role", target.Role,
		"new_role", dto.Role,
		"actor_id", principal.ID)

	return u, nil
}

// guardTarget enforces the shared preconditions of administrative user
// mutations: admin rank and no self-targeting. The single and bulk paths
// both go through here, so they can never drift apart.
func (s *Service) guardTarget(ctx context.Context, principal *auth.Principal, targetID int64) error {
	if !auth.HasRole(principal, auth.RoleAdmin) {
		s.logger.Warn("user mutation denied: insufficient role", "actor_id", principal.ID, "target_user_id", targetID)
		return internal.ErrInsufficientRole
	}
	if principal.ID == targetID {
		s.logger.Warn("user mutation denied: self target", "actor_id", principal.ID)
		return internal.ErrSelfTarget
	}
	return nil
}

// checkGrantableRole rejects role interactions that reach at or above the
// actor's own rank. Super admins are exempt so the hierarchy has a root.
func (s *Service) checkGrantableRole(principal *auth.Principal, role auth.Role) error {
	if principal.Role == auth.RoleSuperAdmin {
		return nil
	}
	if role.Rank() >= principal.Role.Rank() {
		return internal.NewPermissionError(
			fmt.Sprintf("role %s is not below your own rank", role),
			internal.ErrCodeInsufficientRole)
	}
	return nil
}
