package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/assignment"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/user"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository implements the user.Repository interface using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

// lockForUpdate takes a row lock on dialects that support it. SQLite, used
// in tests, serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Create inserts a new user with its audit entry in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *user.User, entry *audit.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		entry.EntityID = u.ID
		entry.ChangedFields = audit.ChangedFields(nil, entry.NewValues)
		return tx.Create(entry).Error
	})

	return translateUserError(err)
}

// GetByID retrieves a user by its ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List retrieves users matching the filter with pagination
func (r *UserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	var users []*user.User
	query := r.db.WithContext(ctx)

	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	err := query.
		Order("name ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&users).Error
	return users, err
}

// SetActive flips the account flag under a row lock. Deactivation re-checks
// the active-assignment count inside the transaction, so a concurrent assign
// cannot slip between the service check and the write.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool, entry *audit.Entry) (*user.User, error) {
	var u user.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ?", id).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrUserNotFound
			}
			return err
		}

		if !active {
			var activeCount int64
			if err := tx.Model(&assignment.Assignment{}).
				Where("user_id = ? AND status = ?", id, assignment.StatusActive).
				Count(&activeCount).Error; err != nil {
				return err
			}
			if activeCount > 0 {
				return internal.ErrActiveAssignments
			}
		}

		entry.OldValues = u.Snapshot()

		u.IsActive = active
		u.UpdatedAt = time.Now()
		if err := tx.Model(&user.User{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_active":  u.IsActive,
				"updated_at": u.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		entry.NewValues = u.Snapshot()
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		return tx.Create(entry).Error
	})

	if err != nil {
		return nil, translateUserError(err)
	}
	return &u, nil
}

// UpdateRole changes the user's role under a row lock.
func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role string, entry *audit.Entry) (*user.User, error) {
	var u user.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ?", id).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrUserNotFound
			}
			return err
		}

		entry.OldValues = u.Snapshot()

		u.Role = role
		u.UpdatedAt = time.Now()
		if err := tx.Model(&user.User{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"role":       u.Role,
				"updated_at": u.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		entry.NewValues = u.Snapshot()
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		return tx.Create(entry).Error
	})

	if err != nil {
		return nil, translateUserError(err)
	}
	return &u, nil
}

// CountActiveAssignments reports how many assets the user currently holds.
func (r *UserRepository) CountActiveAssignments(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&assignment.Assignment{}).
		Where("user_id = ? AND status = ?", userID, assignment.StatusActive).
		Count(&count).Error
	return count, err
}

func translateUserError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return internal.NewDuplicateError("email already registered", internal.ErrCodeDuplicateEmail).WithCause(err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.NewDuplicateError("email already registered", internal.ErrCodeDuplicateEmail).WithCause(err)
	}
	return err
}
