package postgres

import (
	"database/sql"
	"fmt"

	"github.com/assetops/asset-management/internal/auth"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(email string) (string, int64, error) {
	var passwordHash string
	var userID int64
	query := `SELECT id, password_hash FROM users WHERE email = ?`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, fmt.Errorf("user not found")
		}
		return "", 0, err
	}
	return passwordHash, userID, nil
}

func (r *Repository) GetPrincipal(userID int64) (*auth.Principal, error) {
	var p auth.Principal
	query := `SELECT id, email, name, role, department, is_active FROM users WHERE id = ?`

	row := r.db.Raw(query, userID).Row()
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Role, &p.Department, &p.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &p, nil
}
