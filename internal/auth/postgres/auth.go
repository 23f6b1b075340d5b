package postgres

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
	userDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.UserRepository {
	return &Repository{db: db}
}

func (r *Repository) Create(account *auth.Account) error {
	return r.db.Create(auth.ToDataModel(account)).Error
}

func (r *Repository) GetByID(id string) (*auth.Account, error) {
	return r.getBy("id = ?", id)
}

func (r *Repository) GetByEmail(email string) (*auth.Account, error) {
	return r.getBy("email = ?", email)
}

func (r *Repository) GetByUsername(username string) (*auth.Account, error) {
	return r.getBy("username = ?", username)
}

func (r *Repository) getBy(condition string, value interface{}) (*auth.Account, error) {
	var user userDatamodel.User
	err := r.db.Where(condition, value).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return auth.FromDataModel(&user), nil
}

func (r *Repository) UpdatePassword(userID, hashedPassword string) error {
	return r.updateUser(userID, map[string]interface{}{
		"hashed_password": hashedPassword,
	})
}

func (r *Repository) UpdateLastLogin(userID string, at time.Time) error {
	return r.updateUser(userID, map[string]interface{}{
		"last_login": at,
	})
}

func (r *Repository) SetVerificationToken(userID, token string, expires time.Time) error {
	return r.updateUser(userID, map[string]interface{}{
		"verification_token":         token,
		"verification_token_expires": expires,
	})
}

func (r *Repository) MarkEmailVerified(userID string) error {
	return r.updateUser(userID, map[string]interface{}{
		"is_verified":                true,
		"verification_token":         nil,
		"verification_token_expires": nil,
	})
}

func (r *Repository) SetPasswordResetToken(userID, token string, expires time.Time) error {
	return r.updateUser(userID, map[string]interface{}{
		"password_reset_token":         token,
		"password_reset_token_expires": expires,
	})
}

func (r *Repository) ResetPassword(userID, hashedPassword string) error {
	return r.updateUser(userID, map[string]interface{}{
		"hashed_password":              hashedPassword,
		"password_reset_token":         nil,
		"password_reset_token_expires": nil,
	})
}

func (r *Repository) updateUser(userID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result := r.db.Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// GetUserWithPermissions loads the principal for the access gate: the user
// row plus active role names and the distinct permission codenames those
// roles grant. Inactive users still resolve; the activity guard rejects
// them later with its own status.
func (r *Repository) GetUserWithPermissions(userID string) (*auth.Principal, error) {
	var principal auth.Principal

	userQuery := `SELECT id, email, username, is_active, is_verified, is_superuser FROM users WHERE id = ?`

	row := r.db.Raw(userQuery, userID).Row()
	if err := row.Scan(&principal.ID, &principal.Email, &principal.Username,
		&principal.IsActive, &principal.IsVerified, &principal.IsSuperuser); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	roleQuery := `SELECT r.name
	             FROM roles r
	             JOIN user_roles ur ON r.id = ur.role_id
	             WHERE ur.user_id = ? AND r.is_active = true`

	rows, err := r.db.Raw(roleQuery, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var roleName string
		if err := rows.Scan(&roleName); err != nil {
			return nil, err
		}
		principal.Roles = append(principal.Roles, roleName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permQuery := `SELECT DISTINCT p.codename
	             FROM permissions p
	             JOIN role_permissions rp ON p.id = rp.permission_id
	             JOIN roles r ON r.id = rp.role_id
	             JOIN user_roles ur ON ur.role_id = r.id
	             WHERE ur.user_id = ? AND r.is_active = true AND p.is_active = true`

	permRows, err := r.db.Raw(permQuery, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer permRows.Close()

	for permRows.Next() {
		var codename string
		if err := permRows.Scan(&codename); err != nil {
			return nil, err
		}
		principal.Permissions = append(principal.Permissions, codename)
	}
	if err := permRows.Err(); err != nil {
		return nil, err
	}

	return &principal, nil
}
