package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	userDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/user"
	"github.com/fajarnugraha/identity-service/internal/user"
)

type Repository struct {
	db     *gorm.DB
	readDB *sqlx.DB
}

func NewRepository(db *gorm.DB, readDB *sqlx.DB) user.RepositoryAPI {
	return &Repository{db: db, readDB: readDB}
}

type userRow struct {
	ID          string     `db:"id"`
	Email       string     `db:"email"`
	Username    *string    `db:"username"`
	FirstName   *string    `db:"first_name"`
	LastName    *string    `db:"last_name"`
	Phone       *string    `db:"phone"`
	AvatarURL   *string    `db:"avatar_url"`
	Bio         *string    `db:"bio"`
	IsActive    bool       `db:"is_active"`
	IsVerified  bool       `db:"is_verified"`
	IsSuperuser bool       `db:"is_superuser"`
	LastLogin   *time.Time `db:"last_login"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (row userRow) toDomain() *user.User {
	return &user.User{
		ID:          row.ID,
		Email:       row.Email,
		Username:    row.Username,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Phone:       row.Phone,
		AvatarURL:   row.AvatarURL,
		Bio:         row.Bio,
		IsActive:    row.IsActive,
		IsVerified:  row.IsVerified,
		IsSuperuser: row.IsSuperuser,
		LastLogin:   row.LastLogin,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (r *Repository) Create(u *user.User) error {
	dm := user.ToDataModel(u)
	if err := r.db.Create(dm).Error; err != nil {
		return err
	}
	u.CreatedAt = dm.CreatedAt
	u.UpdatedAt = dm.UpdatedAt
	return nil
}

func (r *Repository) getBy(condition string, value interface{}) (*user.User, error) {
	var dm userDatamodel.User
	if err := r.db.Where(condition, value).First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&dm), nil
}

func (r *Repository) GetByID(id string) (*user.User, error) {
	return r.getBy("id = ?", id)
}

func (r *Repository) GetByEmail(email string) (*user.User, error) {
	return r.getBy("email = ?", email)
}

func (r *Repository) GetByUsername(username string) (*user.User, error) {
	return r.getBy("username = ?", username)
}

func (r *Repository) Update(id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&userDatamodel.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Delete removes the account together with its role assignments; roles and
// permissions themselves are untouched.
func (r *Repository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_roles WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&userDatamodel.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		return nil
	})
}

func (r *Repository) List(params user.ListUsersParams) ([]*user.User, int64, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)

	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		conditions = append(conditions, `(LOWER(email) LIKE ? OR LOWER(COALESCE(username, '')) LIKE ? OR LOWER(COALESCE(first_name, '')) LIKE ? OR LOWER(COALESCE(last_name, '')) LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if params.IsActive != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *params.IsActive)
	}
	if params.IsVerified != nil {
		conditions = append(conditions, "is_verified = ?")
		args = append(args, *params.IsVerified)
	}
	if params.IsSuperuser != nil {
		conditions = append(conditions, "is_superuser = ?")
		args = append(args, *params.IsSuperuser)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := r.readDB.Rebind("SELECT COUNT(*) FROM users" + where)
	if err := r.readDB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := r.readDB.Rebind(`SELECT id, email, username, first_name, last_name, phone, avatar_url, bio,
		is_active, is_verified, is_superuser, last_login, created_at, updated_at
		FROM users` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	listArgs := append(args, params.Limit, params.Offset)

	var rows []userRow
	if err := r.readDB.Select(&rows, listQuery, listArgs...); err != nil {
		return nil, 0, err
	}

	users := make([]*user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, total, nil
}

func (r *Repository) Stats() (*user.UserStats, error) {
	var row struct {
		Total      int64 `db:"total"`
		Active     int64 `db:"active"`
		Verified   int64 `db:"verified"`
		Superusers int64 `db:"superusers"`
	}
	query := `SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active,
		COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified,
		COALESCE(SUM(CASE WHEN is_superuser THEN 1 ELSE 0 END), 0) AS superusers
		FROM users`
	if err := r.readDB.Get(&row, query); err != nil {
		return nil, err
	}

	return &user.UserStats{
		TotalUsers:    row.Total,
		ActiveUsers:   row.Active,
		VerifiedUsers: row.Verified,
		Superusers:    row.Superusers,
	}, nil
}
