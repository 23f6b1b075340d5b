package postgres

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	rbacDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/rbac"
	"github.com/fajarnugraha/identity-service/internal/rbac"
)

// Repository persists roles, permissions and their assignments. Writes go
// through gorm so multi-step mutations share one transaction; list and
// resolution reads go through sqlx with queries rebound per driver.
type Repository struct {
	db     *gorm.DB
	readDB *sqlx.DB
}

func NewRepository(db *gorm.DB, readDB *sqlx.DB) rbac.RepositoryAPI {
	return &Repository{db: db, readDB: readDB}
}

type permissionRow struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Codename    string    `db:"codename"`
	Description *string   `db:"description"`
	Resource    string    `db:"resource"`
	Action      string    `db:"action"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row permissionRow) toDomain() rbac.Permission {
	return rbac.Permission{
		ID:          row.ID,
		Name:        row.Name,
		Codename:    row.Codename,
		Description: row.Description,
		Resource:    row.Resource,
		Action:      row.Action,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type roleRow struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	IsDefault   bool      `db:"is_default"`
	IsSystem    bool      `db:"is_system"`
	IsActive    bool      `db:"is_active"`
	Priority    int       `db:"priority"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row roleRow) toDomain() *rbac.Role {
	return &rbac.Role{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		IsDefault:   row.IsDefault,
		IsSystem:    row.IsSystem,
		IsActive:    row.IsActive,
		Priority:    row.Priority,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

const permissionColumns = `id, name, codename, description, resource, action, is_active, created_at, updated_at`

const roleColumns = `id, name, description, is_default, is_system, is_active, priority, created_at, updated_at`

func (r *Repository) CreatePermission(p *rbac.Permission) error {
	dm := rbac.PermissionToDataModel(p)
	if err := r.db.Create(dm).Error; err != nil {
		return err
	}
	p.ID = dm.ID
	p.CreatedAt = dm.CreatedAt
	p.UpdatedAt = dm.UpdatedAt
	return nil
}

func (r *Repository) GetPermission(id int64) (*rbac.Permission, error) {
	var dm rbacDatamodel.Permission
	if err := r.db.Where("id = ?", id).First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPermissionNotFound
		}
		return nil, err
	}
	return rbac.PermissionFromDataModel(&dm), nil
}

// GetPermissionByCodename returns nil without error when no permission
// carries the codename, so callers can probe for duplicates.
func (r *Repository) GetPermissionByCodename(codename string) (*rbac.Permission, error) {
	var dm rbacDatamodel.Permission
	if err := r.db.Where("codename = ?", codename).First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rbac.PermissionFromDataModel(&dm), nil
}

func (r *Repository) GetPermissionsByIDs(ids []int64) ([]*rbac.Permission, error) {
	if len(ids) == 0 {
		return []*rbac.Permission{}, nil
	}
	var dms []*rbacDatamodel.Permission
	if err := r.db.Where("id IN ?", ids).Find(&dms).Error; err != nil {
		return nil, err
	}
	perms := make([]*rbac.Permission, 0, len(dms))
	for _, dm := range dms {
		perms = append(perms, rbac.PermissionFromDataModel(dm))
	}
	return perms, nil
}

func (r *Repository) UpdatePermission(id int64, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&rbacDatamodel.Permission{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrPermissionNotFound
	}
	return nil
}

func (r *Repository) DeletePermission(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&rbacDatamodel.Permission{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrPermissionNotFound
		}
		return nil
	})
}

func (r *Repository) ListPermissions(params rbac.ListPermissionsParams) ([]*rbac.Permission, int64, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)

	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(codename) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if params.Resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, params.Resource)
	}
	if params.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, params.Action)
	}
	if params.IsActive != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *params.IsActive)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := r.readDB.Rebind("SELECT COUNT(*) FROM permissions" + where)
	if err := r.readDB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := r.readDB.Rebind("SELECT " + permissionColumns + " FROM permissions" + where + " ORDER BY resource, action LIMIT ? OFFSET ?")
	listArgs := append(args, params.Limit, params.Offset)

	var rows []permissionRow
	if err := r.readDB.Select(&rows, listQuery, listArgs...); err != nil {
		return nil, 0, err
	}

	perms := make([]*rbac.Permission, 0, len(rows))
	for _, row := range rows {
		p := row.toDomain()
		perms = append(perms, &p)
	}
	return perms, total, nil
}

func (r *Repository) ListActivePermissions() ([]*rbac.Permission, error) {
	query := r.readDB.Rebind("SELECT " + permissionColumns + " FROM permissions WHERE is_active = ? ORDER BY resource, action")

	var rows []permissionRow
	if err := r.readDB.Select(&rows, query, true); err != nil {
		return nil, err
	}

	perms := make([]*rbac.Permission, 0, len(rows))
	for _, row := range rows {
		p := row.toDomain()
		perms = append(perms, &p)
	}
	return perms, nil
}

func (r *Repository) CreateRole(role *rbac.Role, permissionIDs []int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		dm := rbac.RoleToDataModel(role)
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		role.ID = dm.ID
		role.CreatedAt = dm.CreatedAt
		role.UpdatedAt = dm.UpdatedAt

		for _, pid := range permissionIDs {
			link := rbacDatamodel.RolePermission{RoleID: dm.ID, PermissionID: pid}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetRole(id int64) (*rbac.Role, error) {
	var dm rbacDatamodel.Role
	if err := r.db.Where("id = ?", id).First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRoleNotFound
		}
		return nil, err
	}

	role := rbac.RoleFromDataModel(&dm)

	permQuery := r.readDB.Rebind(`SELECT p.id, p.name, p.codename, p.description, p.resource, p.action, p.is_active, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON p.id = rp.permission_id
		WHERE rp.role_id = ?
		ORDER BY p.resource, p.action`)

	var rows []permissionRow
	if err := r.readDB.Select(&rows, permQuery, id); err != nil {
		return nil, err
	}
	role.Permissions = make([]rbac.Permission, 0, len(rows))
	for _, row := range rows {
		role.Permissions = append(role.Permissions, row.toDomain())
	}

	countQuery := r.readDB.Rebind("SELECT COUNT(*) FROM user_roles WHERE role_id = ?")
	if err := r.readDB.Get(&role.UserCount, countQuery, id); err != nil {
		return nil, err
	}

	return role, nil
}

// GetRoleByName returns nil without error on a miss, for duplicate probes.
func (r *Repository) GetRoleByName(name string) (*rbac.Role, error) {
	var dm rbacDatamodel.Role
	if err := r.db.Where("name = ?", name).First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rbac.RoleFromDataModel(&dm), nil
}

func (r *Repository) GetRolesByIDs(ids []int64) ([]*rbac.Role, error) {
	if len(ids) == 0 {
		return []*rbac.Role{}, nil
	}
	var dms []*rbacDatamodel.Role
	if err := r.db.Where("id IN ?", ids).Find(&dms).Error; err != nil {
		return nil, err
	}
	return rbac.RolesFromDataModel(dms), nil
}

func (r *Repository) UpdateRole(id int64, updates map[string]interface{}, permissionIDs *[]int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			updates["updated_at"] = time.Now()
			result := tx.Model(&rbacDatamodel.Role{}).Where("id = ?", id).Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return apperrors.ErrRoleNotFound
			}
		}

		if permissionIDs != nil {
			if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
				return err
			}
			for _, pid := range *permissionIDs {
				link := rbacDatamodel.RolePermission{RoleID: id, PermissionID: pid}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *Repository) DeleteRole(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&rbacDatamodel.Role{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrRoleNotFound
		}
		return nil
	})
}

func (r *Repository) ListRoles(params rbac.ListRolesParams) ([]*rbac.Role, int64, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)

	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if params.IsActive != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *params.IsActive)
	}
	if params.IsDefault != nil {
		conditions = append(conditions, "is_default = ?")
		args = append(args, *params.IsDefault)
	}
	if params.IsSystem != nil {
		conditions = append(conditions, "is_system = ?")
		args = append(args, *params.IsSystem)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := r.readDB.Rebind("SELECT COUNT(*) FROM roles" + where)
	if err := r.readDB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := r.readDB.Rebind("SELECT " + roleColumns + " FROM roles" + where + " ORDER BY priority DESC, name ASC LIMIT ? OFFSET ?")
	listArgs := append(args, params.Limit, params.Offset)

	var rows []roleRow
	if err := r.readDB.Select(&rows, listQuery, listArgs...); err != nil {
		return nil, 0, err
	}

	roles := make([]*rbac.Role, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.toDomain())
		ids = append(ids, row.ID)
	}

	if len(ids) > 0 {
		counts, err := r.userCountsByRole(ids)
		if err != nil {
			return nil, 0, err
		}
		for _, role := range roles {
			role.UserCount = counts[role.ID]
		}
	}

	return roles, total, nil
}

// userCountsByRole resolves assignment counts for a page of roles with a
// single grouped query instead of one count per role.
func (r *Repository) userCountsByRole(roleIDs []int64) (map[int64]int64, error) {
	query, args, err := sqlx.In("SELECT role_id, COUNT(*) AS user_count FROM user_roles WHERE role_id IN (?) GROUP BY role_id", roleIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		RoleID    int64 `db:"role_id"`
		UserCount int64 `db:"user_count"`
	}
	if err := r.readDB.Select(&rows, r.readDB.Rebind(query), args...); err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.RoleID] = row.UserCount
	}
	return counts, nil
}

// DefaultRole returns the first active role flagged as default, nil when
// none is configured.
func (r *Repository) DefaultRole() (*rbac.Role, error) {
	var dm rbacDatamodel.Role
	err := r.db.Where("is_default = ? AND is_active = ?", true, true).Order("id").First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rbac.RoleFromDataModel(&dm), nil
}

func (r *Repository) UserRoles(userID string) ([]*rbac.Role, error) {
	query := r.readDB.Rebind(`SELECT r.id, r.name, r.description, r.is_default, r.is_system, r.is_active, r.priority, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.priority DESC, r.name ASC`)

	var rows []roleRow
	if err := r.readDB.Select(&rows, query, userID); err != nil {
		return nil, err
	}

	roles := make([]*rbac.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.toDomain())
	}
	return roles, nil
}

// ActiveRolesWithPermissions loads the user's active roles together with
// every attached permission, for granted-by reporting.
func (r *Repository) ActiveRolesWithPermissions(userID string) ([]*rbac.Role, error) {
	roleQuery := r.readDB.Rebind(`SELECT r.id, r.name, r.description, r.is_default, r.is_system, r.is_active, r.priority, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.is_active = ?
		ORDER BY r.priority DESC, r.name ASC`)

	var roleRows []roleRow
	if err := r.readDB.Select(&roleRows, roleQuery, userID, true); err != nil {
		return nil, err
	}
	if len(roleRows) == 0 {
		return []*rbac.Role{}, nil
	}

	roles := make([]*rbac.Role, 0, len(roleRows))
	byID := make(map[int64]*rbac.Role, len(roleRows))
	ids := make([]int64, 0, len(roleRows))
	for _, row := range roleRows {
		role := row.toDomain()
		role.Permissions = make([]rbac.Permission, 0)
		roles = append(roles, role)
		byID[role.ID] = role
		ids = append(ids, role.ID)
	}

	permQuery, args, err := sqlx.In(`SELECT rp.role_id, p.id, p.name, p.codename, p.description, p.resource, p.action, p.is_active, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON p.id = rp.permission_id
		WHERE rp.role_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var permRows []struct {
		RoleID int64 `db:"role_id"`
		permissionRow
	}
	if err := r.readDB.Select(&permRows, r.readDB.Rebind(permQuery), args...); err != nil {
		return nil, err
	}

	for _, row := range permRows {
		if role, ok := byID[row.RoleID]; ok {
			role.Permissions = append(role.Permissions, row.toDomain())
		}
	}

	return roles, nil
}

func (r *Repository) AssignRoles(userID string, roleIDs []int64, operation string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		switch operation {
		case rbac.AssignOpAdd:
			return addRoles(tx, userID, roleIDs)
		case rbac.AssignOpRemove:
			if len(roleIDs) == 0 {
				return nil
			}
			return tx.Where("user_id = ? AND role_id IN ?", userID, roleIDs).Delete(&rbacDatamodel.UserRole{}).Error
		case rbac.AssignOpReplace:
			if err := tx.Where("user_id = ?", userID).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
				return err
			}
			return addRoles(tx, userID, roleIDs)
		default:
			return apperrors.NewValidationError("Unknown assignment operation", apperrors.ErrCodeInvalidOperation)
		}
	})
}

// addRoles skips assignments that already exist, so adding twice is a
// no-op rather than a constraint violation.
func addRoles(tx *gorm.DB, userID string, roleIDs []int64) error {
	for _, roleID := range roleIDs {
		var count int64
		if err := tx.Model(&rbacDatamodel.UserRole{}).
			Where("user_id = ? AND role_id = ?", userID, roleID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		link := rbacDatamodel.UserRole{UserID: userID, RoleID: roleID}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) UserFlags(userID string) (bool, bool, error) {
	var row struct {
		IsActive    bool `db:"is_active"`
		IsSuperuser bool `db:"is_superuser"`
	}
	query := r.readDB.Rebind("SELECT is_active, is_superuser FROM users WHERE id = ?")
	if err := r.readDB.Get(&row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, apperrors.ErrUserNotFound
		}
		return false, false, err
	}
	return row.IsActive, row.IsSuperuser, nil
}

func (r *Repository) PermissionCodenamesForUser(userID string) ([]string, error) {
	query := r.readDB.Rebind(`SELECT DISTINCT p.codename
		FROM permissions p
		JOIN role_permissions rp ON p.id = rp.permission_id
		JOIN roles r ON r.id = rp.role_id
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? AND r.is_active = ? AND p.is_active = ?
		ORDER BY p.codename`)

	codenames := make([]string, 0)
	if err := r.readDB.Select(&codenames, query, userID, true, true); err != nil {
		return nil, err
	}
	return codenames, nil
}

func (r *Repository) HighestPriority(userID string) (int, error) {
	query := r.readDB.Rebind(`SELECT COALESCE(MAX(r.priority), 0)
		FROM roles r
		JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.is_active = ?`)

	var priority int
	if err := r.readDB.Get(&priority, query, userID, true); err != nil {
		return 0, err
	}
	return priority, nil
}

func (r *Repository) Stats() (*rbac.Stats, error) {
	var roleStats struct {
		Total  int64 `db:"total"`
		Active int64 `db:"active"`
		System int64 `db:"system"`
	}
	roleQuery := `SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active,
		COALESCE(SUM(CASE WHEN is_system THEN 1 ELSE 0 END), 0) AS system
		FROM roles`
	if err := r.readDB.Get(&roleStats, roleQuery); err != nil {
		return nil, err
	}

	var permStats struct {
		Total  int64 `db:"total"`
		Active int64 `db:"active"`
	}
	permQuery := `SELECT COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active
		FROM permissions`
	if err := r.readDB.Get(&permStats, permQuery); err != nil {
		return nil, err
	}

	return &rbac.Stats{
		TotalRoles:        roleStats.Total,
		ActiveRoles:       roleStats.Active,
		SystemRoles:       roleStats.System,
		TotalPermissions:  permStats.Total,
		ActivePermissions: permStats.Active,
	}, nil
}
