package rbac

import (
	"time"

	rbacDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/rbac"
)

// Assignment operations accepted by AssignRoles and BulkAssignRoles.
const (
	AssignOpAdd     = "add"
	AssignOpRemove  = "remove"
	AssignOpReplace = "replace"
)

// SuperuserGrant is reported as the granting role when a superuser passes a
// permission check without touching the role graph.
const SuperuserGrant = "superuser"

type ServiceAPI interface {
	CreatePermission(dto CreatePermissionDTO) (*Permission, error)
	GetPermission(id int64) (*Permission, error)
	UpdatePermission(id int64, dto UpdatePermissionDTO) (*Permission, error)
	DeletePermission(id int64) error
	ListPermissions(params ListPermissionsParams) (*PermissionListResponse, error)

	CreateRole(dto CreateRoleDTO) (*Role, error)
	GetRole(id int64) (*Role, error)
	UpdateRole(id int64, dto UpdateRoleDTO) (*Role, error)
	DeleteRole(id int64) error
	ListRoles(params ListRolesParams) (*RoleListResponse, error)
	Stats() (*Stats, error)

	AssignRoles(userID string, dto AssignRolesDTO) ([]*Role, error)
	BulkAssignRoles(dto BulkAssignRolesDTO) (*BulkAssignResult, error)
	UserRoles(userID string) ([]*Role, error)

	EffectivePermissions(userID string) ([]string, error)
	CheckPermission(userID, codename string) (*PermissionCheck, error)
	HighestPriority(userID string) (int, error)
	CanManage(actorID, targetID string) (bool, error)
}

type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Codename    string    `json:"codename"`
	Description *string   `json:"description,omitempty"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	IsDefault   bool         `json:"is_default"`
	IsSystem    bool         `json:"is_system"`
	IsActive    bool         `json:"is_active"`
	Priority    int          `json:"priority"`
	Permissions []Permission `json:"permissions,omitempty"`
	UserCount   int64        `json:"user_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasPermission reports whether the role grants the codename through an
// active permission.
func (r *Role) HasPermission(codename string) bool {
	for _, p := range r.Permissions {
		if p.IsActive && p.Codename == codename {
			return true
		}
	}
	return false
}

// PermissionCheck is the outcome of a single permission question.
type PermissionCheck struct {
	UserID         string   `json:"user_id"`
	Codename       string   `json:"codename"`
	HasPermission  bool     `json:"has_permission"`
	GrantedByRoles []string `json:"granted_by_roles"`
}

type BulkAssignFailure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// BulkAssignResult collects per-user outcomes; one failure never aborts the
// rest of the batch.
type BulkAssignResult struct {
	Success []string            `json:"success"`
	Failed  []BulkAssignFailure `json:"failed"`
}

type Stats struct {
	TotalRoles        int64 `json:"total_roles"`
	ActiveRoles       int64 `json:"active_roles"`
	SystemRoles       int64 `json:"system_roles"`
	TotalPermissions  int64 `json:"total_permissions"`
	ActivePermissions int64 `json:"active_permissions"`
}

func PermissionFromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:          p.ID,
		Name:        p.Name,
		Codename:    p.Codename,
		Description: p.Description,
		Resource:    p.Resource,
		Action:      p.Action,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func PermissionToDataModel(p *Permission) *rbacDatamodel.Permission {
	return &rbacDatamodel.Permission{
		ID:          p.ID,
		Name:        p.Name,
		Codename:    p.Codename,
		Description: p.Description,
		Resource:    p.Resource,
		Action:      p.Action,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func PermissionsFromDataModel(perms []*rbacDatamodel.Permission) []Permission {
	result := make([]Permission, len(perms))
	for i, p := range perms {
		result[i] = *PermissionFromDataModel(p)
	}
	return result
}

func RoleFromDataModel(r *rbacDatamodel.Role) *Role {
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsDefault:   r.IsDefault,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func RoleToDataModel(r *Role) *rbacDatamodel.Role {
	return &rbacDatamodel.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsDefault:   r.IsDefault,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func RolesFromDataModel(roles []*rbacDatamodel.Role) []*Role {
	result := make([]*Role, len(roles))
	for i, r := range roles {
		result[i] = RoleFromDataModel(r)
	}
	return result
}
