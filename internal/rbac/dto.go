package rbac

import (
	"github.com/fajarnugraha/identity-service/internal/core/validation"
)

type CreatePermissionDTO struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Codename    string  `json:"codename" validate:"required,max=100,codename"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
	Resource    string  `json:"resource" validate:"required,max=50,slug"`
	Action      string  `json:"action" validate:"required,max=50,slug"`
}

func (d CreatePermissionDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

// UpdatePermissionDTO is a patch: nil fields stay unchanged. The codename
// is immutable once created.
type UpdatePermissionDTO struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
	Resource    *string `json:"resource,omitempty" validate:"omitempty,min=1,max=50,slug"`
	Action      *string `json:"action,omitempty" validate:"omitempty,min=1,max=50,slug"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (d UpdatePermissionDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ListPermissionsParams struct {
	Search   string
	Resource string
	Action   string
	IsActive *bool
	Limit    int
	Offset   int
}

type CreateRoleDTO struct {
	Name          string  `json:"name" validate:"required,max=50"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=255"`
	IsDefault     bool    `json:"is_default"`
	Priority      int     `json:"priority" validate:"gte=0,lte=100"`
	PermissionIDs []int64 `json:"permission_ids,omitempty"`
}

func (d CreateRoleDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

// UpdateRoleDTO is a patch: nil fields stay unchanged. A non-nil
// PermissionIDs replaces the whole permission set, empty slice included.
type UpdateRoleDTO struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=255"`
	IsDefault     *bool    `json:"is_default,omitempty"`
	IsActive      *bool    `json:"is_active,omitempty"`
	Priority      *int     `json:"priority,omitempty" validate:"omitempty,gte=0,lte=100"`
	PermissionIDs *[]int64 `json:"permission_ids,omitempty"`
}

func (d UpdateRoleDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ListRolesParams struct {
	Search    string
	IsActive  *bool
	IsDefault *bool
	IsSystem  *bool
	Limit     int
	Offset    int
}

type AssignRolesDTO struct {
	RoleIDs   []int64 `json:"role_ids"`
	Operation string  `json:"operation" validate:"required,oneof=add remove replace"`
}

func (d AssignRolesDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type BulkAssignRolesDTO struct {
	UserIDs   []string `json:"user_ids" validate:"required,min=1"`
	RoleIDs   []int64  `json:"role_ids"`
	Operation string   `json:"operation" validate:"required,oneof=add remove replace"`
}

func (d BulkAssignRolesDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type PermissionListResponse struct {
	Items  []*Permission `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Pages  int64         `json:"pages"`
}

type RoleListResponse struct {
	Items  []*Role `json:"items"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Pages  int64   `json:"pages"`
}
