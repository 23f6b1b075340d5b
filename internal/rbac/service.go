package rbac

import (
	"context"
	"log/slog"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/core/events"
)

type RepositoryAPI interface {
	CreatePermission(p *Permission) error
	GetPermission(id int64) (*Permission, error)
	GetPermissionByCodename(codename string) (*Permission, error)
	GetPermissionsByIDs(ids []int64) ([]*Permission, error)
	UpdatePermission(id int64, updates map[string]interface{}) error
	DeletePermission(id int64) error
	ListPermissions(params ListPermissionsParams) ([]*Permission, int64, error)
	ListActivePermissions() ([]*Permission, error)

	CreateRole(role *Role, permissionIDs []int64) error
	GetRole(id int64) (*Role, error)
	GetRoleByName(name string) (*Role, error)
	GetRolesByIDs(ids []int64) ([]*Role, error)
	UpdateRole(id int64, updates map[string]interface{}, permissionIDs *[]int64) error
	DeleteRole(id int64) error
	ListRoles(params ListRolesParams) ([]*Role, int64, error)
	DefaultRole() (*Role, error)

	UserRoles(userID string) ([]*Role, error)
	ActiveRolesWithPermissions(userID string) ([]*Role, error)
	AssignRoles(userID string, roleIDs []int64, operation string) error
	UserFlags(userID string) (isActive, isSuperuser bool, err error)
	PermissionCodenamesForUser(userID string) ([]string, error)
	HighestPriority(userID string) (int, error)
	Stats() (*Stats, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo     RepositoryAPI
	eventBus EventPublisher
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, eventBus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// EffectivePermissions resolves the distinct permission codenames a user
// holds. Superusers short-circuit to the full active catalog before the
// role graph is consulted.
func (s *Service) EffectivePermissions(userID string) ([]string, error) {
	_, isSuperuser, err := s.repo.UserFlags(userID)
	if err != nil {
		return nil, err
	}

	if isSuperuser {
		perms, err := s.repo.ListActivePermissions()
		if err != nil {
			s.logger.Error("effective permissions: catalog load failed", "user_id", userID, "error", err)
			return nil, err
		}
		codenames := make([]string, 0, len(perms))
		for _, p := range perms {
			codenames = append(codenames, p.Codename)
		}
		return codenames, nil
	}

	return s.repo.PermissionCodenamesForUser(userID)
}

// CheckPermission answers a single permission question, reporting which
// active roles grant it. A superuser is granted by "superuser" without the
// graph walk.
func (s *Service) CheckPermission(userID, codename string) (*PermissionCheck, error) {
	_, isSuperuser, err := s.repo.UserFlags(userID)
	if err != nil {
		return nil, err
	}

	if isSuperuser {
		return &PermissionCheck{
			UserID:         userID,
			Codename:       codename,
			HasPermission:  true,
			GrantedByRoles: []string{SuperuserGrant},
		}, nil
	}

	roles, err := s.repo.ActiveRolesWithPermissions(userID)
	if err != nil {
		return nil, err
	}

	grantedBy := make([]string, 0)
	for _, role := range roles {
		if role.HasPermission(codename) {
			grantedBy = append(grantedBy, role.Name)
		}
	}

	return &PermissionCheck{
		UserID:         userID,
		Codename:       codename,
		HasPermission:  len(grantedBy) > 0,
		GrantedByRoles: grantedBy,
	}, nil
}

// HighestPriority returns the maximum priority over the user's active
// roles, zero when none are assigned.
func (s *Service) HighestPriority(userID string) (int, error) {
	if _, _, err := s.repo.UserFlags(userID); err != nil {
		return 0, err
	}
	return s.repo.HighestPriority(userID)
}

// CanManage reports whether the actor outranks the target. Superusers
// manage everyone; otherwise the actor needs strictly greater priority.
func (s *Service) CanManage(actorID, targetID string) (bool, error) {
	_, actorSuperuser, err := s.repo.UserFlags(actorID)
	if err != nil {
		return false, err
	}

	if _, _, err := s.repo.UserFlags(targetID); err != nil {
		return false, err
	}

	if actorSuperuser {
		return true, nil
	}

	actorPriority, err := s.repo.HighestPriority(actorID)
	if err != nil {
		return false, err
	}
	targetPriority, err := s.repo.HighestPriority(targetID)
	if err != nil {
		return false, err
	}

	return actorPriority > targetPriority, nil
}

func (s *Service) CreatePermission(dto CreatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetPermissionByCodename(dto.Codename); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.NewValidationError("Permission with this codename already exists", apperrors.ErrCodePermissionExists)
	}

	permission := &Permission{
		Name:        dto.Name,
		Codename:    dto.Codename,
		Description: dto.Description,
		Resource:    dto.Resource,
		Action:      dto.Action,
		IsActive:    true,
	}

	if err := s.repo.CreatePermission(permission); err != nil {
		s.logger.Error("create permission failed", "codename", dto.Codename, "error", err)
		return nil, apperrors.NewInternalError("could not create permission", err)
	}

	return permission, nil
}

func (s *Service) GetPermission(id int64) (*Permission, error) {
	return s.repo.GetPermission(id)
}

func (s *Service) UpdatePermission(id int64, dto UpdatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPermission(id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Resource != nil {
		updates["resource"] = *dto.Resource
	}
	if dto.Action != nil {
		updates["action"] = *dto.Action
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.UpdatePermission(id, updates); err != nil {
			s.logger.Error("update permission failed", "permission_id", id, "error", err)
			return nil, apperrors.NewInternalError("could not update permission", err)
		}
	}

	return s.repo.GetPermission(id)
}

func (s *Service) DeletePermission(id int64) error {
	if _, err := s.repo.GetPermission(id); err != nil {
		return err
	}

	if err := s.repo.DeletePermission(id); err != nil {
		s.logger.Error("delete permission failed", "permission_id", id, "error", err)
		return apperrors.NewInternalError("could not delete permission", err)
	}
	return nil
}

func (s *Service) ListPermissions(params ListPermissionsParams) (*PermissionListResponse, error) {
	params.Limit, params.Offset = normalizePage(params.Limit, params.Offset)

	items, total, err := s.repo.ListPermissions(params)
	if err != nil {
		s.logger.Error("list permissions failed", "error", err)
		return nil, err
	}

	return &PermissionListResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
		Pages:  pages(total, params.Limit),
	}, nil
}

func (s *Service) CreateRole(dto CreateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetRoleByName(dto.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.NewValidationError("Role with this name already exists", apperrors.ErrCodeRoleExists)
	}

	permissionIDs := uniqueIDs(dto.PermissionIDs)
	if err := s.ensurePermissionsExist(permissionIDs); err != nil {
		return nil, err
	}

	role := &Role{
		Name:        dto.Name,
		Description: dto.Description,
		IsDefault:   dto.IsDefault,
		IsSystem:    false,
		IsActive:    true,
		Priority:    dto.Priority,
	}

	if err := s.repo.CreateRole(role, permissionIDs); err != nil {
		s.logger.Error("create role failed", "name", dto.Name, "error", err)
		return nil, apperrors.NewInternalError("could not create role", err)
	}

	return s.repo.GetRole(role.ID)
}

func (s *Service) GetRole(id int64) (*Role, error) {
	return s.repo.GetRole(id)
}

func (s *Service) UpdateRole(id int64, dto UpdateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role, err := s.repo.GetRole(id)
	if err != nil {
		return nil, err
	}

	if role.IsSystem {
		return nil, apperrors.NewValidationError("System roles cannot be modified", apperrors.ErrCodeSystemRoleImmutable)
	}

	if dto.Name != nil && *dto.Name != role.Name {
		if existing, err := s.repo.GetRoleByName(*dto.Name); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, apperrors.NewValidationError("Role with this name already exists", apperrors.ErrCodeRoleExists)
		}
	}

	updates := make(map[string]interface{})
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.IsDefault != nil {
		updates["is_default"] = *dto.IsDefault
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.Priority != nil {
		updates["priority"] = *dto.Priority
	}

	var permissionIDs *[]int64
	if dto.PermissionIDs != nil {
		ids := uniqueIDs(*dto.PermissionIDs)
		if err := s.ensurePermissionsExist(ids); err != nil {
			return nil, err
		}
		permissionIDs = &ids
	}

	if len(updates) > 0 || permissionIDs != nil {
		if err := s.repo.UpdateRole(id, updates, permissionIDs); err != nil {
			s.logger.Error("update role failed", "role_id", id, "error", err)
			return nil, apperrors.NewInternalError("could not update role", err)
		}
	}

	return s.repo.GetRole(id)
}

func (s *Service) DeleteRole(id int64) error {
	role, err := s.repo.GetRole(id)
	if err != nil {
		return err
	}

	if role.IsSystem {
		return apperrors.NewValidationError("System roles cannot be deleted", apperrors.ErrCodeSystemRoleImmutable)
	}

	if err := s.repo.DeleteRole(id); err != nil {
		s.logger.Error("delete role failed", "role_id", id, "error", err)
		return apperrors.NewInternalError("could not delete role", err)
	}
	return nil
}

func (s *Service) ListRoles(params ListRolesParams) (*RoleListResponse, error) {
	params.Limit, params.Offset = normalizePage(params.Limit, params.Offset)

	items, total, err := s.repo.ListRoles(params)
	if err != nil {
		s.logger.Error("list roles failed", "error", err)
		return nil, err
	}

	return &RoleListResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
		Pages:  pages(total, params.Limit),
	}, nil
}

func (s *Service) Stats() (*Stats, error) {
	return s.repo.Stats()
}

// AssignRoles applies one add, remove or replace operation for a user in a
// single transaction and returns the resulting role set.
func (s *Service) AssignRoles(userID string, dto AssignRolesDTO) ([]*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, _, err := s.repo.UserFlags(userID); err != nil {
		return nil, err
	}

	roleIDs := uniqueIDs(dto.RoleIDs)
	if len(roleIDs) > 0 {
		roles, err := s.repo.GetRolesByIDs(roleIDs)
		if err != nil {
			return nil, err
		}
		if len(roles) != len(roleIDs) {
			return nil, apperrors.ErrRoleNotFound
		}
	}

	if err := s.repo.AssignRoles(userID, roleIDs, dto.Operation); err != nil {
		s.logger.Error("assign roles failed", "user_id", userID, "operation", dto.Operation, "error", err)
		return nil, apperrors.NewInternalError("could not update role assignments", err)
	}

	s.eventBus.Publish(context.Background(), events.NewUserRolesChangedEvent(userID, dto.Operation, roleIDs))

	return s.repo.UserRoles(userID)
}

// BulkAssignRoles applies the same operation to many users, collecting
// per-user outcomes. A failing user never aborts the batch.
func (s *Service) BulkAssignRoles(dto BulkAssignRolesDTO) (*BulkAssignResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	result := &BulkAssignResult{
		Success: make([]string, 0, len(dto.UserIDs)),
		Failed:  make([]BulkAssignFailure, 0),
	}

	for _, userID := range dto.UserIDs {
		_, err := s.AssignRoles(userID, AssignRolesDTO{RoleIDs: dto.RoleIDs, Operation: dto.Operation})
		if err != nil {
			result.Failed = append(result.Failed, BulkAssignFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		result.Success = append(result.Success, userID)
	}

	return result, nil
}

func (s *Service) UserRoles(userID string) ([]*Role, error) {
	if _, _, err := s.repo.UserFlags(userID); err != nil {
		return nil, err
	}
	return s.repo.UserRoles(userID)
}

// DefaultRole returns the role new registrations receive, nil when none is
// configured. When several roles are flagged default the first active one
// wins.
func (s *Service) DefaultRole() (*Role, error) {
	return s.repo.DefaultRole()
}

// AssignDefaultRole attaches the configured default role to a user. Having
// no default role configured is not an error.
func (s *Service) AssignDefaultRole(userID string) error {
	role, err := s.repo.DefaultRole()
	if err != nil {
		return err
	}
	if role == nil {
		return nil
	}
	return s.repo.AssignRoles(userID, []int64{role.ID}, AssignOpAdd)
}

func (s *Service) ensurePermissionsExist(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	perms, err := s.repo.GetPermissionsByIDs(ids)
	if err != nil {
		return err
	}
	if len(perms) != len(ids) {
		return apperrors.ErrPermissionNotFound
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
