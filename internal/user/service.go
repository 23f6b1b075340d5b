package user

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
	"github.com/fajarnugraha/identity-service/internal/rbac"
)

type RepositoryAPI interface {
	Create(user *User) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	GetByUsername(username string) (*User, error)
	Update(id string, updates map[string]interface{}) error
	Delete(id string) error
	List(params ListUsersParams) ([]*User, int64, error)
	Stats() (*UserStats, error)
}

// AccessResolver is the slice of the role engine the user service needs:
// role resolution for profiles, hierarchy checks for admin mutations and
// default-role attachment on create.
type AccessResolver interface {
	EffectivePermissions(userID string) ([]string, error)
	UserRoles(userID string) ([]*rbac.Role, error)
	CanManage(actorID, targetID string) (bool, error)
	AssignDefaultRole(userID string) error
}

type Service struct {
	repo       RepositoryAPI
	access     AccessResolver
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, access AccessResolver, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		access:     access,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Create provisions an account on behalf of an administrator. New
// non-superuser accounts receive the default role; a failure there is
// logged but does not undo the create.
func (s *Service) Create(dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(dto.Email); err == nil {
		return nil, apperrors.ErrEmailExists
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		s.logger.Error("create user: email lookup failed", "error", err)
		return nil, apperrors.NewInternalError("could not create user", err)
	}

	if dto.Username != nil {
		if _, err := s.repo.GetByUsername(*dto.Username); err == nil {
			return nil, apperrors.ErrUsernameExists
		} else if !errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Error("create user: username lookup failed", "error", err)
			return nil, apperrors.NewInternalError("could not create user", err)
		}
	}

	hashed, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("create user: password hash failed", "error", err)
		return nil, apperrors.NewInternalError("could not create user", err)
	}

	now := time.Now()
	u := &User{
		ID:             uuid.New().String(),
		Email:          dto.Email,
		Username:       dto.Username,
		HashedPassword: hashed,
		FirstName:      dto.FirstName,
		LastName:       dto.LastName,
		Phone:          dto.Phone,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}
	if dto.IsVerified != nil {
		u.IsVerified = *dto.IsVerified
	}
	if dto.IsSuperuser != nil {
		u.IsSuperuser = *dto.IsSuperuser
	}

	if err := s.repo.Create(u); err != nil {
		s.logger.Error("create user: insert failed", "email", dto.Email, "error", err)
		return nil, apperrors.NewInternalError("could not create user", err)
	}

	if !u.IsSuperuser {
		if err := s.access.AssignDefaultRole(u.ID); err != nil {
			s.logger.Error("create user: default role assignment failed", "user_id", u.ID, "error", err)
		}
	}

	s.logger.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (s *Service) Get(id string) (*User, error) {
	return s.repo.GetByID(id)
}

func (s *Service) GetByEmail(email string) (*User, error) {
	return s.repo.GetByEmail(email)
}

func (s *Service) List(params ListUsersParams) (*UserListResponse, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	users, total, err := s.repo.List(params)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		return nil, err
	}

	items := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, u.ToResponse())
	}

	pages := (total + int64(params.Limit) - 1) / int64(params.Limit)
	return &UserListResponse{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
		Pages:  pages,
	}, nil
}

// UpdateProfile applies a self-service patch. A username change re-checks
// uniqueness against everyone else.
func (s *Service) UpdateProfile(userID string, dto UpdateProfileDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if dto.Username != nil {
		if current.Username == nil || *current.Username != *dto.Username {
			if existing, err := s.repo.GetByUsername(*dto.Username); err == nil && existing.ID != userID {
				return nil, apperrors.ErrUsernameExists
			} else if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				s.logger.Error("update profile: username lookup failed", "error", err)
				return nil, apperrors.NewInternalError("could not update profile", err)
			}
		}
		updates["username"] = *dto.Username
	}
	if dto.FirstName != nil {
		updates["first_name"] = *dto.FirstName
	}
	if dto.LastName != nil {
		updates["last_name"] = *dto.LastName
	}
	if dto.Phone != nil {
		updates["phone"] = *dto.Phone
	}
	if dto.AvatarURL != nil {
		updates["avatar_url"] = *dto.AvatarURL
	}
	if dto.Bio != nil {
		updates["bio"] = *dto.Bio
	}

	if len(updates) > 0 {
		if err := s.repo.Update(userID, updates); err != nil {
			s.logger.Error("update profile failed", "user_id", userID, "error", err)
			return nil, apperrors.NewInternalError("could not update profile", err)
		}
	}

	return s.repo.GetByID(userID)
}

// AdminUpdate patches another account. Non-superuser actors need strictly
// higher role priority than the target.
func (s *Service) AdminUpdate(actorID, targetID string, dto AdminUpdateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	canManage, err := s.access.CanManage(actorID, targetID)
	if err != nil {
		return nil, err
	}
	if !canManage {
		return nil, apperrors.NewForbiddenError("You cannot manage a user with equal or higher role priority", apperrors.ErrCodePriorityTooLow)
	}

	target, err := s.repo.GetByID(targetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if dto.Email != nil && *dto.Email != target.Email {
		if existing, err := s.repo.GetByEmail(*dto.Email); err == nil && existing.ID != targetID {
			return nil, apperrors.ErrEmailExists
		} else if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Error("admin update: email lookup failed", "error", err)
			return nil, apperrors.NewInternalError("could not update user", err)
		}
		updates["email"] = *dto.Email
	}
	if dto.Username != nil {
		if target.Username == nil || *target.Username != *dto.Username {
			if existing, err := s.repo.GetByUsername(*dto.Username); err == nil && existing.ID != targetID {
				return nil, apperrors.ErrUsernameExists
			} else if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				s.logger.Error("admin update: username lookup failed", "error", err)
				return nil, apperrors.NewInternalError("could not update user", err)
			}
		}
		updates["username"] = *dto.Username
	}
	if dto.FirstName != nil {
		updates["first_name"] = *dto.FirstName
	}
	if dto.LastName != nil {
		updates["last_name"] = *dto.LastName
	}
	if dto.Phone != nil {
		updates["phone"] = *dto.Phone
	}
	if dto.AvatarURL != nil {
		updates["avatar_url"] = *dto.AvatarURL
	}
	if dto.Bio != nil {
		updates["bio"] = *dto.Bio
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.IsVerified != nil {
		updates["is_verified"] = *dto.IsVerified
	}
	if dto.IsSuperuser != nil {
		updates["is_superuser"] = *dto.IsSuperuser
	}

	if len(updates) > 0 {
		if err := s.repo.Update(targetID, updates); err != nil {
			s.logger.Error("admin update failed", "user_id", targetID, "error", err)
			return nil, apperrors.NewInternalError("could not update user", err)
		}
	}

	return s.repo.GetByID(targetID)
}

// Delete removes an account and its role assignments. Deleting yourself is
// rejected, and non-superuser actors need strictly higher priority.
func (s *Service) Delete(actorID, targetID string) error {
	if actorID == targetID {
		return apperrors.NewValidationError("You cannot delete your own account", apperrors.ErrCodeInvalidOperation)
	}

	canManage, err := s.access.CanManage(actorID, targetID)
	if err != nil {
		return err
	}
	if !canManage {
		return apperrors.NewForbiddenError("You cannot manage a user with equal or higher role priority", apperrors.ErrCodePriorityTooLow)
	}

	if err := s.repo.Delete(targetID); err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return err
		}
		s.logger.Error("delete user failed", "user_id", targetID, "error", err)
		return apperrors.NewInternalError("could not delete user", err)
	}

	s.logger.Info("user deleted", "user_id", targetID, "actor_id", actorID)
	return nil
}

func (s *Service) Stats() (*UserStats, error) {
	return s.repo.Stats()
}

// Me returns the caller's profile with resolved role names and effective
// permissions.
func (s *Service) Me(userID string) (*MeResponse, error) {
	u, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.access.UserRoles(userID)
	if err != nil {
		return nil, err
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	permissions, err := s.access.EffectivePermissions(userID)
	if err != nil {
		return nil, err
	}

	return &MeResponse{
		UserResponse: *u.ToResponse(),
		Roles:        roleNames,
		Permissions:  permissions,
	}, nil
}
