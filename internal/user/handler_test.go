package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
	"github.com/fajarnugraha/identity-service/internal/user"
)

type mockUserService struct {
	createError        error
	getError           error
	listError          error
	updateProfileError error
	adminUpdateError   error
	deleteError        error
	statsError         error
	meError            error

	user  *user.User
	list  *user.UserListResponse
	stats *user.UserStats
	me    *user.MeResponse

	lastActorID    string
	lastTargetID   string
	lastListParams user.ListUsersParams
}

func (m *mockUserService) Create(dto user.CreateUserDTO) (*user.User, error) {
	if m.createError != nil {
		return nil, m.createError
	}
	return m.user, nil
}

func (m *mockUserService) Get(id string) (*user.User, error) {
	m.lastTargetID = id
	if m.getError != nil {
		return nil, m.getError
	}
	return m.user, nil
}

func (m *mockUserService) List(params user.ListUsersParams) (*user.UserListResponse, error) {
	m.lastListParams = params
	if m.listError != nil {
		return nil, m.listError
	}
	return m.list, nil
}

func (m *mockUserService) UpdateProfile(userID string, dto user.UpdateProfileDTO) (*user.User, error) {
	m.lastActorID = userID
	if m.updateProfileError != nil {
		return nil, m.updateProfileError
	}
	return m.user, nil
}

func (m *mockUserService) AdminUpdate(actorID, targetID string, dto user.AdminUpdateUserDTO) (*user.User, error) {
	m.lastActorID = actorID
	m.lastTargetID = targetID
	if m.adminUpdateError != nil {
		return nil, m.adminUpdateError
	}
	return m.user, nil
}

func (m *mockUserService) Delete(actorID, targetID string) error {
	m.lastActorID = actorID
	m.lastTargetID = targetID
	return m.deleteError
}

func (m *mockUserService) Stats() (*user.UserStats, error) {
	if m.statsError != nil {
		return nil, m.statsError
	}
	return m.stats, nil
}

func (m *mockUserService) Me(userID string) (*user.MeResponse, error) {
	m.lastActorID = userID
	if m.meError != nil {
		return nil, m.meError
	}
	return m.me, nil
}

func authedRequest(method, target string, body []byte, principal *auth.Principal) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal))
	}
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

var _ = ginkgo.Describe("UserHandler", func() {
	var (
		service   *mockUserService
		handler   *user.Handler
		recorder  *httptest.ResponseRecorder
		principal *auth.Principal
	)

	ginkgo.BeforeEach(func() {
		username := "plain_user"
		fixture := &user.User{
			ID:       "user-1",
			Email:    "user@example.com",
			Username: &username,
			IsActive: true,
		}

		service = &mockUserService{
			user: fixture,
			list: &user.UserListResponse{
				Items: []*user.UserResponse{fixture.ToResponse()},
				Total: 1,
				Limit: 20,
				Pages: 1,
			},
			stats: &user.UserStats{TotalUsers: 4, ActiveUsers: 3},
			me: &user.MeResponse{
				UserResponse: *fixture.ToResponse(),
				Roles:        []string{"member"},
				Permissions:  []string{"profile.view_own"},
			},
		}
		handler = user.NewHandler(service)
		recorder = httptest.NewRecorder()

		principal = &auth.Principal{
			ID:         "admin-1",
			Email:      "admin@example.com",
			IsActive:   true,
			IsVerified: true,
		}
	})

	ginkgo.Context("CreateUser", func() {
		ginkgo.It("should create a user and return 201", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"email":    "new@example.com",
				"password": "initial_password",
			})
			req := authedRequest("POST", "/api/v1/users", body, principal)

			handler.CreateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusCreated))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["email"]).To(gomega.Equal("user@example.com"))
		})

		ginkgo.It("should return 400 for invalid JSON", func() {
			req := authedRequest("POST", "/api/v1/users", []byte("not json"), principal)

			handler.CreateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 409 when the email is taken", func() {
			service.createError = apperrors.ErrEmailExists
			body, _ := json.Marshal(map[string]interface{}{
				"email":    "user@example.com",
				"password": "initial_password",
			})
			req := authedRequest("POST", "/api/v1/users", body, principal)

			handler.CreateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusConflict))
		})
	})

	ginkgo.Context("GetUser", func() {
		ginkgo.It("should return the requested user", func() {
			req := withURLParam(authedRequest("GET", "/api/v1/users/user-1", nil, principal), "userID", "user-1")

			handler.GetUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastTargetID).To(gomega.Equal("user-1"))
		})

		ginkgo.It("should return 404 for an unknown user", func() {
			service.getError = apperrors.ErrUserNotFound
			req := withURLParam(authedRequest("GET", "/api/v1/users/ghost", nil, principal), "userID", "ghost")

			handler.GetUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.Context("ListUsers", func() {
		ginkgo.It("should parse filters from the query string", func() {
			req := authedRequest("GET", "/api/v1/users?search=ada&is_active=true&limit=5&offset=10", nil, principal)

			handler.ListUsers(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastListParams.Search).To(gomega.Equal("ada"))
			gomega.Expect(service.lastListParams.IsActive).ToNot(gomega.BeNil())
			gomega.Expect(*service.lastListParams.IsActive).To(gomega.BeTrue())
			gomega.Expect(service.lastListParams.Limit).To(gomega.Equal(5))
			gomega.Expect(service.lastListParams.Offset).To(gomega.Equal(10))
		})

		ginkgo.It("should ignore an out-of-range limit", func() {
			req := authedRequest("GET", "/api/v1/users?limit=500", nil, principal)

			handler.ListUsers(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastListParams.Limit).To(gomega.Equal(20))
		})
	})

	ginkgo.Context("UpdateUser", func() {
		ginkgo.It("should patch the target as the authenticated actor", func() {
			body, _ := json.Marshal(map[string]interface{}{"first_name": "Ada"})
			req := withURLParam(authedRequest("PATCH", "/api/v1/users/user-1", body, principal), "userID", "user-1")

			handler.UpdateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastActorID).To(gomega.Equal("admin-1"))
			gomega.Expect(service.lastTargetID).To(gomega.Equal("user-1"))
		})

		ginkgo.It("should return 401 without a principal", func() {
			body, _ := json.Marshal(map[string]interface{}{"first_name": "Ada"})
			req := withURLParam(authedRequest("PATCH", "/api/v1/users/user-1", body, nil), "userID", "user-1")

			handler.UpdateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 403 when the actor lacks rank", func() {
			service.adminUpdateError = apperrors.NewForbiddenError("You cannot manage a user with equal or higher role priority", apperrors.ErrCodePriorityTooLow)
			body, _ := json.Marshal(map[string]interface{}{"is_active": false})
			req := withURLParam(authedRequest("PATCH", "/api/v1/users/user-1", body, principal), "userID", "user-1")

			handler.UpdateUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusForbidden))
		})
	})

	ginkgo.Context("DeleteUser", func() {
		ginkgo.It("should delete the target and confirm", func() {
			req := withURLParam(authedRequest("DELETE", "/api/v1/users/user-1", nil, principal), "userID", "user-1")

			handler.DeleteUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]string
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["message"]).To(gomega.Equal("user deleted"))
			gomega.Expect(service.lastActorID).To(gomega.Equal("admin-1"))
		})

		ginkgo.It("should return 400 when deleting yourself", func() {
			service.deleteError = apperrors.NewValidationError("You cannot delete your own account", apperrors.ErrCodeInvalidOperation)
			req := withURLParam(authedRequest("DELETE", "/api/v1/users/admin-1", nil, principal), "userID", "admin-1")

			handler.DeleteUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 401 without a principal", func() {
			req := withURLParam(authedRequest("DELETE", "/api/v1/users/user-1", nil, nil), "userID", "user-1")

			handler.DeleteUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Context("GetStats", func() {
		ginkgo.It("should return aggregate counts", func() {
			req := authedRequest("GET", "/api/v1/users/stats", nil, principal)

			handler.GetStats(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["total_users"]).To(gomega.Equal(float64(4)))
		})
	})

	ginkgo.Context("GetCurrentUser", func() {
		ginkgo.It("should return the caller's enriched profile", func() {
			req := authedRequest("GET", "/api/v1/users/me", nil, principal)

			handler.GetCurrentUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastActorID).To(gomega.Equal("admin-1"))

			var response map[string]interface{}
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(gomega.Succeed())
			gomega.Expect(response["roles"]).To(gomega.ContainElement("member"))
			gomega.Expect(response["permissions"]).To(gomega.ContainElement("profile.view_own"))
		})

		ginkgo.It("should return 401 without a principal", func() {
			req := authedRequest("GET", "/api/v1/users/me", nil, nil)

			handler.GetCurrentUser(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Context("UpdateMyProfile", func() {
		ginkgo.It("should patch the caller's own profile", func() {
			body, _ := json.Marshal(map[string]interface{}{"bio": "hello"})
			req := authedRequest("PATCH", "/api/v1/users/me", body, principal)

			handler.UpdateMyProfile(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.lastActorID).To(gomega.Equal("admin-1"))
		})

		ginkgo.It("should return 400 for invalid JSON", func() {
			req := authedRequest("PATCH", "/api/v1/users/me", []byte("{broken"), principal)

			handler.UpdateMyProfile(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})
})
