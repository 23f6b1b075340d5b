package main_test

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OpenAPI Document", func() {
	var doc *openapi3.T

	BeforeEach(func() {
		loader := openapi3.NewLoader()
		var err error
		doc, err = loader.LoadFromFile("api/openapi3.yml")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Validate(loader.Context)).To(Succeed())
	})

	It("describes the authentication surface", func() {
		for _, path := range []string{
			"/auth/register",
			"/auth/login",
			"/auth/refresh",
			"/auth/verify-email",
			"/auth/resend-verification",
			"/auth/forgot-password",
			"/auth/reset-password",
			"/auth/change-password",
			"/auth/me",
		} {
			item := doc.Paths.Find(path)
			Expect(item).NotTo(BeNil(), "missing path %s", path)
		}
	})

	It("describes the admin surface", func() {
		operations := []struct {
			path   string
			method string
		}{
			{"/users", http.MethodGet},
			{"/users/stats", http.MethodGet},
			{"/users/{userID}", http.MethodPatch},
			{"/users/{userID}/roles", http.MethodPost},
			{"/users/{userID}/permissions/{codename}/check", http.MethodGet},
			{"/roles", http.MethodPost},
			{"/roles/bulk-assign", http.MethodPost},
			{"/permissions", http.MethodPost},
		}
		for _, op := range operations {
			item := doc.Paths.Find(op.path)
			Expect(item).NotTo(BeNil(), "missing path %s", op.path)
			Expect(item.GetOperation(op.method)).NotTo(BeNil(), "missing %s %s", op.method, op.path)
		}
	})

	It("requires bearer auth on protected operations", func() {
		op := doc.Paths.Find("/users").Get
		Expect(op).NotTo(BeNil())
		Expect(op.Security).NotTo(BeNil())

		public := doc.Paths.Find("/auth/login").Post
		Expect(public).NotTo(BeNil())
		Expect(public.Security).To(BeNil())
	})
})
