package auth_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/assetops/asset-management/internal/auth"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Module Suite")
}

var _ = Describe("Role Hierarchy", func() {
	Describe("Rank", func() {
		It("should order the roles from viewer to super_admin", func() {
			roles := auth.AllRoles()
			for i := 1; i < len(roles); i++ {
				Expect(roles[i].Rank()).To(BeNumerically(">", roles[i-1].Rank()))
			}
		})

		It("should map unknown roles to the viewer rank", func() {
			Expect(auth.Role("intern").Rank()).To(Equal(auth.RoleViewer.Rank()))
			Expect(auth.Role("").Rank()).To(Equal(auth.RoleViewer.Rank()))
			Expect(auth.Role("ADMIN").Rank()).To(Equal(auth.RoleViewer.Rank()))
		})

		It("should recognize only the five role identifiers", func() {
			for _, role := range auth.AllRoles() {
				Expect(role.Valid()).To(BeTrue())
			}
			Expect(auth.Role("root").Valid()).To(BeFalse())
		})
	})

	Describe("HasRole", func() {
		principal := func(role auth.Role) *auth.Principal {
			return &auth.Principal{ID: 1, Role: role, Department: "it", IsActive: true}
		}

		It("should grant access at or above the required rank", func() {
			Expect(auth.HasRole(principal(auth.RoleManager), auth.RoleManager)).To(BeTrue())
			Expect(auth.HasRole(principal(auth.RoleAdmin), auth.RoleManager)).To(BeTrue())
			Expect(auth.HasRole(principal(auth.RoleSuperAdmin), auth.RoleAdmin)).To(BeTrue())
		})

		It("should deny access below the required rank", func() {
			Expect(auth.HasRole(principal(auth.RoleUser), auth.RoleManager)).To(BeFalse())
			Expect(auth.HasRole(principal(auth.RoleViewer), auth.RoleUser)).To(BeFalse())
		})

		It("should treat unknown roles as viewer", func() {
			Expect(auth.HasRole(principal(auth.Role("contractor")), auth.RoleUser)).To(BeFalse())
			Expect(auth.HasRole(principal(auth.Role("contractor")), auth.RoleViewer)).To(BeTrue())
		})

		It("should deny a nil principal", func() {
			Expect(auth.HasRole(nil, auth.RoleViewer)).To(BeFalse())
		})
	})

	Describe("HasAnyRole", func() {
		It("should match by exact membership, not rank", func() {
			p := &auth.Principal{ID: 1, Role: auth.RoleAdmin}
			Expect(auth.HasAnyRole(p, auth.RoleManager, auth.RoleAdmin)).To(BeTrue())
			Expect(auth.HasAnyRole(p, auth.RoleManager)).To(BeFalse())
		})
	})

	Describe("CanAccessDepartment", func() {
		It("should confine lower roles to their own department", func() {
			p := &auth.Principal{ID: 1, Role: auth.RoleManager, Department: "it"}
			Expect(auth.CanAccessDepartment(p, "it")).To(BeTrue())
			Expect(auth.CanAccessDepartment(p, "finance")).To(BeFalse())
		})

		It("should let admin and above cross departments", func() {
			admin := &auth.Principal{ID: 1, Role: auth.RoleAdmin, Department: "it"}
			root := &auth.Principal{ID: 2, Role: auth.RoleSuperAdmin, Department: "it"}
			Expect(auth.CanAccessDepartment(admin, "finance")).To(BeTrue())
			Expect(auth.CanAccessDepartment(root, "finance")).To(BeTrue())
		})

		It("should deny a nil principal", func() {
			Expect(auth.CanAccessDepartment(nil, "it")).To(BeFalse())
		})
	})

	Describe("VisibleFields", func() {
		It("should always include the base fields", func() {
			fields := auth.VisibleFields(auth.RoleViewer, false)
			for _, f := range []string{"id", "name", "role", "department", "is_active"} {
				Expect(fields.Has(f)).To(BeTrue(), "missing base field %s", f)
			}
		})

		It("should redact contact fields from lower roles", func() {
			fields := auth.VisibleFields(auth.RoleUser, false)
			Expect(fields.Has("email")).To(BeFalse())
			Expect(fields.Has("phone")).To(BeFalse())
			Expect(fields.Has("position")).To(BeFalse())
		})

		It("should reveal everything to managers and above", func() {
			for _, role := range []auth.Role{auth.RoleManager, auth.RoleAdmin, auth.RoleSuperAdmin} {
				fields := auth.VisibleFields(role, false)
				Expect(fields.Has("email")).To(BeTrue())
				Expect(fields.Has("created_at")).To(BeTrue())
			}
		})

		It("should reveal everything on the viewer's own record", func() {
			fields := auth.VisibleFields(auth.RoleViewer, true)
			Expect(fields.Has("email")).To(BeTrue())
			Expect(fields.Has("phone")).To(BeTrue())
		})
	})
})
