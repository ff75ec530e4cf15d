package user_test

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/user"
)

func TestUserService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Module Suite")
}

// mockUserRepository implements user.Repository for service tests.
type mockUserRepository struct {
	createErr error
	getErr    error
	listErr   error
	activeErr error
	roleErr   error
	countErr  error

	users       map[int64]*user.User
	activeCount map[int64]int64
	lastEntry   *audit.Entry
	lastFilter  user.ListFilter
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:       map[int64]*user.User{},
		activeCount: map[int64]int64{},
	}
}

func (m *mockUserRepository) Create(ctx context.Context, u *user.User, entry *audit.Entry) error {
	if m.createErr != nil {
		return m.createErr
	}
	u.ID = int64(len(m.users) + 100)
	m.users[u.ID] = u
	m.lastEntry = entry
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) List(ctx context.Context, filter user.ListFilter) ([]*user.User, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*user.User
	for _, u := range m.users {
		if filter.Department != "" && u.Department != filter.Department {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepository) SetActive(ctx context.Context, id int64, active bool, entry *audit.Entry) (*user.User, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	u.IsActive = active
	m.lastEntry = entry
	return u, nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id int64, role string, entry *audit.Entry) (*user.User, error) {
	if m.roleErr != nil {
		return nil, m.roleErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	u.Role = role
	m.lastEntry = entry
	return u, nil
}

func (m *mockUserRepository) CountActiveAssignments(ctx context.Context, userID int64) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.activeCount[userID], nil
}

// mockAuditor captures summary entries.
type mockAuditor struct {
	recorded  []*audit.Entry
	recordErr error
}

func (m *mockAuditor) Record(ctx context.Context, entry *audit.Entry) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, entry)
	return nil
}

var _ = Describe("User Service", func() {
	var (
		repo    *mockUserRepository
		auditor *mockAuditor
		service *user.Service
		ctx     context.Context
		admin   *auth.Principal
		root    *auth.Principal
		manager *auth.Principal
	)

	BeforeEach(func() {
		repo = newMockUserRepository()
		auditor = &mockAuditor{}
		service = user.NewService(repo, auditor, 5, slog.Default())
		ctx = context.Background()
		admin = &auth.Principal{ID: 1, Role: auth.RoleAdmin, Department: "it", IsActive: true}
		root = &auth.Principal{ID: 2, Role: auth.RoleSuperAdmin, Department: "it", IsActive: true}
		manager = &auth.Principal{ID: 3, Role: auth.RoleManager, Department: "it", IsActive: true}

		repo.users[10] = &user.User{
			ID: 10, Email: "dev@example.com", Name: "Dev",
			Role: "user", Department: "engineering", IsActive: true,
		}
		repo.users[11] = &user.User{
			ID: 11, Email: "it.user@example.com", Name: "IT User",
			Role: "user", Department: "it", IsActive: true,
		}
	})

	Describe("GetUser", func() {
		It("should deny reads outside the caller's department", func() {
			_, err := service.GetUser(ctx, manager, 10)
			Expect(err).To(Equal(internal.ErrDepartmentScope))
		})

		It("should allow reads inside the caller's department", func() {
			record, err := service.GetUser(ctx, manager, 11)
			Expect(err).ToNot(HaveOccurred())
			Expect(record["email"]).To(Equal("it.user@example.com"))
		})

		It("should let admins cross departments", func() {
			record, err := service.GetUser(ctx, admin, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(record["name"]).To(Equal("Dev"))
		})

		It("should redact sensitive fields from low-rank callers", func() {
			viewer := &auth.Principal{ID: 11, Role: auth.RoleViewer, Department: "it", IsActive: true}
			repo.users[12] = &user.User{
				ID: 12, Email: "peer@example.com", Name: "Peer",
				Role: "user", Department: "it", IsActive: true,
			}

			record, err := service.GetUser(ctx, viewer, 12)
			Expect(err).ToNot(HaveOccurred())
			Expect(record).NotTo(HaveKey("email"))
			Expect(record).NotTo(HaveKey("phone"))
			Expect(record).To(HaveKey("name"))
		})

		It("should show a user their own full record", func() {
			self := &auth.Principal{ID: 10, Role: auth.RoleUser, Department: "engineering", IsActive: true}

			record, err := service.GetUser(ctx, self, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(record).To(HaveKey("email"))
		})
	})

	Describe("ListUsers", func() {
		It("should confine low-rank callers to their own department", func() {
			_, err := service.ListUsers(ctx, manager, user.ListFilter{Department: "engineering"})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.lastFilter.Department).To(Equal("it"))
		})

		It("should honor the requested department for admins", func() {
			_, err := service.ListUsers(ctx, admin, user.ListFilter{Department: "engineering"})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.lastFilter.Department).To(Equal("engineering"))
		})
	})

	Describe("CreateUser", func() {
		validDTO := func() user.CreateUserDTO {
			return user.CreateUserDTO{
				Email:      "new@example.com",
				Password:   "s3cret-pass",
				Name:       "New Hire",
				Role:       "user",
				Department: "it",
			}
		}

		It("should create the user with a hashed password", func() {
			u, err := service.CreateUser(ctx, admin, validDTO())

			Expect(err).ToNot(HaveOccurred())
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.PasswordHash).ToNot(BeEmpty())
			Expect(u.PasswordHash).ToNot(Equal("s3cret-pass"))
			Expect(repo.lastEntry.Action).To(Equal(audit.ActionCreate))
			Expect(repo.lastEntry.NewValues).NotTo(HaveKey("password_hash"))
		})

		It("should deny managers", func() {
			_, err := service.CreateUser(ctx, manager, validDTO())
			Expect(err).To(Equal(internal.ErrInsufficientRole))
		})

		It("should reject a short password", func() {
			dto := validDTO()
			dto.Password = "short"
			_, err := service.CreateUser(ctx, admin, dto)
			Expect(err).To(HaveOccurred())
		})

		It("should refuse granting a role at or above the actor's own", func() {
			dto := validDTO()
			dto.Role = "admin"
			_, err := service.CreateUser(ctx, admin, dto)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientRole))
		})

		It("should let super admins grant any role", func() {
			dto := validDTO()
			dto.Role = "admin"
			_, err := service.CreateUser(ctx, root, dto)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Deactivate", func() {
		It("should deactivate a user with no holdings", func() {
			u, err := service.Deactivate(ctx, admin, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(u.IsActive).To(BeFalse())
			Expect(repo.lastEntry.Action).To(Equal(audit.ActionDeactivate))
		})

		It("should refuse while the user still holds assets", func() {
			repo.activeCount[10] = 2

			_, err := service.Deactivate(ctx, admin, 10)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeActiveAssignments))
			Expect(appErr.Message).To(ContainSubstring("2 active assignments"))
		})

		It("should refuse self-deactivation", func() {
			repo.users[1] = &user.User{ID: 1, Role: "admin", Department: "it", IsActive: true}

			_, err := service.Deactivate(ctx, admin, 1)
			Expect(err).To(Equal(internal.ErrSelfTarget))
		})
	})

	Describe("ChangeRole", func() {
		It("should change the role and describe the transition", func() {
			u, err := service.ChangeRole(ctx, admin, 10, user.ChangeRoleDTO{Role: "manager"})

			Expect(err).ToNot(HaveOccurred())
			Expect(u.Role).To(Equal("manager"))
			Expect(repo.lastEntry.Description).To(ContainSubstring("from user to manager"))
		})

		It("should reject an unrecognized role", func() {
			_, err := service.ChangeRole(ctx, admin, 10, user.ChangeRoleDTO{Role: "owner"})
			Expect(err).To(HaveOccurred())
		})

		It("should refuse admins promoting to admin", func() {
			_, err := service.ChangeRole(ctx, admin, 10, user.ChangeRoleDTO{Role: "admin"})
			Expect(err).To(HaveOccurred())
		})

		It("should refuse touching a target who outranks the actor", func() {
			repo.users[20] = &user.User{ID: 20, Role: "super_admin", Department: "it", IsActive: true}

			_, err := service.ChangeRole(ctx, admin, 20, user.ChangeRoleDTO{Role: "user"})
			Expect(err).To(HaveOccurred())
		})

		It("should refuse self role changes", func() {
			_, err := service.ChangeRole(ctx, admin, admin.ID, user.ChangeRoleDTO{Role: "user"})
			Expect(err).To(Equal(internal.ErrSelfTarget))
		})
	})

	Describe("RunBulk", func() {
		It("should process every item and keep the counts consistent", func() {
			repo.activeCount[11] = 1

			result, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpDeactivate,
				UserIDs:   []int64{10, 11, 999},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.TotalRequested).To(Equal(3))
			Expect(result.Processed).To(Equal(3))
			Expect(result.SuccessfulCount).To(Equal(1))
			Expect(result.FailedCount).To(Equal(2))
			Expect(result.SuccessfulCount + result.FailedCount).To(Equal(result.Processed))
			Expect(result.BatchID).ToNot(BeEmpty())
		})

		It("should capture why each failed item failed", func() {
			repo.activeCount[11] = 1

			result, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpDeactivate,
				UserIDs:   []int64{11, 999},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Errors).To(HaveLen(2))
			Expect(result.Errors[0].ID).To(Equal(int64(11)))
			Expect(result.Errors[0].Error).To(ContainSubstring("active assignments"))
			Expect(result.Errors[1].ID).To(Equal(int64(999)))
		})

		It("should keep processing after a failed item", func() {
			result, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpDeactivate,
				UserIDs:   []int64{999, 10},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.FailedCount).To(Equal(1))
			Expect(result.SuccessfulCount).To(Equal(1))
			Expect(repo.users[10].IsActive).To(BeFalse())
		})

		It("should reject a batch above the configured ceiling", func() {
			_, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpActivate,
				UserIDs:   []int64{1, 2, 3, 4, 5, 6},
			})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeBatchTooLarge))
		})

		It("should reject an unrecognized operation", func() {
			_, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: "delete",
				UserIDs:   []int64{10},
			})
			Expect(err).To(HaveOccurred())
		})

		It("should apply role changes through the same rank checks", func() {
			result, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpChangeRole,
				UserIDs:   []int64{10},
				Data:      map[string]string{"role": "manager"},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.SuccessfulCount).To(Equal(1))
			Expect(repo.users[10].Role).To(Equal("manager"))
		})

		It("should record one summary audit entry for the batch", func() {
			result, err := service.RunBulk(ctx, admin, user.BulkOperationDTO{
				Operation: user.BulkOpDeactivate,
				UserIDs:   []int64{10, 999},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(auditor.recorded).To(HaveLen(1))

			summary := auditor.recorded[0]
			Expect(summary.Action).To(Equal(audit.ActionBulk))
			Expect(summary.EntityType).To(Equal(audit.EntityBulkBatch))
			Expect(summary.NewValues["batch_id"]).To(Equal(result.BatchID))
			Expect(summary.NewValues["successful_count"]).To(Equal(1))
			Expect(summary.NewValues["failed_count"]).To(Equal(1))
		})

		It("should deny non-admin callers", func() {
			_, err := service.RunBulk(ctx, manager, user.BulkOperationDTO{
				Operation: user.BulkOpActivate,
				UserIDs:   []int64{10},
			})
			Expect(err).To(Equal(internal.ErrInsufficientRole))
		})
	})
})
