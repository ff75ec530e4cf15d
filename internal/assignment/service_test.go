package assignment_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/assignment"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/core/events"
)

func TestAssignmentService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Assignment Module Suite")
}

// mockAssignmentRepository implements assignment.Repository for service tests.
type mockAssignmentRepository struct {
	assignErr error
	returnErr error
	getErr    error
	listErr   error

	lastAssigned *assignment.Assignment
	lastEntry    *audit.Entry
	lastFilter   assignment.ListFilter

	returned *assignment.Assignment
	stored   *assignment.Assignment
	assetTag string
}

func (m *mockAssignmentRepository) Assign(ctx context.Context, a *assignment.Assignment, entry *audit.Entry) (*assignment.AssignResult, error) {
	if m.assignErr != nil {
		return nil, m.assignErr
	}
	a.ID = 10
	m.lastAssigned = a
	m.lastEntry = entry
	return &assignment.AssignResult{Assignment: a, AssetTag: m.assetTag}, nil
}

func (m *mockAssignmentRepository) Return(ctx context.Context, assetID int64, returnedBy int64, dto assignment.ReturnDTO, entry *audit.Entry) (*assignment.AssignResult, error) {
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	m.lastEntry = entry
	m.returned.ReturnedBy = &returnedBy
	m.returned.ReturnCondition = dto.ReturnCondition
	return &assignment.AssignResult{Assignment: m.returned, AssetTag: m.assetTag}, nil
}

func (m *mockAssignmentRepository) GetByID(ctx context.Context, id int64) (*assignment.Assignment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored, nil
}

func (m *mockAssignmentRepository) GetActiveByAssetID(ctx context.Context, assetID int64) (*assignment.Assignment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored, nil
}

func (m *mockAssignmentRepository) List(ctx context.Context, filter assignment.ListFilter) ([]*assignment.Assignment, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []*assignment.Assignment{}, nil
}

// mockEventPublisher captures published events.
type mockEventPublisher struct {
	published  []events.Event
	publishErr error
}

func (m *mockEventPublisher) Publish(ctx context.Context, event events.Event) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	return nil
}

var _ = Describe("Assignment Service", func() {
	var (
		repo    *mockAssignmentRepository
		bus     *mockEventPublisher
		service *assignment.Service
		ctx     context.Context
		manager *auth.Principal
		regular *auth.Principal
	)

	BeforeEach(func() {
		now := time.Now()
		past := now.Add(-48 * time.Hour)
		repo = &mockAssignmentRepository{
			assetTag: "IT-LAP-0001",
			returned: &assignment.Assignment{
				ID: 10, AssetID: 7, UserID: 42,
				Status:     assignment.StatusReturned,
				AssignedAt: past,
				ReturnedAt: &now,
			},
			stored: &assignment.Assignment{
				ID: 10, AssetID: 7, UserID: 42,
				Status:     assignment.StatusActive,
				AssignedAt: past,
			},
		}
		bus = &mockEventPublisher{}
		service = assignment.NewService(repo, bus, slog.Default())
		ctx = context.Background()
		manager = &auth.Principal{ID: 2, Role: auth.RoleManager, Department: "it", IsActive: true}
		regular = &auth.Principal{ID: 3, Role: auth.RoleUser, Department: "it", IsActive: true}
	})

	Describe("Assign", func() {
		It("should create an active assignment and publish an event", func() {
			resp, err := service.Assign(ctx, manager, 7, assignment.AssignDTO{UserID: 42, Purpose: "onboarding"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(assignment.StatusActive))
			Expect(resp.Overdue).To(BeFalse())
			Expect(repo.lastAssigned.AssignedBy).To(Equal(manager.ID))
			Expect(repo.lastEntry.Action).To(Equal(audit.ActionAssign))

			Expect(bus.published).To(HaveLen(1))
			Expect(bus.published[0].EventType()).To(Equal(events.EventTypeAssetAssigned))
		})

		It("should deny regular users", func() {
			_, err := service.Assign(ctx, regular, 7, assignment.AssignDTO{UserID: 42})

			Expect(err).To(Equal(internal.ErrInsufficientRole))
			Expect(bus.published).To(BeEmpty())
		})

		It("should reject a missing user id", func() {
			_, err := service.Assign(ctx, manager, 7, assignment.AssignDTO{})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
		})

		It("should reject an expected return date in the past", func() {
			past := time.Now().Add(-24 * time.Hour)
			_, err := service.Assign(ctx, manager, 7, assignment.AssignDTO{UserID: 42, ExpectedReturnAt: &past})

			Expect(err).To(HaveOccurred())
		})

		It("should not publish when the repository refuses", func() {
			repo.assignErr = internal.ErrAlreadyAssigned

			_, err := service.Assign(ctx, manager, 7, assignment.AssignDTO{UserID: 42})

			Expect(err).To(Equal(internal.ErrAlreadyAssigned))
			Expect(bus.published).To(BeEmpty())
		})

		It("should succeed even when event publishing fails", func() {
			bus.publishErr = errors.New("bus closed")

			resp, err := service.Assign(ctx, manager, 7, assignment.AssignDTO{UserID: 42})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp).ToNot(BeNil())
		})
	})

	Describe("Return", func() {
		It("should close the assignment and publish a return event", func() {
			resp, err := service.Return(ctx, manager, 7, assignment.ReturnDTO{ReturnCondition: "good"})

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Status).To(Equal(assignment.StatusReturned))
			Expect(repo.lastEntry.Action).To(Equal(audit.ActionReturn))

			Expect(bus.published).To(HaveLen(1))
			event, ok := bus.published[0].(*events.AssetReturnedEvent)
			Expect(ok).To(BeTrue())
			Expect(event.WasOverdue).To(BeFalse())
			Expect(event.Condition).To(Equal("good"))
		})

		It("should flag an overdue return on the event", func() {
			expected := repo.returned.ReturnedAt.Add(-24 * time.Hour)
			repo.returned.ExpectedReturnAt = &expected

			_, err := service.Return(ctx, manager, 7, assignment.ReturnDTO{})

			Expect(err).ToNot(HaveOccurred())
			event := bus.published[0].(*events.AssetReturnedEvent)
			Expect(event.WasOverdue).To(BeTrue())
		})

		It("should deny regular users", func() {
			_, err := service.Return(ctx, regular, 7, assignment.ReturnDTO{})

			Expect(err).To(Equal(internal.ErrInsufficientRole))
		})

		It("should propagate a missing active assignment", func() {
			repo.returnErr = internal.ErrAssignmentNotFound

			_, err := service.Return(ctx, manager, 7, assignment.ReturnDTO{})

			Expect(err).To(Equal(internal.ErrAssignmentNotFound))
			Expect(bus.published).To(BeEmpty())
		})
	})

	Describe("GetAssignment", func() {
		It("should compute the overdue flag at read time", func() {
			expected := time.Now().Add(-24 * time.Hour)
			repo.stored.ExpectedReturnAt = &expected

			resp, err := service.GetAssignment(ctx, 10)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Overdue).To(BeTrue())
		})

		It("should not flag returned assignments as overdue", func() {
			expected := time.Now().Add(-24 * time.Hour)
			repo.stored.ExpectedReturnAt = &expected
			repo.stored.Status = assignment.StatusReturned

			resp, err := service.GetAssignment(ctx, 10)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Overdue).To(BeFalse())
		})
	})

	Describe("ListAssignments", func() {
		It("should clamp pagination bounds", func() {
			_, err := service.ListAssignments(ctx, assignment.ListFilter{Limit: 1000, Offset: -1})

			Expect(err).ToNot(HaveOccurred())
			Expect(repo.lastFilter.Limit).To(Equal(20))
			Expect(repo.lastFilter.Offset).To(Equal(0))
		})
	})
})
