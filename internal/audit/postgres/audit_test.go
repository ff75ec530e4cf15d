package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/assetops/asset-management/internal/audit"
	auditPostgres "github.com/assetops/asset-management/internal/audit/postgres"
)

func TestAuditPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Postgres Suite")
}

// SQLiteAuditLog is a SQLite-compatible model for testing
type SQLiteAuditLog struct {
	ID            int64     `gorm:"primaryKey"`
	Action        string    `gorm:"column:action;not null"`
	EntityType    string    `gorm:"column:entity_type;not null"`
	EntityID      int64     `gorm:"column:entity_id"`
	ActorID       int64     `gorm:"column:actor_id"`
	OldValues     []byte    `gorm:"column:old_values"`
	NewValues     []byte    `gorm:"column:new_values"`
	ChangedFields []byte    `gorm:"column:changed_fields"`
	Description   string    `gorm:"column:description"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (SQLiteAuditLog) TableName() string {
	return "audit_logs"
}

var _ = Describe("Audit PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo audit.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteAuditLog{})
		Expect(err).NotTo(HaveOccurred())

		repo = auditPostgres.NewAuditRepository(db)
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("should persist the snapshots and changed fields", func() {
			entry := &audit.Entry{
				Action:        audit.ActionUpdate,
				EntityType:    audit.EntityAsset,
				EntityID:      7,
				ActorID:       1,
				OldValues:     audit.JSONMap{"status": "available"},
				NewValues:     audit.JSONMap{"status": "maintenance"},
				ChangedFields: audit.StringList{"status"},
				CreatedAt:     time.Now(),
			}

			Expect(repo.Create(ctx, entry)).NotTo(HaveOccurred())
			Expect(entry.ID).To(BeNumerically(">", 0))

			entries, err := repo.History(ctx, audit.EntityAsset, 7, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].OldValues["status"]).To(Equal("available"))
			Expect(entries[0].NewValues["status"]).To(Equal("maintenance"))
			Expect(entries[0].ChangedFields).To(ContainElement("status"))
		})
	})

	Describe("History", func() {
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		addEntry := func(entityType string, entityID int64, action string, at time.Time) {
			Expect(repo.Create(ctx, &audit.Entry{
				Action:     action,
				EntityType: entityType,
				EntityID:   entityID,
				ActorID:    1,
				CreatedAt:  at,
			})).NotTo(HaveOccurred())
		}

		BeforeEach(func() {
			addEntry(audit.EntityAsset, 7, audit.ActionUpdate, base.Add(2*time.Hour))
			addEntry(audit.EntityAsset, 7, audit.ActionCreate, base)
			addEntry(audit.EntityAsset, 7, audit.ActionAssign, base.Add(time.Hour))
			addEntry(audit.EntityAsset, 8, audit.ActionCreate, base)
			addEntry(audit.EntityUser, 7, audit.ActionCreate, base)
		})

		It("should return only the requested entity's entries, oldest first", func() {
			entries, err := repo.History(ctx, audit.EntityAsset, 7, 10, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Action).To(Equal(audit.ActionCreate))
			Expect(entries[1].Action).To(Equal(audit.ActionAssign))
			Expect(entries[2].Action).To(Equal(audit.ActionUpdate))
		})

		It("should paginate", func() {
			page, err := repo.History(ctx, audit.EntityAsset, 7, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))

			rest, err := repo.History(ctx, audit.EntityAsset, 7, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(1))
			Expect(rest[0].Action).To(Equal(audit.ActionUpdate))
		})

		It("should return an empty history for an untouched entity", func() {
			entries, err := repo.History(ctx, audit.EntityAssignment, 999, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
})
