package events_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/assetops/asset-management/internal/core/events"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	newEvent := func(eventType string) events.Event {
		return events.BaseEvent{
			ID:        "evt-1",
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"asset_id": int64(7)},
		}
	}

	BeforeEach(func() {
		bus = events.NewEventBus(slog.Default())
		ctx = context.Background()
	})

	It("should deliver an event to every subscriber", func() {
		var wg sync.WaitGroup
		wg.Add(2)
		var mu sync.Mutex
		var received []string

		handler := func(name string) events.Handler {
			return func(ctx context.Context, event events.Event) error {
				mu.Lock()
				received = append(received, name)
				mu.Unlock()
				wg.Done()
				return nil
			}
		}

		bus.Subscribe(events.EventTypeAssetAssigned, handler("first"))
		bus.Subscribe(events.EventTypeAssetAssigned, handler("second"))

		Expect(bus.Publish(ctx, newEvent(events.EventTypeAssetAssigned))).NotTo(HaveOccurred())

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		Eventually(done).Should(BeClosed())

		mu.Lock()
		defer mu.Unlock()
		Expect(received).To(ConsistOf("first", "second"))
	})

	It("should not deliver events of other types", func() {
		called := false
		bus.Subscribe(events.EventTypeAssetAssigned, func(ctx context.Context, event events.Event) error {
			called = true
			return nil
		})

		Expect(bus.PublishSync(ctx, newEvent(events.EventTypeAssetReturned))).NotTo(HaveOccurred())
		Expect(called).To(BeFalse())
	})

	It("should succeed when nothing is subscribed", func() {
		Expect(bus.Publish(ctx, newEvent(events.EventTypeAssetReturned))).NotTo(HaveOccurred())
	})

	Describe("PublishSync", func() {
		It("should run handlers inline and surface their failures", func() {
			bus.Subscribe(events.EventTypeAssetReturned, func(ctx context.Context, event events.Event) error {
				return errors.New("handler broke")
			})

			err := bus.PublishSync(ctx, newEvent(events.EventTypeAssetReturned))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("handler broke"))
		})
	})
})

var _ = Describe("Assignment Events", func() {
	It("should build an assigned event with the custody payload", func() {
		due := time.Now().Add(72 * time.Hour)
		event := events.NewAssetAssignedEvent(10, 7, "IT-LAP-0001", 42, 2, &due)

		Expect(event.EventType()).To(Equal(events.EventTypeAssetAssigned))
		Expect(event.EventID()).NotTo(BeEmpty())
		Expect(event.AssetTag).To(Equal("IT-LAP-0001"))
		Expect(event.UserID).To(Equal(int64(42)))
		Expect(event.Payload()).To(HaveKeyWithValue("asset_id", int64(7)))
	})

	It("should build a returned event carrying the overdue flag", func() {
		event := events.NewAssetReturnedEvent(10, 7, "IT-LAP-0001", 42, 2, "worn", true)

		Expect(event.EventType()).To(Equal(events.EventTypeAssetReturned))
		Expect(event.WasOverdue).To(BeTrue())
		Expect(event.Payload()).To(HaveKeyWithValue("condition", "worn"))
	})
})
