package validation_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/core/common/validation"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

var _ = Describe("ValidationBuilder", func() {
	It("should pass when every rule holds", func() {
		v := validation.NewValidator()
		v.Field("name", "ThinkPad").Required().MaxLength(200)
		v.Field("email", "dev@example.com").Required().Email()

		Expect(v.Validate()).To(BeNil())
	})

	It("should report a missing required string", func() {
		v := validation.NewValidator()
		v.Field("category", "").Required()

		err := v.Validate()
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(internal.ErrCodeValidationFailed))

		details, ok := err.Details.(internal.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors).To(HaveLen(1))
		Expect(details.Errors[0].Field).To(Equal("category"))
	})

	It("should collect failures across fields", func() {
		v := validation.NewValidator()
		v.Field("name", "").Required()
		v.Field("email", "not-an-email").Email()
		v.Field("password", "short").MinLength(8)

		err := v.Validate()
		Expect(err).NotTo(BeNil())

		details := err.Details.(internal.ValidationErrors)
		Expect(details.Errors).To(HaveLen(3))
	})

	It("should enforce length bounds", func() {
		long := make([]byte, 201)
		for i := range long {
			long[i] = 'a'
		}

		v := validation.NewValidator()
		v.Field("name", string(long)).MaxLength(200)

		Expect(v.Validate()).NotTo(BeNil())
	})

	It("should reject malformed emails", func() {
		for _, bad := range []string{"nope", "@example.com", "dev@"} {
			v := validation.NewValidator()
			v.Field("email", bad).Email()
			Expect(v.Validate()).NotTo(BeNil(), "expected %q to be rejected", bad)
		}
	})

	Describe("time rules", func() {
		It("should reject future dates with NotFuture", func() {
			future := time.Now().Add(24 * time.Hour)
			v := validation.NewValidator()
			v.Field("purchase_date", &future).NotFuture()

			Expect(v.Validate()).NotTo(BeNil())
		})

		It("should reject past dates with NotPast", func() {
			past := time.Now().Add(-24 * time.Hour)
			v := validation.NewValidator()
			v.Field("expected_return_at", &past).NotPast()

			Expect(v.Validate()).NotTo(BeNil())
		})

		It("should accept nil time pointers", func() {
			v := validation.NewValidator()
			v.Field("purchase_date", (*time.Time)(nil)).NotFuture().NotPast()

			Expect(v.Validate()).To(BeNil())
		})
	})

	It("should run custom rules", func() {
		v := validation.NewValidator()
		v.Field("role", "owner").Custom(func(value interface{}) *internal.AppError {
			if value.(string) != "user" {
				return internal.NewValidationFieldError("role", "unrecognized role", internal.ErrCodeInvalidRole)
			}
			return nil
		})

		err := v.Validate()
		Expect(err).NotTo(BeNil())
		details := err.Details.(internal.ValidationErrors)
		Expect(details.Errors[0].Message).To(Equal("unrecognized role"))
	})
})
