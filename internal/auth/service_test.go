package auth_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetops/asset-management/internal/auth"
)

// mockAuthRepository implements auth.Repository for service tests.
type mockAuthRepository struct {
	credentialsErr error
	principalErr   error

	passwordHash string
	userID       int64
	principal    *auth.Principal
}

func (m *mockAuthRepository) GetCredentials(email string) (string, int64, error) {
	if m.credentialsErr != nil {
		return "", 0, m.credentialsErr
	}
	return m.passwordHash, m.userID, nil
}

func (m *mockAuthRepository) GetPrincipal(userID int64) (*auth.Principal, error) {
	if m.principalErr != nil {
		return nil, m.principalErr
	}
	return m.principal, nil
}

var _ = Describe("Auth Service", func() {
	var (
		repo     *mockAuthRepository
		tokenGen *auth.JWTTokenGenerator
		service  *auth.Service
	)

	BeforeEach(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())

		repo = &mockAuthRepository{
			passwordHash: string(hash),
			userID:       42,
			principal: &auth.Principal{
				ID: 42, Email: "dev@example.com", Name: "Dev",
				Role: auth.RoleUser, Department: "engineering", IsActive: true,
			},
		}
		tokenGen = auth.NewJWTTokenGenerator(
			"access-secret-for-tests-0123456789",
			"refresh-secret-for-tests-0123456789",
			15*time.Minute, 7*24*time.Hour)
		service = auth.NewService(repo, tokenGen)
	})

	Describe("Authenticate", func() {
		It("should issue both tokens for valid credentials", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})

			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.AccessToken).NotTo(BeEmpty())
			Expect(tokens.RefreshToken).NotTo(BeEmpty())
		})

		It("should embed the principal's role and department in the access token", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal("42"))
			Expect(claims.Role).To(Equal("user"))
			Expect(claims.Department).To(Equal("engineering"))
		})

		It("should reject a wrong password", func() {
			_, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "wrong"})
			Expect(err).To(Equal(auth.ErrInvalidCredentials))
		})

		It("should reject an unknown email with the same error", func() {
			repo.credentialsErr = errors.New("record not found")

			_, err := service.Authenticate(auth.LoginDTO{Email: "ghost@example.com", Password: "correct-horse"})
			Expect(err).To(Equal(auth.ErrInvalidCredentials))
		})

		It("should reject an inactive account", func() {
			repo.principal.IsActive = false

			_, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})
			Expect(err).To(Equal(auth.ErrUserInactive))
		})

		It("should require email and password", func() {
			_, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com"})
			Expect(err).To(HaveOccurred())

			_, err = service.Authenticate(auth.LoginDTO{Password: "correct-horse"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RefreshTokens", func() {
		It("should rotate both tokens", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			refreshed, err := service.RefreshTokens(tokens.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed.AccessToken).NotTo(BeEmpty())
			Expect(refreshed.RefreshToken).NotTo(BeEmpty())
		})

		It("should pick up a role change since login", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			repo.principal.Role = auth.RoleManager

			refreshed, err := service.RefreshTokens(tokens.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(refreshed.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Role).To(Equal("manager"))
		})

		It("should reject garbage tokens", func() {
			_, err := service.RefreshTokens("not-a-token")
			Expect(err).To(Equal(auth.ErrInvalidToken))
		})

		It("should reject a refresh for a deactivated account", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{Email: "dev@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			repo.principal.IsActive = false

			_, err = service.RefreshTokens(tokens.RefreshToken)
			Expect(err).To(Equal(auth.ErrUserInactive))
		})
	})

	Describe("ValidateAccessToken", func() {
		It("should reject a token signed with a different secret", func() {
			other := auth.NewJWTTokenGenerator(
				"another-access-secret-0123456789xx",
				"another-refresh-secret-0123456789x",
				15*time.Minute, 7*24*time.Hour)
			token, err := other.GenerateAccessToken("42", "dev@example.com", auth.RoleUser, "engineering")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			Expect(err).To(Equal(auth.ErrInvalidToken))
		})

		It("should reject an expired token", func() {
			shortLived := auth.NewJWTTokenGenerator(
				"access-secret-for-tests-0123456789",
				"refresh-secret-for-tests-0123456789",
				time.Millisecond, 7*24*time.Hour)
			token, err := shortLived.GenerateAccessToken("42", "dev@example.com", auth.RoleUser, "engineering")
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(5 * time.Millisecond)

			_, err = service.ValidateAccessToken(token)
			Expect(err).To(HaveOccurred())
		})
	})
})
