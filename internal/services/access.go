// Package services holds the portal's business operations, sitting between
// the HTTP handlers and the store and Ultimo client.
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pontifexx/supplier-portal/internal/constants"
	"github.com/pontifexx/supplier-portal/internal/models"
	"github.com/pontifexx/supplier-portal/internal/store"
)

var (
	// ErrUnknownEmail is returned when a login is attempted for an address
	// that is not a vendor contact on any cached job.
	ErrUnknownEmail = errors.New("email is not a known supplier contact")

	// ErrInvalidCode is returned when a login code is wrong, expired, or
	// already used.
	ErrInvalidCode = errors.New("invalid or expired login code")
)

// AccessService issues and verifies one-time login codes and sessions. The
// configured admin email bypasses both the supplier check and code
// verification.
type AccessService struct {
	store      *store.DB
	adminEmail string
	now        func() time.Time
}

func NewAccessService(db *store.DB, adminEmail string) *AccessService {
	return &AccessService{
		store:      db,
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// IssueCode generates and stores a one-time login code for the email. The
// code itself is returned so the caller can hand it to the delivery channel.
func (s *AccessService) IssueCode(email string) (string, error) {
	known, err := s.EmailIsKnownSupplier(email)
	if err != nil {
		return "", err
	}
	if !known {
		return "", ErrUnknownEmail
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := s.store.CreateLoginCode(email, code, s.now()); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyCode checks a submitted login code. The admin email is accepted with
// any code and never touches storage. Each stored code verifies at most once.
func (s *AccessService) VerifyCode(email, code string) (bool, error) {
	if email == s.adminEmail {
		return true, nil
	}
	cutoff := s.now().Add(-constants.LoginCodeTTL)
	return s.store.ConsumeLoginCode(email, code, cutoff)
}

// EmailIsKnownSupplier reports whether the email may request a login code.
// Outcomes are memoized for a day, both positive and negative, so repeated
// login attempts do not rescan the job cache.
func (s *AccessService) EmailIsKnownSupplier(email string) (bool, error) {
	if email == s.adminEmail {
		return true, nil
	}

	cutoff := s.now().Add(-constants.EmailVerificationTTL)
	verified, found, err := s.store.EmailVerification(email, cutoff)
	if err != nil {
		return false, err
	}
	if found {
		return verified, nil
	}

	verified, err = s.store.EmailHasJobContact(email)
	if err != nil {
		return false, err
	}
	if err := s.store.SaveEmailVerification(email, verified, s.now()); err != nil {
		return false, err
	}
	return verified, nil
}

// Login verifies the code and opens a session, returning its bearer token.
func (s *AccessService) Login(email, code string) (*models.Session, error) {
	ok, err := s.VerifyCode(email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	now := s.now()
	if err := s.store.DeleteExpiredSessions(now); err != nil {
		return nil, err
	}
	session := &models.Session{
		Token:     uuid.NewString(),
		Email:     email,
		IsAdmin:   email == s.adminEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(constants.SessionTTL),
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Session resolves a bearer token to its live session.
func (s *AccessService) Session(token string) (*models.Session, error) {
	return s.store.SessionByToken(token, s.now())
}

// Logout discards the session for the token, if any.
func (s *AccessService) Logout(token string) error {
	return s.store.DeleteSession(token)
}

// IsAdmin reports whether the email is the configured admin address.
func (s *AccessService) IsAdmin(email string) bool {
	return email == s.adminEmail
}

// generateCode produces a six-character uppercase hex code.
func generateCode() (string, error) {
	var buf [3]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return strings.ToUpper(fmt.Sprintf("%x", buf)), nil
}
