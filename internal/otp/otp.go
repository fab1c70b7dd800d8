package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/notify"
)

const (
	DefaultExpiry = 5 * time.Minute
	subject       = "Your OTP Code"
)

var (
	ErrInvalidEmail = errors.New("otp: valid email is required")
	ErrNotFound     = errors.New("otp: no code found")
	ErrExpired      = errors.New("otp: code expired")
	ErrMismatch     = errors.New("otp: invalid code")
	ErrSendFailed   = errors.New("otp: failed to send email")
)

// Record is a pending code for one email address.
type Record struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps at most one pending code per email. Consume removes the entry
// only if it still equals rec and reports whether it did, atomically.
type Store interface {
	Put(ctx context.Context, email string, rec Record) error
	Get(ctx context.Context, email string) (Record, bool, error)
	Delete(ctx context.Context, email string) error
	Consume(ctx context.Context, email string, rec Record) (bool, error)
}

// Service issues and verifies single-use email codes.
type Service struct {
	store  Store
	mailer notify.Mailer
	clock  clockwork.Clock
	expiry time.Duration
	logger *zap.Logger
}

func NewService(store Store, mailer notify.Mailer, clock clockwork.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, mailer: mailer, clock: clock, expiry: DefaultExpiry, logger: logger}
}

// Send generates a code, stores it and emails it. A new code replaces any pending one.
func (s *Service) Send(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	rec := Record{Code: code, ExpiresAt: s.clock.Now().Add(s.expiry)}
	if err := s.store.Put(ctx, email, rec); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}

	body := fmt.Sprintf("Your OTP is: %s\n\nIt expires in %d minutes.", code, int(s.expiry.Minutes()))
	if err := s.mailer.Mail(ctx, email, subject, body); err != nil {
		s.logger.Error("failed to send otp email", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	s.logger.Info("otp sent", zap.String("email", email))
	return nil
}

// Verify checks code against the pending one. A verified or expired code is removed.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	rec, ok, err := s.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("loading code: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	if s.clock.Now().After(rec.ExpiresAt) {
		if err := s.store.Delete(ctx, email); err != nil {
			s.logger.Warn("failed to delete expired otp", zap.Error(err))
		}
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return ErrMismatch
	}

	consumed, err := s.store.Consume(ctx, email, rec)
	if err != nil {
		return fmt.Errorf("consuming code: %w", err)
	}
	if !consumed {
		// Verified concurrently or replaced by a newer code.
		return ErrNotFound
	}
	return nil
}

// generateCode returns a six digit code in [100000, 999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(899999))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
