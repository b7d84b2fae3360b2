package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/redis"
)

var (
	ErrInvalidCode    = errors.New("invalid or expired verification code")
	ErrInvalidContact = errors.New("invalid contact address")
)

const reassignAttempts = 3

type Verifier interface {
	Issue(ctx context.Context, address string) (string, error)
	Check(ctx context.Context, address, code string) (bool, error)
}

// RedisVerifier keeps one pending numeric code per address. A code is
// consumed by the first successful check.
type RedisVerifier struct {
	redis  redis.RedisAdapter
	prefix string
	ttl    time.Duration
	digits int
}

func NewRedisVerifier(adapter redis.RedisAdapter, ttl time.Duration) *RedisVerifier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisVerifier{redis: adapter, prefix: "verify:", ttl: ttl, digits: 6}
}

func (v *RedisVerifier) Issue(ctx context.Context, address string) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < v.digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%0*d", v.digits, n.Int64())
	if err := v.redis.Set(ctx, v.prefix+address, []byte(code), v.ttl); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

func (v *RedisVerifier) Check(ctx context.Context, address, code string) (bool, error) {
	stored, err := v.redis.Get(ctx, v.prefix+address)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return false, nil
		}
		return false, err
	}
	if subtle.ConstantTimeCompare(stored, []byte(strings.TrimSpace(code))) != 1 {
		return false, nil
	}
	if err := v.redis.Del(ctx, v.prefix+address); err != nil {
		logger.Warn("[contact] failed to consume verification code", "contact", address, "error", err)
	}
	return true, nil
}

// ContactService verifies ownership of a contact address and moves the
// address to its verified owner.
type ContactService struct {
	subscribers SubscriberRepository
	verifier    Verifier
	notifier    Notifier
}

func NewContactService(subscribers SubscriberRepository, verifier Verifier, notifier Notifier) *ContactService {
	return &ContactService{
		subscribers: subscribers,
		verifier:    verifier,
		notifier:    notifier,
	}
}

// RequestCode sends a fresh verification code to address.
func (s *ContactService) RequestCode(ctx context.Context, subscriberID int64, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidContact
	}
	sub, err := s.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		return err
	}
	code, err := s.verifier.Issue(ctx, address)
	if err != nil {
		return err
	}
	text := fmt.Sprintf(messagesFor(sub.Language()).VerifyCode, code)
	if _, err := s.notifier.SendMessage(ctx, address, text); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Confirm checks code and assigns address to subscriberID. A previous live
// owner loses the address in the same transaction.
func (s *ContactService) Confirm(ctx context.Context, subscriberID int64, address, code string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidContact
	}
	ok, err := s.verifier.Check(ctx, address, code)
	if err != nil {
		return fmt.Errorf("check verification code: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}

	for attempt := 1; ; attempt++ {
		var previousOwner *int64
		owner, err := s.subscribers.FindByContact(ctx, address)
		switch {
		case err == nil:
			if owner.ID == subscriberID {
				return nil
			}
			previousOwner = &owner.ID
		case !errors.Is(err, repository.ErrSubscriberNotFound):
			return err
		}

		err = s.subscribers.ReassignContact(ctx, previousOwner, subscriberID, address)
		if err == nil {
			if previousOwner != nil {
				logger.Info("[contact] recycled contact reassigned", "contact", address, "previous_subscriber_id", *previousOwner, "subscriber_id", subscriberID)
			}
			return nil
		}
		// ownership moved between lookup and reassignment; look again
		retryable := errors.Is(err, repository.ErrOwnerChanged) || errors.Is(err, repository.ErrContactTaken)
		if !retryable || attempt >= reassignAttempts {
			return err
		}
	}
}
