package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/smallbiznis/mutrapro/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrKeyMismatch = errors.New("idempotency_key_mismatch")
	ErrInFlight    = errors.New("idempotency_key_in_flight")
	ErrInvalidKey  = errors.New("invalid_idempotency_key")
	// ErrOutcomeUnknown means an earlier attempt with the key may have taken
	// effect upstream. The key stays blocked until it ages out.
	ErrOutcomeUnknown = errors.New("idempotency_outcome_unknown")
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusUnknown    Status = "outcome_unknown"
)

const (
	maxKeyLength  = 255
	defaultLease  = 2 * time.Minute
	defaultMaxAge = 24 * time.Hour
)

type Record struct {
	Scope       string         `gorm:"primaryKey;type:varchar(64)"`
	Key         string         `gorm:"column:idem_key;primaryKey;type:varchar(255)"`
	Fingerprint string         `gorm:"type:varchar(64);not null"`
	Status      Status         `gorm:"type:varchar(16);not null"`
	Response    datatypes.JSON `gorm:""`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

func (Record) TableName() string { return "idempotency_keys" }

// Decode unmarshals the stored response of a completed record.
func (r *Record) Decode(out any) error {
	if r == nil || len(r.Response) == 0 {
		return errors.New("idempotency record has no response")
	}
	return json.Unmarshal(r.Response, out)
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

// Store tracks client supplied keys so a retried request replays the first
// outcome instead of repeating its side effects.
type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	lease  time.Duration
	maxAge time.Duration
}

func NewStore(p Params) *Store {
	return &Store{
		db:     p.DB,
		log:    p.Log.Named("idempotency"),
		clock:  p.Clock,
		lease:  defaultLease,
		maxAge: defaultMaxAge,
	}
}

// Fingerprint hashes a request payload so reuse of a key with a different
// body can be detected.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Begin claims key for scope. A completed record for the same fingerprint is
// returned for replay. An in-progress record older than the lease is taken
// over, since its holder is presumed gone. A record whose outcome is unknown
// is never taken over before maxAge.
func (s *Store) Begin(ctx context.Context, scope, key, fingerprint string) (*Record, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return nil, false, ErrInvalidKey
	}

	now := s.clock.Now().UTC()
	record := Record{
		Scope:       scope,
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return &record, false, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, false, err
	}

	var existing Record
	if err := s.db.WithContext(ctx).
		Where("scope = ? AND idem_key = ?", scope, key).
		First(&existing).Error; err != nil {
		return nil, false, err
	}

	if existing.Fingerprint != fingerprint {
		return nil, false, ErrKeyMismatch
	}
	switch existing.Status {
	case StatusDone:
		if now.Sub(existing.CreatedAt) <= s.maxAge {
			return &existing, true, nil
		}
	case StatusUnknown:
		if now.Sub(existing.UpdatedAt) <= s.maxAge {
			return nil, false, ErrOutcomeUnknown
		}
	default:
		if now.Sub(existing.UpdatedAt) < s.lease {
			return nil, false, ErrInFlight
		}
	}

	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("scope = ? AND idem_key = ? AND updated_at = ?", scope, key, existing.UpdatedAt).
		Updates(map[string]any{
			"status":     StatusInProgress,
			"response":   nil,
			"created_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, ErrInFlight
	}
	s.log.Info("idempotency key reclaimed", zap.String("scope", scope), zap.String("previous_status", string(existing.Status)))

	existing.Status = StatusInProgress
	existing.Response = nil
	existing.CreatedAt = now
	existing.UpdatedAt = now
	return &existing, false, nil
}

// Complete stores the response that later retries will replay.
func (s *Store) Complete(ctx context.Context, scope, key string, response any) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Record{}).
		Where("scope = ? AND idem_key = ?", scope, strings.TrimSpace(key)).
		Updates(map[string]any{
			"status":     StatusDone,
			"response":   datatypes.JSON(raw),
			"updated_at": s.clock.Now().UTC(),
		}).Error
}

// MarkUnknown pins an in-progress key whose side effect may or may not have
// happened. Retries with it fail with ErrOutcomeUnknown instead of repeating
// the side effect.
func (s *Store) MarkUnknown(ctx context.Context, scope, key string) error {
	return s.db.WithContext(ctx).Model(&Record{}).
		Where("scope = ? AND idem_key = ? AND status = ?", scope, strings.TrimSpace(key), StatusInProgress).
		Updates(map[string]any{
			"status":     StatusUnknown,
			"updated_at": s.clock.Now().UTC(),
		}).Error
}

// Release forgets an in-progress key so the client may retry it.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	return s.db.WithContext(ctx).
		Where("scope = ? AND idem_key = ? AND status = ?", scope, strings.TrimSpace(key), StatusInProgress).
		Delete(&Record{}).Error
}
