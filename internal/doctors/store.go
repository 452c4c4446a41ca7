package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinvia/booking-platform/internal/slots"
)

// ErrDoctorNotFound is returned when no doctor record exists for the id.
var ErrDoctorNotFound = errors.New("doctor not found")

const indexKey = "doctors:index"

// Store persists doctor records as JSON documents, one key per doctor.
type Store struct {
	redis *redis.Client

	// slotsMu serializes SetSlots read-compare-write cycles so the version
	// check cannot race with itself.
	slotsMu sync.Mutex
}

// NewStore creates a new doctor directory store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(doctorID string) string {
	return fmt.Sprintf("doctors:record:%s", doctorID)
}

// Get retrieves a doctor record by id.
func (s *Store) Get(ctx context.Context, doctorID string) (*Doctor, error) {
	data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
	if err == redis.Nil {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: get record: %w", err)
	}

	var doc Doctor
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("doctors: unmarshal record: %w", err)
	}
	return &doc, nil
}

// Put saves a doctor record and tracks it in the directory index.
func (s *Store) Put(ctx context.Context, doc *Doctor) error {
	if doc == nil || doc.ID == "" {
		return errors.New("doctors: record with id required")
	}
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("doctors: marshal record: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(doc.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("doctors: set record: %w", err)
	}
	if err := s.redis.SAdd(ctx, indexKey, doc.ID).Err(); err != nil {
		return fmt.Errorf("doctors: index record: %w", err)
	}
	return nil
}

// SetSlots persists a slot ledger snapshot alongside the doctor record.
// Snapshots are captured under the ledger lock but persisted outside it, so
// two writers for the same doctor can arrive here in either order; the
// version guard drops the older snapshot instead of letting it overwrite the
// newer one. A dropped write is not an error: the newer snapshot already
// contains every mutation the older one carried.
func (s *Store) SetSlots(ctx context.Context, doctorID string, snapshot slots.Ledger, version uint64) error {
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()

	doc, err := s.Get(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("doctors: set slots: %w", err)
	}
	if version <= doc.SlotsVersion {
		return nil
	}
	doc.Slots = snapshot
	doc.SlotsVersion = version
	return s.Put(ctx, doc)
}

// SetAvailability flips the doctor's availability flag.
func (s *Store) SetAvailability(ctx context.Context, doctorID string, available bool) error {
	doc, err := s.Get(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("doctors: set availability: %w", err)
	}
	doc.Available = available
	return s.Put(ctx, doc)
}

// Seed inserts doctors that are not yet in the directory. Existing records
// are left untouched, so running it on every boot is safe.
func (s *Store) Seed(ctx context.Context, docs ...*Doctor) error {
	for _, doc := range docs {
		if doc == nil || doc.ID == "" {
			continue
		}
		_, err := s.Get(ctx, doc.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		if err := s.Put(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// List returns every doctor in the directory.
func (s *Store) List(ctx context.Context) ([]*Doctor, error) {
	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("doctors: list index: %w", err)
	}

	out := make([]*Doctor, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if errors.Is(err, ErrDoctorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
