package twofa

import (
	"context"
	"crypto/subtle"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type enrollmentKey struct {
	userID uuid.UUID
	method Method
}

// snapshot is the full repository state, as written by FileTwoFARepository.
type snapshot struct {
	Enrollments []Enrollment  `json:"enrollments"`
	Codes       []OneTimeCode `json:"codes"`
}

// InMemTwoFARepository implements Repository with maps guarded by a mutex.
type InMemTwoFARepository struct {
	mu          sync.Mutex
	enrollments map[enrollmentKey]Enrollment
	codes       map[uuid.UUID]OneTimeCode

	// persist is called with the new state after every mutation. A failed
	// persist rolls the mutation back.
	persist func(snapshot) error
}

func NewInMemTwoFARepository() *InMemTwoFARepository {
	return &InMemTwoFARepository{
		enrollments: make(map[enrollmentKey]Enrollment),
		codes:       make(map[uuid.UUID]OneTimeCode),
	}
}

func (r *InMemTwoFARepository) UpsertEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{enrollment.UserID, enrollment.Method}
	now := enrollment.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	existing, ok := r.enrollments[key]
	if !ok {
		existing = Enrollment{
			ID:        uuid.New(),
			UserID:    enrollment.UserID,
			Method:    enrollment.Method,
			CreatedAt: now,
		}
	}
	existing.Secret = enrollment.Secret
	existing.ChannelAddress = enrollment.ChannelAddress
	existing.BackupCodes = slices.Clone(enrollment.BackupCodes)
	existing.Enabled = true
	existing.UpdatedAt = now

	err := r.mutate(func() {
		r.enrollments[key] = existing
	})
	if err != nil {
		return Enrollment{}, err
	}
	return cloneEnrollment(existing), nil
}

func (r *InMemTwoFARepository) GetEnrollment(ctx context.Context, userID uuid.UUID, method Method) (Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.enrollments[enrollmentKey{userID, method}]
	if !ok {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	return cloneEnrollment(e), nil
}

func (r *InMemTwoFARepository) ListEnabledEnrollments(ctx context.Context, userID uuid.UUID) ([]Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Enrollment
	for key, e := range r.enrollments {
		if key.userID == userID && e.Enabled {
			out = append(out, cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Method < out[j].Method
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemTwoFARepository) DeleteEnrollment(ctx context.Context, userID uuid.UUID, method Method) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{userID, method}
	if _, ok := r.enrollments[key]; !ok {
		return false, nil
	}
	if err := r.mutate(func() { delete(r.enrollments, key) }); err != nil {
		return false, err
	}
	return true, nil
}

func (r *InMemTwoFARepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, method Method, codes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{userID, method}
	e, ok := r.enrollments[key]
	if !ok {
		return ErrEnrollmentNotFound
	}
	e.BackupCodes = slices.Clone(codes)
	e.UpdatedAt = time.Now().UTC()
	return r.mutate(func() { r.enrollments[key] = e })
}

func (r *InMemTwoFARepository) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{userID, method}
	e, ok := r.enrollments[key]
	if !ok || !e.Enabled || code == "" {
		return false, nil
	}

	idx := -1
	for i, c := range e.BackupCodes {
		if subtle.ConstantTimeCompare([]byte(c), []byte(code)) == 1 {
			idx = i
		}
	}
	if idx < 0 {
		return false, nil
	}

	// Build a new slice so clones handed out earlier are not modified.
	e.BackupCodes = slices.Delete(slices.Clone(e.BackupCodes), idx, idx+1)
	e.UpdatedAt = time.Now().UTC()
	if err := r.mutate(func() { r.enrollments[key] = e }); err != nil {
		return false, err
	}
	return true, nil
}

func (r *InMemTwoFARepository) DeleteExpiredCodes(ctx context.Context, userID uuid.UUID, method Method, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []uuid.UUID
	for id, c := range r.codes {
		if c.UserID == userID && c.Method == method && !now.Before(c.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	err := r.mutate(func() {
		for _, id := range expired {
			delete(r.codes, id)
		}
	})
	if err != nil {
		return 0, err
	}
	return int64(len(expired)), nil
}

func (r *InMemTwoFARepository) CreateCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	if _, exists := r.codes[code.ID]; exists {
		return OneTimeCode{}, fmt.Errorf("code %s already exists", code.ID)
	}
	if err := r.mutate(func() { r.codes[code.ID] = code }); err != nil {
		return OneTimeCode{}, err
	}
	return code, nil
}

func (r *InMemTwoFARepository) ConsumeCode(ctx context.Context, userID uuid.UUID, method Method, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match *OneTimeCode
	for _, c := range r.codes {
		if c.UserID != userID || c.Method != method || !c.Valid(now) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
			continue
		}
		if match == nil || c.CreatedAt.Before(match.CreatedAt) {
			c := c
			match = &c
		}
	}
	if match == nil {
		return false, nil
	}

	match.Consumed = true
	if err := r.mutate(func() { r.codes[match.ID] = *match }); err != nil {
		return false, err
	}
	return true, nil
}

func (r *InMemTwoFARepository) DeleteCodes(ctx context.Context, userID uuid.UUID, method Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for id, c := range r.codes {
		if c.UserID == userID && c.Method == method {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return r.mutate(func() {
		for _, id := range ids {
			delete(r.codes, id)
		}
	})
}

// mutate applies fn and persists the result. Callers hold r.mu.
func (r *InMemTwoFARepository) mutate(fn func()) error {
	if r.persist == nil {
		fn()
		return nil
	}

	prevEnrollments := maps.Clone(r.enrollments)
	prevCodes := maps.Clone(r.codes)
	fn()
	if err := r.persist(r.snapshot()); err != nil {
		r.enrollments = prevEnrollments
		r.codes = prevCodes
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *InMemTwoFARepository) snapshot() snapshot {
	s := snapshot{
		Enrollments: make([]Enrollment, 0, len(r.enrollments)),
		Codes:       make([]OneTimeCode, 0, len(r.codes)),
	}
	for _, e := range r.enrollments {
		s.Enrollments = append(s.Enrollments, e)
	}
	for _, c := range r.codes {
		s.Codes = append(s.Codes, c)
	}
	sort.Slice(s.Enrollments, func(i, j int) bool { return s.Enrollments[i].ID.String() < s.Enrollments[j].ID.String() })
	sort.Slice(s.Codes, func(i, j int) bool { return s.Codes[i].ID.String() < s.Codes[j].ID.String() })
	return s
}

func (r *InMemTwoFARepository) restore(s snapshot) {
	r.enrollments = make(map[enrollmentKey]Enrollment, len(s.Enrollments))
	for _, e := range s.Enrollments {
		r.enrollments[enrollmentKey{e.UserID, e.Method}] = e
	}
	r.codes = make(map[uuid.UUID]OneTimeCode, len(s.Codes))
	for _, c := range s.Codes {
		r.codes[c.ID] = c
	}
}

func cloneEnrollment(e Enrollment) Enrollment {
	e.BackupCodes = slices.Clone(e.BackupCodes)
	return e
}
