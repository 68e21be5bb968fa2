package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swaasthya/saathi/internal/language"
)

// Phase is the conversation lifecycle state of one user.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseAwaitingLanguage Phase = "awaiting_language"
	PhaseActive           Phase = "active"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Put when the stored version moved on.
	ErrConflict = errors.New("session version conflict")
)

// Session is the per-user conversation record. Version is the CAS token:
// zero means the session has never been stored.
type Session struct {
	UserID                string            `json:"user_id"`
	Phase                 Phase             `json:"phase"`
	PrescriptionSummary   string            `json:"prescription_summary"`
	TargetLanguage        language.Language `json:"target_language"`
	AwaitingVoice         bool              `json:"awaiting_voice"`
	AwaitingMedicinePhoto bool              `json:"awaiting_medicine_photo"`
	Version               int64             `json:"version"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func New(userID string) *Session {
	return &Session{UserID: userID, Phase: PhaseInit}
}

// Reset clears every conversation field, keeping identity and version.
func (s *Session) Reset() {
	s.Phase = PhaseInit
	s.PrescriptionSummary = ""
	s.TargetLanguage = language.Language{}
	s.AwaitingVoice = false
	s.AwaitingMedicinePhoto = false
}

// Language returns the chosen language, or the default when none is set.
func (s *Session) Language() language.Language {
	if s.TargetLanguage.IsZero() {
		return language.Default()
	}
	return s.TargetLanguage
}

func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// Repository stores sessions keyed by user id. Put is a compare-and-swap:
// it succeeds only when s.Version equals the stored version (zero for a new
// session) and then increments s.Version.
type Repository interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
	Close() error
}

// Load returns the stored session or a fresh unsaved one.
func Load(ctx context.Context, repo Repository, userID string) (*Session, error) {
	s, err := repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return New(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

const maxUpdateAttempts = 3

// Update loads the session, applies fn and stores the result, reloading and
// reapplying fn when another writer won the race.
func Update(ctx context.Context, repo Repository, userID string, fn func(*Session) error) (*Session, error) {
	for attempt := 0; ; attempt++ {
		s, err := Load(ctx, repo, userID)
		if err != nil {
			return nil, err
		}
		if err := fn(s); err != nil {
			return nil, err
		}
		err = repo.Put(ctx, s)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrConflict) || attempt+1 >= maxUpdateAttempts {
			return nil, fmt.Errorf("update session: %w", err)
		}
	}
}

// Snapshot is the read-only view served over HTTP.
type Snapshot struct {
	UserID                string    `json:"user_id"`
	Phase                 Phase     `json:"phase"`
	HasSummary            bool      `json:"has_summary"`
	Language              string    `json:"language,omitempty"`
	AwaitingVoice         bool      `json:"awaiting_voice"`
	AwaitingMedicinePhoto bool      `json:"awaiting_medicine_photo"`
	Version               int64     `json:"version"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		UserID:                s.UserID,
		Phase:                 s.Phase,
		HasSummary:            s.PrescriptionSummary != "",
		Language:              s.TargetLanguage.Code,
		AwaitingVoice:         s.AwaitingVoice,
		AwaitingMedicinePhoto: s.AwaitingMedicinePhoto,
		Version:               s.Version,
		UpdatedAt:             s.UpdatedAt,
	}
}
