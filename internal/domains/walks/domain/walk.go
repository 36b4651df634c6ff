package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// Status represents where a walk is in its lifecycle.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// CostPerPet is charged for every pet on a walk.
const CostPerPet = 50.0

const (
	minEndCode = 1000
	maxEndCode = 9999
)

var (
	ErrOwnerRequired        = errors.New("owner is required")
	ErrWalkerRequired       = errors.New("walker is required")
	ErrNoPets               = errors.New("at least one pet is required")
	ErrBlankPetName         = errors.New("pet names must not be blank")
	ErrInvalidLocation      = errors.New("pickup coordinates are out of range")
	ErrInvalidEndCode       = errors.New("end code must be four digits")
	ErrUnknownStatus        = errors.New("unknown walk status")
	ErrInvalidTransition    = errors.New("invalid walk status transition")
	ErrAlreadyClaimed       = errors.New("walk already claimed")
	ErrNotAssignedWalker    = errors.New("walk is assigned to another walker")
	ErrCodeMismatch         = errors.New("end code does not match")
	ErrInconsistentWalkData = errors.New("walker must be set exactly when the walk has left REQUESTED")
)

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if s.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Rank is the position of the status in the lifecycle order, or -1 when unknown.
func (s Status) Rank() int {
	switch s {
	case StatusRequested:
		return 0
	case StatusAccepted:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// CanAdvanceTo reports whether next is the immediate successor of s.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Rank() >= 0 && next.Rank() == s.Rank()+1
}

// Location is a pickup point in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Validate checks the coordinates are finite and in range.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		l.Latitude < -90 || l.Latitude > 90 ||
		l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// Walk is the aggregate tracking one dog-walking engagement.
type Walk struct {
	ID        string
	OwnerID   string
	WalkerID  string
	PetNames  []string
	Status    Status
	EndCode   string
	TotalCost float64
	Pickup    Location

	events []Event
}

// NewWalk validates a walk request and builds a REQUESTED walk. The ID is assigned by the store.
func NewWalk(ownerID string, petNames []string, pickup Location, endCode string) (*Walk, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(petNames) == 0 {
		return nil, ErrNoPets
	}
	pets := make([]string, 0, len(petNames))
	for _, name := range petNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrBlankPetName
		}
		pets = append(pets, name)
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	if !ValidEndCode(endCode) {
		return nil, ErrInvalidEndCode
	}
	w := &Walk{
		OwnerID:   ownerID,
		PetNames:  pets,
		Status:    StatusRequested,
		EndCode:   endCode,
		TotalCost: float64(len(pets)) * CostPerPet,
		Pickup:    pickup,
	}
	return w, nil
}

// Restore rebuilds a walk from stored state, checking the invariants that hold for every persisted walk.
func Restore(w Walk) (*Walk, error) {
	if w.Status.Rank() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, w.Status)
	}
	if (w.Status == StatusRequested) != (w.WalkerID == "") {
		return nil, ErrInconsistentWalkData
	}
	restored := w
	restored.PetNames = append([]string{}, w.PetNames...)
	restored.events = nil
	return &restored, nil
}

// GenerateEndCode draws a uniformly random code in [1000, 9999].
func GenerateEndCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxEndCode-minEndCode+1))
	if err != nil {
		return "", fmt.Errorf("generate end code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+minEndCode), nil
}

// ValidEndCode reports whether code is exactly four ASCII digits.
func ValidEndCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Claim attaches a walker to a REQUESTED walk.
func (w *Walk) Claim(walkerID string) error {
	walkerID = strings.TrimSpace(walkerID)
	if walkerID == "" {
		return ErrWalkerRequired
	}
	if w.Status != StatusRequested || w.WalkerID != "" {
		return ErrAlreadyClaimed
	}
	w.WalkerID = walkerID
	w.Status = StatusAccepted
	w.record(WalkClaimed{BaseEvent: now(), WalkID: w.ID, WalkerID: walkerID})
	return nil
}

// Start moves an ACCEPTED walk into progress. Only the assigned walker may start it.
func (w *Walk) Start(walkerID string) error {
	if err := w.advance(StatusInProgress); err != nil {
		return err
	}
	if err := w.requireWalker(walkerID); err != nil {
		return err
	}
	w.Status = StatusInProgress
	w.record(WalkStarted{BaseEvent: now(), WalkID: w.ID, WalkerID: w.WalkerID})
	return nil
}

// Finish completes an IN_PROGRESS walk when the candidate code matches the stored end code.
// A mismatch leaves the walk untouched.
func (w *Walk) Finish(walkerID, candidateCode string) error {
	if err := w.advance(StatusCompleted); err != nil {
		return err
	}
	if err := w.requireWalker(walkerID); err != nil {
		return err
	}
	if !w.MatchesEndCode(candidateCode) {
		return ErrCodeMismatch
	}
	w.Status = StatusCompleted
	w.record(WalkCompleted{BaseEvent: now(), WalkID: w.ID, WalkerID: w.WalkerID})
	return nil
}

// MatchesEndCode reports an exact match of candidate and the stored code, in constant time.
func (w *Walk) MatchesEndCode(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(w.EndCode)) == 1
}

// Active reports whether the walk has not completed yet.
func (w *Walk) Active() bool {
	return w.Status != StatusCompleted
}

// Redacted returns a copy without the end code, for walker-facing views.
func (w *Walk) Redacted() *Walk {
	if w == nil {
		return nil
	}
	copy := w.Clone()
	copy.EndCode = ""
	return copy
}

// Clone returns a copy that shares no slices with w.
func (w *Walk) Clone() *Walk {
	if w == nil {
		return nil
	}
	copy := *w
	copy.PetNames = append([]string{}, w.PetNames...)
	copy.events = append([]Event(nil), w.events...)
	return &copy
}

// Events returns the domain events recorded since the last ClearEvents.
func (w *Walk) Events() []Event {
	return append([]Event{}, w.events...)
}

// ClearEvents drops recorded events.
func (w *Walk) ClearEvents() {
	w.events = nil
}

// RecordRequested marks the walk as freshly requested once the store has assigned its ID.
func (w *Walk) RecordRequested() {
	w.record(WalkRequested{BaseEvent: now(), WalkID: w.ID, OwnerID: w.OwnerID, PetCount: len(w.PetNames), TotalCost: w.TotalCost})
}

func (w *Walk) advance(next Status) error {
	if !w.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, w.Status, next)
	}
	return nil
}

func (w *Walk) requireWalker(walkerID string) error {
	walkerID = strings.TrimSpace(walkerID)
	if walkerID == "" {
		return ErrWalkerRequired
	}
	if walkerID != w.WalkerID {
		return ErrNotAssignedWalker
	}
	return nil
}

func (w *Walk) record(e Event) {
	w.events = append(w.events, e)
}

func now() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}
