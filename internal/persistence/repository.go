package persistence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
)

var (
	ErrRoundNotFound  = errors.New("round not found")
	ErrCourseNotFound = errors.New("course not found")
)

type RoundStatus string

const (
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusComplete   RoundStatus = "complete"
)

// RoundRecord is the stored form of a round. Snapshot is authoritative;
// the other fields are kept for listing without decoding it.
type RoundRecord struct {
	RoundID     string
	Status      RoundStatus
	CourseName  string
	PlayerCount int
	CurrentHole int
	Snapshot    round.Snapshot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActionRecord is one entry in a round's audit log.
type ActionRecord struct {
	RoundID    string          `json:"round_id"`
	Hole       int             `json:"hole"`
	Actor      domain.PlayerID `json:"actor,omitempty"`
	Action     string          `json:"action"`
	Detail     string          `json:"detail,omitempty"`
	IsFallback bool            `json:"is_fallback"`
	At         time.Time       `json:"at"`
}

type Repository interface {
	// SaveRound upserts the round and replaces its hole results with the
	// snapshot's history.
	SaveRound(record RoundRecord) error
	GetRound(roundID string) (RoundRecord, bool, error)
	ListRounds() ([]RoundRecord, error)
	ListHoles(roundID string) ([]settlement.HoleRecord, error)
	AppendAction(record ActionRecord) error
	ListActions(roundID string) ([]ActionRecord, error)
	UpsertCourse(course domain.Course) error
	GetCourse(name string) (domain.Course, bool, error)
}

// NewRoundRecord builds a record from the round's current state.
func NewRoundRecord(r *round.Round, createdAt, updatedAt time.Time) RoundRecord {
	snap := r.Snapshot()
	status := RoundStatusInProgress
	if snap.Complete {
		status = RoundStatusComplete
	}
	return RoundRecord{
		RoundID:     snap.RoundID,
		Status:      status,
		CourseName:  snap.Course.Name,
		PlayerCount: len(snap.Players),
		CurrentHole: snap.CurrentHole,
		Snapshot:    snap,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

type inMemoryRepository struct {
	mu sync.RWMutex

	rounds  map[string]RoundRecord
	actions map[string][]ActionRecord
	courses map[string]domain.Course
}

func NewInMemoryRepository() Repository {
	return &inMemoryRepository{
		rounds:  make(map[string]RoundRecord),
		actions: make(map[string][]ActionRecord),
		courses: make(map[string]domain.Course),
	}
}

func (r *inMemoryRepository) SaveRound(record RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rounds[record.RoundID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	r.rounds[record.RoundID] = cloneRoundRecord(record)
	return nil
}

func (r *inMemoryRepository) GetRound(roundID string) (RoundRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.rounds[roundID]
	if !ok {
		return RoundRecord{}, false, nil
	}
	return cloneRoundRecord(record), true, nil
}

func (r *inMemoryRepository) ListRounds() ([]RoundRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoundRecord, 0, len(r.rounds))
	for _, record := range r.rounds {
		out = append(out, cloneRoundRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RoundID < out[j].RoundID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *inMemoryRepository) ListHoles(roundID string) ([]settlement.HoleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.rounds[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	out := make([]settlement.HoleRecord, 0, len(record.Snapshot.Holes))
	for _, hole := range record.Snapshot.Holes {
		out = append(out, hole.Clone())
	}
	return out, nil
}

func (r *inMemoryRepository) AppendAction(record ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rounds[record.RoundID]; !ok {
		return ErrRoundNotFound
	}
	r.actions[record.RoundID] = append(r.actions[record.RoundID], record)
	return nil
}

func (r *inMemoryRepository) ListActions(roundID string) ([]ActionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.actions[roundID]
	out := make([]ActionRecord, len(records))
	copy(out, records)
	return out, nil
}

func (r *inMemoryRepository) UpsertCourse(course domain.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[course.Name] = cloneCourse(course)
	return nil
}

func (r *inMemoryRepository) GetCourse(name string) (domain.Course, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	course, ok := r.courses[name]
	if !ok {
		return domain.Course{}, false, nil
	}
	return cloneCourse(course), true, nil
}

func cloneRoundRecord(record RoundRecord) RoundRecord {
	out := record
	snap := record.Snapshot
	snap.Course = cloneCourse(snap.Course)
	snap.Players = append([]domain.Player(nil), snap.Players...)
	snap.FirstTeeOrder = append([]domain.PlayerID(nil), snap.FirstTeeOrder...)
	snap.Rotation = snap.Rotation.Clone()
	snap.Formation = snap.Formation.Clone()
	snap.Betting = snap.Betting.Clone()
	if snap.Holes != nil {
		holes := make([]settlement.HoleRecord, 0, len(snap.Holes))
		for _, hole := range snap.Holes {
			holes = append(holes, hole.Clone())
		}
		snap.Holes = holes
	}
	out.Snapshot = snap
	return out
}

func cloneCourse(course domain.Course) domain.Course {
	out := course
	out.Holes = append([]domain.CourseHole(nil), course.Holes...)
	return out
}
