// Package service holds the console's use cases: session resolution,
// collection subscriptions, the view state they feed, the write
// orchestrator, filtering/pagination, export and the notification relay.
package service

import (
	"sync"

	"github.com/boddenberg/occurrence-console/internal/domain"
)

// Slice names one subscription-fed part of the view state.
type Slice string

const (
	SliceOccurrences Slice = "occurrences"
	SliceUsers       Slice = "users"
	SliceLists       Slice = "lists"
)

// Slices lists every slice in display order.
var Slices = []Slice{SliceOccurrences, SliceUsers, SliceLists}

// ViewState is the in-memory copy of what the remote store last pushed.
// Only Subscriptions writes to it, always replacing a whole slice; readers
// get copies.
type ViewState struct {
	mu          sync.RWMutex
	occurrences []domain.Occurrence
	users       []domain.UserProfile
	lists       domain.ListConfiguration
	versions    map[Slice]uint64
	loaded      map[Slice]chan struct{}
}

// NewViewState creates an empty view state.
func NewViewState() *ViewState {
	v := &ViewState{
		occurrences: []domain.Occurrence{},
		users:       []domain.UserProfile{},
		versions:    make(map[Slice]uint64, len(Slices)),
		loaded:      make(map[Slice]chan struct{}, len(Slices)),
	}
	for _, s := range Slices {
		v.loaded[s] = make(chan struct{})
	}
	return v
}

// ReplaceOccurrences swaps the occurrence slice for a pushed snapshot.
func (v *ViewState) ReplaceOccurrences(list []domain.Occurrence) {
	cp := make([]domain.Occurrence, len(list))
	copy(cp, list)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.occurrences = cp
	v.bumpLocked(SliceOccurrences)
}

// ReplaceUsers swaps the user slice for a pushed snapshot.
func (v *ViewState) ReplaceUsers(list []domain.UserProfile) {
	cp := make([]domain.UserProfile, len(list))
	copy(cp, list)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.users = cp
	v.bumpLocked(SliceUsers)
}

// ReplaceLists swaps the shared list configuration.
func (v *ViewState) ReplaceLists(cfg domain.ListConfiguration) {
	cp := copyLists(cfg)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.lists = cp
	v.bumpLocked(SliceLists)
}

func (v *ViewState) bumpLocked(s Slice) {
	v.versions[s]++
	if v.versions[s] == 1 {
		close(v.loaded[s])
	}
}

// Occurrences returns the occurrences, most recent first.
func (v *ViewState) Occurrences() []domain.Occurrence {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.Occurrence, len(v.occurrences))
	copy(out, v.occurrences)
	return out
}

// Users returns the user profiles.
func (v *ViewState) Users() []domain.UserProfile {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.UserProfile, len(v.users))
	copy(out, v.users)
	return out
}

// Lists returns the shared list configuration.
func (v *ViewState) Lists() domain.ListConfiguration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return copyLists(v.lists)
}

// Version counts the pushes applied to a slice; zero means never loaded.
func (v *ViewState) Version(s Slice) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.versions[s]
}

// Loaded returns a channel closed once the slice received its first push.
func (v *ViewState) Loaded(s Slice) <-chan struct{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if ch, ok := v.loaded[s]; ok {
		return ch
	}
	// unknown slice never loads
	return make(chan struct{})
}

// Status summarizes every slice for the status endpoint.
func (v *ViewState) Status() []domain.SliceStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]domain.SliceStatus, 0, len(Slices))
	for _, s := range Slices {
		size := 0
		switch s {
		case SliceOccurrences:
			size = len(v.occurrences)
		case SliceUsers:
			size = len(v.users)
		case SliceLists:
			for _, name := range domain.ListNames {
				size += len(v.lists.Get(name))
			}
		}
		out = append(out, domain.SliceStatus{
			Name:    string(s),
			Loaded:  v.versions[s] > 0,
			Version: v.versions[s],
			Size:    size,
		})
	}
	return out
}

func copyLists(cfg domain.ListConfiguration) domain.ListConfiguration {
	return domain.ListConfiguration{
		Categories:     cfg.Get(domain.ListCategories),
		DetectionAreas: cfg.Get(domain.ListDetectionAreas),
		OriginAreas:    cfg.Get(domain.ListOriginAreas),
		Salespeople:    cfg.Get(domain.ListSalespeople),
		Statuses:       cfg.Get(domain.ListStatuses),
		Roles:          cfg.Get(domain.ListRoles),
	}
}
