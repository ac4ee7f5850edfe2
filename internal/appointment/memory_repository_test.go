package appointment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memRepository is a mutex guarded Repository used to exercise the service,
// including concurrent confirmations, without a database.
type memRepository struct {
	mu          sync.Mutex
	nextID      int64
	items       map[int64]*Appointment
	transitions []Transition
}

func newMemRepository() *memRepository {
	return &memRepository{items: map[int64]*Appointment{}}
}

func clone(a *Appointment) *Appointment {
	c := *a
	if a.ConfirmedTime != nil {
		t := *a.ConfirmedTime
		c.ConfirmedTime = &t
	}
	return &c
}

func (r *memRepository) record(id int64, ev Event, state State, actorID *int64) {
	r.transitions = append(r.transitions, Transition{
		ID:            int64(len(r.transitions) + 1),
		AppointmentID: id,
		Event:         ev,
		State:         state,
		ActorID:       actorID,
		OccurredAt:    time.Now(),
	})
}

func (r *memRepository) Create(_ context.Context, a *Appointment, actorID *int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	c := clone(a)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.items[c.ID] = c
	r.record(c.ID, EventRequested, c.State, actorID)
	return clone(c), nil
}

func (r *memRepository) GetByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return clone(a), nil
}

func (r *memRepository) List(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f = f.Normalize()
	result := make([]Appointment, 0)
	for _, a := range r.items {
		switch {
		case f.DateFrom != nil && a.RequestedTime.Before(*f.DateFrom):
			continue
		case f.DateTo != nil && a.RequestedTime.After(*f.DateTo):
			continue
		case f.State != nil && a.State != *f.State:
			continue
		case f.ProviderID != nil && a.ProviderID != *f.ProviderID:
			continue
		case f.RequesterID != nil && a.RequesterID != *f.RequesterID:
			continue
		}
		result = append(result, *clone(a))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].RequestedTime.Equal(result[j].RequestedTime) {
			return result[i].RequestedTime.Before(result[j].RequestedTime)
		}
		return result[i].ID < result[j].ID
	})

	if f.Offset >= len(result) {
		return []Appointment{}, nil
	}
	result = result[f.Offset:]
	if len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (r *memRepository) Mutate(_ context.Context, id int64, actorID *int64, fn MutateFunc) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	current := clone(stored)
	ev, err := fn(current)
	if err != nil {
		return nil, err
	}
	if ev == "" {
		return clone(stored), nil
	}

	if NeedsSlotCheck(*stored, *current) {
		for _, other := range r.items {
			if other.ID != id &&
				other.ProviderID == current.ProviderID &&
				other.State == StateConfirmed &&
				other.ConfirmedTime != nil &&
				other.ConfirmedTime.Equal(*current.ConfirmedTime) {
				return nil, ErrSlotTaken
			}
		}
	}

	r.items[id] = current
	r.record(id, ev, current.State, actorID)
	return clone(current), nil
}

func (r *memRepository) History(_ context.Context, id int64) ([]Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Transition, 0)
	for _, t := range r.transitions {
		if t.AppointmentID == id {
			result = append(result, t)
		}
	}
	return result, nil
}
