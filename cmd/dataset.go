package main

import (
	"sync"
	"time"

	"github.com/sells-group/carpark-cli/internal/model"
	"github.com/sells-group/carpark-cli/internal/monitoring"
)

// dataset is the facility set the server answers from. Refreshes replace it
// wholesale.
type dataset struct {
	mu          sync.RWMutex
	snapshotID  string
	facilities  []model.Facility
	byID        map[string]int
	refreshedAt time.Time
}

func newDataset() *dataset {
	return &dataset{byID: map[string]int{}}
}

// Replace swaps in the facilities from s.
func (d *dataset) Replace(s *snapshot) {
	byID := make(map[string]int, len(s.Facilities))
	for i, f := range s.Facilities {
		byID[f.ID] = i
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshotID = s.ID
	d.facilities = s.Facilities
	d.byID = byID
	d.refreshedAt = s.GeneratedAt

	monitoring.FacilitiesGauge.Set(float64(len(s.Facilities)))
}

// All returns a copy of the current facilities. Callers may annotate the
// copies without affecting the dataset.
func (d *dataset) All() []model.Facility {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Facility, len(d.facilities))
	copy(out, d.facilities)
	return out
}

// Get returns the facility with id.
func (d *dataset) Get(id string) (model.Facility, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.byID[id]
	if !ok {
		return model.Facility{}, false
	}
	return d.facilities[i], true
}

// Status implements monitoring.DatasetSource.
func (d *dataset) Status() monitoring.DatasetStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := monitoring.DatasetStatus{
		Facilities:  len(d.facilities),
		RefreshedAt: d.refreshedAt,
	}
	for _, f := range d.facilities {
		if !f.UpdatedAt.IsZero() {
			st.WithAvailability++
		}
		st.AvailableLots += f.AvailableLots
	}
	return st
}
