// Package data provides thread-safe data storage and management for the lab reference API.
// It includes the DataContainer struct with atomic operations for zero-downtime reloads
// of the reference snapshot.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the current snapshot behind an atomic pointer
type DataContainer struct {
	snapshot        atomic.Value // *interfaces.Snapshot
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with an empty snapshot
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.snapshot.Store(emptySnapshot())
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{}) // Initialize with zero value
	return dc
}

func emptySnapshot() *interfaces.Snapshot {
	return &interfaces.Snapshot{
		Catalogs:     make(map[string]*catalog.Catalog),
		TestTypes:    []string{},
		Biomaterials: []source.Info{},
		Report:       &interfaces.DataQualityReport{},
	}
}

// Thread-safe getters with type check

// GetSnapshot returns the current snapshot, never nil
func (dc *DataContainer) GetSnapshot() *interfaces.Snapshot {
	if v := dc.snapshot.Load(); v != nil {
		if s, ok := v.(*interfaces.Snapshot); ok && s != nil {
			return s
		}
	}

	logging.Warn("Snapshot is empty or invalid")
	return emptySnapshot()
}

// IsLoaded reports whether a snapshot with a registry has been stored
func (dc *DataContainer) IsLoaded() bool {
	return dc.GetSnapshot().Registry != nil
}

// GetRegistry returns the study registry, nil before the first load
func (dc *DataContainer) GetRegistry() *study.Registry {
	return dc.GetSnapshot().Registry
}

// GetCatalog returns the catalog loaded for a document key
func (dc *DataContainer) GetCatalog(key string) (*catalog.Catalog, bool) {
	c, ok := dc.GetSnapshot().Catalogs[key]
	return c, ok
}

// GetTestTypes returns the loaded document keys, sorted
func (dc *DataContainer) GetTestTypes() []string {
	return dc.GetSnapshot().TestTypes
}

// GetBiomaterials returns the metadata of biomaterial documents
func (dc *DataContainer) GetBiomaterials() []source.Info {
	return dc.GetSnapshot().Biomaterials
}

// GetDataQualityReport returns the report computed with the snapshot
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	if r := dc.GetSnapshot().Report; r != nil {
		return r
	}
	return &interfaces.DataQualityReport{}
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the snapshot. A nil snapshot is ignored.
func (dc *DataContainer) UpdateData(snapshot *interfaces.Snapshot) {
	if snapshot == nil {
		logging.Warn("Ignoring nil snapshot update")
		return
	}

	// Atomic swap (zero downtime replacement)
	dc.snapshot.Store(snapshot)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
