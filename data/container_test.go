package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

func testSnapshot(t *testing.T) *interfaces.Snapshot {
	t.Helper()
	p := source.NewBuiltinProvider()
	reg, err := study.NewRegistry(context.Background(), p)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	venous, err := catalog.Load(context.Background(), "venous_blood", p)
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	return &interfaces.Snapshot{
		Location:     p.Location(),
		Registry:     reg,
		Catalogs:     map[string]*catalog.Catalog{"venous_blood": venous},
		TestTypes:    []string{"venous_blood"},
		Biomaterials: []source.Info{{Key: "venous_blood", Name: "Венозная кровь", BiomaterialType: "venous_blood"}},
		Report:       &interfaces.DataQualityReport{Documents: 1, Biomaterials: 1, Studies: reg.Definitions().Len()},
		LoadedAt:     time.Now(),
	}
}

func TestNewDataContainer(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	if dc == nil {
		t.Fatal("NewDataContainer returned nil")
	}

	// Test initial state
	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}

	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}

	if dc.IsLoaded() {
		t.Error("NewDataContainer should not report a loaded snapshot")
	}

	if dc.GetRegistry() != nil {
		t.Error("NewDataContainer should have no registry")
	}

	if len(dc.GetTestTypes()) != 0 {
		t.Error("NewDataContainer should have no test types")
	}

	if len(dc.GetBiomaterials()) != 0 {
		t.Error("NewDataContainer should have no biomaterials")
	}

	if _, ok := dc.GetCatalog("venous_blood"); ok {
		t.Error("NewDataContainer should have no catalogs")
	}

	if dc.GetDataQualityReport() == nil {
		t.Error("GetDataQualityReport should never return nil")
	}
}

func TestUpdateData(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	snapshot := testSnapshot(t)

	dc.UpdateData(snapshot)

	if dc.GetSnapshot() != snapshot {
		t.Error("Expected the stored snapshot to be returned")
	}

	if !dc.IsLoaded() {
		t.Error("Expected container to be loaded after UpdateData")
	}

	c, ok := dc.GetCatalog("venous_blood")
	if !ok {
		t.Fatal("Expected venous_blood catalog")
	}
	if c.Type() != "venous_blood" {
		t.Errorf("Expected catalog type venous_blood, got %s", c.Type())
	}

	if len(dc.GetBiomaterials()) != 1 {
		t.Errorf("Expected 1 biomaterial, got %d", len(dc.GetBiomaterials()))
	}

	if got := dc.GetDataQualityReport().Documents; got != 1 {
		t.Errorf("Expected 1 document in report, got %d", got)
	}

	// Check last updated was set
	if dc.GetLastUpdated().IsZero() {
		t.Error("LastUpdated should be set after UpdateData")
	}
}

func TestUpdateDataIgnoresNil(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	snapshot := testSnapshot(t)
	dc.UpdateData(snapshot)
	before := dc.GetLastUpdated()

	dc.UpdateData(nil)

	if dc.GetSnapshot() != snapshot {
		t.Error("Nil update should keep the previous snapshot")
	}
	if !dc.GetLastUpdated().Equal(before) {
		t.Error("Nil update should not touch lastUpdated")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	// Test initial state
	if dc.IsUpdating() {
		t.Error("Should not be updating initially")
	}

	// Test BeginUpdate
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should return true first time")
	}

	if !dc.IsUpdating() {
		t.Error("Should be updating after BeginUpdate")
	}

	// Test that second BeginUpdate fails
	if dc.BeginUpdate() {
		t.Error("BeginUpdate should return false when already updating")
	}

	// Test EndUpdate
	dc.EndUpdate()

	if dc.IsUpdating() {
		t.Error("Should not be updating after EndUpdate")
	}

	// Test that BeginUpdate works again after EndUpdate
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should return true after EndUpdate")
	}

	dc.EndUpdate()
}

func TestServerStartTime(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero server start time")
	}

	now := time.Now()
	dc.SetServerStartTime(now)
	if !dc.GetServerStartTime().Equal(now) {
		t.Errorf("Expected %v, got %v", now, dc.GetServerStartTime())
	}
}

func TestConcurrentAccess(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	first := testSnapshot(t)
	second := testSnapshot(t)

	// Set initial data
	dc.UpdateData(first)

	var wg sync.WaitGroup
	numReaders := 10
	numWriters := 3

	// Start concurrent readers
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := dc.GetSnapshot()

				// A reader sees either snapshot in full, never a mix
				if s != first && s != second {
					t.Errorf("Reader %d: unexpected snapshot", id)
				}
				if s.Registry == nil {
					t.Errorf("Reader %d: Expected a registry", id)
				}
				if dc.GetLastUpdated().IsZero() {
					t.Errorf("Reader %d: Expected non-zero lastUpdated", id)
				}

				time.Sleep(time.Microsecond)
			}
		}(i)
	}

	// Start concurrent writers
	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if dc.BeginUpdate() {
					// Simulate some work
					time.Sleep(time.Microsecond * 100)

					if (id+j)%2 == 0 {
						dc.UpdateData(second)
					} else {
						dc.UpdateData(first)
					}
					dc.EndUpdate()
				}
				time.Sleep(time.Microsecond * 10)
			}
		}(i)
	}

	wg.Wait()

	if dc.IsUpdating() {
		t.Error("Should not be updating after all writers finished")
	}
}
