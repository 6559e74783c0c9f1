// Package interfaces defines core abstractions for the lab reference API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/document"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

// DataQualityReport provides a summary of reference data quality issues.
// Entries are "document/test" or "study/test@biomaterial" paths.
type DataQualityReport struct {
	Documents           int      `json:"documents"`
	Biomaterials        int      `json:"biomaterials"`
	Studies             int      `json:"studies"`
	Tests               int      `json:"tests"`
	TestsWithoutNameRU  []string `json:"tests_without_name_ru"`
	StudyTestsMissing   []string `json:"study_tests_missing"`   // declared by a study, absent from an eligible catalog
	UnreadableDocuments []string `json:"unreadable_documents"` // documents that failed to load
}

// Snapshot is one consistent, read-only load of the reference set.
// It is swapped as a whole on reload.
type Snapshot struct {
	Location     string
	Registry     *study.Registry
	Catalogs     map[string]*catalog.Catalog // every loadable reference document by key
	TestTypes    []string                    // sorted keys of Catalogs
	Biomaterials []source.Info
	Report       *DataQualityReport
	LoadedAt     time.Time
}

// DataStore defines the contract for data storage operations.
// It provides thread-safe access to the current snapshot
// with atomic operations for zero-downtime updates.
type DataStore interface {
	// Data retrieval methods
	GetSnapshot() *Snapshot
	GetRegistry() *study.Registry
	GetCatalog(key string) (*catalog.Catalog, bool)
	GetTestTypes() []string
	GetBiomaterials() []source.Info
	GetDataQualityReport() *DataQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(snapshot *Snapshot)
	BeginUpdate() bool
	EndUpdate()
}

// Loader builds a snapshot from a reference source.
// It handles reading, validating and indexing every document.
type Loader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	Location() string
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated data reloads and system health checks.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// Reloader reloads the reference set on demand
type Reloader interface {
	Reload(ctx context.Context) error
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	// Biomaterial and test type endpoints
	ServeBiomaterials(w http.ResponseWriter, r *http.Request)
	ServeTestTypes(w http.ResponseWriter, r *http.Request)
	ServeCatalog(w http.ResponseWriter, r *http.Request)
	ServeReference(w http.ResponseWriter, r *http.Request)
	CheckValues(w http.ResponseWriter, r *http.Request)

	// Study endpoints
	ServeStudies(w http.ResponseWriter, r *http.Request)
	ServeStudy(w http.ResponseWriter, r *http.Request)
	SearchStudies(w http.ResponseWriter, r *http.Request)
	EvaluateStudy(w http.ResponseWriter, r *http.Request)

	// This will stay in all versions
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled reload time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
// It ensures data integrity and consistency.
type DataValidator interface {
	// ValidateReferenceDocument checks a biomaterial or test type document
	ValidateReferenceDocument(doc *document.Node) error

	// ValidateStudyDocument checks the lab_studies document
	ValidateStudyDocument(doc *document.Node) error

	// ValidateInput validates identifiers taken from the URL
	ValidateInput(input string) error

	// ValidateSex normalizes an optional sex parameter
	ValidateSex(input string) (string, error)

	// ValidateAge parses an optional age parameter
	ValidateAge(input string) (*float64, error)

	// ValidateAgeValue checks an age from a request body
	ValidateAgeValue(age *float64) error

	// ValidateValue checks a submitted measurement
	ValidateValue(name string, value float64) error
}
