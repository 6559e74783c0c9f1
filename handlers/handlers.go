package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/study"
)

// maxBodyBytes bounds JSON request bodies independently of the server
// middleware
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    int      `json:"code"`
	Hints   []string `json:"hints,omitempty"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// TestSummary describes one test of a catalog
type TestSummary struct {
	Name   string   `json:"name"`
	NameRU string   `json:"name_ru"`
	Unit   string   `json:"unit"`
	Code   string   `json:"code,omitempty"`
	Sexes  []string `json:"sexes"`
}

// CatalogResponse is a catalog's metadata with its tests in source order
type CatalogResponse struct {
	catalog.Metadata
	Location string        `json:"location"`
	Tests    []TestSummary `json:"tests"`
}

// ReferenceResponse is a resolved range for one patient
type ReferenceResponse struct {
	Test        string            `json:"test"`
	NameRU      string            `json:"name_ru"`
	Biomaterial string            `json:"biomaterial"`
	Patient     reference.Patient `json:"patient"`
	Reference   reference.Range   `json:"reference"`
	Display     string            `json:"display"`
}

// Outcome is the evaluation of one submitted value. Status is empty and
// Error set when no range applies.
type Outcome struct {
	Test      string           `json:"test"`
	NameRU    string           `json:"name_ru"`
	Value     float64          `json:"value"`
	Status    reference.Status `json:"status,omitempty"`
	Reference *reference.Range `json:"reference,omitempty"`
	Display   string           `json:"display,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// CheckResponse is the body returned by the catalog check endpoint
type CheckResponse struct {
	Biomaterial string            `json:"biomaterial"`
	Patient     reference.Patient `json:"patient"`
	Outcomes    []Outcome         `json:"outcomes"`
}

// StudySearchResponse lists the studies that declare a test
type StudySearchResponse struct {
	Test    string       `json:"test"`
	Studies []study.Info `json:"studies"`
}

// StudyResultResponse is an evaluated study result
type StudyResultResponse struct {
	ID               uuid.UUID         `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	Study            study.Info        `json:"study"`
	Biomaterial      catalog.Metadata  `json:"biomaterial"`
	Patient          reference.Patient `json:"patient"`
	Tests            []Outcome         `json:"tests"`
	Summary          study.Summary     `json:"summary"`
	MissingRequired  []string          `json:"missing_required"`
	HasAbnormalities bool              `json:"has_abnormalities"`
}

// CheckRequest is the body of the catalog check endpoint
type CheckRequest struct {
	Sex    string             `json:"sex"`
	Age    *float64           `json:"age"`
	Values map[string]float64 `json:"values"`
}

// StudyResultRequest is the body of the study results endpoint. An empty
// biomaterial selects the study's preferred one.
type StudyResultRequest struct {
	Biomaterial string             `json:"biomaterial"`
	Sex         string             `json:"sex"`
	Age         *float64           `json:"age"`
	Values      map[string]float64 `json:"values"`
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// RespondWithErr maps an error kind to its HTTP status and writes it with
// any hints attached to the error
func RespondWithErr(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logging.Error("Request failed", "error", err, "status", code)
	}

	resp := ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
		Code:    code,
	}
	if hints := errors.FlattenHints(err); hints != "" {
		resp.Hints = strings.Split(hints, "\n--\n")
	}
	RespondWithJSON(w, code, resp)
}

// StatusFor returns the HTTP status of an error kind
func StatusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsUsageError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object and rejects unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.New("request body is empty")
		}
		return errors.Wrap(err, "invalid JSON body")
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func outcomeOf(o catalog.Outcome) Outcome {
	out := Outcome{
		Test:      o.Test,
		NameRU:    o.NameRU,
		Value:     o.Value,
		Status:    o.Status,
		Reference: o.Reference,
	}
	if o.Reference != nil {
		out.Display = o.Reference.String()
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

func outcomeOfTest(t *reference.Test) Outcome {
	value, _ := t.Value()
	out := Outcome{Test: t.Name(), NameRU: t.NameRU(), Value: value}

	r, err := t.Reference()
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Reference = &r
	out.Display = r.String()
	out.Status, _ = t.Status()
	return out
}

func testSummaries(c *catalog.Catalog) []TestSummary {
	out := make([]TestSummary, 0, c.Len())
	for _, name := range c.ListTests() {
		t, err := c.GetTable(name)
		if err != nil {
			continue
		}
		out = append(out, TestSummary{
			Name:   t.Name(),
			NameRU: t.NameRU(),
			Unit:   t.Unit(),
			Code:   t.Code(),
			Sexes:  t.SexKeys(),
		})
	}
	return out
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
