// Package handlers provides HTTP request handlers for the lab reference API.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/metrics"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/study"
	"github.com/giygas/labref-api/validation"
)

var (
	_ interfaces.HTTPHandler   = (*HTTPHandlerImpl)(nil)
	_ interfaces.DataValidator = (*validation.DataValidatorImpl)(nil)
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// registry returns the loaded study registry or writes 503
func (h *HTTPHandlerImpl) registry(w http.ResponseWriter) (*study.Registry, bool) {
	reg := h.dataStore.GetRegistry()
	if reg == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Reference data is not loaded yet")
		return nil, false
	}
	return reg, true
}

// identifier reads and validates a URL parameter
func (h *HTTPHandlerImpl) identifier(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	value := chi.URLParam(r, param)
	if value == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing "+param)
		return "", false
	}
	if err := h.validator.ValidateInput(value); err != nil {
		logging.Warn("Unusual user input", param, value, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return value, true
}

// catalog looks a document up by the {type} URL parameter
func (h *HTTPHandlerImpl) catalog(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	key, ok := h.identifier(w, r, "type")
	if !ok {
		return nil, false
	}
	if _, ok := h.registry(w); !ok {
		return nil, false
	}
	c, found := h.dataStore.GetCatalog(key)
	if !found {
		RespondWithErr(w, errors.WithHintf(
			errors.Wrapf(errors.ErrSourceNotFound, "reference document %q", key),
			"available: GET /biomaterials or GET /types"))
		return nil, false
	}
	return c, true
}

func (h *HTTPHandlerImpl) patient(sex string, age *float64) (reference.Patient, error) {
	s, err := h.validator.ValidateSex(sex)
	if err != nil {
		return reference.Patient{}, err
	}
	if err := h.validator.ValidateAgeValue(age); err != nil {
		return reference.Patient{}, err
	}
	return reference.Patient{Sex: s, Age: age}, nil
}

func (h *HTTPHandlerImpl) values(values map[string]float64) error {
	if len(values) == 0 {
		return errors.New("values must contain at least one test")
	}
	for name, v := range values {
		if err := h.validator.ValidateInput(name); err != nil {
			return errors.Wrapf(err, "test name %q", name)
		}
		if err := h.validator.ValidateValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// ServeBiomaterials lists the documents that declare a biomaterial type
func (h *HTTPHandlerImpl) ServeBiomaterials(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.registry(w); !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, h.dataStore.GetBiomaterials())
}

// ServeTestTypes lists every loadable reference document key
func (h *HTTPHandlerImpl) ServeTestTypes(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.registry(w); !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, h.dataStore.GetTestTypes())
}

// ServeCatalog returns the metadata and tests of one document
func (h *HTTPHandlerImpl) ServeCatalog(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, CatalogResponse{
		Metadata: c.Metadata(),
		Location: c.Location(),
		Tests:    testSummaries(c),
	})
}

// ServeReference resolves the range of one test for the sex and age query
// parameters
func (h *HTTPHandlerImpl) ServeReference(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	name, ok := h.identifier(w, r, "test")
	if !ok {
		return
	}

	query := r.URL.Query()
	sex, err := h.validator.ValidateSex(query.Get("sex"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	age, err := h.validator.ValidateAge(query.Get("age"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := reference.Patient{Sex: sex, Age: age}

	t, err := c.GetTable(name)
	if err != nil {
		RespondWithErr(w, err)
		return
	}
	rng, err := t.Resolve(p)
	if err != nil {
		RespondWithErr(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, ReferenceResponse{
		Test:        t.Name(),
		NameRU:      t.NameRU(),
		Biomaterial: c.Type(),
		Patient:     p,
		Reference:   rng,
		Display:     rng.String(),
	})
}

// CheckValues classifies submitted values against one document. Tests
// that cannot be evaluated are reported per outcome.
func (h *HTTPHandlerImpl) CheckValues(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}

	var req CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.patient(req.Sex, req.Age)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.values(req.Values); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	evaluated := c.Evaluate(req.Values, p)
	outcomes := make([]Outcome, len(evaluated))
	for i, o := range evaluated {
		outcomes[i] = outcomeOf(o)
		observe(c.Type(), o.Status, o.Err)
	}

	RespondWithJSON(w, http.StatusOK, CheckResponse{
		Biomaterial: c.Type(),
		Patient:     p,
		Outcomes:    outcomes,
	})
}

// ServeStudies lists every study in source order
func (h *HTTPHandlerImpl) ServeStudies(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w)
	if !ok {
		return
	}
	names := reg.ListStudies()
	out := make([]study.Info, 0, len(names))
	for _, name := range names {
		info, err := reg.StudyInfo(name)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	RespondWithJSON(w, http.StatusOK, out)
}

// ServeStudy returns one study
func (h *HTTPHandlerImpl) ServeStudy(w http.ResponseWriter, r *http.Request) {
	name, ok := h.identifier(w, r, "name")
	if !ok {
		return
	}
	reg, ok := h.registry(w)
	if !ok {
		return
	}
	info, err := reg.StudyInfo(name)
	if err != nil {
		RespondWithErr(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, info)
}

// SearchStudies lists the studies declaring the test query parameter.
// No match is an empty list.
func (h *HTTPHandlerImpl) SearchStudies(w http.ResponseWriter, r *http.Request) {
	test := r.URL.Query().Get("test")
	if test == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing test query parameter")
		return
	}
	if err := h.validator.ValidateInput(test); err != nil {
		logging.Warn("Unusual user input", "test", test, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	reg, ok := h.registry(w)
	if !ok {
		return
	}

	resp := StudySearchResponse{Test: test, Studies: []study.Info{}}
	for _, name := range reg.FindStudiesWithTest(test) {
		if info, err := reg.StudyInfo(name); err == nil {
			resp.Studies = append(resp.Studies, info)
		}
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// EvaluateStudy creates a study result from submitted values and returns
// it evaluated. Every value must belong to the study.
func (h *HTTPHandlerImpl) EvaluateStudy(w http.ResponseWriter, r *http.Request) {
	name, ok := h.identifier(w, r, "name")
	if !ok {
		return
	}
	reg, ok := h.registry(w)
	if !ok {
		return
	}

	var req StudyResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Biomaterial != "" {
		if err := h.validator.ValidateInput(req.Biomaterial); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	p, err := h.patient(req.Sex, req.Age)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.values(req.Values); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := reg.CreateResult(r.Context(), name, req.Biomaterial, p)
	if err != nil {
		RespondWithErr(w, err)
		return
	}
	if err := res.AddResults(req.Values); err != nil {
		RespondWithErr(w, err)
		return
	}

	tests := res.Tests()
	outcomes := make([]Outcome, len(tests))
	for i, t := range tests {
		outcomes[i] = outcomeOfTest(t)
		status, err := t.Status()
		observe(res.Biomaterial(), status, err)
	}
	missing := res.MissingRequired()
	if missing == nil {
		missing = []string{}
	}

	RespondWithJSON(w, http.StatusCreated, StudyResultResponse{
		ID:               res.ID,
		CreatedAt:        res.CreatedAt.UTC(),
		Study:            res.StudyInfo(),
		Biomaterial:      res.BiomaterialInfo(),
		Patient:          res.Patient(),
		Tests:            outcomes,
		Summary:          res.Summary(),
		MissingRequired:  missing,
		HasAbnormalities: res.HasAbnormalities(),
	})
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, details, httpStatus := h.healthChecker.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}

// observe counts a classification; an unresolved range and other errors
// are counted apart
func observe(biomaterial string, status reference.Status, err error) {
	switch {
	case err == nil:
		metrics.ObserveClassification(biomaterial, string(status))
	case errors.Is(err, errors.ErrReferenceNotFound):
		metrics.ObserveClassification(biomaterial, metrics.StatusUnresolved)
	default:
		metrics.ObserveClassification(biomaterial, metrics.StatusError)
	}
}
