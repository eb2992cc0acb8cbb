/*
handlers.go - HTTP API handlers for the hours-allocation engine

PURPOSE:
  Exposes the allocation engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the engine and the
  run store.

ENDPOINTS:
  Reference data:
    GET    /api/health                 Liveness
    GET    /api/roles                  Role table
    GET    /api/networks               Configured networks and mode

  Allocation:
    POST   /api/compute                Run without persisting
    POST   /api/compute/export         Run without persisting, return xlsx

  Runs:
    POST   /api/runs                   Run and persist
    GET    /api/runs                   List persisted runs (newest first)
    GET    /api/runs/{id}              One run with rows and summary
    DELETE /api/runs/{id}              Delete a run
    GET    /api/runs/{id}/export       Workbook of a run

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Engine: read-only allocation policy, safe for concurrent runs
  - Normalizer: name aliases and role label canonicalization
  - Store: run persistence
  - Settings: default networks, default mode, export groups

REQUEST FLOW:
  1. Decode JSON body
  2. Validate (validator/v10 tags)
  3. Normalize workers (roster), parse payslip text if any
  4. Run the engine
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid body, validation errors, invalid period
  - 404: Run not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/export"
	"github.com/warp/hours-engine/factory"
	"github.com/warp/hours-engine/roster"
	"github.com/warp/hours-engine/store"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Settings are the request defaults taken from configuration.
type Settings struct {
	Networks   []string
	ConsumeAll bool
	Groups     []export.Group
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *allocation.Engine
	Normalizer *roster.Normalizer
	Store      store.RunStore
	Settings   Settings

	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler creates a handler. A nil logger disables logging.
func NewHandler(engine *allocation.Engine, normalizer *roster.Normalizer, runs store.RunStore, settings Settings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = roster.NewNormalizer(nil)
	}
	return &Handler{
		Engine:     engine,
		Normalizer: normalizer,
		Store:      runs,
		Settings:   settings,
		logger:     logger,
		validate:   newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRoles returns the engine's role table.
// GET /api/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.NewRoleFactory().ToJSON(h.Engine.Config().Roles))
}

// ListNetworks returns the configured networks and default mode.
// GET /api/networks
func (h *Handler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NetworksResponse{
		Networks:   nonNil(h.Settings.Networks),
		ConsumeAll: h.Settings.ConsumeAll,
	})
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Compute runs an allocation without persisting it.
// POST /api/compute
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCompute(w, r)
	if !ok {
		return
	}
	res, ok := h.run(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toComputeResponse(res))
}

// ComputeExport runs an allocation and returns the workbook directly.
// POST /api/compute/export
func (h *Handler) ComputeExport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCompute(w, r)
	if !ok {
		return
	}
	res, ok := h.run(w, req)
	if !ok {
		return
	}
	h.writeWorkbook(w, res)
}

// CreateRun runs an allocation and persists it.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCompute(w, r)
	if !ok {
		return
	}
	res, ok := h.run(w, req)
	if !ok {
		return
	}

	run := store.NewRun(res, req.MedicalBudget, req.Label)
	if err := h.Store.SaveRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save run", err)
		return
	}
	h.logger.Info("Run saved",
		zap.String("run_id", run.ID),
		zap.String("period", res.Period.String()),
		zap.Int("rows", len(run.Allocations)))

	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// decodeCompute reads and validates a ComputeRequest, writing a 400 on failure.
func (h *Handler) decodeCompute(w http.ResponseWriter, r *http.Request) (ComputeRequest, bool) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return req, false
	}
	return req, true
}

// run turns a request into engine input and runs it, writing errors itself.
func (h *Handler) run(w http.ResponseWriter, req ComputeRequest) (*allocation.Result, bool) {
	in := h.runInput(req)
	res, err := h.Engine.Run(in)
	if err != nil {
		if allocation.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid run input", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Allocation failed", err)
		}
		return nil, false
	}
	if !res.Balanced() {
		h.logger.Debug("Run is not balanced", zap.String("period", res.Period.String()))
	}
	return res, true
}

func (h *Handler) runInput(req ComputeRequest) allocation.RunInput {
	workers := make([]allocation.WorkerInput, 0, len(req.Workers))
	for _, wr := range req.Workers {
		workers = append(workers, wr.toWorkerInput())
	}
	if req.Payslips != "" {
		workers = append(workers, h.Normalizer.ParsePayslips(req.Payslips)...)
	}

	networks := req.Networks
	if len(networks) == 0 {
		networks = h.Settings.Networks
	}
	consumeAll := h.Settings.ConsumeAll
	if req.ConsumeAll != nil {
		consumeAll = *req.ConsumeAll
	}

	return allocation.RunInput{
		Networks:      networks,
		Year:          req.Year,
		Month:         req.Month,
		Workers:       h.Normalizer.Prepare(workers),
		ConsumeAll:    consumeAll,
		MedicalBudget: req.MedicalBudget,
	}
}

// =============================================================================
// RUNS
// =============================================================================

// ListRuns returns persisted runs, newest first.
// GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunSummaryDTO, len(runs))
	for i, s := range runs {
		dtos[i] = toRunSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its rows and summary.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// DeleteRun removes a run.
// DELETE /api/runs/{id}
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete run", err)
		return
	}
	h.logger.Info("Run deleted", zap.String("run_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// ExportRun returns the workbook of a persisted run.
// GET /api/runs/{id}/export
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeWorkbook(w, run.Result())
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", err)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return nil, false
	}
	return run, true
}

// writeWorkbook renders into a buffer first so a failure can still be a JSON error.
func (h *Handler) writeWorkbook(w http.ResponseWriter, res *allocation.Result) {
	var buf bytes.Buffer
	if err := export.Write(&buf, res, export.Options{Groups: h.Settings.Groups}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(res.Period)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
