/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine types from the external API contract.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers
  - *DTO:      Items inside responses

VALIDATION:
  Request types carry validator/v10 tags. Money fields are decimal.Decimal;
  a custom type func lets numeric tags (gte=0) apply to them.

SEE ALSO:
  - handlers.go: Uses these types
  - allocation/types.go: WorkerInput, AllocationRow, DemandSummary
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/store"
)

// =============================================================================
// REQUESTS
// =============================================================================

// WorkerRequest is one worker record. Names are normalized and aliased
// server-side; blank names are skipped and repeated names merged.
type WorkerRequest struct {
	Name          string          `json:"name" validate:"max=200"`
	OrdinaryHours float64         `json:"ordinary_hours" validate:"gte=0"`
	OvertimeHours float64         `json:"overtime_hours" validate:"gte=0"`
	OnCallHours   float64         `json:"on_call_hours" validate:"gte=0"`
	CostHour      decimal.Decimal `json:"cost_hour" validate:"gte=0"`
	Roles         []string        `json:"roles" validate:"dive,max=64"`
	FlatRateTotal decimal.Decimal `json:"flat_rate_total" validate:"gte=0"`
}

// ComputeRequest asks for one allocation run.
// Networks default to the configured list, ConsumeAll to the configured mode.
type ComputeRequest struct {
	Year          int             `json:"year" validate:"min=2000,max=2100"`
	Month         int             `json:"month" validate:"min=1,max=12"`
	Networks      []string        `json:"networks,omitempty" validate:"dive,required"`
	ConsumeAll    *bool           `json:"consume_all,omitempty"`
	MedicalBudget decimal.Decimal `json:"medical_budget" validate:"gte=0"`
	Workers       []WorkerRequest `json:"workers" validate:"dive"`
	Payslips      string          `json:"payslips,omitempty"`
	Label         string          `json:"label,omitempty" validate:"max=200"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ComputeResponse is the full output of a run.
type ComputeResponse struct {
	Period           string                       `json:"period"`
	Networks         []string                     `json:"networks"`
	ConsumeAll       bool                         `json:"consume_all"`
	Allocations      []allocation.AllocationRow   `json:"allocations"`
	Pivot            []allocation.PivotCell       `json:"pivot"`
	Summary          []allocation.DemandSummary   `json:"summary"`
	Leftovers        []allocation.Leftover        `json:"leftovers"`
	SupervisorSplits []allocation.SupervisorSplit `json:"supervisor_splits"`
	Balanced         bool                         `json:"balanced"`
	TotalHours       float64                      `json:"total_hours"`
	TotalAmount      decimal.Decimal              `json:"total_amount"`
}

// RunDTO is a persisted run with its full output.
type RunDTO struct {
	ID            string          `json:"id"`
	Label         string          `json:"label,omitempty"`
	CreatedAt     string          `json:"created_at"`
	MedicalBudget decimal.Decimal `json:"medical_budget"`
	ComputeResponse
}

// RunSummaryDTO is a run in list responses.
type RunSummaryDTO struct {
	ID          string          `json:"id"`
	Label       string          `json:"label,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Period      string          `json:"period"`
	ConsumeAll  bool            `json:"consume_all"`
	Rows        int             `json:"rows"`
	TotalHours  float64         `json:"total_hours"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Balanced    bool            `json:"balanced"`
}

// NetworksResponse lists the configured networks.
type NetworksResponse struct {
	Networks   []string `json:"networks"`
	ConsumeAll bool     `json:"consume_all"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (req WorkerRequest) toWorkerInput() allocation.WorkerInput {
	roles := make([]allocation.Role, len(req.Roles))
	for i, r := range req.Roles {
		roles[i] = allocation.Role(r)
	}
	return allocation.WorkerInput{
		Name:          req.Name,
		OrdinaryHours: req.OrdinaryHours,
		OvertimeHours: req.OvertimeHours,
		OnCallHours:   req.OnCallHours,
		CostHour:      req.CostHour,
		Roles:         roles,
		FlatRateTotal: req.FlatRateTotal,
	}
}

func toComputeResponse(res *allocation.Result) ComputeResponse {
	var hours float64
	for _, r := range res.Allocations {
		hours += r.Hours
	}
	return ComputeResponse{
		Period:           res.Period.String(),
		Networks:         nonNil(res.Networks),
		ConsumeAll:       res.ConsumeAll,
		Allocations:      nonNil(res.Allocations),
		Pivot:            nonNil(res.Pivot()),
		Summary:          nonNil(res.Summary),
		Leftovers:        nonNil(res.Leftovers),
		SupervisorSplits: nonNil(res.SupervisorSplits),
		Balanced:         res.Balanced(),
		TotalHours:       hours,
		TotalAmount:      res.TotalAmount(),
	}
}

func toRunDTO(run *store.Run) RunDTO {
	return RunDTO{
		ID:              run.ID,
		Label:           run.Label,
		CreatedAt:       run.CreatedAt.Format(time.RFC3339),
		MedicalBudget:   run.MedicalBudget,
		ComputeResponse: toComputeResponse(run.Result()),
	}
}

func toRunSummaryDTO(s store.RunSummary) RunSummaryDTO {
	return RunSummaryDTO{
		ID:          s.ID,
		Label:       s.Label,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		Period:      allocation.Period{Year: s.Year, Month: time.Month(s.Month)}.String(),
		ConsumeAll:  s.ConsumeAll,
		Rows:        s.Rows,
		TotalHours:  s.TotalHours,
		TotalAmount: s.TotalAmount,
		Balanced:    s.Balanced,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
