/*
scenarios.go - Demo scenarios for testing and demonstrations

PURPOSE:

	Provides pre-built payroll months that run through the configured engine
	and are saved as runs. Each scenario shows one allocation feature.

AVAILABLE SCENARIOS:

	consume-all:    every hour placed, round-robin across networks
	strict:         deficit-first placement capped at demand, leftovers reported
	on-call:        on-call hours at the flat rate, residual to the fallback identity
	medical-budget: residual medical demand priced from the monthly budget

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "strict"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and request

NOTE:

	Scenarios add a run labeled "scenario: <id>". Existing runs are kept.

SEE ALSO:
  - handlers.go: CreateRun shares the request path
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/store"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	request ComputeRequest
}

var scenarioNetworks = []string{"RETE1", "RETE2"}

func cost(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mode(consumeAll bool) *bool { return &consumeAll }

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "consume-all",
			Name:        "Consume All",
			Description: "Every declared hour is placed, alternating networks",
		},
		request: ComputeRequest{
			Year: 2025, Month: 2, Networks: scenarioNetworks, ConsumeAll: mode(true),
			Workers: []WorkerRequest{
				{Name: "Anna Neri", OrdinaryHours: 60, CostHour: cost("19.35"), Roles: []string{"Operatore Sociale"}},
				{Name: "Luca Verdi", OrdinaryHours: 40, CostHour: cost("17.80"), Roles: []string{"OG"}},
				{Name: "Sara Gialli", OrdinaryHours: 30, CostHour: cost("18.10"), Roles: []string{"Mediatore"}},
				{Name: "Paolo Blu", OrdinaryHours: 16, CostHour: cost("25.00"), Roles: []string{"Direttore"}},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "strict",
			Name:        "Strict",
			Description: "Hours fill the largest deficit first and stop at demand",
		},
		request: ComputeRequest{
			Year: 2025, Month: 2, Networks: scenarioNetworks, ConsumeAll: mode(false),
			Workers: []WorkerRequest{
				{Name: "Anna Neri", OrdinaryHours: 300, CostHour: cost("19.35"), Roles: []string{"OS"}},
				{Name: "Luca Verdi", OrdinaryHours: 900, CostHour: cost("17.80"), Roles: []string{"OG"}},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "on-call",
			Name:        "On-Call",
			Description: "On-call hours at the flat rate, residual demand to the fallback identity",
		},
		request: ComputeRequest{
			Year: 2025, Month: 2, Networks: scenarioNetworks, ConsumeAll: mode(false),
			Workers: []WorkerRequest{
				{Name: "Anna Neri", OrdinaryHours: 80, OnCallHours: 120, CostHour: cost("19.35"), Roles: []string{"OS"}},
				{Name: "Luca Verdi", OrdinaryHours: 80, OnCallHours: 96, CostHour: cost("17.80"), Roles: []string{"OG"}},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "medical-budget",
			Name:        "Medical Budget",
			Description: "A partly covered medical demand, the rest priced from the budget",
		},
		request: ComputeRequest{
			Year: 2025, Month: 2, Networks: scenarioNetworks, ConsumeAll: mode(false),
			MedicalBudget: decimal.NewFromInt(1680),
			Workers: []WorkerRequest{
				{Name: "Dott. Bruno", OrdinaryHours: 84, CostHour: cost("40.00"), Roles: []string{"Medico"}},
				{Name: "Anna Neri", OrdinaryHours: 120, CostHour: cost("19.35"), Roles: []string{"OS"}},
			},
		},
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario runs a predefined scenario and saves it as a run.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	res, ok := h.run(w, found.request)
	if !ok {
		return
	}
	run := store.NewRun(res, found.request.MedicalBudget, "scenario: "+found.ID)
	if err := h.Store.SaveRun(r.Context(), run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scenario run", err)
		return
	}
	h.logger.Info("Scenario loaded", zap.String("scenario", found.ID), zap.String("run_id", run.ID))

	writeJSON(w, http.StatusCreated, toRunDTO(run))
}
