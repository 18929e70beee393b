package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/deinJoni/artemis-hr-app-sub000/internal/log"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/engine"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
)

// StartServer serves the engine's inbound interfaces: trigger events, manual
// run starts, task completion and run inspection.
func StartServer(port string, store storage.Store) error {
	eng := engine.NewEngine(store, nil, log.GetLogger())
	log.GetLogger().Infof("Starting artemis server on :%s", port)
	return http.ListenAndServe(":"+port, NewRouter(eng))
}

func NewRouter(eng *engine.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", healthHandler)
	r.Post("/events", eventsHandler(eng))
	r.Post("/workflows/{id}/runs", startRunHandler(eng))
	r.Post("/steps/{id}/complete", completeStepHandler(eng))
	r.Get("/runs/{id}", getRunHandler(eng))
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventsHandler accepts a domain event and starts every matching run. It
// always answers 202: orchestration failures must never fail the business
// operation that raised the event, so they are reported in the body instead.
func eventsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev engine.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode event"))
			return
		}
		if ev.Type == "" || ev.TenantID == 0 {
			writeError(w, http.StatusBadRequest, errors.New("event type and tenant_id are required"))
			return
		}

		runIDs, errs := eng.HandleTrigger(r.Context(), ev)
		messages := make([]string, 0, len(errs))
		for _, err := range errs {
			log.GetLogger().Errorf("Trigger '%s' for tenant %d: %v", ev.Type, ev.TenantID, err)
			messages = append(messages, err.Error())
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"run_ids": runIDs,
			"errors":  messages,
		})
	}
}

func startRunHandler(eng *engine.Engine) http.HandlerFunc {
	type request struct {
		TenantID   int64           `json:"tenant_id"`
		EmployeeID *int64          `json:"employee_id,omitempty"`
		Context    json.RawMessage `json:"context,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		workflowID, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
			return
		}
		runID, err := eng.StartWorkflow(r.Context(), workflowID, req.TenantID, req.EmployeeID, req.Context)
		if err != nil {
			log.GetLogger().Errorf("Failed to start workflow %d: %v", workflowID, err)
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"run_id": runID})
	}
}

func completeStepHandler(eng *engine.Engine) http.HandlerFunc {
	type request struct {
		Result json.RawMessage `json:"result,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		stepID, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
			return
		}
		if err := eng.CompleteStep(r.Context(), stepID, req.Result); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			log.GetLogger().Errorf("Failed to complete step %d: %v", stepID, err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getRunHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		detail, err := eng.GetRun(runID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid %s", name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
