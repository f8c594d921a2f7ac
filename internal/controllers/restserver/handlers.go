package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/internal/rainfall"
	"github.com/chrissnell/clarkhydro/internal/recorder"
	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/chrissnell/clarkhydro/pkg/responseformat"
	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxRequestBytes = 8 << 20
	defaultRunLimit = 50
	maxRunLimit     = 1000

	// upper bound on curve entries x rain pulses x time steps for one request
	maxConvolutionWork = 200_000_000
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// CreateHydrograph computes a hydrograph from a curve (or raw report rows) and a
// rainfall series posted in the body
func (h *Handlers) CreateHydrograph(w http.ResponseWriter, req *http.Request) {
	var body HydrographRequest
	if err := decodeBody(req, &body); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var curve *pipeline.Curve
	switch {
	case len(body.Curve) > 0 && len(body.ReportRows) > 0:
		h.formatter.WriteError(w, req, http.StatusBadRequest, "send either curve or report_rows, not both")
		return
	case len(body.Curve) > 0:
		curve = &pipeline.Curve{Entries: body.Curve}
	case len(body.ReportRows) > 0:
		classWidth := body.ClassWidth
		if classWidth == 0 {
			classWidth = h.controller.routing.ClassWidth
		}
		var err error
		curve, err = pipeline.CurveFromRows(body.ReportRows, classWidth, h.controller.logger)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
			return
		}
	default:
		h.formatter.WriteError(w, req, http.StatusBadRequest, "curve or report_rows is required")
		return
	}

	rain := body.Rain
	if body.Loss < 0 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "loss must not be negative")
		return
	}
	if body.Loss > 0 {
		rain = rainfall.ApplyPhiIndex(rain, body.Loss)
	}

	params := h.withDefaults(body.Params).Normalize()
	if params.HorizonFactor > 0 {
		work := float64(len(curve.Entries)) * float64(len(rain)) * float64(params.Horizon(len(rain))+1)
		if work > maxConvolutionWork {
			h.formatter.WriteError(w, req, http.StatusRequestEntityTooLarge, "curve and rainfall are too large for one request")
			return
		}
	}

	hydro, err := pipeline.Route(req.Context(), curve.Entries, rain, params, h.controller.routing.Workers)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, clark.ErrInvalidInput) || errors.Is(err, clark.ErrInvalidParams) {
			status = http.StatusBadRequest
		}
		h.formatter.WriteError(w, req, status, err.Error())
		return
	}

	resp := HydrographResponse{Curve: curve, Hydrograph: hydro}
	if body.Record {
		run := pipeline.NewRun("api", curve, len(rain), hydro)
		if err := h.controller.recorder.RecordRun(req.Context(), run); err != nil {
			h.controller.logger.Errorf("error recording run: %v", err)
			h.formatter.WriteError(w, req, http.StatusInternalServerError, "hydrograph computed but could not be recorded")
			return
		}
		resp.RunID = run.ID
	}

	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// ListRuns returns the most recent recorded runs without their points
func (h *Handlers) ListRuns(w http.ResponseWriter, req *http.Request) {
	limit := defaultRunLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.controller.recorder.ListRuns(req.Context(), limit)
	if err != nil {
		h.controller.logger.Errorf("error listing runs: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "could not list runs")
		return
	}

	resp := RunsResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, RunSummary{
			ID:           r.ID,
			CreatedAt:    r.CreatedAt.Format(time.RFC3339),
			Source:       r.Source,
			Params:       r.Params,
			CurveEntries: r.CurveEntries,
			RainPulses:   r.RainPulses,
			Summary:      r.Summary,
		})
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// GetRun returns one recorded run including its hydrograph
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	run, err := h.controller.recorder.GetRun(req.Context(), id)
	if errors.Is(err, recorder.ErrRunNotFound) {
		h.formatter.WriteError(w, req, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	if err != nil {
		h.controller.logger.Errorf("error fetching run %s: %v", id, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "could not fetch run")
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, run)
}

// Health reports that the server is up
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, map[string]string{"status": "ok"})
}

// withDefaults fills routing fields the request left empty from the server config
func (h *Handlers) withDefaults(p clark.Params) clark.Params {
	rc := h.controller.routing
	// a configured unit scale belongs to the configured routing constant
	if p.RoutingConstant == 0 {
		p.RoutingConstant = rc.RoutingConstant
		if p.UnitScale == 0 {
			p.UnitScale = rc.UnitScale
		}
	}
	if p.HorizonFactor == 0 {
		p.HorizonFactor = rc.HorizonFactor
	}
	return p
}

// decodeBody reads JSON, or MessagePack when the client sends application/x-msgpack
func decodeBody(req *http.Request, dst any) error {
	r := io.LimitReader(req.Body, maxRequestBytes)

	if strings.HasPrefix(req.Header.Get("Content-Type"), responseformat.ContentTypeMsgPack) {
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		return dec.Decode(dst)
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
