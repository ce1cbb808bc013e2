package metering

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/quota"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

func teamID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "teamID"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidTeamID
	}
	return id, nil
}

type validateRequest struct {
	Action string `json:"action"`
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := teamID(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	action, err := quota.ParseAction(req.Action)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	res, err := s.validator.Validate(r.Context(), id, action)
	if err != nil {
		// res is set for INVALID_PLAN so the caller still sees the decision
		s.writeError(w, r, err, res)
		return
	}
	writeData(w, res)
}

type incrementRequest struct {
	Delta int64 `json:"delta"`
}

type incrementResponse struct {
	Metric plans.Metric `json:"metric"`
	Usage  int64        `json:"usage"`
}

func (s *Service) handleIncrement(w http.ResponseWriter, r *http.Request) {
	id, err := teamID(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	metric, err := plans.ParseMetric(chi.URLParam(r, "metric"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	req := incrementRequest{Delta: 1}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	n, err := s.tracker.Increment(r.Context(), id, metric, req.Delta, s.now())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeData(w, incrementResponse{Metric: metric, Usage: n})
}

type overviewResponse struct {
	TeamID uuid.UUID                    `json:"team_id"`
	Usage  map[plans.Metric]quota.Usage `json:"usage"`
}

func (s *Service) handleOverview(w http.ResponseWriter, r *http.Request) {
	id, err := teamID(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	overview, err := s.validator.Overview(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeData(w, overviewResponse{TeamID: id, Usage: overview})
}

type rolloverResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
}

func (s *Service) handleRollover(w http.ResponseWriter, r *http.Request) {
	res, err := s.rollover.RunRollover(r.Context())
	body := rolloverResponse{
		Processed: res.Processed,
		Failed:    res.Failed,
		Created:   res.Created,
		Skipped:   res.Skipped,
	}
	if err != nil {
		s.writeError(w, r, err, body)
		return
	}
	writeData(w, body)
}

type webhookResponse struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Service) handlePaddleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil || s.sync == nil {
		s.writeError(w, r, ErrBillingDisabled, nil)
		return
	}

	ev, err := s.parser.ParseRequest(r)
	if errors.Is(err, subscription.ErrUnsupportedEvent) {
		// acknowledged so the provider does not redeliver
		writeData(w, webhookResponse{Reason: "unsupported_event"})
		return
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	err = s.sync.Apply(r.Context(), *ev)
	switch {
	case errors.Is(err, subscription.ErrStaleEvent):
		writeData(w, webhookResponse{Reason: "stale_event"})
		return
	case err != nil:
		s.writeError(w, r, err, nil)
		return
	}

	s.logger.InfoContext(r.Context(), "billing event applied",
		logger.Component("metering"),
		logger.TeamID(ev.TeamID),
		logger.PlanID(ev.PlanID),
		logger.EventType(ev.ProviderEvent))
	writeData(w, webhookResponse{Applied: true})
}
