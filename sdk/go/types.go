package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"partyboard/core"
)

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// Stats mirrors the /stats payload.
type Stats struct {
	Day                  string  `json:"day"`
	SubmissionsToday     int64   `json:"submissions_today"`
	PlayersToday         int     `json:"players_today"`
	PlayersThisWeek      int     `json:"players_this_week"`
	PlayersThisMonth     int     `json:"players_this_month"`
	Created              int64   `json:"created"`
	Improved             int64   `json:"improved"`
	Rejected             int64   `json:"rejected"`
	LeaderChanges        int64   `json:"leader_changes"`
	CurrentLeader        string  `json:"current_leader,omitempty"`
	CurrentLeaderScore   int64   `json:"current_leader_score,omitempty"`
	RejectionRatePercent float64 `json:"rejection_rate_percent"`
}

// APIError is a non-2xx response. It unwraps to the matching core error so
// callers can use core.IsValidation, core.IsStorage and errors.Is(core.ErrNotFound).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	cause      error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// ErrEmptyPseudo is returned when pseudo is blank.
var ErrEmptyPseudo = errors.New("pseudo is required")

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func newAPIError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Message == "" {
		body.Message = body.Error
	}
	e := &APIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		e.cause = &core.ValidationError{Field: strings.TrimPrefix(body.Code, "invalid_"), Reason: body.Message}
	case resp.StatusCode == http.StatusNotFound && body.Code == "not_found":
		e.cause = core.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		e.cause = &core.StorageError{Op: "remote", Err: errors.New(body.Message)}
	}
	return e
}
