package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/portscope/portscope/internal/api/middleware"
	"github.com/portscope/portscope/internal/errors"
	"github.com/portscope/portscope/internal/logging"
	"github.com/portscope/portscope/internal/ports"
	"github.com/portscope/portscope/internal/scan"
)

// Scanner runs the full scan pipeline for one request.
type Scanner interface {
	Scan(ctx context.Context, clientID, rawTarget string, requested []int) (*scan.Result, error)
}

// ScanRequest is the body of a scan request. Ports may be omitted, in
// which case the full allow-list is scanned.
type ScanRequest struct {
	Target string `json:"target" validate:"required,min=1,max=253"`
	// Count and allow-list limits apply after deduplication, so they
	// are enforced by the scan pipeline rather than here.
	Ports []int `json:"ports,omitempty" validate:"omitempty,dive,min=1,max=65535"`
}

// ScanResponse is the body of a successful scan.
type ScanResponse struct {
	ScanID    string             `json:"scan_id"`
	Target    string             `json:"target"`
	IP        string             `json:"ip"`
	Results   []scanPortResponse `json:"results"`
	Timestamp string             `json:"timestamp"`
}

type scanPortResponse struct {
	Port      int    `json:"port"`
	Status    string `json:"status"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
}

// ScanHandler serves the scan endpoint.
type ScanHandler struct {
	scanner   Scanner
	logger    *logging.Logger
	validator *validator.Validate
}

// NewScanHandler creates a scan handler.
func NewScanHandler(scanner Scanner, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		scanner:   scanner,
		logger:    logger.WithComponent("handlers"),
		validator: validator.New(),
	}
}

// CreateScan handles POST /api/v1/scan. The client identity for rate
// limiting is the caller's IP address.
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var req ScanRequest
	if err := parseJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	requested := req.Ports
	if len(requested) == 0 {
		requested = ports.Allowed
	}

	clientID := middleware.ClientIP(r)
	result, err := h.scanner.Scan(r.Context(), clientID, req.Target, requested)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusTooManyRequests {
			if retry, ok := retryAfterSeconds(err); ok {
				w.Header().Set("Retry-After", retry)
			}
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("Scan failed",
				"request_id", requestID,
				"target", req.Target,
				"error", err)
		}
		writeError(w, r, status, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toScanResponse(result))
}

// toScanResponse converts a scan result into its wire shape, rendering
// the timestamp in ISO 8601 UTC.
func toScanResponse(result *scan.Result) ScanResponse {
	out := ScanResponse{
		ScanID:    result.ScanID.String(),
		Target:    result.Target,
		IP:        result.IP,
		Results:   make([]scanPortResponse, len(result.Results)),
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
	}
	for i, pr := range result.Results {
		out.Results[i] = scanPortResponse{
			Port:      pr.Port,
			Status:    string(pr.Status),
			LatencyMS: pr.LatencyMS,
		}
	}
	return out
}

// retryAfterSeconds extracts the rate limiter's retry hint from the
// error context, rounded up to whole seconds.
func retryAfterSeconds(err error) (string, bool) {
	scanErr, ok := err.(*errors.ScanError)
	if !ok || scanErr.Context == nil {
		return "", false
	}
	raw, ok := scanErr.Context["retry_after"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	d, parseErr := time.ParseDuration(s)
	if parseErr != nil || d < 0 {
		return "", false
	}
	return fmt.Sprintf("%d", int64(math.Ceil(d.Seconds()))), true
}
