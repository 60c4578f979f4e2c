package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/homectl-core/internal/audit"
)

// handleListAuditLogs returns paginated dispatch audit entries.
//
// Query parameters:
//   - op: load, register, start, set_state, action, stop
//   - integration_id: filter by integration
//   - failed: "true" for failed calls only
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Op:            q.Get("op"),
		IntegrationID: q.Get("integration_id"),
	}

	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failed must be a boolean")
			return
		}
		filter.FailedOnly = failed
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
