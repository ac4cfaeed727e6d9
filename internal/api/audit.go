package api

import (
	"net/http"
	"strconv"

	"github.com/openlumen/lumen-core/internal/audit"
)

// handleListAudit returns a page of the audit trail, newest first.
// Supports ?action=, ?user_id=, ?limit= and ?offset= query parameters.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Action: r.URL.Query().Get("action"),
		UserID: r.URL.Query().Get("user_id"),
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list audit failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
