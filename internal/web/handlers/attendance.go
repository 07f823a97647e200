package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/roll-call/internal/database"
)

// AttendanceHandler handles attendance listing endpoints
type AttendanceHandler struct {
	reader database.AttendanceReader
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(reader database.AttendanceReader) *AttendanceHandler {
	return &AttendanceHandler{reader: reader}
}

// AttendanceRecordResponse represents one stored attendance mark
type AttendanceRecordResponse struct {
	ID             string    `json:"id"`
	ClassID        string    `json:"class_id"`
	StudentID      string    `json:"student_id"`
	Roll           int       `json:"roll"`
	Status         string    `json:"status"`
	AttendanceDate string    `json:"attendance_date"`
	MarkedAt       time.Time `json:"marked_at"`
}

// SessionAttendanceResponse lists the marks of one session
type SessionAttendanceResponse struct {
	SessionID string                     `json:"session_id"`
	Records   []AttendanceRecordResponse `json:"records"`
	Count     int                        `json:"count"`
}

// ListBySession returns every record written for the session in the URL.
func (h *AttendanceHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	records, err := h.reader.ListBySession(r.Context(), sessionID)
	if err != nil {
		log.Printf("list attendance session=%s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	resp := SessionAttendanceResponse{
		SessionID: sessionID,
		Records:   make([]AttendanceRecordResponse, 0, len(records)),
		Count:     len(records),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, AttendanceRecordResponse{
			ID:             rec.ID,
			ClassID:        rec.ClassID,
			StudentID:      rec.StudentID,
			Roll:           rec.RollNumber,
			Status:         rec.Status,
			AttendanceDate: rec.AttendanceDate.Format(database.DateLayout),
			MarkedAt:       rec.MarkedAt,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}
