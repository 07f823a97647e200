package handlers

import (
	"net/http"

	"github.com/kozaktomas/roll-call/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the non-secret runtime settings
type ConfigResponse struct {
	MatchThreshold     float64 `json:"match_threshold"`
	MatchPolicy        string  `json:"match_policy"`
	AttendanceTimezone string  `json:"attendance_timezone"`
	PublicImages       bool    `json:"public_images"`
	AuthRequired       bool    `json:"auth_required"`
}

// Get returns the matching and attendance settings in effect
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		MatchThreshold:     h.config.Match.Threshold,
		MatchPolicy:        h.config.Match.Policy,
		AttendanceTimezone: h.config.Attendance.Timezone,
		PublicImages:       h.config.Storage.UsesPublicImages(),
		AuthRequired:       h.config.Web.APIToken != "",
	})
}
