package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/kozaktomas/roll-call/internal/verify"
)

// Verifier runs a verification request
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (*verify.Result, error)
}

// VerifyHandler handles face verification endpoints
type VerifyHandler struct {
	verifier Verifier
	validate *validator.Validate
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(v Verifier) *VerifyHandler {
	return &VerifyHandler{
		verifier: v,
		validate: newValidator(),
	}
}

// StudentRef identifies one student of the roster by roll number
type StudentRef struct {
	Roll *int `json:"roll" validate:"required"`
}

// VerifyFaceRequest represents the verify-face request body
type VerifyFaceRequest struct {
	ClassID        string       `json:"class_id" validate:"required"`
	SessionID      string       `json:"session_id" validate:"required"`
	SelfieImageURL string       `json:"selfie_image_url" validate:"required,http_url"`
	Students       []StudentRef `json:"students" validate:"dive"`
	DryRun         bool         `json:"dry_run,omitempty"`
}

// RollResult is the decision for one requested roll
type RollResult struct {
	Roll   int    `json:"roll"`
	Status string `json:"status"`
}

// VerifySummary reports what was written
type VerifySummary struct {
	Inserted    []int `json:"inserted"`
	Skipped     []int `json:"skipped"`
	Unresolved  []int `json:"unresolved"`
	Failed      []int `json:"failed"`
	SelfieFaces int   `json:"selfie_faces"`
	DryRun      bool  `json:"dry_run,omitempty"`
}

// VerifyFaceResponse represents the verify-face response
type VerifyFaceResponse struct {
	Results []RollResult  `json:"results"`
	Summary VerifySummary `json:"summary"`
}

// VerifyFace matches the selfie against the requested roster and records attendance.
func (h *VerifyHandler) VerifyFace(w http.ResponseWriter, r *http.Request) {
	var body VerifyFaceRequest
	if err := decodeAndValidate(w, r, h.validate, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rolls := make([]int, 0, len(body.Students))
	for _, s := range body.Students {
		rolls = append(rolls, *s.Roll)
	}

	result, err := h.verifier.Verify(r.Context(), verify.Request{
		ClassID:   body.ClassID,
		SessionID: body.SessionID,
		SelfieURL: body.SelfieImageURL,
		Rolls:     rolls,
		DryRun:    body.DryRun,
	})
	if err != nil {
		status, message := verifyErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("verify-face session=%s class=%s: %v",
				sanitizeForLog(body.SessionID), sanitizeForLog(body.ClassID), err)
		}
		respondError(w, status, message)
		return
	}

	respondJSON(w, http.StatusOK, newVerifyFaceResponse(result, body.DryRun))
}

// verifyErrorStatus maps service errors to an HTTP status and client message.
func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, verify.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, verify.ErrSelfie):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, verify.ErrRosterLookup):
		return http.StatusBadGateway, verify.ErrRosterLookup.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func newVerifyFaceResponse(result *verify.Result, dryRun bool) VerifyFaceResponse {
	resp := VerifyFaceResponse{
		Results: make([]RollResult, 0, len(result.Decisions)),
		Summary: VerifySummary{
			Inserted:    orEmpty(result.Outcome.Inserted),
			Skipped:     orEmpty(result.Outcome.Skipped),
			Unresolved:  orEmpty(result.Outcome.Unresolved),
			Failed:      []int{},
			SelfieFaces: result.SelfieFaces,
			DryRun:      dryRun,
		},
	}
	for _, d := range result.Decisions {
		resp.Results = append(resp.Results, RollResult{Roll: d.RollNumber, Status: string(d.Status)})
		if _, failed := result.Outcome.Failed[d.RollNumber]; failed && !slices.Contains(resp.Summary.Failed, d.RollNumber) {
			resp.Summary.Failed = append(resp.Summary.Failed, d.RollNumber)
		}
	}
	return resp
}

func orEmpty(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
