// Package facematch decides which students of a roster appear in a group selfie.
// It holds the similarity scorer and the roster matcher; both are pure in-memory
// computations with no I/O.
package facematch

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/roll-call/internal/constants"
)

// ErrInvalidInput is returned when two embeddings cannot be compared.
var ErrInvalidInput = errors.New("invalid embedding input")

// NoFace is the FaceIndex of a decision that consumed no selfie face.
const NoFace = -1

// Embedding is a face identity vector produced by the embedding server.
type Embedding []float32

// RegisteredFace is the single usable face from a student's registration image.
type RegisteredFace struct {
	RollNumber int
	StudentID  string
	Embedding  Embedding
}

// SelfieFace is a face detected in the session selfie. Index is the detection order.
type SelfieFace struct {
	Index     int
	Embedding Embedding
}

// Status is the attendance outcome for one roll
type Status string

const (
	StatusPresent Status = constants.StatusPresent
	StatusAbsent  Status = constants.StatusAbsent
)

// Decision is the matcher's verdict for one requested roll.
type Decision struct {
	RollNumber int
	Status     Status
	FaceIndex  int     // consumed selfie face, NoFace when absent
	Score      float64 // best similarity seen for the roll, 0 when nothing was scored
}

// Policy selects the order in which rolls claim selfie faces.
type Policy string

const (
	// PolicyRequestOrder lets rolls claim faces in the order they were requested.
	// An earlier roll wins a contested face even if a later roll scores higher.
	PolicyRequestOrder Policy = "request_order"

	// PolicyBestFirst assigns the globally highest scoring (roll, face) pairs first.
	PolicyBestFirst Policy = "best_first"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyRequestOrder, PolicyBestFirst:
		return p, nil
	case "":
		return PolicyRequestOrder, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// MatchOptions configures MatchRoster.
type MatchOptions struct {
	Threshold float64
	Policy    Policy
}

// DefaultMatchOptions returns the request-order policy with the default threshold.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		Threshold: constants.DefaultSimilarityThreshold,
		Policy:    PolicyRequestOrder,
	}
}
