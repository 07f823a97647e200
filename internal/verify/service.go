// Package verify runs one face verification request end to end: roster
// lookup, image fetch, face embedding, matching and attendance reconciliation.
package verify

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/embedding"
	"github.com/kozaktomas/roll-call/internal/facematch"
	"github.com/kozaktomas/roll-call/internal/imagefetch"
	"github.com/kozaktomas/roll-call/internal/storage"
)

var (
	// ErrInvalidRequest is returned for a request without any roll.
	ErrInvalidRequest = errors.New("no students provided")
	// ErrSelfie is returned when the selfie cannot be fetched, decoded or embedded.
	ErrSelfie = errors.New("selfie image unusable")
	// ErrRosterLookup is returned when registrations cannot be read.
	ErrRosterLookup = errors.New("roster lookup failed")
)

// Reasons a roll could not be matched at all.
var (
	ErrNotRegistered         = errors.New("roll not registered")
	ErrDuplicateRegistration = errors.New("more than one registration for roll")
	ErrNoRegistrationImage   = errors.New("registration has no image")
)

// Request is one verification submission.
type Request struct {
	ClassID   string
	SessionID string
	SelfieURL string
	Rolls     []int
	DryRun    bool // match only, write nothing
}

// Result carries one decision per requested roll in request order.
type Result struct {
	Decisions   []facematch.Decision
	Outcome     attendance.Outcome
	SelfieFaces int
	Unusable    map[int]error // rolls that could not be scored, with the reason
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Match        facematch.MatchOptions
	SignedURLTTL time.Duration
	Workers      int
}

// Service wires the verification pipeline together.
type Service struct {
	roster     database.RosterReader
	fetcher    imagefetch.Fetcher
	signer     storage.URLSigner
	provider   embedding.Provider
	reconciler *attendance.Reconciler
	opts       Options
}

// NewService creates a verification service.
func NewService(
	roster database.RosterReader,
	fetcher imagefetch.Fetcher,
	signer storage.URLSigner,
	provider embedding.Provider,
	reconciler *attendance.Reconciler,
	opts Options,
) *Service {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = constants.DefaultSignedURLTTL
	}
	if opts.Workers <= 0 {
		opts.Workers = constants.RegistrationWorkers
	}
	return &Service{
		roster:     roster,
		fetcher:    fetcher,
		signer:     signer,
		provider:   provider,
		reconciler: reconciler,
		opts:       opts,
	}
}

// Verify decides present/absent for every requested roll and records the
// present ones unless req.DryRun is set. Only an empty request, a roster
// lookup failure or an unusable selfie fail the whole request; a bad
// registration only makes its roll absent.
func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	if len(req.Rolls) == 0 {
		return nil, ErrInvalidRequest
	}

	rolls := uniqueRolls(req.Rolls)
	entries, err := s.roster.LookupRolls(ctx, req.ClassID, rolls)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRosterLookup, err)
	}

	selfie, err := s.selfieFaces(ctx, req.SelfieURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelfie, err)
	}

	registered, studentIDs, unusable := s.registeredFaces(ctx, rolls, entries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decisions := facematch.MatchRoster(req.Rolls, registered, selfie, s.opts.Match)

	result := &Result{
		Decisions:   decisions,
		SelfieFaces: len(selfie),
		Unusable:    unusable,
	}
	if !req.DryRun {
		result.Outcome = s.reconciler.Reconcile(ctx, attendance.Batch{
			SessionID:  req.SessionID,
			ClassID:    req.ClassID,
			Decisions:  decisions,
			StudentIDs: studentIDs,
		})
	}
	return result, nil
}

func (s *Service) selfieFaces(ctx context.Context, url string) ([]facematch.SelfieFace, error) {
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	faces, err := s.provider.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	// Reported indexes may repeat or be missing; the matcher needs unique ones.
	faces = slices.Clone(faces)
	slices.SortStableFunc(faces, func(a, b embedding.Face) int {
		return cmp.Compare(a.Index, b.Index)
	})
	selfie := make([]facematch.SelfieFace, 0, len(faces))
	for i, f := range faces {
		selfie = append(selfie, facematch.SelfieFace{Index: i, Embedding: f.Embedding})
	}
	return selfie, nil
}

type registration struct {
	roll  int
	entry database.RosterEntry
	face  facematch.RegisteredFace
	err   error
}

// registeredFaces embeds the registration image of every roll concurrently.
// Rolls that cannot be scored are returned in unusable and left out of registered.
func (s *Service) registeredFaces(ctx context.Context, rolls []int, entries map[int][]database.RosterEntry) (map[int]facematch.RegisteredFace, map[int]string, map[int]error) {
	regs := make([]registration, len(rolls))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, roll := range rolls {
		regs[i].roll = roll
		rows := entries[roll]
		switch {
		case len(rows) == 0:
			regs[i].err = ErrNotRegistered
			continue
		case len(rows) > 1:
			regs[i].err = fmt.Errorf("%w (%d rows)", ErrDuplicateRegistration, len(rows))
			continue
		}

		regs[i].entry = rows[0]
		g.Go(func() error {
			regs[i].face, regs[i].err = s.RegisteredFace(ctx, rows[0])
			return nil
		})
	}
	_ = g.Wait()

	registered := make(map[int]facematch.RegisteredFace, len(rolls))
	studentIDs := make(map[int]string, len(rolls))
	unusable := make(map[int]error)
	for _, r := range regs {
		if r.err != nil {
			log.Printf("Warning: roll %d cannot be matched: %v", r.roll, r.err)
			unusable[r.roll] = r.err
			continue
		}
		registered[r.roll] = r.face
		studentIDs[r.roll] = r.entry.StudentID
	}
	return registered, studentIDs, unusable
}

// RegisteredFace fetches the registration image of entry and returns its only face.
func (s *Service) RegisteredFace(ctx context.Context, entry database.RosterEntry) (facematch.RegisteredFace, error) {
	if entry.FaceImagePath == "" {
		return facematch.RegisteredFace{}, ErrNoRegistrationImage
	}

	url, err := s.signer.SignedURL(ctx, entry.FaceImagePath, s.opts.SignedURLTTL)
	if err != nil {
		return facematch.RegisteredFace{}, fmt.Errorf("sign registration image: %w", err)
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return facematch.RegisteredFace{}, err
	}

	faces, err := s.provider.DetectFaces(ctx, data)
	if err != nil {
		return facematch.RegisteredFace{}, fmt.Errorf("detect faces: %w", err)
	}

	face, err := embedding.SingleFace(faces)
	if err != nil {
		return facematch.RegisteredFace{}, err
	}

	return facematch.RegisteredFace{
		RollNumber: entry.RollNumber,
		StudentID:  entry.StudentID,
		Embedding:  face.Embedding,
	}, nil
}

func uniqueRolls(rolls []int) []int {
	seen := make(map[int]bool, len(rolls))
	out := make([]int, 0, len(rolls))
	for _, r := range rolls {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
