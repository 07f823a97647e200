package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/roll-call/internal/database"
)

// RosterRepository reads student registrations from the profiles table
type RosterRepository struct {
	pool *Pool
}

// NewRosterRepository creates a new PostgreSQL roster repository
func NewRosterRepository(pool *Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// LookupRolls returns every profile row for the requested rolls of a class.
// More than one row per roll is returned as is; callers decide what that means.
func (r *RosterRepository) LookupRolls(ctx context.Context, classID string, rolls []int) (map[int][]database.RosterEntry, error) {
	result := make(map[int][]database.RosterEntry)
	if len(rolls) == 0 {
		return result, nil
	}

	ids := make([]int64, len(rolls))
	for i, roll := range rolls {
		ids[i] = int64(roll)
	}

	query := `
		SELECT id, roll_no, COALESCE(face_image_path, '')
		FROM profiles
		WHERE class_id = $1 AND roll_no = ANY($2)
		ORDER BY roll_no, id
	`

	entries, err := r.queryEntries(ctx, query, classID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup rolls: %w", err)
	}
	for _, e := range entries {
		result[e.RollNumber] = append(result[e.RollNumber], e)
	}
	return result, nil
}

// ClassRoster returns all profile rows of a class
func (r *RosterRepository) ClassRoster(ctx context.Context, classID string) ([]database.RosterEntry, error) {
	query := `
		SELECT id, roll_no, COALESCE(face_image_path, '')
		FROM profiles
		WHERE class_id = $1
		ORDER BY roll_no, id
	`

	entries, err := r.queryEntries(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("class roster: %w", err)
	}
	return entries, nil
}

func (r *RosterRepository) queryEntries(ctx context.Context, query string, args ...any) ([]database.RosterEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []database.RosterEntry
	for rows.Next() {
		var e database.RosterEntry
		if err := rows.Scan(&e.StudentID, &e.RollNumber, &e.FaceImagePath); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return entries, nil
}
