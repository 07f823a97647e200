package facematch

import (
	"cmp"
	"slices"
)

// MatchRoster decides present/absent for every roll in rolls, returning one
// decision per entry in the same order. registered holds only usable faces;
// a roll missing from it is absent without any scoring. Each selfie face is
// consumed by at most one roll. A roll listed more than once is decided once
// and the decision is repeated.
func MatchRoster(rolls []int, registered map[int]RegisteredFace, selfie []SelfieFace, opts MatchOptions) []Decision {
	faces := sortedFaces(selfie)

	var decided map[int]Decision
	switch opts.Policy {
	case PolicyBestFirst:
		decided = matchBestFirst(rolls, registered, faces, opts.Threshold)
	default:
		decided = matchRequestOrder(rolls, registered, faces, opts.Threshold)
	}

	decisions := make([]Decision, 0, len(rolls))
	for _, roll := range rolls {
		decisions = append(decisions, decided[roll])
	}
	return decisions
}

// sortedFaces copies the selfie faces in ascending detection order.
func sortedFaces(selfie []SelfieFace) []SelfieFace {
	faces := slices.Clone(selfie)
	slices.SortStableFunc(faces, func(a, b SelfieFace) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return faces
}

func absent(roll int) Decision {
	return Decision{RollNumber: roll, Status: StatusAbsent, FaceIndex: NoFace}
}

// matchRequestOrder walks rolls in request order. Each roll takes its best
// unconsumed face if the score clears the threshold; the first index wins ties.
func matchRequestOrder(rolls []int, registered map[int]RegisteredFace, faces []SelfieFace, threshold float64) map[int]Decision {
	decided := make(map[int]Decision, len(rolls))
	consumed := make(map[int]bool, len(faces))

	for _, roll := range rolls {
		if _, ok := decided[roll]; ok {
			continue
		}
		d := absent(roll)

		reg, ok := registered[roll]
		if !ok {
			decided[roll] = d
			continue
		}

		bestIndex, bestScore, found := NoFace, 0.0, false
		for _, face := range faces {
			if consumed[face.Index] {
				continue
			}
			score, err := CosineSimilarity(reg.Embedding, face.Embedding)
			if err != nil {
				continue
			}
			if !found || score > bestScore {
				bestIndex, bestScore, found = face.Index, score, true
			}
		}

		if found {
			d.Score = bestScore
			if bestScore >= threshold {
				d.Status = StatusPresent
				d.FaceIndex = bestIndex
				consumed[bestIndex] = true
			}
		}
		decided[roll] = d
	}
	return decided
}

type scoredPair struct {
	position int // first position of the roll in the request
	roll     int
	face     int
	score    float64
}

// matchBestFirst scores every (roll, face) pair and assigns pairs from the highest
// score down. Ties prefer the earlier roll, then the lower face index.
func matchBestFirst(rolls []int, registered map[int]RegisteredFace, faces []SelfieFace, threshold float64) map[int]Decision {
	decided := make(map[int]Decision, len(rolls))
	var pairs []scoredPair

	for pos, roll := range rolls {
		if _, ok := decided[roll]; ok {
			continue
		}
		d := absent(roll)
		reg, ok := registered[roll]
		if ok {
			found := false
			for _, face := range faces {
				score, err := CosineSimilarity(reg.Embedding, face.Embedding)
				if err != nil {
					continue
				}
				if !found || score > d.Score {
					d.Score = score
					found = true
				}
				if score >= threshold {
					pairs = append(pairs, scoredPair{position: pos, roll: roll, face: face.Index, score: score})
				}
			}
		}
		decided[roll] = d
	}

	slices.SortStableFunc(pairs, func(a, b scoredPair) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.position, b.position); c != 0 {
			return c
		}
		return cmp.Compare(a.face, b.face)
	})

	consumed := make(map[int]bool, len(faces))
	for _, p := range pairs {
		d := decided[p.roll]
		if d.Status == StatusPresent || consumed[p.face] {
			continue
		}
		d.Status = StatusPresent
		d.FaceIndex = p.face
		decided[p.roll] = d
		consumed[p.face] = true
	}
	return decided
}

// PresentRolls returns the rolls decided present, in decision order, without repeats.
func PresentRolls(decisions []Decision) []int {
	seen := make(map[int]bool, len(decisions))
	var rolls []int
	for _, d := range decisions {
		if d.Status != StatusPresent || seen[d.RollNumber] {
			continue
		}
		seen[d.RollNumber] = true
		rolls = append(rolls, d.RollNumber)
	}
	return rolls
}
