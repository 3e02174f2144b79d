package recognition

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDimensionMismatch is returned when a query does not match the index dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Candidate is a student scored against a query.
type Candidate struct {
	StudentID string
	Name      string
	Score     float64 // in [0, 1]
	Pose      string  // pose of the best-scoring embedding
}

// Ranking lists every indexed student once, best first.
type Ranking struct {
	Generation uint64
	Candidates []Candidate
}

// Len returns the number of ranked students.
func (r Ranking) Len() int {
	return len(r.Candidates)
}

// Top returns the first n candidates. n < 1 is treated as 1.
func (r Ranking) Top(n int) []Candidate {
	n = max(n, 1)
	if n > len(r.Candidates) {
		n = len(r.Candidates)
	}
	return slices.Clone(r.Candidates[:n])
}

// Best returns the top candidate, false if nothing is enrolled.
func (r Ranking) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Matcher ranks enrolled students against a query embedding.
type Matcher struct {
	store  *Store
	metric Metric
}

// NewMatcher creates a matcher over the store's published snapshot.
func NewMatcher(store *Store, metric Metric) *Matcher {
	if metric == nil {
		metric = Cosine{}
	}
	return &Matcher{store: store, metric: metric}
}

// Metric returns the similarity metric in use.
func (m *Matcher) Metric() Metric {
	return m.metric
}

// Rank scores query against the current snapshot.
func (m *Matcher) Rank(query []float32) (Ranking, error) {
	return RankSnapshot(m.store.Current(), m.metric, query)
}

// RankSnapshot scores query against every embedding of snap. A student's score
// is the maximum over its poses. Candidates are sorted by score descending;
// equal scores keep enrollment order.
func RankSnapshot(snap *Snapshot, metric Metric, query []float32) (Ranking, error) {
	ranking := Ranking{Generation: snap.Generation, Candidates: []Candidate{}}
	if len(snap.Embeddings) == 0 {
		return ranking, nil
	}
	if len(query) != snap.Dim {
		return ranking, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), snap.Dim)
	}

	q := NewVector(query)
	pos := make(map[string]int, snap.Students)
	for _, emb := range snap.Embeddings {
		score := metric.Similarity(q, emb.Vector)
		i, seen := pos[emb.StudentID]
		if !seen {
			pos[emb.StudentID] = len(ranking.Candidates)
			ranking.Candidates = append(ranking.Candidates, Candidate{
				StudentID: emb.StudentID,
				Name:      emb.Name,
				Score:     score,
				Pose:      emb.Pose,
			})
			continue
		}
		if score > ranking.Candidates[i].Score {
			ranking.Candidates[i].Score = score
			ranking.Candidates[i].Pose = emb.Pose
		}
	}

	// Snapshot embeddings are in enrollment order, so a stable sort breaks ties by it.
	slices.SortStableFunc(ranking.Candidates, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return ranking, nil
}
