// Package recognition holds the in-memory face index and the decision logic
// that turns a query embedding into a confidence tier.
package recognition

import (
	"cmp"
	"slices"
	"sync/atomic"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/database"
)

// IndexedEmbedding is one (student, pose, vector) triple of a snapshot.
type IndexedEmbedding struct {
	StudentID string
	Name      string
	Pose      string
	Order     int // enrollment position of the student, used for tie-breaking
	Vector    Vector
}

// Snapshot is an immutable view of all enrolled embeddings.
// Readers hold one snapshot for the whole of a computation.
type Snapshot struct {
	Generation uint64
	Dim        int
	Students   int
	Embeddings []IndexedEmbedding
	Skipped    int // embeddings dropped because of a dimension mismatch
	LoadedAt   time.Time
}

// Store publishes snapshots atomically. There is no partial mutation API:
// every change goes through Load, which builds a full snapshot off to the side.
type Store struct {
	dim        int
	generation atomic.Uint64
	current    atomic.Pointer[Snapshot]
}

// NewStore creates an empty store. dim fixes the embedding dimension;
// 0 takes the dimension of the first enrolled embedding on each load.
func NewStore(dim int) *Store {
	s := &Store{dim: dim}
	s.current.Store(&Snapshot{Dim: dim, LoadedAt: time.Now()})
	return s
}

// Current returns the published snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// AllEmbeddings returns the embeddings of the published snapshot.
func (s *Store) AllEmbeddings() []IndexedEmbedding {
	return s.Current().Embeddings
}

// IsEmpty reports whether no student has a usable embedding.
func (s *Store) IsEmpty() bool {
	return len(s.Current().Embeddings) == 0
}

// Load builds a snapshot from students and publishes it in one swap.
func (s *Store) Load(students []database.EnrolledStudent) *Snapshot {
	snap := buildSnapshot(students, s.dim)
	snap.Generation = s.generation.Add(1)
	s.current.Store(snap)
	return snap
}

func buildSnapshot(students []database.EnrolledStudent, dim int) *Snapshot {
	ordered := slices.Clone(students)
	slices.SortStableFunc(ordered, func(a, b database.EnrolledStudent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.StudentID, b.StudentID)
	})

	if dim == 0 {
		for _, st := range ordered {
			if len(st.Embeddings) > 0 && len(st.Embeddings[0].Embedding) > 0 {
				dim = len(st.Embeddings[0].Embedding)
				break
			}
		}
	}

	snap := &Snapshot{Dim: dim, LoadedAt: time.Now()}
	for order, st := range ordered {
		indexed := 0
		for _, emb := range st.Embeddings {
			if len(emb.Embedding) == 0 || len(emb.Embedding) != dim {
				snap.Skipped++
				continue
			}
			snap.Embeddings = append(snap.Embeddings, IndexedEmbedding{
				StudentID: st.StudentID,
				Name:      st.Name,
				Pose:      emb.Pose,
				Order:     order,
				Vector:    NewVector(slices.Clone(emb.Embedding)),
			})
			indexed++
		}
		if indexed > 0 {
			snap.Students++
		}
	}
	return snap
}
