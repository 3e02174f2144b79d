package recognition

import (
	"context"
	"fmt"

	"github.com/KP-101219/Quickroll-V2/internal/embedder"
)

// Recognizer runs image -> embedding -> ranking -> decision.
type Recognizer struct {
	embedder   embedder.FaceEmbedder
	matcher    *Matcher
	classifier *Classifier
}

// NewRecognizer wires the embedder, matcher and classifier together.
func NewRecognizer(e embedder.FaceEmbedder, m *Matcher, c *Classifier) *Recognizer {
	return &Recognizer{embedder: e, matcher: m, classifier: c}
}

// Classifier returns the classifier in use.
func (r *Recognizer) Classifier() *Classifier {
	return r.classifier
}

// Embed returns the embedding of the largest face, false when no face is found.
func (r *Recognizer) Embed(ctx context.Context, image []byte) ([]float32, bool, error) {
	faces, err := r.embedder.EmbedFaces(ctx, image)
	if err != nil {
		return nil, false, fmt.Errorf("embed faces: %w", err)
	}
	face, ok := embedder.Largest(faces)
	if !ok {
		return nil, false, nil
	}
	return face.Embedding, true, nil
}

// Recognize classifies the largest face in image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (Decision, error) {
	query, found, err := r.Embed(ctx, image)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return NoFace(), nil
	}
	return r.RecognizeVector(query)
}

// RecognizeVector classifies a query embedding.
func (r *Recognizer) RecognizeVector(query []float32) (Decision, error) {
	ranking, err := r.matcher.Rank(query)
	if err != nil {
		return Decision{}, err
	}
	return r.classifier.Decide(ranking), nil
}

// TopMatches returns up to n candidates for the largest face in image whose
// score is at least minScore. found is false when no face is detected.
func (r *Recognizer) TopMatches(ctx context.Context, image []byte, n int, minScore float64) ([]Candidate, bool, error) {
	query, found, err := r.Embed(ctx, image)
	if err != nil || !found {
		return nil, found, err
	}
	matches, err := r.TopMatchesVector(query, n, minScore)
	return matches, true, err
}

// TopMatchesVector returns up to n candidates scoring at least minScore.
func (r *Recognizer) TopMatchesVector(query []float32, n int, minScore float64) ([]Candidate, error) {
	ranking, err := r.matcher.Rank(query)
	if err != nil {
		return nil, err
	}
	matches := make([]Candidate, 0, n)
	for _, c := range ranking.Top(n) {
		if c.Score >= minScore {
			matches = append(matches, c)
		}
	}
	return matches, nil
}
