package domain

import "math"

// Metadata keys projected into the vector store for each indexed meeting.
// Values are always scalar strings.
const (
	MetaMeetingID    = "meeting_id"
	MetaOriginalFile = "original_file"
	MetaTimestamp    = "timestamp"
)

// DefaultTopK is the number of results returned when the caller does not say.
const DefaultTopK = 5

// MaxTopK bounds the number of results a caller may request.
const MaxTopK = 50

// IndexedDocument is the searchable projection of one meeting.
type IndexedDocument struct {
	// MeetingID is the upsert key.
	MeetingID string

	// Text is the rendered plain-text document.
	Text string

	// Metadata holds scalar filterable fields.
	Metadata map[string]string

	// Embedding is the document vector.
	Embedding []float32
}

// VectorMatch is one raw hit from a vector store query.
type VectorMatch struct {
	ID       string
	Document string
	Metadata map[string]string

	// Distance is the cosine distance (0 = identical).
	Distance float64
}

// SearchResult represents a single semantic search hit.
type SearchResult struct {
	// ID is the meeting ID.
	ID string `json:"id"`

	// Score is the similarity, 1 - cosine distance.
	Score float64 `json:"score"`

	// MatchedText is the indexed document text.
	MatchedText string `json:"matched_text"`

	// Metadata is the stored metadata of the hit.
	Metadata map[string]string `json:"metadata"`
}

// Name returns the display name of the hit (its original file, else its ID).
func (r SearchResult) Name() string {
	if n := r.Metadata[MetaOriginalFile]; n != "" {
		return n
	}
	return r.ID
}

// CosineDistance returns 1 minus the cosine similarity of a and b.
// Vectors of different length or zero norm are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// MatchesWhere reports whether every key in where equals the metadata value.
func MatchesWhere(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
