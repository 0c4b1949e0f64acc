package driven

import "github.com/custodia-labs/minutes/internal/core/domain"

// HistoryStore persists one JSON document per MeetingAnalysis.
// Records are append-only: Save never overwrites an existing ID.
type HistoryStore interface {
	// Save writes the analysis atomically.
	// Returns domain.ErrAlreadyExists if the ID is taken.
	Save(analysis *domain.MeetingAnalysis) error

	// Load reads one analysis. Returns domain.ErrNotFound if absent.
	Load(id string) (*domain.MeetingAnalysis, error)

	// List returns compact projections of every readable record.
	List(opts domain.ListOptions) ([]domain.CompactAnalysis, error)

	// FindByFilename returns the most recently modified analysis whose original
	// file stem contains name, case-insensitively.
	FindByFilename(name string) (*domain.MeetingAnalysis, error)

	// IDs returns the IDs of all stored records.
	IDs() ([]string, error)

	// Dir returns the directory holding the records.
	Dir() string
}
