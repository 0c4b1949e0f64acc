package domain

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Well-known metadata keys on MeetingAnalysis.Metadata.
const (
	MetaMeetingType = "meeting_type"
	MetaLanguage    = "language"
)

// MeetingAnalysis is the result of analysing one meeting.
// Records are immutable once saved; re-analysis produces a new ID.
type MeetingAnalysis struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	OriginalFile string         `json:"original_file"`
	Summary      string         `json:"summary"`
	Topics       []AnalysisItem `json:"topics"`
	ActionItems  []AnalysisItem `json:"action_items"`
	Decisions    []AnalysisItem `json:"decisions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Transcript   string         `json:"transcript,omitempty"`
}

// MeetingType returns the meeting_type metadata value, or "".
func (a *MeetingAnalysis) MeetingType() string {
	return a.metaString(MetaMeetingType)
}

// Language returns the language metadata value, or "".
func (a *MeetingAnalysis) Language() string {
	return a.metaString(MetaLanguage)
}

func (a *MeetingAnalysis) metaString(key string) string {
	if a.Metadata == nil {
		return ""
	}
	if s, ok := a.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// IsEmpty reports whether every content section is blank.
func (a *MeetingAnalysis) IsEmpty() bool {
	return strings.TrimSpace(a.Summary) == "" &&
		len(RenderItems(a.Topics)) == 0 &&
		len(RenderItems(a.ActionItems)) == 0 &&
		len(RenderItems(a.Decisions)) == 0
}

// NewAnalysisID returns a time-prefixed, lexically sortable ID.
// Format: 20060102-150405-<8 hex chars>.
func NewAnalysisID(t time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return t.UTC().Format("20060102-150405") + "-" + hex.EncodeToString(b[:])
}

// ItemKind discriminates the two shapes an analysis list entry can take.
type ItemKind string

// Item kinds.
const (
	ItemText   ItemKind = "text"
	ItemObject ItemKind = "object"
)

// primaryKeys and secondaryKeys are probed in order when rendering object items.
var (
	primaryKeys   = []string{"title", "topic", "task", "action", "decision", "name", "text", "description"}
	secondaryKeys = []string{"description", "assignee", "owner", "rationale", "details", "due_date"}
)

// AnalysisItem is one entry of a topics, action items or decisions list.
// It is either a plain string or an object with named fields.
type AnalysisItem struct {
	Kind   ItemKind
	Text   string
	Fields map[string]any
}

// TextItem builds a plain-string item.
func TextItem(s string) AnalysisItem {
	return AnalysisItem{Kind: ItemText, Text: s}
}

// ObjectItem builds an object item.
func ObjectItem(fields map[string]any) AnalysisItem {
	return AnalysisItem{Kind: ItemObject, Fields: fields}
}

// Primary returns the first non-empty primary field of an object item,
// or the text of a text item.
func (i AnalysisItem) Primary() string {
	if i.Kind == ItemText {
		return strings.TrimSpace(i.Text)
	}
	_, val := i.firstField(primaryKeys, "")
	return val
}

// Secondary returns the first non-empty secondary field that is not the primary one.
func (i AnalysisItem) Secondary() string {
	if i.Kind == ItemText {
		return ""
	}
	pk, _ := i.firstField(primaryKeys, "")
	_, val := i.firstField(secondaryKeys, pk)
	return val
}

func (i AnalysisItem) firstField(keys []string, skip string) (string, string) {
	for _, k := range keys {
		if k == skip {
			continue
		}
		v, ok := i.Fields[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return k, s
		}
	}
	return "", ""
}

// Render returns the plain-text form of the item.
// Objects render as "<primary> — <secondary>" when both are present.
func (i AnalysisItem) Render() string {
	p, s := i.Primary(), i.Secondary()
	switch {
	case p != "" && s != "":
		return p + " — " + s
	case p != "":
		return p
	default:
		return s
	}
}

// RenderItems renders every non-blank item.
func RenderItems(items []AnalysisItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if r := it.Render(); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// MarshalJSON writes text items as JSON strings and object items as JSON objects.
func (i AnalysisItem) MarshalJSON() ([]byte, error) {
	if i.Kind == ItemObject {
		if i.Fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(i.Fields)
	}
	return json.Marshal(i.Text)
}

// UnmarshalJSON accepts either a JSON string or a JSON object.
func (i *AnalysisItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*i = ObjectItem(fields)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("analysis item must be a string or object: %w", ErrInvalidInput)
	}
	*i = TextItem(s)
	return nil
}

// CompactAnalysis is the listing projection of a MeetingAnalysis.
type CompactAnalysis struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	OriginalFile   string    `json:"original_file"`
	SummaryPreview string    `json:"summary_preview"`
	MeetingType    string    `json:"meeting_type,omitempty"`
}

// SummaryPreviewLength is the number of characters kept in a summary preview.
const SummaryPreviewLength = 100

// Compact projects an analysis for listings.
func (a *MeetingAnalysis) Compact() CompactAnalysis {
	preview := a.Summary
	if r := []rune(preview); len(r) > SummaryPreviewLength {
		preview = string(r[:SummaryPreviewLength]) + "..."
	}
	return CompactAnalysis{
		ID:             a.ID,
		Timestamp:      a.Timestamp,
		OriginalFile:   a.OriginalFile,
		SummaryPreview: preview,
		MeetingType:    a.MeetingType(),
	}
}

// SortField selects the listing sort key.
type SortField string

// Listing sort keys.
const (
	SortByTimestamp    SortField = "timestamp"
	SortByOriginalFile SortField = "original_file"
)

// IsValid reports whether the sort field is recognised. Empty is valid.
func (f SortField) IsValid() bool {
	switch f {
	case "", SortByTimestamp, SortByOriginalFile:
		return true
	default:
		return false
	}
}

// ListOptions filters and orders a history listing.
type ListOptions struct {
	// MeetingType keeps only analyses of this type when set.
	MeetingType string

	// SortBy defaults to SortByTimestamp.
	SortBy SortField

	// Descending reverses the sort order.
	Descending bool

	// Limit caps the result size when positive.
	Limit int
}
