package driven

// ConfigStore holds the persisted settings file as dotted keys
// ("llm.provider", "stt.model"). Values keep the types they were
// decoded or set with.
type ConfigStore interface {
	// Get returns the raw value of key and whether it is present.
	Get(key string) (any, bool)

	// GetString returns the value of key when it is a string, else "".
	GetString(key string) string

	// Set stores value under key and writes the file before returning.
	Set(key string, value any) error

	// Path is the location of the settings file; empty for stores
	// that are not file backed.
	Path() string
}
