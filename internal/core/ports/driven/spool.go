package driven

// AudioSpool allocates the temporary files backing live session buffers.
type AudioSpool interface {
	// Create allocates an empty file for a session and returns its path.
	// format is the container extension (e.g. "webm", "wav").
	Create(sessionID, format string) (string, error)

	// Append writes data to the end of the file at path.
	Append(path string, data []byte) error

	// Remove deletes the file at path. Removing a missing file is not an error.
	Remove(path string) error
}
