package cache

import "fmt"

// SerializationError reports a failed compress or decompress of an entry.
// Callers treat the entry as absent.
type SerializationError struct {
	Op  string
	Key Key
	Err error
}

func (e *SerializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cache: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
