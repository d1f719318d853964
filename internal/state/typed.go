package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// maxUpdateAttempts bounds the retries of Update on concurrent writers.
const maxUpdateAttempts = 5

// Kinds stored by mysticd.
const (
	KindProfile   = "profile"
	KindZoneState = "zone_state"
	KindScript    = "script"
)

// TypedStore wraps Store with JSON marshaling for a specific type.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore creates a new typed store wrapper for the given kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{
		store: store,
		kind:  kind,
	}
}

// Kind returns the resource kind this store handles.
func (s *TypedStore[T]) Kind() string {
	return s.kind
}

// Get retrieves and unmarshals the value for an ID. ok is false if it does not exist.
func (s *TypedStore[T]) Get(id string) (value T, ok bool, err error) {
	payload, _, err := s.store.Get(s.kind, id)
	if err != nil {
		return value, false, err
	}

	if payload == nil {
		return value, false, nil
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, id, err)
	}

	return value, true, nil
}

// Set marshals and stores the value for an ID.
func (s *TypedStore[T]) Set(id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", s.kind, id, err)
	}

	return s.store.Set(s.kind, id, payload)
}

// Update reads the value for id, passes it to fn and writes the result back if
// nobody wrote in between. fn sees ok=false for a missing value and may run more
// than once.
func (s *TypedStore[T]) Update(id string, fn func(current T, ok bool) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		payload, version, err := s.store.Get(s.kind, id)
		if err != nil {
			return zero, err
		}

		var current T
		if payload != nil {
			if err := json.Unmarshal(payload, &current); err != nil {
				return zero, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, id, err)
			}
		}

		next, err := fn(current, payload != nil)
		if err != nil {
			return zero, err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal %s %s: %w", s.kind, id, err)
		}

		_, err = s.store.SetIfVersion(s.kind, id, encoded, version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return zero, err
		}
		return next, nil
	}
	return zero, fmt.Errorf("%w: %s %s after %d attempts", ErrVersionConflict, s.kind, id, maxUpdateAttempts)
}

// Delete removes the value for an ID.
func (s *TypedStore[T]) Delete(id string) (bool, error) {
	return s.store.Delete(s.kind, id)
}

// Clear removes every value of this kind.
func (s *TypedStore[T]) Clear() error {
	return s.store.Clear(s.kind)
}

// All retrieves all values of this kind keyed by ID.
func (s *TypedStore[T]) All() (map[string]T, error) {
	records, err := s.store.List(s.kind)
	if err != nil {
		return nil, err
	}

	values := make(map[string]T, len(records))
	for _, r := range records {
		var value T
		if err := json.Unmarshal(r.Payload, &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, r.ID, err)
		}
		values[r.ID] = value
	}

	return values, nil
}

// IDs returns the IDs stored for this kind in order.
func (s *TypedStore[T]) IDs() ([]string, error) {
	records, err := s.store.List(s.kind)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
