package service

import "errors"

// ErrUnknownEntityType indicates no comparator schema is registered for
// the entity type.
var ErrUnknownEntityType = errors.New("unknown entity type")

// ErrInvalidPayload indicates a fetched payload is missing allowlisted
// fields and was rejected before storage.
var ErrInvalidPayload = errors.New("invalid payload")
