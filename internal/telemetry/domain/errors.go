package telemetry

import "errors"

// ErrEmptyEntityID indicates a query without an entity identifier.
var ErrEmptyEntityID = errors.New("telemetry: empty entity id")

// ErrInvalidLimit indicates a negative lastN/limit parameter.
var ErrInvalidLimit = errors.New("telemetry: negative limit")

// ErrEmptyAttribute indicates an aggregate query without an attribute name.
var ErrEmptyAttribute = errors.New("telemetry: empty attribute name")

// ErrInvalidWindow indicates a non-positive aggregate window.
var ErrInvalidWindow = errors.New("telemetry: invalid window")

// ErrInvalidRecord indicates a record missing a required field.
var ErrInvalidRecord = errors.New("telemetry: invalid record")
