package hierarchy

import "errors"

// ErrTypeNotRegistered indicates a write-path operation on a record whose
// type has no registry entry. Read paths stay silent on unknown types and
// return empty results instead.
var ErrTypeNotRegistered = errors.New("record type not registered")

// ErrUnsupportedQuery indicates a query that needs an association map the
// configuration does not provide, such as all-type siblings under a parent
// type with no child declarations. Distinct from an empty result on purpose:
// callers must be able to tell "not supported" from "no siblings found".
var ErrUnsupportedQuery = errors.New("query requires a child association map")
