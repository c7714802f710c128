// Package pathcodec encodes hierarchy positions as delimited path strings.
//
// A path is an ordered sequence of tokens, root first, where each token names
// one ancestor as a (type, id) pair. Paths are the only wire format this
// library exposes; everything else consumes them in-process.
package pathcodec

import "strings"

// Default separators. Kept as package constants so callers that never touch
// Codec configuration get stable path strings.
const (
	DefaultPathSep   = "/"
	DefaultRecordSep = "|"
)

// Ref is a polymorphic reference to a single record: its type name plus its
// storage identifier. All hierarchy comparisons key on the full pair, never on
// the id alone, because ids are only unique within a type.
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference points at nothing.
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Codec encodes and decodes tokens and paths with a fixed pair of separators.
//
// Separators must not occur inside type names or ids; no escaping is performed
// and an embedded separator produces a silently wrong decode. Changing the
// separators after data has been written invalidates every stored path.
type Codec struct {
	PathSep   string
	RecordSep string
}

// Default returns a codec using "/" between tokens and "|" inside a token.
func Default() Codec {
	return Codec{PathSep: DefaultPathSep, RecordSep: DefaultRecordSep}
}

// EncodeToken renders a single reference as "<type><RecordSep><id>".
func (c Codec) EncodeToken(ref Ref) string {
	return ref.Type + c.RecordSep + ref.ID
}

// DecodeToken splits a token on the first occurrence of the record separator.
// A token with no separator decodes to a Ref with an empty ID.
func (c Codec) DecodeToken(token string) Ref {
	before, after, found := strings.Cut(token, c.RecordSep)
	if !found {
		return Ref{Type: token}
	}
	return Ref{Type: before, ID: after}
}

// EncodePath joins tokens for the given references in order. An empty slice
// encodes to the empty string.
func (c Codec) EncodePath(refs []Ref) string {
	if len(refs) == 0 {
		return ""
	}
	tokens := make([]string, len(refs))
	for i, ref := range refs {
		tokens[i] = c.EncodeToken(ref)
	}
	return strings.Join(tokens, c.PathSep)
}

// DecodePath splits a path into references, root first. The empty string
// decodes to nil.
func (c Codec) DecodePath(path string) []Ref {
	if path == "" {
		return nil
	}
	tokens := strings.Split(path, c.PathSep)
	refs := make([]Ref, len(tokens))
	for i, token := range tokens {
		refs[i] = c.DecodeToken(token)
	}
	return refs
}

// Append extends an encoded path with one more token, handling the empty-path
// case so callers never produce a leading separator.
func (c Codec) Append(path string, ref Ref) string {
	if path == "" {
		return c.EncodeToken(ref)
	}
	return path + c.PathSep + c.EncodeToken(ref)
}
