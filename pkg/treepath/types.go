package treepath

import (
	"github.com/dan-solli/treepath/pkg/hierarchy"
	"github.com/dan-solli/treepath/pkg/pathcodec"
	"github.com/dan-solli/treepath/pkg/store"
)

// Type re-exports for caller convenience

// Ref is re-exported from the pathcodec package
type Ref = pathcodec.Ref

// Codec is re-exported from the pathcodec package
type Codec = pathcodec.Codec

// Record is re-exported from the hierarchy package
type Record = hierarchy.Record

// TypeConfig is re-exported from the hierarchy package
type TypeConfig = hierarchy.TypeConfig

// ChildAssociation is re-exported from the hierarchy package
type ChildAssociation = hierarchy.ChildAssociation

// Options is re-exported from the hierarchy package
type Options = hierarchy.Options

// TypeMap is re-exported from the hierarchy package
type TypeMap = hierarchy.TypeMap

// Row is re-exported from the store package
type Row = store.Row

// Registry constructors and parent source helpers re-exported from the
// hierarchy package
var (
	NewRegistry          = hierarchy.NewRegistry
	NewRegistryWithCodec = hierarchy.NewRegistryWithCodec
	FixedParent          = hierarchy.FixedParent
	ComputedParent       = hierarchy.ComputedParent
)

// Sentinel errors re-exported from the hierarchy package
var (
	ErrTypeNotRegistered = hierarchy.ErrTypeNotRegistered
	ErrUnsupportedQuery  = hierarchy.ErrUnsupportedQuery
)
