package types

import "math"

// DofID indexes degrees of freedom, nodes and elements.
type DofID uint32

// ProcessorID tags the rank that owns an entity.
type ProcessorID uint16

// SubdomainID classifies elements into material regions.
type SubdomainID uint16

// BoundaryID labels element sides and nodes on the domain boundary.
type BoundaryID int16

// UniqueID is a globally unique, never reused entity label.
type UniqueID uint64

const (
	InvalidID          DofID       = math.MaxUint32
	InvalidProcessorID ProcessorID = math.MaxUint16
	InvalidSubdomainID SubdomainID = math.MaxUint16
	InvalidBoundaryID  BoundaryID  = -123
	InvalidUniqueID    UniqueID    = math.MaxUint64
)

// TOLERANCE is the default geometric tolerance.
const TOLERANCE = 1.e-6
