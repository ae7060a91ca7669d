package document

// Asset describes a single configured export asset.
type Asset struct {
	// Scale is the export scale factor (1.0 = original size).
	Scale float64
	// Format is the output format (e.g., "png", "svg").
	Format string
	// Suffix is appended to the generated file name.
	Suffix string
}

// Exports is the per-document export configuration at a single point in time.
type Exports struct {
	// DocumentID is the document these assets belong to.
	DocumentID int64
	// Assets is the configured asset list.
	Assets []Asset
}

// Equal reports whether two export snapshots are structurally identical.
func (e Exports) Equal(other Exports) bool {
	if e.DocumentID != other.DocumentID {
		return false
	}
	if len(e.Assets) != len(other.Assets) {
		return false
	}
	for i, asset := range e.Assets {
		if asset != other.Assets[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the export snapshot.
func (e Exports) Clone() Exports {
	clone := e
	if e.Assets != nil {
		clone.Assets = make([]Asset, len(e.Assets))
		copy(clone.Assets, e.Assets)
	}
	return clone
}
