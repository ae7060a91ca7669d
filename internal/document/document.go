// Package document defines the client-side mirror of the host application's
// document model. Snapshots are value types: the history log holds them for
// point-in-time recall and never mutates a snapshot it received.
package document

// Layer is a single layer within a document snapshot.
type Layer struct {
	// ID is the host-assigned layer identifier.
	ID int64
	// Name is the layer's display name.
	Name string
	// Visible reports whether the layer is currently shown.
	Visible bool
	// Selected reports whether the layer is part of the current selection.
	Selected bool
}

// Snapshot is a full document model at a single point in time.
type Snapshot struct {
	// ID is the host-assigned document identifier.
	ID int64
	// GUID is the host-assigned globally unique document identifier.
	GUID string
	// Name is the document's display name.
	Name string
	// Dirty reports whether the document has unsaved changes.
	Dirty bool
	// Layers is the document's layer list, in z-order.
	Layers []Layer
}

// Equal reports whether two snapshots are structurally identical.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.ID != other.ID || s.GUID != other.GUID || s.Name != other.Name || s.Dirty != other.Dirty {
		return false
	}
	if len(s.Layers) != len(other.Layers) {
		return false
	}
	for i, layer := range s.Layers {
		if layer != other.Layers[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := s
	if s.Layers != nil {
		clone.Layers = make([]Layer, len(s.Layers))
		copy(clone.Layers, s.Layers)
	}
	return clone
}

// SelectedIndices returns the indices of the currently selected layers.
func (s Snapshot) SelectedIndices() []int {
	var indices []int
	for i, layer := range s.Layers {
		if layer.Selected {
			indices = append(indices, i)
		}
	}
	return indices
}
