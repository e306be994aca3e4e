// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

// Merge deep-merges overlay on top of base and returns a new tree; neither input is modified.
//
// Objects merge key by key with overlay keys winning and base-only keys passing through.
// Arrays are replaced as a whole by the overlay array. For any other combination the overlay
// value wins when present, an explicit null included; base is kept only when overlay is absent.
func Merge(base, overlay *Node) *Node {
	switch {
	case overlay == nil:
		return base.Clone()
	case base == nil:
		return overlay.Clone()
	case base.kind == Object && overlay.kind == Object:
		return mergeObjects(base, overlay)
	default:
		return overlay.Clone()
	}
}

func mergeObjects(base, overlay *Node) *Node {
	merged := base.Clone()
	for _, key := range overlay.keys {
		value := overlay.fields[key]
		if existing, ok := merged.fields[key]; ok && existing.kind == Object && value.kind == Object {
			merged.fields[key] = mergeObjects(existing, value)
			continue
		}

		merged.Set(key, value.Clone())
	}

	return merged
}

// MergeFold is Merge with object keys matched case-insensitively, the way layered settings
// files are combined. When two keys differ only by case the later spelling replaces the earlier
// one, also within overlay itself.
func MergeFold(base, overlay *Node) *Node {
	switch {
	case overlay != nil && overlay.kind == Object && base != nil && base.kind == Object:
		return mergeFoldObjects(base, overlay)
	case overlay != nil && overlay.kind == Object:
		return mergeFoldObjects(NewObject(), overlay)
	default:
		return Merge(base, overlay)
	}
}

func mergeFoldObjects(base, overlay *Node) *Node {
	merged := base.Clone()
	for _, key := range overlay.keys {
		value := overlay.fields[key]
		if existingKey, ok := merged.foldedKey(key); ok && existingKey != key {
			merged.renameKey(existingKey, key)
		}

		existing, ok := merged.fields[key]
		switch {
		case ok && existing.kind == Object && value.kind == Object:
			merged.fields[key] = mergeFoldObjects(existing, value)
		case value.kind == Object:
			merged.Set(key, mergeFoldObjects(NewObject(), value))
		default:
			merged.Set(key, value.Clone())
		}
	}

	return merged
}

// MergeAll folds every overlay over base in order.
func MergeAll(base *Node, overlays ...*Node) *Node {
	merged := base.Clone()
	for _, overlay := range overlays {
		merged = Merge(merged, overlay)
	}
	return merged
}
