package news

import "time"

// NewManifest returns an empty manifest at the current schema version.
func NewManifest() Manifest {
	return Manifest{
		SchemaVersion: SchemaVersion,
		Assets:        make(map[string]AssetRecord),
	}
}

// MergeItems folds the items discovered by a pass into the previous
// manifest order: this pass's items lead, in homepage discovery order,
// followed by prior items that were not rediscovered, in their existing
// order. Rediscovered items are refreshed in place and inherit any local
// artifacts the new pass did not produce (an article page archived by an
// earlier full pass survives a later quick pass).
func MergeItems(previous, discovered []Item) []Item {
	prevByLink := make(map[string]Item, len(previous))
	for _, it := range previous {
		prevByLink[it.Link] = it
	}

	seen := make(map[string]struct{}, len(discovered))
	merged := make([]Item, 0, len(previous)+len(discovered))
	for _, it := range discovered {
		if prior, ok := prevByLink[it.Link]; ok {
			if it.LocalImage == "" {
				it.LocalImage = prior.LocalImage
			}
			if it.LocalHTML == "" {
				it.LocalHTML = prior.LocalHTML
			}
			if it.Published == nil {
				it.Published = prior.Published
			}
		}
		seen[it.Link] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range previous {
		if _, ok := seen[it.Link]; !ok {
			merged = append(merged, it)
		}
	}
	return merged
}

// TrimItems applies the optional retention bound, evicting oldest-first
// (the tail of the merged order) once maxItems is exceeded. Zero disables
// retention.
func TrimItems(items []Item, maxItems int) []Item {
	if maxItems <= 0 || len(items) <= maxItems {
		return items
	}
	return items[:maxItems:maxItems]
}

// Feed projects the manifest's items into the stable display contract,
// most recent first.
func (m Manifest) Feed() []FeedItem {
	out := make([]FeedItem, 0, len(m.Items))
	for _, it := range m.Items {
		fi := FeedItem{
			Title:   it.Title,
			Link:    it.Link,
			Summary: it.Summary,
		}
		if it.LocalImage != "" {
			img := it.LocalImage
			fi.Image = &img
		}
		if it.Published != nil {
			fi.Published = it.Published.UTC().Format(time.RFC3339)
		}
		out = append(out, fi)
	}
	return out
}
