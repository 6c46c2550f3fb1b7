package enrichment

import "strings"

// Marker is the heading every enriched description carries. Its presence
// is how stored descriptions are recognised as already enriched.
const Marker = "Quick Gameplay Overview"

// HasMarker reports whether description was produced by the enrichment template.
func HasMarker(description string) bool {
	return strings.Contains(description, Marker)
}
