package graph

// FindDirectRelationships returns the edges where id is either endpoint, in
// input order.
func FindDirectRelationships(id string, edges []Edge) []Edge {
	out := []Edge{}
	for _, e := range edges {
		if e.FromID == id || e.ToID == id {
			out = append(out, e)
		}
	}
	return out
}

// FindRebuttalTargets returns the ids of the records that rebut id: the
// FromID of every rebuts edge whose ToID is id.
func FindRebuttalTargets(id string, edges []Edge) []string {
	return respondersOfKind(id, KindRebuts, edges)
}

// FindConcessionTargets returns the ids of the records that concede to id.
func FindConcessionTargets(id string, edges []Edge) []string {
	return respondersOfKind(id, KindConcedesTo, edges)
}

// FindSupportTargets returns the ids of the records that support id.
func FindSupportTargets(id string, edges []Edge) []string {
	return respondersOfKind(id, KindSupports, edges)
}

func respondersOfKind(id string, kind Kind, edges []Edge) []string {
	out := []string{}
	for _, e := range edges {
		if e.ToID == id && e.Kind == kind {
			out = append(out, e.FromID)
		}
	}
	return out
}
