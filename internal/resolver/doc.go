// package resolver finds playable video links for stored tracks. It builds
// a ladder of search queries per track, scores candidates by token overlap
// and channel hints, and persists the outcome through the catalog writer.
// Results are cached in-process; failed attempts cool down before retry.
package resolver
