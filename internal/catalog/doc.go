// Package catalog owns every write to the music catalog. The Writer applies
// idempotent provider-payload upserts with alias refresh and protected
// deletion, the Freshness manager decides when stored entities need a
// provider round-trip, and the Expander pulls an artist's full discography
// (optionally one hop of similar artists) into the store.
package catalog
