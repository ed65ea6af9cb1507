// package search answers library queries locally first and fans out to the
// provider clients only when the catalog has no confident match. It also
// holds the curated list cache and the in-process resolution metrics.
package search
