// Package tasks holds the long-running background loops that keep the
// catalog fresh: daily expansion of favorited artists, genre backfill from
// listener tags, library refresh, chart scraping and matching, and the
// YouTube link prefetcher. Every loop runs cooperatively inside the server
// process and survives its own errors.
package tasks
