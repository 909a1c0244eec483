// Package cache provides block caching for archive byte sources.
//
// Lookups against a remote archive turn into small scattered range reads:
// the header, the index sections once, then one payload per lookup. A block
// cache keeps fixed-size blocks of the source so that repeated opens and
// lookups of the same archive are served locally. The disk subpackage holds
// a filesystem-backed implementation.
package cache
