// Package core defines the contracts shared by the tap's pluggable parts:
// the Singer message types, the RecordSink that receives them, and the
// StateStore that persists bookmarks.
package core
