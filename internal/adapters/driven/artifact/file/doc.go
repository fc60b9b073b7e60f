// Package file writes run artifacts to the local filesystem.
//
// Adapters:
//   - DocumentWriter: one JSON document per participant (<dir>/<id>.json)
//   - CSVMetricsWriter: the metrics table (conversation_metrics.csv)
//
// Every file is written to a temporary sibling and renamed into place, so a
// reader never observes a partial artifact and reruns overwrite cleanly.
package file
