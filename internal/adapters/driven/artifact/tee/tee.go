// Package tee fans artifact writes out to several writers.
package tee

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure the fan-out types implement the interfaces.
var (
	_ driven.DocumentWriter = (Documents)(nil)
	_ driven.MetricsWriter  = (Metrics)(nil)
)

// Documents writes each document to every writer in order.
// The first error stops the fan-out and is returned.
type Documents []driven.DocumentWriter

// WriteDocument implements driven.DocumentWriter.
func (d Documents) WriteDocument(ctx context.Context, participantID string, conv domain.Conversation) error {
	for _, w := range d {
		if err := w.WriteDocument(ctx, participantID, conv); err != nil {
			return err
		}
	}
	return nil
}

// Metrics writes the table to every writer in order.
// The first error stops the fan-out and is returned.
type Metrics []driven.MetricsWriter

// WriteMetrics implements driven.MetricsWriter.
func (m Metrics) WriteMetrics(ctx context.Context, table domain.MetricsTable) error {
	for _, w := range m {
		if err := w.WriteMetrics(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// DocumentWriter returns the single writer unchanged, or a fan-out over all
// non-nil writers.
func DocumentWriter(writers ...driven.DocumentWriter) driven.DocumentWriter {
	var out Documents
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// MetricsWriter returns the single writer unchanged, or a fan-out over all
// non-nil writers.
func MetricsWriter(writers ...driven.MetricsWriter) driven.MetricsWriter {
	var out Metrics
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
