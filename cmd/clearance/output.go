package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/clearance"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/ingestion"
	"github.com/poiesic/clearance/query"
)

func joinCollections(ids []core.CollectionID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func printAnswer(w io.Writer, r *core.AnswerResult) {
	fmt.Fprintf(w, "Role: %s\n", r.Role)
	fmt.Fprintf(w, "Outcome: %s\n", r.Outcome)
	fmt.Fprintf(w, "Confidence: %.2f\n", r.Confidence)
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(r.Sources, ", "))
		fmt.Fprintf(w, "Collections: %s\n", joinCollections(r.SourceCollections))
	}
	fmt.Fprintln(w)

	if r.Outcome == core.OutcomeGenerationFailed {
		fmt.Fprintln(w, r.Context)
		return
	}
	fmt.Fprintln(w, r.Answer)
}

func printDiagnostics(w io.Writer, d *core.Diagnostics) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Diagnostics:")
	fmt.Fprintf(w, "  searched:    %s\n", joinCollections(d.CollectionsAttempted))
	if len(d.CollectionsNotFound) > 0 {
		fmt.Fprintf(w, "  not found:   %s\n", joinCollections(d.CollectionsNotFound))
	}
	if len(d.CollectionsEmpty) > 0 {
		fmt.Fprintf(w, "  empty:       %s\n", joinCollections(d.CollectionsEmpty))
	}
	for c, msg := range d.CollectionErrors {
		fmt.Fprintf(w, "  error:       %s: %s\n", c, msg)
	}
	if d.EmbeddingError != "" {
		fmt.Fprintf(w, "  embedding:   %s\n", d.EmbeddingError)
	}
	fmt.Fprintf(w, "  scanned:     %d documents\n", d.DocumentsScanned)
	fmt.Fprintf(w, "  top scores:  %s\n", formatScores(d.TopSimilarities))
	fmt.Fprintf(w, "  strategies:  %s (escalated: %t)\n", strings.Join(d.StrategiesRun, " -> "), d.Escalated)
	fmt.Fprintf(w, "  candidates:  %d considered, %d used", d.CandidatesConsidered, d.DocumentsUsed)
	if d.BelowThreshold {
		fmt.Fprint(w, " (below confidence threshold)")
	}
	fmt.Fprintln(w)
}

func formatScores(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.3f", s)
	}
	return strings.Join(parts, " ")
}

func printReport(w io.Writer, r *query.Report) {
	fmt.Fprintf(w, "Role: %s\n", r.Role)
	fmt.Fprintf(w, "Authorized collections: %s\n", joinCollections(r.Collections))
	if r.Context.Insufficient() {
		fmt.Fprintln(w, r.Context.Message)
	} else {
		fmt.Fprintf(w, "Confidence: %.2f\n\n", r.Context.Confidence)
		fmt.Fprintln(w, r.Context.Text())
	}
	printDiagnostics(w, &r.Diagnostics)
}

func printDepartment(w io.Writer, r *ingestion.DepartmentReport) {
	fmt.Fprintf(w, "%s -> %s (%d chunks)\n", r.Department, r.Collection, r.Total)
	for _, f := range r.Files {
		switch {
		case f.Err != nil:
			fmt.Fprintf(w, "  %-30s failed: %v\n", f.Source, f.Err)
		case f.Skipped:
			fmt.Fprintf(w, "  %-30s unchanged\n", f.Source)
		default:
			fmt.Fprintf(w, "  %-30s %d chunks (%s)\n", f.Source, f.Chunks, f.Type)
		}
	}
	for _, source := range r.Removed {
		fmt.Fprintf(w, "  %-30s removed\n", source)
	}
}

func printCollections(w io.Writer, statuses []clearance.CollectionStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No collections. Run 'clearance ingest' first.")
		return
	}
	for _, s := range statuses {
		fmt.Fprintf(w, "%s: %d documents\n", s.Name, s.Count)
		for i, sample := range s.Samples {
			source := sample.Source
			if source == "" {
				source = "unknown"
			}
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, source, strings.ReplaceAll(sample.Preview, "\n", " "))
		}
	}
}

func printHealth(w io.Writer, h *clearance.Health) {
	status := "ok"
	if !h.StorageOK {
		status = "unavailable: " + h.Error
	}
	fmt.Fprintf(w, "Storage: %s\n", status)
	for _, name := range slices.Sorted(maps.Keys(h.Collections)) {
		fmt.Fprintf(w, "  %s: %d\n", name, h.Collections[name])
	}
	if len(h.Missing) > 0 {
		fmt.Fprintf(w, "Missing collections: %s\n", joinCollections(h.Missing))
	}
}
