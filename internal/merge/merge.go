// Package merge reconciles per-document extraction results into one
// canonical record. It is pure: no I/O, no state between calls.
package merge

import (
	"claimlens/internal/domain"
)

// Merge combines the extractions of all completed documents into a single
// MergedExtractionRecord. Documents whose status is not completed are
// excluded from this pass; they re-enter automatically on a later pass once
// they complete. If statuses is nil every input document is treated as
// completed.
//
// prior, when non-nil, is the record from the previous pass; manually
// resolved conflicts are carried over as long as the field's candidate set
// has not changed. "Earliest document" in tie-breaks means earliest in the
// docs slice, so callers must keep a stable input order.
func Merge(docs []domain.DocumentExtraction, statuses map[string]domain.DocumentStatus, prior *domain.MergedExtractionRecord) *domain.MergedExtractionRecord {
	rec := &domain.MergedExtractionRecord{
		FieldSources:     map[string]string{},
		FieldConfidences: map[string]float64{},
		Conflicts:        []domain.DataConflict{},
	}

	completed := make([]domain.DocumentExtraction, 0, len(docs))
	for _, d := range docs {
		if statuses != nil && statuses[d.DocumentID] != domain.DocStatusCompleted {
			continue
		}
		completed = append(completed, d)
	}
	if len(completed) == 0 {
		return rec
	}

	for i := range scalarFields {
		mergeScalar(rec, &scalarFields[i], completed, prior)
	}

	rec.Diagnoses = mergeCodeEntries(completed, func(d *domain.DocumentExtraction) []domain.CodeEntry { return d.Diagnoses })
	rec.Procedures = mergeCodeEntries(completed, func(d *domain.DocumentExtraction) []domain.CodeEntry { return d.Procedures })

	rec.OverallConfidence = overallConfidence(rec)
	return rec
}

// mergeScalar merges one canonical scalar field across all completed
// documents, recording a DataConflict when two or more distinct non-empty
// values were observed.
func mergeScalar(rec *domain.MergedExtractionRecord, f *scalarField, docs []domain.DocumentExtraction, prior *domain.MergedExtractionRecord) {
	var candidates []domain.ConflictCandidate
	distinct := map[string]bool{}
	for i := range docs {
		v := f.get(&docs[i])
		if v.Value == "" {
			continue
		}
		candidates = append(candidates, domain.ConflictCandidate{
			DocumentID: docs[i].DocumentID,
			Value:      v.Value,
			Confidence: v.Confidence,
		})
		distinct[v.Value] = true
	}
	if len(candidates) == 0 {
		return
	}

	// Highest confidence wins; on an exact tie the earliest document wins.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	if len(distinct) == 1 {
		f.set(rec, best.Value)
		rec.FieldSources[f.path] = best.DocumentID
		rec.FieldConfidences[f.path] = best.Confidence
		return
	}

	conflict := domain.DataConflict{
		Field:          f.path,
		Candidates:     candidates,
		ResolvedValue:  best.Value,
		ResolvedFrom:   domain.ResolvedFromAuto,
		RequiresReview: true,
	}
	source := best.DocumentID
	confidence := best.Confidence

	// A manual resolution from the previous pass survives as long as the
	// candidate set is unchanged; a new candidate re-opens the conflict.
	if prior != nil {
		if pc := prior.Conflict(f.path); pc != nil && !pc.RequiresReview && sameCandidates(pc.Candidates, candidates) {
			conflict.ResolvedValue = pc.ResolvedValue
			conflict.ResolvedFrom = pc.ResolvedFrom
			conflict.RequiresReview = false
			source = pc.ResolvedFrom
			confidence = resolvedConfidence(candidates, pc.ResolvedFrom, pc.ResolvedValue)
		}
	}

	rec.Conflicts = append(rec.Conflicts, conflict)
	f.set(rec, conflict.ResolvedValue)
	rec.FieldSources[f.path] = source
	rec.FieldConfidences[f.path] = confidence
}

// mergeCodeEntries unions coded list items across documents, de-duplicated
// by code. When the same code appears from multiple documents the entry with
// the higher confidence is kept; list items never raise conflicts.
func mergeCodeEntries(docs []domain.DocumentExtraction, get func(*domain.DocumentExtraction) []domain.CodeEntry) []domain.CodeEntry {
	var out []domain.CodeEntry
	index := map[string]int{}
	for i := range docs {
		for _, e := range get(&docs[i]) {
			if e.Code == "" {
				continue
			}
			if at, seen := index[e.Code]; seen {
				if e.Confidence > out[at].Confidence {
					out[at] = e
				}
				continue
			}
			index[e.Code] = len(out)
			out = append(out, e)
		}
	}
	return out
}

// ResolveConflict records a reviewer's choice for a conflicted field. The
// value need not be among the original candidates; a value typed in by the
// reviewer is accepted as-is. Calling it again with the same arguments
// leaves the record unchanged.
func ResolveConflict(rec *domain.MergedExtractionRecord, field, value, sourceDocumentID string) error {
	c := rec.Conflict(field)
	if c == nil {
		return domain.ErrConflictNotFound
	}
	f := findScalarField(field)
	if f == nil {
		return domain.ErrConflictNotFound
	}

	c.ResolvedValue = value
	c.ResolvedFrom = sourceDocumentID
	c.RequiresReview = false

	f.set(rec, value)
	rec.FieldSources[field] = sourceDocumentID
	rec.FieldConfidences[field] = resolvedConfidence(c.Candidates, sourceDocumentID, value)
	rec.OverallConfidence = overallConfidence(rec)
	return nil
}

// resolvedConfidence returns the confidence behind a resolved value: the
// matching candidate's score, or 1.0 for a value the reviewer supplied
// outside the candidate set (human-verified).
func resolvedConfidence(candidates []domain.ConflictCandidate, sourceDocumentID, value string) float64 {
	for _, c := range candidates {
		if c.DocumentID == sourceDocumentID && c.Value == value {
			return c.Confidence
		}
	}
	for _, c := range candidates {
		if c.Value == value {
			return c.Confidence
		}
	}
	return 1.0
}

// overallConfidence is the arithmetic mean of the confidences behind every
// field present in the merged record, list entries included. Conflicted
// fields contribute their currently resolved candidate's confidence.
func overallConfidence(rec *domain.MergedExtractionRecord) float64 {
	var sum float64
	var n int
	for i := range scalarFields {
		if c, ok := rec.FieldConfidences[scalarFields[i].path]; ok {
			sum += c
			n++
		}
	}
	for _, e := range rec.Diagnoses {
		sum += e.Confidence
		n++
	}
	for _, e := range rec.Procedures {
		sum += e.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sameCandidates(a, b []domain.ConflictCandidate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
