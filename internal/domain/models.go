package domain

import (
	"encoding/json"
	"time"
)

// ChannelMessage is the wire envelope for all push-channel traffic.
// Immutable once received.
type ChannelMessage struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClaimUpdateEvent is the payload of a claim_update message.
type ClaimUpdateEvent struct {
	ClaimID        string   `json:"claim_id"`
	Status         string   `json:"status"`
	TrackingNumber string   `json:"tracking_number"`
	UpdatedFields  []string `json:"updated_fields"`
}

// ClaimMetrics is the payload of a metrics message. The channel keeps only
// the latest snapshot.
type ClaimMetrics struct {
	TotalClaims       int     `json:"total_claims"`
	PendingClaims     int     `json:"pending_claims"`
	ApprovedToday     int     `json:"approved_today"`
	DeniedToday       int     `json:"denied_today"`
	AvgProcessingDays float64 `json:"avg_processing_days"`
}

// Notification is the payload of a notification message.
type Notification struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentProcessingStatus is one poll tick's view of a document's OCR and
// extraction progress. Terminal once Status is completed or failed.
type DocumentProcessingStatus struct {
	DocumentID        string          `json:"document_id"`
	Status            DocumentStatus  `json:"status"`
	ProcessingStage   ProcessingStage `json:"processing_stage"`
	ProgressPercent   int             `json:"progress_percent"`
	OCRConfidence     *float64        `json:"ocr_confidence,omitempty"`
	ParsingConfidence *float64        `json:"parsing_confidence,omitempty"`
	NeedsReview       bool            `json:"needs_review"`
	Error             string          `json:"error,omitempty"`
}

// ExtractedField is one field value read from one document, with the
// OCR/parsing certainty behind it. Never mutated after creation.
type ExtractedField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CodeEntry is one coded list item (diagnosis or procedure) from one document.
type CodeEntry struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// PatientFields holds the patient section of an extraction payload.
type PatientFields struct {
	Name        ExtractedField `json:"name"`
	DateOfBirth ExtractedField `json:"date_of_birth"`
	MemberID    ExtractedField `json:"member_id"`
}

// ProviderFields holds the provider section of an extraction payload.
type ProviderFields struct {
	Name  ExtractedField `json:"name"`
	NPI   ExtractedField `json:"npi"`
	TaxID ExtractedField `json:"tax_id"`
}

// IdentifierFields holds claim and policy identifiers.
type IdentifierFields struct {
	ClaimNumber  ExtractedField `json:"claim_number"`
	PolicyNumber ExtractedField `json:"policy_number"`
	GroupNumber  ExtractedField `json:"group_number"`
}

// DateFields holds service-related dates.
type DateFields struct {
	ServiceDate   ExtractedField `json:"service_date"`
	AdmissionDate ExtractedField `json:"admission_date"`
	DischargeDate ExtractedField `json:"discharge_date"`
}

// FinancialFields holds billed and paid amounts as extracted text.
type FinancialFields struct {
	BilledAmount ExtractedField `json:"billed_amount"`
	PaidAmount   ExtractedField `json:"paid_amount"`
	PatientOwes  ExtractedField `json:"patient_owes"`
}

// DocumentExtraction is the extracted-data payload for one document: every
// canonical field tagged with per-field confidence.
type DocumentExtraction struct {
	DocumentID       string           `json:"document_id"`
	Patient          PatientFields    `json:"patient"`
	Provider         ProviderFields   `json:"provider"`
	Identifiers      IdentifierFields `json:"identifiers"`
	Dates            DateFields       `json:"dates"`
	Financial        FinancialFields  `json:"financial"`
	Diagnoses        []CodeEntry      `json:"diagnoses"`
	Procedures       []CodeEntry      `json:"procedures"`
	NeedsReview      bool             `json:"needs_review"`
	ValidationIssues []string         `json:"validation_issues,omitempty"`
}

// ConflictCandidate is one document's vote for a conflicted field.
type ConflictCandidate struct {
	DocumentID string  `json:"document_id"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// DataConflict records a field for which two or more completed documents
// supplied distinct non-empty values. ResolvedFrom is a document id for
// manual resolutions or "auto" for the confidence-ranked default.
type DataConflict struct {
	Field          string              `json:"field"`
	Candidates     []ConflictCandidate `json:"candidates"`
	ResolvedValue  string              `json:"resolved_value"`
	ResolvedFrom   string              `json:"resolved_from"`
	RequiresReview bool                `json:"requires_review"`
}

// PatientRecord is the merged patient section.
type PatientRecord struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	MemberID    string `json:"member_id"`
}

// ProviderRecord is the merged provider section.
type ProviderRecord struct {
	Name  string `json:"name"`
	NPI   string `json:"npi"`
	TaxID string `json:"tax_id"`
}

// IdentifierRecord is the merged identifiers section.
type IdentifierRecord struct {
	ClaimNumber  string `json:"claim_number"`
	PolicyNumber string `json:"policy_number"`
	GroupNumber  string `json:"group_number"`
}

// DateRecord is the merged dates section.
type DateRecord struct {
	ServiceDate   string `json:"service_date"`
	AdmissionDate string `json:"admission_date"`
	DischargeDate string `json:"discharge_date"`
}

// FinancialRecord is the merged financial section.
type FinancialRecord struct {
	BilledAmount string `json:"billed_amount"`
	PaidAmount   string `json:"paid_amount"`
	PatientOwes  string `json:"patient_owes"`
}

// MergedExtractionRecord is the single canonical result of merging all
// completed documents' extractions. Recomputed whenever the contributing
// document set changes; never partially updated in place.
type MergedExtractionRecord struct {
	Patient           PatientRecord      `json:"patient"`
	Provider          ProviderRecord     `json:"provider"`
	Identifiers       IdentifierRecord   `json:"identifiers"`
	Dates             DateRecord         `json:"dates"`
	Financial         FinancialRecord    `json:"financial"`
	Diagnoses         []CodeEntry        `json:"diagnoses"`
	Procedures        []CodeEntry        `json:"procedures"`
	Conflicts         []DataConflict     `json:"conflicts"`
	FieldSources      map[string]string  `json:"field_sources"`
	FieldConfidences  map[string]float64 `json:"field_confidences"`
	OverallConfidence float64            `json:"overall_confidence"`
}

// Conflict returns the conflict entry for a field, or nil.
func (r *MergedExtractionRecord) Conflict(field string) *DataConflict {
	for i := range r.Conflicts {
		if r.Conflicts[i].Field == field {
			return &r.Conflicts[i]
		}
	}
	return nil
}

// HasUnresolvedConflicts reports whether any conflict still requires review.
func (r *MergedExtractionRecord) HasUnresolvedConflicts() bool {
	for i := range r.Conflicts {
		if r.Conflicts[i].RequiresReview {
			return true
		}
	}
	return false
}
