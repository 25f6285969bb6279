package merge

import "claimlens/internal/domain"

// scalarField binds a canonical field path to its slot in the extraction
// payload and the merged record.
type scalarField struct {
	path string
	get  func(*domain.DocumentExtraction) domain.ExtractedField
	set  func(*domain.MergedExtractionRecord, string)
}

// scalarFields is the canonical scalar field set, in merge order. The order
// is fixed so that repeated merges over the same input produce identical
// records.
var scalarFields = []scalarField{
	{
		path: "patient.name",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Patient.Name },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Patient.Name = v },
	},
	{
		path: "patient.date_of_birth",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Patient.DateOfBirth },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Patient.DateOfBirth = v },
	},
	{
		path: "patient.member_id",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Patient.MemberID },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Patient.MemberID = v },
	},
	{
		path: "provider.name",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Provider.Name },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Provider.Name = v },
	},
	{
		path: "provider.npi",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Provider.NPI },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Provider.NPI = v },
	},
	{
		path: "provider.tax_id",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Provider.TaxID },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Provider.TaxID = v },
	},
	{
		path: "identifiers.claim_number",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Identifiers.ClaimNumber },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Identifiers.ClaimNumber = v },
	},
	{
		path: "identifiers.policy_number",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Identifiers.PolicyNumber },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Identifiers.PolicyNumber = v },
	},
	{
		path: "identifiers.group_number",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Identifiers.GroupNumber },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Identifiers.GroupNumber = v },
	},
	{
		path: "dates.service_date",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Dates.ServiceDate },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Dates.ServiceDate = v },
	},
	{
		path: "dates.admission_date",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Dates.AdmissionDate },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Dates.AdmissionDate = v },
	},
	{
		path: "dates.discharge_date",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Dates.DischargeDate },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Dates.DischargeDate = v },
	},
	{
		path: "financial.billed_amount",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Financial.BilledAmount },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Financial.BilledAmount = v },
	},
	{
		path: "financial.paid_amount",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Financial.PaidAmount },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Financial.PaidAmount = v },
	},
	{
		path: "financial.patient_owes",
		get:  func(d *domain.DocumentExtraction) domain.ExtractedField { return d.Financial.PatientOwes },
		set:  func(r *domain.MergedExtractionRecord, v string) { r.Financial.PatientOwes = v },
	},
}

func findScalarField(path string) *scalarField {
	for i := range scalarFields {
		if scalarFields[i].path == path {
			return &scalarFields[i]
		}
	}
	return nil
}
