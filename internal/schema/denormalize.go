package schema

import "time"

// Denormalization describes a materialized join written whenever a row is
// created in Source. The Source row points at a Via row through SourceRef,
// the Via row points at an Owner row through OwnerRef, and the Target row
// combines the Source fields, the Owner fields and a creation timestamp.
type Denormalization struct {
	Source Table
	Via    Table
	Owner  Table
	Target Table

	SourceRef    string
	OwnerRef     string
	SourceFields []string
	OwnerFields  []string
	Stamp        string
}

// CaseCacheFanOut is the rule that keeps case_cache in step with
// malaria_results.
var CaseCacheFanOut = Denormalization{
	Source:       MalariaResults,
	Via:          BloodTest,
	Owner:        Patient,
	Target:       CaseCache,
	SourceRef:    "blood_test_id",
	OwnerRef:     "patient_id",
	SourceFields: []string{"malaria_status", "parasite_type", "blood_test_id"},
	OwnerFields:  []string{"name", "date_of_birth", "gender", "village_id", "health_center_id"},
	Stamp:        "date",
}

// Row builds the Target row. The row reuses sourceID as its own id, carries
// ownerID under OwnerRef and is stamped with now.
func (d Denormalization) Row(sourceID int64, source map[string]any, ownerID int64, owner map[string]any, now time.Time) map[string]any {
	row := make(map[string]any, len(d.SourceFields)+len(d.OwnerFields)+3)
	for _, f := range d.OwnerFields {
		row[f] = owner[f]
	}
	for _, f := range d.SourceFields {
		row[f] = source[f]
	}
	row[IDColumn] = sourceID
	row[d.OwnerRef] = ownerID
	row[d.Stamp] = now
	return row
}
