package model

// RawRecord is one parsed CSV row keyed by its source column names. The
// column vocabulary is unstable across SÚKL exports, so raw records are
// only ever read through the normalizer's alias mapping.
type RawRecord map[string]string

// MedicationRecord is the canonical, source-independent representation of
// one medication. Empty string means the field was absent in the source.
// A record is valid only when Name is present and at least one of
// ActiveIngredient or ATCCode is present.
type MedicationRecord struct {
	Name                 string `json:"name,omitempty"`
	ActiveIngredient     string `json:"active_ingredient,omitempty"`
	Strength             string `json:"strength,omitempty"`
	Form                 string `json:"form,omitempty"`
	Manufacturer         string `json:"manufacturer,omitempty"`
	RegistrationNumber   string `json:"registration_number,omitempty"`
	ATCCode              string `json:"atc_code,omitempty"`
	Indication           string `json:"indication,omitempty"`
	Contraindication     string `json:"contraindication,omitempty"`
	SideEffects          string `json:"side_effects,omitempty"`
	Interactions         string `json:"interactions,omitempty"`
	Dosage               string `json:"dosage,omitempty"`
	Price                string `json:"price,omitempty"`
	PrescriptionRequired string `json:"prescription_required,omitempty"`
}

// Valid reports whether the record satisfies the minimal requirements for
// ingestion.
func (r MedicationRecord) Valid() bool {
	return r.Name != "" && (r.ActiveIngredient != "" || r.ATCCode != "")
}

// DocumentMetadata is the sidecar stored next to every embedding document.
// Nulls from the source are passed through as JSON nulls.
type DocumentMetadata struct {
	Name                 *string `json:"name"`
	ActiveIngredient     *string `json:"active_ingredient"`
	RegistrationNumber   *string `json:"registration_number"`
	ATCCode              *string `json:"atc_code"`
	PrescriptionRequired *string `json:"prescription_required"`
}

// EmbeddingDocument is the flat text block plus metadata derived 1:1 from a
// MedicationRecord. Built once at ingestion time, immutable afterward.
type EmbeddingDocument struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// RetrievedMatch is one candidate returned by the retrieval gateway.
// Ordering is descending similarity; tie order comes from the store and
// must be treated as non-deterministic.
type RetrievedMatch struct {
	Content    string           `json:"content"`
	Metadata   DocumentMetadata `json:"metadata"`
	Similarity float64          `json:"similarity"`
}
