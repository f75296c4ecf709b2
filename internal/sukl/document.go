package sukl

import (
	"strings"

	"github.com/DigiMedic/PillSee/internal/model"
)

// BuildDocument converts a canonical record into its embeddable document.
// It is pure: the same record always yields identical content and metadata.
//
// Content is one "Label: value" line per present field in a fixed order.
// When the active ingredient is absent the ATC code takes its slot, since
// the official export names substances only through ATC codes.
func BuildDocument(rec model.MedicationRecord) model.EmbeddingDocument {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("Název", rec.Name)
	if rec.ActiveIngredient != "" {
		add("Účinná látka", rec.ActiveIngredient)
	} else {
		add("ATC kód", rec.ATCCode)
	}
	add("Síla", rec.Strength)
	add("Léková forma", rec.Form)
	add("Výrobce", rec.Manufacturer)
	add("Indikace", rec.Indication)
	add("Kontraindikace", rec.Contraindication)
	add("Nežádoucí účinky", rec.SideEffects)
	add("Interakce", rec.Interactions)
	add("Dávkování", rec.Dosage)

	return model.EmbeddingDocument{
		Content:  strings.Join(lines, "\n"),
		Metadata: buildMetadata(rec),
	}
}

// BuildDocuments maps records to documents 1:1.
func BuildDocuments(records []model.MedicationRecord) []model.EmbeddingDocument {
	docs := make([]model.EmbeddingDocument, 0, len(records))
	for _, rec := range records {
		docs = append(docs, BuildDocument(rec))
	}
	return docs
}

// buildMetadata carries exactly the five reference fields, nulls passed
// through rather than substituted.
func buildMetadata(rec model.MedicationRecord) model.DocumentMetadata {
	return model.DocumentMetadata{
		Name:                 optional(rec.Name),
		ActiveIngredient:     optional(rec.ActiveIngredient),
		RegistrationNumber:   optional(rec.RegistrationNumber),
		ATCCode:              optional(rec.ATCCode),
		PrescriptionRequired: optional(rec.PrescriptionRequired),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
