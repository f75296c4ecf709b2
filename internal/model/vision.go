package model

// VisionRecognition is the structured result of recognizing a medication
// package from an image. String fields default to the NotVisible marker;
// ConfidenceScore stays within [0,1] and is only ever adjusted downward by
// quality checks and database validation.
type VisionRecognition struct {
	Name               string             `json:"name"`
	ActiveIngredient   string             `json:"active_ingredient"`
	Strength           string             `json:"strength"`
	Form               string             `json:"form"`
	Manufacturer       string             `json:"manufacturer"`
	RegistrationNumber string             `json:"registration_number"`
	ConfidenceScore    float64            `json:"confidence_score"`
	ExtractedText      string             `json:"extracted_text,omitempty"`
	Warning            string             `json:"warning,omitempty"`
	Validated          *bool              `json:"validated,omitempty"`
	Matches            []DocumentMetadata `json:"sukl_matches,omitempty"`
}

// NewVisionRecognition returns a recognition with every text field at the
// NotVisible marker.
func NewVisionRecognition() VisionRecognition {
	return VisionRecognition{
		Name:               NotVisible,
		ActiveIngredient:   NotVisible,
		Strength:           NotVisible,
		Form:               NotVisible,
		Manufacturer:       NotVisible,
		RegistrationNumber: NotVisible,
	}
}

// HasName reports whether a real name was extracted.
func (v VisionRecognition) HasName() bool {
	return v.Name != "" && v.Name != NotVisible
}

// HasActiveIngredient reports whether a real active ingredient was extracted.
func (v VisionRecognition) HasActiveIngredient() bool {
	return v.ActiveIngredient != "" && v.ActiveIngredient != NotVisible
}
