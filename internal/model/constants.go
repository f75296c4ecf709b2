package model

// NotVisible is the marker the vision model is instructed to emit for
// fields it cannot read from the package photo. Downstream merging only
// ever overwrites fields still holding this marker.
const NotVisible = "není viditelné"

// Request limits
const (
	MaxQueryLength    = 500
	MaxImageSizeBytes = 10 << 20 // 10MB decoded
)

// MedicalDisclaimer is appended verbatim to every user-facing answer.
const MedicalDisclaimer = `UPOZORNĚNÍ: Tyto informace slouží pouze pro informativní účely a nenahrazují odbornou lékařskou radu, diagnózu nebo léčbu. Vždy se poraďte s kvalifikovaným zdravotnickým odborníkem před užitím jakéhokoliv léku.`

// DisclaimerAddendum follows the disclaimer on every pipeline response.
const DisclaimerAddendum = `Informace pocházejí z oficiální databáze SÚKL, ale mohou se změnit. Pro nejaktuálnější informace kontaktujte lékárnu nebo lékaře.`

// FallbackDisclaimer is substituted when disclaimer assembly itself fails.
// The disclaimer must never be left empty.
const FallbackDisclaimer = `UPOZORNĚNÍ: Tyto informace slouží pouze pro informativní účely a nenahrazují odbornou lékařskou radu. Vždy se poraďte s lékařem před užitím léků.`
