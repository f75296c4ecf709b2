package vision

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/model"
)

// Model sends an image to the hosted vision endpoint. Satisfied by
// ai.Client.
type Model interface {
	DescribeImage(ctx context.Context, system, instruction, imageURL string) (string, error)
}

// Searcher is the retrieval gateway surface used for database validation.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, threshold float64, filter map[string]string) []model.RetrievedMatch
}

const (
	validationLimit     = 3
	validationThreshold = 0.6
)

// extractionPrompt is the fixed Czech pharmaceutical extraction
// instruction demanding JSON-only output.
const extractionPrompt = `Jste expert na české farmaceutické přípravky s hlubokými znalostmi české lékařské terminologie.

Vaším úkolem je analyzovat obrázek obalu léku a extrahovat následující informace:

POVINNÉ ÚDAJE K ROZPOZNÁNÍ:
1. Obchodní název přípravku (často velké písmo na přední straně)
2. Účinná látka (může být uvedena jako INN nebo český název)
3. Síla/koncentrace (mg, ml, %, atd.)
4. Léková forma (tablety, sirup, mast, atd.)
5. Výrobce/držitel rozhodnutí
6. Registrační číslo (format: XX/YYYY/ZZ-C)

INSTRUKCE PRO ROZPOZNÁNÍ:
- Zaměřte se na český text a terminologie
- Rozlište mezi obchodním názvem a účinnou látkou
- Pozor na podobné názvy různých síl téhož léku
- Registrační číslo je obvykle malé písmo na spodku/boku
- Pokud text není jasně čitelný, označte jako "není viditelné"

VÝSTUP VE FORMÁTU JSON:
{
  "name": "přesný obchodní název",
  "active_ingredient": "účinná látka (INN nebo český název)",
  "strength": "síla s jednotkami",
  "form": "léková forma",
  "manufacturer": "výrobce",
  "registration_number": "registrační číslo",
  "confidence_score": 0.0-1.0,
  "extracted_text": "veškerý rozpoznaný text"
}

DŮLEŽITÉ: Odpovězte POUZE validním JSON objektem, žádný další text.`

const extractionInstruction = "Analyzujte tento obrázek léku a extrahujte všechny viditelné informace:"

// knownBrands is the hardcoded brand list the unparsed-response heuristic
// looks for. A safety net, not a real parser.
var knownBrands = []string{"paralen", "brufen", "aspirin"}

// Service recognizes medications from package photos via the hosted
// vision model.
type Service struct {
	model    Model
	searcher Searcher
}

func NewService(m Model, searcher Searcher) *Service {
	return &Service{model: m, searcher: searcher}
}

// Extract recognizes a medication from an image payload. It fails only on
// an unsupported payload; a vision-call failure degrades into a zero
// confidence recognition with a warning.
func (s *Service) Extract(ctx context.Context, payload string) (model.VisionRecognition, error) {
	imageURL, err := normalizePayload(payload)
	if err != nil {
		return model.VisionRecognition{}, err
	}

	log.Info().Msg("recognizing medication from image")

	response, err := s.model.DescribeImage(ctx, extractionPrompt, extractionInstruction, imageURL)
	if err != nil {
		log.Error().Err(err).Msg("vision recognition failed")
		rec := model.NewVisionRecognition()
		rec.Name = "Chyba při rozpoznání"
		rec.ConfidenceScore = 0.0
		rec.Warning = "Nepodařilo se rozpoznat lék z obrázku: " + err.Error()
		return rec, nil
	}

	rec := parseResponse(response)
	rec = adjustQuality(rec)

	log.Info().Float64("confidence", rec.ConfidenceScore).Msg("vision recognition completed")
	return rec, nil
}

// visionJSON mirrors the JSON shape the extraction prompt demands.
type visionJSON struct {
	Name               string  `json:"name"`
	ActiveIngredient   string  `json:"active_ingredient"`
	Strength           string  `json:"strength"`
	Form               string  `json:"form"`
	Manufacturer       string  `json:"manufacturer"`
	RegistrationNumber string  `json:"registration_number"`
	ConfidenceScore    float64 `json:"confidence_score"`
	ExtractedText      string  `json:"extracted_text"`
}

// parseResponse decodes the model response into a tagged result: a strict
// JSON decode, or a degraded marker-filled record preserving the raw text.
// The fallback is a heuristic safety net for the model ignoring the
// JSON-only instruction, not a real parser.
func parseResponse(response string) model.VisionRecognition {
	var parsed visionJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &parsed); err == nil {
		rec := model.VisionRecognition{
			Name:               orMarker(parsed.Name),
			ActiveIngredient:   orMarker(parsed.ActiveIngredient),
			Strength:           orMarker(parsed.Strength),
			Form:               orMarker(parsed.Form),
			Manufacturer:       orMarker(parsed.Manufacturer),
			RegistrationNumber: orMarker(parsed.RegistrationNumber),
			ConfidenceScore:    parsed.ConfidenceScore,
			ExtractedText:      parsed.ExtractedText,
		}
		return rec
	}

	log.Warn().Msg("vision model returned invalid JSON, using fallback record")

	rec := model.NewVisionRecognition()
	rec.ConfidenceScore = 0.3
	rec.ExtractedText = response

	lower := strings.ToLower(response)
	for _, brand := range knownBrands {
		if strings.Contains(lower, brand) {
			rec.ConfidenceScore = 0.5
			break
		}
	}
	return rec
}

func orMarker(value string) string {
	if strings.TrimSpace(value) == "" {
		return model.NotVisible
	}
	return value
}

// adjustQuality penalizes missing critical fields and attaches the tiered
// warning for the resulting confidence band. Confidence only ever moves
// down here, floored at zero and rounded to two decimals.
func adjustQuality(rec model.VisionRecognition) model.VisionRecognition {
	confidence := rec.ConfidenceScore

	if !rec.HasName() {
		confidence = math.Max(0.0, confidence-0.3)
		rec.Warning = "Nepodařilo se rozpoznat název léku"
	}
	if !rec.HasActiveIngredient() {
		confidence = math.Max(0.0, confidence-0.2)
	}

	switch {
	case confidence < 0.4:
		rec.Warning = "Velmi nízká spolehlivost rozpoznání. Zkuste obrázek s lepším osvětlením nebo z jiného úhlu."
	case confidence < 0.6:
		rec.Warning = "Nízká spolehlivost rozpoznání. Doporučujeme ověřit informace."
	case confidence < 0.8:
		rec.Warning = "Střední spolehlivost rozpoznání. Zkontrolujte správnost údajů."
	}

	rec.ConfidenceScore = math.Round(math.Min(1.0, confidence)*100) / 100
	return rec
}

// ValidateAgainstStore checks the recognition against the SÚKL database.
// On a match it attaches the matches and backfills fields still at the
// marker from the best match's metadata; it never overwrites a real
// extracted value and never raises the confidence score. A store failure
// degrades to an unvalidated result with a warning.
func (s *Service) ValidateAgainstStore(ctx context.Context, rec model.VisionRecognition) model.VisionRecognition {
	if !rec.HasName() {
		log.Info().Msg("no name available for database validation")
		return rec
	}

	log.Info().Str("name", rec.Name).Msg("validating recognition against database")

	query := rec.Name
	if rec.HasActiveIngredient() {
		query += " " + rec.ActiveIngredient
	}

	matches := s.searcher.Search(ctx, query, validationLimit, validationThreshold, nil)
	if len(matches) == 0 {
		log.Warn().Str("name", rec.Name).Msg("medication not found in database")
		validated := false
		rec.Validated = &validated
		rec.Warning = "Lék nebyl nalezen v databázi SÚKL. Ověřte správnost informací."
		return rec
	}

	validated := true
	rec.Validated = &validated
	rec.Matches = make([]model.DocumentMetadata, 0, len(matches))
	for _, match := range matches {
		rec.Matches = append(rec.Matches, match.Metadata)
	}

	// Backfill only placeholder fields; real extracted values win over
	// database metadata.
	best := matches[0].Metadata
	if rec.ActiveIngredient == model.NotVisible && best.ActiveIngredient != nil {
		rec.ActiveIngredient = *best.ActiveIngredient
	}
	if rec.RegistrationNumber == model.NotVisible && best.RegistrationNumber != nil {
		rec.RegistrationNumber = *best.RegistrationNumber
	}

	log.Info().Int("matches", len(matches)).Msg("recognition validated against database")
	return rec
}
