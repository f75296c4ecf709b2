package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/model"
	"github.com/DigiMedic/PillSee/pkg/metrics"
)

// Answerer produces a synthesized answer for a free-text question.
type Answerer interface {
	Answer(ctx context.Context, query string) model.TextAnswer
}

// Recognizer turns an image payload into structured medication data and
// cross-checks it against the reference database.
type Recognizer interface {
	Extract(ctx context.Context, payload string) (model.VisionRecognition, error)
	ValidateAgainstStore(ctx context.Context, rec model.VisionRecognition) model.VisionRecognition
}

// Searcher is the retrieval surface the image path uses to look up the
// recognized medication by name.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, threshold float64, filter map[string]string) []model.RetrievedMatch
}

const (
	imageSearchLimit     = 5
	imageSearchThreshold = 0.6
	missingFieldPenalty  = 0.2
)

// Workflow runs each query through a fixed linear pipeline. Text queries go
// search -> validate -> disclaimers; image queries prepend an extraction
// stage. Any stage that records an error halts the pipeline at that point.
type Workflow struct {
	answers Answerer
	vision  Recognizer
	search  Searcher
	metrics *metrics.Metrics
}

func New(answers Answerer, vision Recognizer, search Searcher, m *metrics.Metrics) *Workflow {
	return &Workflow{
		answers: answers,
		vision:  vision,
		search:  search,
		metrics: m,
	}
}

type stage struct {
	name string
	run  func(context.Context, model.QueryState) model.QueryState
}

// Run executes the pipeline for one request and returns the final state.
// The returned state always carries a non-empty disclaimer unless an
// earlier stage halted the pipeline.
func (w *Workflow) Run(ctx context.Context, state model.QueryState) model.QueryState {
	start := time.Now()

	stages := []stage{
		{"search_database", w.searchDatabase},
		{"validate_info", w.validateInfo},
		{"add_disclaimers", w.addDisclaimers},
	}
	if state.Kind == model.QueryKindImage {
		stages = append([]stage{{"extract_image", w.extractImage}}, stages...)
	}

	for _, st := range stages {
		state = st.run(ctx, state)
		if state.Failed() {
			log.Warn().
				Str("stage", st.name).
				Str("kind", string(state.Kind)).
				Str("error", state.Error).
				Msg("query pipeline halted")
			if w.metrics != nil {
				w.metrics.PipelineErrors.WithLabelValues(st.name).Inc()
			}
			break
		}
	}

	if w.metrics != nil {
		status := "ok"
		if state.Failed() {
			status = "error"
		}
		w.metrics.QueriesProcessed.WithLabelValues(string(state.Kind), status).Inc()
		w.metrics.QueryDuration.WithLabelValues(string(state.Kind)).Observe(time.Since(start).Seconds())
	}
	return state
}

func (w *Workflow) extractImage(ctx context.Context, state model.QueryState) model.QueryState {
	if state.ImageData == "" {
		state.Error = "Chybí obrázek pro zpracování"
		return state
	}

	rec, err := w.vision.Extract(ctx, state.ImageData)
	if err != nil {
		state.Error = "Chyba při rozpoznání obrázku: " + err.Error()
		state.Err = err
		return state
	}

	state.Recognition = &rec
	state.ConfidenceScore = rec.ConfidenceScore
	if rec.HasName() {
		state.ExtractedText = "Název: " + rec.Name
	}
	if rec.Warning != "" {
		state.SafetyWarnings = append(state.SafetyWarnings, rec.Warning)
	}
	return state
}

func (w *Workflow) searchDatabase(ctx context.Context, state model.QueryState) model.QueryState {
	if state.Kind == model.QueryKindText {
		if strings.TrimSpace(state.Query) == "" {
			state.Error = "Chybí dotaz pro vyhledání v databázi"
			return state
		}
		answer := w.answers.Answer(ctx, state.Query)
		state.Answer = &answer
		state.Sources = answer.Sources
		state.ConfidenceScore = answer.Confidence.Score()
		return state
	}

	query := state.ExtractedText
	if state.Recognition != nil && state.Recognition.HasName() {
		query = state.Recognition.Name
	}
	if query == "" {
		state.SafetyWarnings = append(state.SafetyWarnings,
			"Informace o tomto léku nebyly nalezeny v databázi SÚKL")
		return state
	}

	matches := w.search.Search(ctx, query, imageSearchLimit, imageSearchThreshold, nil)
	if len(matches) == 0 {
		state.SafetyWarnings = append(state.SafetyWarnings,
			"Informace o tomto léku nebyly nalezeny v databázi SÚKL")
		return state
	}

	best := matches[0].Metadata
	state.BestMatch = &best
	for i, m := range matches {
		if i >= 3 {
			break
		}
		if m.Metadata.Name != nil && *m.Metadata.Name != "" {
			state.Sources = append(state.Sources, *m.Metadata.Name)
		}
	}

	if state.Recognition != nil {
		before := state.Recognition.Warning
		validated := w.vision.ValidateAgainstStore(ctx, *state.Recognition)
		state.Recognition = &validated
		state.ConfidenceScore = validated.ConfidenceScore
		if validated.Warning != "" && validated.Warning != before {
			state.SafetyWarnings = append(state.SafetyWarnings, validated.Warning)
		}
	}
	return state
}

// validateInfo sanity-checks the structured medication data and lowers the
// numeric confidence when the name or active ingredient is unknown.
func (w *Workflow) validateInfo(ctx context.Context, state model.QueryState) model.QueryState {
	_ = ctx

	if state.Kind == model.QueryKindText {
		return state
	}

	rec := state.Recognition
	missing := rec == nil || !rec.HasName() || !rec.HasActiveIngredient()
	if missing {
		state.ConfidenceScore -= missingFieldPenalty
		if state.ConfidenceScore < 0 {
			state.ConfidenceScore = 0
		}
		if rec != nil {
			rec.ConfidenceScore = state.ConfidenceScore
		}
	}
	if rec == nil {
		return state
	}

	if rec.HasName() {
		rec.Name = strings.ToUpper(strings.TrimSpace(rec.Name))
	}

	strength := strings.ToLower(rec.Strength)
	form := strings.ToLower(rec.Form)
	if rec.Strength != model.NotVisible && rec.Form != model.NotVisible &&
		strings.Contains(form, "tablety") && !strings.Contains(strength, "mg") {
		log.Warn().
			Str("name", rec.Name).
			Str("strength", rec.Strength).
			Str("form", rec.Form).
			Msg("strength does not match tablet form")
	}
	return state
}

// addDisclaimers derives safety warnings from the collected medication data
// and attaches the mandatory disclaimer. The disclaimer is never left empty:
// if warning derivation panics, the hardcoded fallback is substituted.
func (w *Workflow) addDisclaimers(ctx context.Context, state model.QueryState) (out model.QueryState) {
	_ = ctx
	out = state

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("disclaimer stage recovered")
			out = state
			out.Disclaimer = model.FallbackDisclaimer
		}
	}()

	out.SafetyWarnings = append(out.SafetyWarnings, deriveWarnings(out)...)
	out.Disclaimer = model.MedicalDisclaimer + "\n\n" + model.DisclaimerAddendum
	return out
}

// prescriptionMarker appears in the SÚKL availability column for
// prescription-only medications.
const prescriptionMarker = "předpis"

var drugClassStems = []string{"antibio", "kortiko", "psycho"}

func deriveWarnings(state model.QueryState) []string {
	var warnings []string

	if state.Recognition != nil {
		text := strings.ToLower(state.Recognition.ExtractedText)
		if strings.Contains(text, "kontraindikace") {
			warnings = append(warnings, "Přečtěte si kontraindikace v příbalovém letáku")
		}
		if strings.Contains(text, "interakce") {
			warnings = append(warnings, "Lék může mít interakce s jinými léčivy")
		}
	}

	if state.BestMatch != nil && state.BestMatch.PrescriptionRequired != nil {
		if strings.Contains(strings.ToLower(*state.BestMatch.PrescriptionRequired), prescriptionMarker) {
			warnings = append(warnings, "Tento lék je vázán na lékařský předpis")
		}
	}

	name := ""
	if state.Recognition != nil {
		name = state.Recognition.Name
	} else if state.BestMatch != nil && state.BestMatch.Name != nil {
		name = *state.BestMatch.Name
	}
	lower := strings.ToLower(name)
	for _, stem := range drugClassStems {
		if strings.Contains(lower, stem) {
			warnings = append(warnings, "Užívání tohoto typu léku konzultujte s lékařem")
			break
		}
	}
	return warnings
}
