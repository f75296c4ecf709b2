package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/model"
)

// Generator runs one chat completion. Satisfied by ai.Client.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Searcher is the retrieval gateway surface this service needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, threshold float64, filter map[string]string) []model.RetrievedMatch
}

const (
	retrievalLimit     = 5
	retrievalThreshold = 0.6
	minAnswerLength    = 50
)

// systemPrompt is the fixed Czech pharmaceutical instruction. It enforces
// Czech-only answers, the structured answer format, the fallback sentence
// for missing information and the prohibition on diagnoses.
const systemPrompt = `Jste odborný farmaceutický asistent specializující se na české léčivé přípravky.
Odpovídáte pouze na základě ověřených informací z oficiální databáze SÚKL.

INSTRUKCE PRO ODPOVĚĎ:

1. JAZYK: Odpovězte pouze v češtině s správnou medicínskou terminologií

2. STRUKTURA ODPOVĚDI:
   - Začněte názvem léku a účinnou látkou
   - Pokračujte základními informacemi (forma, síla, indikace)
   - Přidejte důležité informace (dávkování, kontraindikace, nežádoucí účinky)
   - Zakončete praktickými informacemi (předpisovost, cena)

3. BEZPEČNOSTNÍ ZÁSADY:
   - Používejte pouze informace z poskytnutého kontextu
   - Pokud informace není dostupná, jasně to uveďte
   - NIKDY neposkytujte diagnózy nebo doporučení léčby
   - Vždy odkažte na konzultaci s lékařem/lékárníkem

4. FORMÁT ODPOVĚDI:
   **Název přípravku**: [název]
   **Účinná látka**: [INN název]
   **Léková forma a síla**: [forma, síla]
   **Indikace**: [k čemu se používá]
   **Dávkování**: [pokud je známo]
   **Důležitá upozornění**: [kontraindikace, nežádoucí účinky]
   **Předpisovost**: [s/bez předpisu]
   **Orientační cena**: [pokud je známa]

5. NENÍ-LI INFORMACE DOSTUPNÁ:
   "Tuto informaci nemám k dispozici v aktuální databázi SÚKL."`

// symptomWarningBanner is unconditionally prepended to symptom-search
// answers.
const symptomWarningBanner = "⚠️ **DŮLEŽITÉ VAROVÁNÍ**: Tyto informace nejsou lékařskou radou!\n\n"

// confidenceIndicators are the domain keywords the confidence heuristic
// counts in the generated answer.
var confidenceIndicators = []string{
	"účinná látka", "indikace", "dávkování",
	"síla", "tablety", "mg", "ml",
}

// Service synthesizes medication answers with retrieval-augmented
// generation over the SÚKL knowledge base.
type Service struct {
	generator Generator
	searcher  Searcher
}

func NewService(generator Generator, searcher Searcher) *Service {
	return &Service{generator: generator, searcher: searcher}
}

// Answer runs the RAG pipeline for one text query. Retrieval or generation
// errors never propagate; they are converted into an apology answer with
// low confidence.
func (s *Service) Answer(ctx context.Context, query string) model.TextAnswer {
	log.Info().Int("length", len(query)).Msg("processing text query")

	processed := preprocessQuery(query)
	matches := s.searcher.Search(ctx, processed, retrievalLimit, retrievalThreshold, nil)

	response, err := s.generator.Generate(ctx, systemPrompt, buildUserPrompt(matches, processed))
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		return apologyAnswer(err)
	}

	confidence := assessConfidence(response, matches)
	log.Info().Str("confidence", string(confidence)).Msg("text query processed")

	return model.TextAnswer{
		Answer:     addDisclaimer(response),
		Sources:    sourceNames(matches),
		Confidence: confidence,
	}
}

// Compare rewrites the query into a two-medication comparison and runs the
// same pipeline.
func (s *Service) Compare(ctx context.Context, medication1, medication2 string) model.TextAnswer {
	log.Info().Str("first", medication1).Str("second", medication2).Msg("comparing medications")
	query := fmt.Sprintf("Porovnání léků %s a %s - účinné látky, indikace, rozdíly", medication1, medication2)
	return s.Answer(ctx, query)
}

// SearchBySymptoms looks up medications generally used for the described
// symptoms. The result is forced to low confidence and prefixed with the
// warning banner regardless of the heuristic outcome.
func (s *Service) SearchBySymptoms(ctx context.Context, symptoms string) model.TextAnswer {
	log.Warn().Str("symptoms", symptoms).Msg("symptom-based search")

	query := fmt.Sprintf(`UPOZORNĚNÍ: Následující informace NEJSOU lékařská diagnóza ani doporučení léčby.

Hledám léky které se OBECNĚ používají při symptomech: %s

DŮLEŽITÉ: Vždy se poraďte s lékařem před užitím jakéhokoliv léku.`, symptoms)

	result := s.Answer(ctx, query)
	result.Answer = symptomWarningBanner + result.Answer
	result.Confidence = model.ConfidenceLow
	return result
}

// preprocessQuery prefixes the query with a short intent label based on
// simple keyword cues. This nudges retrieval quality only; it is not a
// classifier.
func preprocessQuery(query string) string {
	processed := strings.TrimSpace(query)
	lower := strings.ToLower(processed)

	switch {
	case containsAny(lower, "co je", "jaký je", "co to je"):
		processed = "Informace o léku: " + processed
	case containsAny(lower, "účinná látka", "obsahuje"):
		processed = "Účinná látka léku: " + processed
	case containsAny(lower, "dávkování", "kolik", "jak často"):
		processed = "Dávkování léku: " + processed
	case containsAny(lower, "interakce", "užívat s"):
		processed = "Lékové interakce: " + processed
	}

	log.Debug().Str("query", processed).Msg("preprocessed query")
	return processed
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func buildUserPrompt(matches []model.RetrievedMatch, question string) string {
	contents := make([]string, 0, len(matches))
	for _, match := range matches {
		contents = append(contents, match.Content)
	}

	return fmt.Sprintf("KONTEXT Z DATABÁZE SÚKL:\n%s\n\nDOTAZ PACIENTA:\n%s",
		strings.Join(contents, "\n\n"), question)
}

// assessConfidence derives the qualitative confidence deterministically
// from answer length, source count and domain keyword hits.
func assessConfidence(response string, matches []model.RetrievedMatch) model.Confidence {
	// Rune count, not bytes: Czech diacritics would otherwise inflate the
	// measured length of short answers.
	if utf8.RuneCountInString(strings.TrimSpace(response)) < minAnswerLength {
		return model.ConfidenceLow
	}

	if len(matches) == 0 {
		return model.ConfidenceLow
	}
	if len(matches) < 2 {
		return model.ConfidenceMedium
	}

	lower := strings.ToLower(response)
	found := 0
	for _, indicator := range confidenceIndicators {
		if strings.Contains(lower, indicator) {
			found++
		}
	}

	switch {
	case found >= 4:
		return model.ConfidenceHigh
	case found >= 2:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func sourceNames(matches []model.RetrievedMatch) []string {
	sources := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Metadata.Name != nil && *match.Metadata.Name != "" {
			sources = append(sources, *match.Metadata.Name)
		} else {
			sources = append(sources, "Neznámý zdroj")
		}
	}
	return sources
}

func addDisclaimer(answer string) string {
	return strings.TrimSpace(answer) + "\n\n---\n" + model.MedicalDisclaimer
}

func apologyAnswer(err error) model.TextAnswer {
	return model.TextAnswer{
		Answer:     fmt.Sprintf("Omlouvám se, nastala chyba při zpracování dotazu: %v\n\nProsím zkuste přeformulovat dotaz nebo kontaktujte lékárnu.", err),
		Sources:    []string{},
		Confidence: model.ConfidenceLow,
	}
}
