package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DigiMedic/PillSee/internal/model"
)

type fakeGenerator struct {
	response string
	err      error
	system   string
	user     string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.system = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeSearcher struct {
	matches []model.RetrievedMatch
	query   string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, threshold float64, filter map[string]string) []model.RetrievedMatch {
	f.query = query
	return f.matches
}

func match(name string) model.RetrievedMatch {
	return model.RetrievedMatch{
		Content:    "Název: " + name,
		Metadata:   model.DocumentMetadata{Name: &name},
		Similarity: 0.9,
	}
}

const richAnswer = "**Název přípravku**: PARALEN 500\n" +
	"**Účinná látka**: Paracetamolum\n" +
	"**Léková forma a síla**: tablety, 500 mg\n" +
	"**Indikace**: bolest a horečka\n" +
	"**Dávkování**: 1-2 tablety"

func TestAnswer(t *testing.T) {
	gen := &fakeGenerator{response: richAnswer}
	search := &fakeSearcher{matches: []model.RetrievedMatch{match("PARALEN 500"), match("PARALEN 125")}}
	svc := NewService(gen, search)

	result := svc.Answer(context.Background(), "Co je Paralen?")

	assert.True(t, strings.HasPrefix(result.Answer, richAnswer))
	assert.Contains(t, result.Answer, model.MedicalDisclaimer)
	assert.Equal(t, []string{"PARALEN 500", "PARALEN 125"}, result.Sources)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Contains(t, gen.user, "KONTEXT Z DATABÁZE SÚKL")
	assert.Contains(t, gen.user, "Název: PARALEN 500")
}

func TestAnswerApologyOnGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	svc := NewService(gen, &fakeSearcher{})

	result := svc.Answer(context.Background(), "Co je Paralen?")

	assert.Contains(t, result.Answer, "Omlouvám se")
	assert.Empty(t, result.Sources)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
}

func TestPreprocessQueryIntents(t *testing.T) {
	cases := []struct {
		query  string
		prefix string
	}{
		{"Co je Paralen?", "Informace o léku: "},
		{"Jakou účinnou látku obsahuje Ibalgin?", "Účinná látka léku: "},
		{"Kolik tablet denně?", "Dávkování léku: "},
		{"Má Paralen interakce s alkoholem?", "Lékové interakce: "},
		{"Paralen", ""},
	}
	for _, tc := range cases {
		got := preprocessQuery(tc.query)
		assert.Equal(t, tc.prefix+tc.query, got, tc.query)
	}
}

func TestAssessConfidence(t *testing.T) {
	twoMatches := []model.RetrievedMatch{match("A"), match("B")}

	cases := []struct {
		name     string
		response string
		matches  []model.RetrievedMatch
		want     model.Confidence
	}{
		{"short answer", "Nevím.", twoMatches, model.ConfidenceLow},
		{
			// 45 runes but 58 UTF-8 bytes; length is measured in
			// characters, so this stays short despite five indicators.
			"short diacritic answer",
			"účinná látka indikace dávkování síla mg úúúúú",
			twoMatches,
			model.ConfidenceLow,
		},
		{"no sources", richAnswer, nil, model.ConfidenceLow},
		{"single source", richAnswer, []model.RetrievedMatch{match("A")}, model.ConfidenceMedium},
		{"many indicators", richAnswer, twoMatches, model.ConfidenceHigh},
		{
			"two indicators",
			strings.Repeat("x", 60) + " účinná látka a dávkování",
			twoMatches,
			model.ConfidenceMedium,
		},
		{
			"no indicators",
			strings.Repeat("Všeobecný text bez klíčových slov. ", 3),
			twoMatches,
			model.ConfidenceLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, assessConfidence(tc.response, tc.matches))
		})
	}
}

func TestCompareBuildsComparisonQuery(t *testing.T) {
	gen := &fakeGenerator{response: richAnswer}
	search := &fakeSearcher{}
	svc := NewService(gen, search)

	svc.Compare(context.Background(), "Paralen", "Ibalgin")

	assert.Contains(t, search.query, "Porovnání léků Paralen a Ibalgin")
}

func TestSearchBySymptomsForcesLowConfidence(t *testing.T) {
	gen := &fakeGenerator{response: richAnswer}
	search := &fakeSearcher{matches: []model.RetrievedMatch{match("PARALEN 500"), match("IBALGIN 400")}}
	svc := NewService(gen, search)

	result := svc.SearchBySymptoms(context.Background(), "bolest hlavy")

	require.True(t, strings.HasPrefix(result.Answer, symptomWarningBanner))
	assert.Equal(t, model.ConfidenceLow, result.Confidence, "heuristic outcome is overridden")
	assert.Contains(t, search.query, "bolest hlavy")
	assert.Contains(t, search.query, "NEJSOU lékařská diagnóza")
}

func TestSourceNamesUnknownFallback(t *testing.T) {
	sources := sourceNames([]model.RetrievedMatch{{Content: "bez metadat"}})
	assert.Equal(t, []string{"Neznámý zdroj"}, sources)
}
