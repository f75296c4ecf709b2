package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DigiMedic/PillSee/internal/model"
	apperrors "github.com/DigiMedic/PillSee/pkg/errors"
)

type fakeModel struct {
	response string
	err      error
	imageURL string
}

func (f *fakeModel) DescribeImage(ctx context.Context, system, instruction, imageURL string) (string, error) {
	f.imageURL = imageURL
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

const validResponse = `{
	"name": "PARALEN 500",
	"active_ingredient": "Paracetamolum",
	"strength": "500mg",
	"form": "tablety",
	"manufacturer": "Zentiva",
	"registration_number": "07/153/70-C",
	"confidence_score": 0.92,
	"extracted_text": "PARALEN 500 paracetamolum 500mg"
}`

func TestExtract(t *testing.T) {
	m := &fakeModel{response: validResponse}
	svc := NewService(m, &fakeSearcher{})

	rec, err := svc.Extract(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err)

	assert.Equal(t, "PARALEN 500", rec.Name)
	assert.Equal(t, "Paracetamolum", rec.ActiveIngredient)
	assert.Equal(t, 0.92, rec.ConfidenceScore)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", m.imageURL)
}

func TestExtractUnsupportedPayload(t *testing.T) {
	svc := NewService(&fakeModel{}, &fakeSearcher{})

	_, err := svc.Extract(context.Background(), "not an image at all")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnsupportedImage))
}

func TestExtractDegradesOnModelError(t *testing.T) {
	m := &fakeModel{err: errors.New("vision endpoint down")}
	svc := NewService(m, &fakeSearcher{})

	rec, err := svc.Extract(context.Background(), "data:image/jpeg;base64,AAAA")
	require.NoError(t, err, "a vision failure is not a caller error")

	assert.Equal(t, "Chyba při rozpoznání", rec.Name)
	assert.Equal(t, 0.0, rec.ConfidenceScore)
	assert.NotEmpty(t, rec.Warning)
}

func TestParseResponseMarkersForEmptyFields(t *testing.T) {
	rec := parseResponse(`{"name": "PARALEN 500", "confidence_score": 0.9}`)

	assert.Equal(t, "PARALEN 500", rec.Name)
	assert.Equal(t, model.NotVisible, rec.ActiveIngredient)
	assert.Equal(t, model.NotVisible, rec.RegistrationNumber)
}

func TestParseResponseFallback(t *testing.T) {
	rec := parseResponse("Bohužel nemohu odpovědět ve formátu JSON.")

	assert.Equal(t, model.NotVisible, rec.Name)
	assert.Equal(t, 0.3, rec.ConfidenceScore)
	assert.Equal(t, "Bohužel nemohu odpovědět ve formátu JSON.", rec.ExtractedText)
}

func TestParseResponseFallbackKnownBrand(t *testing.T) {
	rec := parseResponse("Na obrázku vidím krabičku léku Paralen 500.")
	assert.Equal(t, 0.5, rec.ConfidenceScore)
}

func TestAdjustQualityPenalties(t *testing.T) {
	cases := []struct {
		name       string
		rec        model.VisionRecognition
		wantScore  float64
		wantInWarn string
	}{
		{
			name: "missing name",
			rec: model.VisionRecognition{
				Name:             model.NotVisible,
				ActiveIngredient: "Paracetamolum",
				ConfidenceScore:  0.9,
			},
			wantScore:  0.6,
			wantInWarn: "Střední spolehlivost",
		},
		{
			name: "missing both",
			rec: model.VisionRecognition{
				Name:             model.NotVisible,
				ActiveIngredient: model.NotVisible,
				ConfidenceScore:  0.9,
			},
			wantScore:  0.4,
			wantInWarn: "Nízká spolehlivost",
		},
		{
			name: "floored at zero",
			rec: model.VisionRecognition{
				Name:             model.NotVisible,
				ActiveIngredient: model.NotVisible,
				ConfidenceScore:  0.2,
			},
			wantScore:  0,
			wantInWarn: "Velmi nízká spolehlivost",
		},
		{
			name: "complete and confident",
			rec: model.VisionRecognition{
				Name:             "PARALEN 500",
				ActiveIngredient: "Paracetamolum",
				ConfidenceScore:  0.92,
			},
			wantScore: 0.92,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := adjustQuality(tc.rec)
			assert.Equal(t, tc.wantScore, got.ConfidenceScore)
			if tc.wantInWarn == "" {
				assert.Empty(t, got.Warning)
			} else {
				assert.Contains(t, got.Warning, tc.wantInWarn)
			}
		})
	}
}

func TestValidateAgainstStoreBackfill(t *testing.T) {
	ingredient := "Paracetamolum"
	regNumber := "07/153/70-C"
	search := &fakeSearcher{matches: []model.RetrievedMatch{{
		Metadata:   model.DocumentMetadata{ActiveIngredient: &ingredient, RegistrationNumber: &regNumber},
		Similarity: 0.9,
	}}}
	svc := NewService(&fakeModel{}, search)

	rec := model.VisionRecognition{
		Name:               "PARALEN 500",
		ActiveIngredient:   model.NotVisible,
		RegistrationNumber: model.NotVisible,
		ConfidenceScore:    0.5,
	}
	got := svc.ValidateAgainstStore(context.Background(), rec)

	require.NotNil(t, got.Validated)
	assert.True(t, *got.Validated)
	assert.Equal(t, "Paracetamolum", got.ActiveIngredient, "marker fields are backfilled")
	assert.Equal(t, "07/153/70-C", got.RegistrationNumber)
	assert.Equal(t, 0.5, got.ConfidenceScore, "validation never raises the score")
	assert.Len(t, got.Matches, 1)
}

func TestValidateAgainstStoreKeepsExtractedValues(t *testing.T) {
	other := "Ibuprofenum"
	search := &fakeSearcher{matches: []model.RetrievedMatch{{
		Metadata:   model.DocumentMetadata{ActiveIngredient: &other},
		Similarity: 0.9,
	}}}
	svc := NewService(&fakeModel{}, search)

	rec := model.VisionRecognition{Name: "PARALEN 500", ActiveIngredient: "Paracetamolum"}
	got := svc.ValidateAgainstStore(context.Background(), rec)

	assert.Equal(t, "Paracetamolum", got.ActiveIngredient, "extracted values win over metadata")
	assert.Equal(t, "PARALEN 500 Paracetamolum", search.query)
}

func TestValidateAgainstStoreNotFound(t *testing.T) {
	svc := NewService(&fakeModel{}, &fakeSearcher{})

	rec := model.VisionRecognition{Name: "NEZNÁMÝ LÉK"}
	got := svc.ValidateAgainstStore(context.Background(), rec)

	require.NotNil(t, got.Validated)
	assert.False(t, *got.Validated)
	assert.Contains(t, got.Warning, "nebyl nalezen v databázi SÚKL")
}

func TestValidateAgainstStoreSkipsWithoutName(t *testing.T) {
	search := &fakeSearcher{}
	svc := NewService(&fakeModel{}, search)

	rec := model.NewVisionRecognition()
	got := svc.ValidateAgainstStore(context.Background(), rec)

	assert.Nil(t, got.Validated)
	assert.Empty(t, search.query)
}
