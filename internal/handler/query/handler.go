package query

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/DigiMedic/PillSee/internal/handler"
	"github.com/DigiMedic/PillSee/internal/model"
	"github.com/DigiMedic/PillSee/internal/service/vision"
	apperrors "github.com/DigiMedic/PillSee/pkg/errors"
)

// Pipeline runs a query through the routing state machine.
type Pipeline interface {
	Run(ctx context.Context, state model.QueryState) model.QueryState
}

// Answerer covers the direct answering operations that bypass the pipeline.
type Answerer interface {
	Compare(ctx context.Context, medication1, medication2 string) model.TextAnswer
	SearchBySymptoms(ctx context.Context, symptoms string) model.TextAnswer
}

type Handler struct {
	pipeline Pipeline
	answers  Answerer
}

func NewHandler(pipeline Pipeline, answers Answerer) *Handler {
	return &Handler{pipeline: pipeline, answers: answers}
}

// RegisterValidators installs the custom binding rules this handler relies
// on. Call once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, textLimit, imageLimit gin.HandlerFunc) {
	q := r.Group("/query")
	{
		q.POST("/text", textLimit, h.TextQuery)
		q.POST("/image", imageLimit, h.ImageQuery)
		q.POST("/compare", textLimit, h.Compare)
		q.POST("/symptoms", textLimit, h.Symptoms)
	}
}

type textResult struct {
	Answer          string   `json:"answer"`
	Sources         []string `json:"sources"`
	ConfidenceScore float64  `json:"confidence_score"`
	SafetyWarnings  []string `json:"safety_warnings"`
}

type imageResult struct {
	Recognition     *model.VisionRecognition `json:"recognition"`
	ConfidenceScore float64                  `json:"confidence_score"`
	Sources         []string                 `json:"sources"`
	SafetyWarnings  []string                 `json:"safety_warnings"`
}

// failPipeline responds to a halted pipeline. Classified failures go
// through the error middleware, which maps the code to a status; anything
// unclassified is an internal failure answered with the fallback
// disclaimer.
func failPipeline(c *gin.Context, state model.QueryState) {
	if state.Err != nil {
		_ = c.Error(state.Err)
		return
	}
	_ = c.Error(apperrors.NewInternal(errors.New(state.Error)))
	resp := handler.NewErrorResponse(state.Error)
	resp.Disclaimer = model.FallbackDisclaimer
	c.JSON(http.StatusInternalServerError, resp)
}

func (h *Handler) TextQuery(c *gin.Context) {
	var req model.TextQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation("invalid text query", err))
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("Neplatný dotaz: text musí mít 1 až 500 znaků"))
		return
	}

	state := h.pipeline.Run(c.Request.Context(), model.NewQueryState(model.QueryKindText, req.Query, ""))
	if state.Failed() {
		failPipeline(c, state)
		return
	}

	answer := ""
	if state.Answer != nil {
		answer = state.Answer.Answer
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(textResult{
		Answer:          answer,
		Sources:         state.Sources,
		ConfidenceScore: state.ConfidenceScore,
		SafetyWarnings:  state.SafetyWarnings,
	}, state.Disclaimer))
}

func (h *Handler) ImageQuery(c *gin.Context) {
	var req model.ImageQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation("invalid image query", err))
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("Neplatný požadavek: chybí obrazová data"))
		return
	}
	if !vision.ValidPayload(req.ImageData) {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("Nepodporovaný formát obrázku, očekává se JPEG nebo PNG"))
		return
	}

	state := h.pipeline.Run(c.Request.Context(), model.NewQueryState(model.QueryKindImage, "", req.ImageData))
	if state.Failed() {
		failPipeline(c, state)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(imageResult{
		Recognition:     state.Recognition,
		ConfidenceScore: state.ConfidenceScore,
		Sources:         state.Sources,
		SafetyWarnings:  state.SafetyWarnings,
	}, state.Disclaimer))
}

type compareRequest struct {
	Medication1 string `json:"medication1" binding:"required,notblank,max=100"`
	Medication2 string `json:"medication2" binding:"required,notblank,max=100"`
}

func (h *Handler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation("invalid compare request", err))
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("Neplatný požadavek: zadejte názvy obou léků"))
		return
	}

	answer := h.answers.Compare(c.Request.Context(), req.Medication1, req.Medication2)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(textResult{
		Answer:          answer.Answer,
		Sources:         answer.Sources,
		ConfidenceScore: answer.Confidence.Score(),
		SafetyWarnings:  []string{},
	}, model.MedicalDisclaimer))
}

type symptomRequest struct {
	Symptoms string `json:"symptoms" binding:"required,notblank,max=500"`
}

func (h *Handler) Symptoms(c *gin.Context) {
	var req symptomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidation("invalid symptom request", err))
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("Neplatný požadavek: popište příznaky"))
		return
	}

	answer := h.answers.SearchBySymptoms(c.Request.Context(), req.Symptoms)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(textResult{
		Answer:          answer.Answer,
		Sources:         answer.Sources,
		ConfidenceScore: answer.Confidence.Score(),
		SafetyWarnings:  []string{"Vyhledávání podle příznaků nenahrazuje lékařskou diagnózu"},
	}, model.MedicalDisclaimer))
}
