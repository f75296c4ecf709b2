package handler

import (
	"time"

	"github.com/DigiMedic/PillSee/internal/model"
)

func NewSuccessResponse(data interface{}, disclaimer string) *model.APIResponse {
	return &model.APIResponse{
		Status:     "success",
		Data:       data,
		Disclaimer: disclaimer,
		Timestamp:  time.Now().UTC(),
	}
}

func NewErrorResponse(message string) *model.APIResponse {
	return &model.APIResponse{
		Status:    "error",
		Error:     message,
		Timestamp: time.Now().UTC(),
	}
}
