package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classboard/conduct-api/internal/models"
	"github.com/classboard/conduct-api/pkg/response"
)

type classService interface {
	List() []models.ClassInfo
}

// ClassHandler serves the static class/headteacher mapping.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs the handler.
func NewClassHandler(service classService) *ClassHandler {
	return &ClassHandler{service: service}
}

// List returns all known classes.
func (h *ClassHandler) List(c *gin.Context) {
	classes := h.service.List()
	response.List(c, classes, len(classes))
}
