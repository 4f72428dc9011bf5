package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/dto"
	"github.com/classboard/conduct-api/internal/models"
	"github.com/classboard/conduct-api/internal/service"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
	"github.com/classboard/conduct-api/pkg/export"
	"github.com/classboard/conduct-api/pkg/response"
)

type reportService interface {
	Submit(ctx context.Context, req dto.SubmitReportRequest) (*dto.SubmitReportResponse, error)
	ByDate(ctx context.Context, date string) ([]models.ReportRecord, error)
	ByDateAndClass(ctx context.Context, date string, classID int) ([]models.ReportRecord, error)
	ByMonth(ctx context.Context, yearMonth string) ([]models.ReportRecord, error)
	ByClassAndRange(ctx context.Context, classID int, start, end string) ([]models.ReportRecord, error)
	TodayStats(ctx context.Context) (*dto.TodayStatsResponse, error)
}

// ReportHandler wires the report service to HTTP endpoints.
type ReportHandler struct {
	service reportService
	logger  *zap.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{service: service, logger: logger}
}

// Submit stores one report and echoes its identity plus the broadcast
// delivery count as top-level fields.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req dto.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "请求体格式错误"))
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Raw(c, http.StatusOK, gin.H{
		"id":          resp.ID,
		"submittime":  resp.SubmitTime,
		"database":    resp.Database,
		"headteacher": resp.HeadTeacher,
		"delivered":   resp.Delivered,
	})
}

// ByDate lists one day of reports.
func (h *ReportHandler) ByDate(c *gin.Context) {
	records, err := h.service.ByDate(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records, len(records))
}

// ByDateAndClass lists one day of reports for a single class.
func (h *ReportHandler) ByDateAndClass(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("class"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "班级号格式错误"))
		return
	}
	records, err := h.service.ByDateAndClass(c.Request.Context(), c.Param("date"), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records, len(records))
}

// ByMonth lists one calendar month of reports.
func (h *ReportHandler) ByMonth(c *gin.Context) {
	records, err := h.service.ByMonth(c.Request.Context(), c.Param("yearMonth"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records, len(records))
}

// ByClassAndRange lists one class's reports between two dates inclusive.
func (h *ReportHandler) ByClassAndRange(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("class"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "班级号格式错误"))
		return
	}
	records, err := h.service.ByClassAndRange(c.Request.Context(), classID, c.Param("start"), c.Param("end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records, len(records))
}

// TodayStats returns the composed dashboard payload.
func (h *ReportHandler) TodayStats(c *gin.Context) {
	stats, err := h.service.TodayStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ExportMonth streams one month of reports as an xlsx workbook.
func (h *ReportHandler) ExportMonth(c *gin.Context) {
	yearMonth := c.Param("yearMonth")
	records, err := h.service.ByMonth(c.Request.Context(), yearMonth)
	if err != nil {
		response.Error(c, err)
		return
	}

	sheet := export.Sheet{
		Title:  service.MonthSheetName(yearMonth),
		Header: []string{"ID", "日期", "班级", "类型", "分值", "事由", "提交人", "提交时间"},
		Rows:   make([][]interface{}, 0, len(records)),
	}
	for _, r := range records {
		kind := "表扬"
		if !r.IsAdd {
			kind = "违纪"
			if r.ViolationKind != nil {
				switch *r.ViolationKind {
				case models.ViolationDiscipline:
					kind = "纪律违纪"
				case models.ViolationHygiene:
					kind = "卫生违纪"
				}
			}
		}
		score := r.Score
		if !r.IsAdd {
			score = -score
		}
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.ID, r.DatePartition, r.ClassID, kind, score, r.Note, r.Submitter,
			r.SubmittedAt.Format("2006-01-02 15:04:05"),
		})
	}

	book, err := export.Workbook([]export.Sheet{sheet})
	if err != nil {
		h.logger.Error("build export workbook", zap.Error(err))
		response.Error(c, appErrors.ErrInternal)
		return
	}
	defer book.Close()

	filename := fmt.Sprintf("reports-%s.xlsx", yearMonth)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := book.Write(c.Writer); err != nil {
		h.logger.Error("stream export workbook", zap.Error(err))
	}
}
