package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/classboard/conduct-api/internal/dto"
	"github.com/classboard/conduct-api/internal/models"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
)

type fakeReportSrv struct {
	submitResp *dto.SubmitReportResponse
	submitErr  error
	lastSubmit dto.SubmitReportRequest

	records  []models.ReportRecord
	queryErr error
	stats    *dto.TodayStatsResponse

	lastDate      string
	lastClass     int
	lastYearMonth string
}

func (f *fakeReportSrv) Submit(_ context.Context, req dto.SubmitReportRequest) (*dto.SubmitReportResponse, error) {
	f.lastSubmit = req
	return f.submitResp, f.submitErr
}

func (f *fakeReportSrv) ByDate(_ context.Context, date string) ([]models.ReportRecord, error) {
	f.lastDate = date
	return f.records, f.queryErr
}

func (f *fakeReportSrv) ByDateAndClass(_ context.Context, date string, classID int) ([]models.ReportRecord, error) {
	f.lastDate = date
	f.lastClass = classID
	return f.records, f.queryErr
}

func (f *fakeReportSrv) ByMonth(_ context.Context, yearMonth string) ([]models.ReportRecord, error) {
	f.lastYearMonth = yearMonth
	return f.records, f.queryErr
}

func (f *fakeReportSrv) ByClassAndRange(_ context.Context, classID int, start, end string) ([]models.ReportRecord, error) {
	f.lastClass = classID
	return f.records, f.queryErr
}

func (f *fakeReportSrv) TodayStats(context.Context) (*dto.TodayStatsResponse, error) {
	return f.stats, f.queryErr
}

func newJSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestReportHandlerSubmitSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	isAdd := false
	service := &fakeReportSrv{submitResp: &dto.SubmitReportResponse{
		ID:          42,
		SubmitTime:  time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
		Database:    "2025-03-11",
		HeadTeacher: "王老师",
		Delivered:   2,
	}}
	handler := NewReportHandler(service, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newJSONRequest(t, http.MethodPost, "/api/inputdata", dto.SubmitReportRequest{
		Class: 3, IsAdd: &isAdd, Score: 5, Note: "课间打闹", Submitter: "李老师", ReduceType: "discipline",
	})

	handler.Submit(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "2025-03-11", body["database"])
	assert.Equal(t, "王老师", body["headteacher"])
	assert.Equal(t, float64(2), body["delivered"])
	assert.Equal(t, 3, service.lastSubmit.Class)
}

func TestReportHandlerSubmitRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/inputdata", bytes.NewReader([]byte(`{"class":`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestReportHandlerSubmitPropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	isAdd := true
	handler := NewReportHandler(&fakeReportSrv{submitErr: appErrors.Clone(appErrors.ErrValidation, "缺少必需字段")}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newJSONRequest(t, http.MethodPost, "/api/inputdata", dto.SubmitReportRequest{IsAdd: &isAdd})

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerByDateReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReportSrv{records: []models.ReportRecord{
		{ID: 1, ClassID: 3, IsAdd: true, Score: 2, DatePartition: "2025-03-11"},
		{ID: 2, ClassID: 4, IsAdd: false, Score: 1, DatePartition: "2025-03-11"},
	}}
	handler := NewReportHandler(service, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/date/2025-03-11", nil)
	c.Params = gin.Params{{Key: "date", Value: "2025-03-11"}}

	handler.ByDate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-11", service.lastDate)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
}

func TestReportHandlerByDateEmptyDayHasZeroCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/date/2025-03-11", nil)
	c.Params = gin.Params{{Key: "date", Value: "2025-03-11"}}

	handler.ByDate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	// an empty day must still carry an iterable array, never null
	assert.JSONEq(t, `{"success":true,"data":[],"count":0}`, rec.Body.String())
}

func TestReportHandlerByDateAndClassRejectsBadClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/date/2025-03-11/class/abc", nil)
	c.Params = gin.Params{{Key: "date", Value: "2025-03-11"}, {Key: "class", Value: "abc"}}

	handler.ByDateAndClass(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerByClassAndRangePassesParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReportSrv{}
	handler := NewReportHandler(service, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/class/7/range/2025-03-01/2025-03-10", nil)
	c.Params = gin.Params{
		{Key: "class", Value: "7"},
		{Key: "start", Value: "2025-03-01"},
		{Key: "end", Value: "2025-03-10"},
	}

	handler.ByClassAndRange(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, service.lastClass)
}

func TestReportHandlerTodayStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{stats: &dto.TodayStatsResponse{
		Date:    "2025-03-11",
		Summary: dto.StatsSummary{Total: 3, Positive: 2, Negative: 1, ActiveClasses: 2},
	}}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/today/stats", nil)

	handler.TodayStats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                   `json:"success"`
		Data    dto.TodayStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "2025-03-11", body.Data.Date)
	assert.Equal(t, 3, body.Data.Summary.Total)
}

func TestReportHandlerQueryErrorKeepsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{queryErr: appErrors.ErrStoreNotReady}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/today/stats", nil)

	handler.TodayStats(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportHandlerExportMonthStreamsWorkbook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	kind := models.ViolationHygiene
	service := &fakeReportSrv{records: []models.ReportRecord{
		{ID: 1, ClassID: 3, IsAdd: false, Score: 2, ViolationKind: &kind, Note: "走廊垃圾", Submitter: "李老师", DatePartition: "2025-03-05", SubmittedAt: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)},
	}}
	handler := NewReportHandler(service, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/reports/month/2025-03/export", nil)
	c.Params = gin.Params{{Key: "yearMonth", Value: "2025-03"}}

	handler.ExportMonth(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03", service.lastYearMonth)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "reports-2025-03.xlsx")
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"2025-03 通报"}, book.GetSheetList())
	note, err := book.GetCellValue("2025-03 通报", "F2")
	require.NoError(t, err)
	assert.Equal(t, "走廊垃圾", note)
}
