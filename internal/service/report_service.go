package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/aggregate"
	"github.com/classboard/conduct-api/internal/dto"
	"github.com/classboard/conduct-api/internal/models"
	"github.com/classboard/conduct-api/internal/realtime"
	"github.com/classboard/conduct-api/pkg/config"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
	"github.com/classboard/conduct-api/pkg/observability"
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

type reportRepository interface {
	Insert(ctx context.Context, record *models.ReportRecord) error
	ByDate(ctx context.Context, date string) ([]models.ReportRecord, error)
	ByDateAndClass(ctx context.Context, date string, classID int) ([]models.ReportRecord, error)
	ByMonth(ctx context.Context, yearMonth string) ([]models.ReportRecord, error)
	ByClassAndRange(ctx context.Context, classID int, start, end string) ([]models.ReportRecord, error)
}

type queryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type headTeacherResolver interface {
	HeadTeacher(classID int) string
}

// broadcaster is the publish side of the realtime hub. Delivery is best
// effort and returns only a count, so a submission can never fail on it.
type broadcaster interface {
	Publish(payload interface{}, channel string) int
}

// ReportService orchestrates submission, historical queries and the today
// dashboard.
type ReportService struct {
	repo      reportRepository
	classes   headTeacherResolver
	hub       broadcaster
	cache     queryCache
	cacheCfg  config.QueryCacheConfig
	validator *validator.Validate
	logger    *zap.Logger

	thresholds  aggregate.Thresholds
	rankingSize int
	recentSize  int
	location    *time.Location
	now         func() time.Time
}

// ReportServiceParams collects the service dependencies.
type ReportServiceParams struct {
	Repo      reportRepository
	Classes   headTeacherResolver
	Hub       broadcaster
	Cache     queryCache
	CacheCfg  config.QueryCacheConfig
	Stats     config.StatsConfig
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewReportService constructs the service. An unknown timezone falls back
// to UTC; thresholds fall back to the canonical defaults.
func NewReportService(p ReportServiceParams) *ReportService {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	th := aggregate.Thresholds{High: p.Stats.HighThreshold, Mid: p.Stats.MidThreshold}
	if th.High <= 0 || th.Mid <= 0 || th.Mid > th.High {
		th = aggregate.DefaultThresholds
	}
	rankingSize := p.Stats.RankingSize
	if rankingSize <= 0 {
		rankingSize = 10
	}
	recentSize := p.Stats.RecentSize
	if recentSize <= 0 {
		recentSize = 5
	}

	loc, err := time.LoadLocation(p.Stats.Timezone)
	if err != nil || loc == nil {
		p.Logger.Warn("unknown stats timezone, falling back to UTC", zap.String("timezone", p.Stats.Timezone))
		loc = time.UTC
	}

	return &ReportService{
		repo:        p.Repo,
		classes:     p.Classes,
		hub:         p.Hub,
		cache:       p.Cache,
		cacheCfg:    p.CacheCfg,
		validator:   p.Validator,
		logger:      p.Logger,
		thresholds:  th,
		rankingSize: rankingSize,
		recentSize:  recentSize,
		location:    loc,
		now:         time.Now,
	}
}

// Submit validates, stores and broadcasts one report. The broadcast is a
// best-effort side effect: once the insert succeeded the submission has
// succeeded, whether or not anyone was listening.
func (s *ReportService) Submit(ctx context.Context, req dto.SubmitReportRequest) (*dto.SubmitReportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "缺少必需字段或字段超出范围")
	}

	record := &models.ReportRecord{
		ClassID:   req.Class,
		IsAdd:     *req.IsAdd,
		Score:     req.Score,
		Note:      req.Note,
		Submitter: req.Submitter,
	}
	// a violation kind is only meaningful on demerits
	if !record.IsAdd && req.ReduceType != "" {
		kind := models.ViolationKind(req.ReduceType)
		record.ViolationKind = &kind
	}

	submittedAt := s.now().In(s.location)
	record.SubmittedAt = submittedAt
	record.DatePartition = models.DatePartitionOf(submittedAt)

	if err := s.repo.Insert(ctx, record); err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "数据提交失败")
	}

	headTeacher := ""
	if s.classes != nil {
		headTeacher = s.classes.HeadTeacher(record.ClassID)
	}

	delivered := 0
	if s.hub != nil {
		enriched := struct {
			models.ReportRecord
			HeadTeacher string `json:"headteacher,omitempty"`
		}{ReportRecord: *record, HeadTeacher: headTeacher}
		delivered = s.hub.Publish(enriched, realtime.ChannelReports)
	}

	s.logger.Info("report submitted",
		zap.Int64("id", record.ID),
		zap.Int("class", record.ClassID),
		zap.Bool("isadd", record.IsAdd),
		zap.Int("delivered", delivered),
	)

	return &dto.SubmitReportResponse{
		ID:          record.ID,
		SubmitTime:  record.SubmittedAt,
		Database:    record.DatePartition,
		HeadTeacher: headTeacher,
		Delivered:   delivered,
	}, nil
}

// ByDate returns one partition day of reports.
func (s *ReportService) ByDate(ctx context.Context, date string) ([]models.ReportRecord, error) {
	if !datePattern.MatchString(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "日期格式错误，请使用 YYYY-MM-DD 格式")
	}
	records, err := s.repo.ByDate(ctx, date)
	if err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "获取通报失败")
	}
	return records, nil
}

// ByDateAndClass narrows one day to a class.
func (s *ReportService) ByDateAndClass(ctx context.Context, date string, classID int) ([]models.ReportRecord, error) {
	if !datePattern.MatchString(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "日期格式错误，请使用 YYYY-MM-DD 格式")
	}
	if classID < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "班级号格式错误")
	}
	records, err := s.repo.ByDateAndClass(ctx, date, classID)
	if err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "获取通报失败")
	}
	return records, nil
}

// ByMonth returns a calendar month of reports. Months are immutable once
// over, so this read may be served from the flag-gated cache.
func (s *ReportService) ByMonth(ctx context.Context, yearMonth string) ([]models.ReportRecord, error) {
	if !monthPattern.MatchString(yearMonth) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "月份格式错误，请使用 YYYY-MM 格式")
	}

	cacheKey := "reports:month:" + yearMonth
	if s.cacheEnabled() {
		var cached []models.ReportRecord
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	records, err := s.repo.ByMonth(ctx, yearMonth)
	if err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "获取通报失败")
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, cacheKey, records, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("cache month query", zap.Error(err))
		}
	}
	return records, nil
}

// ByClassAndRange returns one class's reports between two dates inclusive.
func (s *ReportService) ByClassAndRange(ctx context.Context, classID int, start, end string) ([]models.ReportRecord, error) {
	if !datePattern.MatchString(start) || !datePattern.MatchString(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "日期格式错误，请使用 YYYY-MM-DD 格式")
	}
	if classID < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "班级号格式错误")
	}
	if start > end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "开始日期不能大于结束日期")
	}

	cacheKey := fmt.Sprintf("reports:class:%d:%s:%s", classID, start, end)
	if s.cacheEnabled() {
		var cached []models.ReportRecord
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	records, err := s.repo.ByClassAndRange(ctx, classID, start, end)
	if err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "获取通报失败")
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, cacheKey, records, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("cache range query", zap.Error(err))
		}
	}
	return records, nil
}

// TodayStats recomputes the dashboard views from today's records. Nothing
// here is cached: the same input always yields the same output, and the
// input changes with every submission.
func (s *ReportService) TodayStats(ctx context.Context) (*dto.TodayStatsResponse, error) {
	today := models.DatePartitionOf(s.now().In(s.location))

	records, err := s.repo.ByDate(ctx, today)
	if err != nil {
		observability.CaptureErr(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "获取今日统计失败")
	}

	summary := aggregate.Summarize(records)
	ranking := aggregate.Rank(records, s.rankingSize)
	if s.classes != nil {
		for i := range ranking {
			ranking[i].HeadTeacher = s.classes.HeadTeacher(ranking[i].ClassID)
		}
	}

	return &dto.TodayStatsResponse{
		Date: today,
		Summary: dto.StatsSummary{
			Total:         summary.Total,
			Positive:      summary.Positive,
			Negative:      summary.Negative,
			ActiveClasses: summary.ActiveClasses,
		},
		TypeStats:     aggregate.TypeHistogram(records, s.thresholds),
		ClassRanking:  ranking,
		RecentReports: aggregate.Recent(records, s.recentSize),
		Timestamp:     s.now(),
	}, nil
}

// MonthSheetName renders the export worksheet title for a month.
func MonthSheetName(yearMonth string) string {
	return yearMonth + " 通报"
}

func (s *ReportService) cacheEnabled() bool {
	return s.cache != nil && s.cacheCfg.Enabled
}
