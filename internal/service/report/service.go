package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

type ReportServicer interface {
	TodaySchedule(ctx context.Context, actor model.Actor, facilityID uuid.UUID) (*model.DaySchedule, error)
	ScheduleByDate(ctx context.Context, actor model.Actor, facilityID uuid.UUID, date model.Date) (*model.DaySchedule, error)
	ScheduleByWeek(ctx context.Context, actor model.Actor, facilityID uuid.UUID, weekStart model.Date) (*model.WeekSchedule, error)
	Dashboard(ctx context.Context, actor model.Actor, facilityID uuid.UUID) (*model.Dashboard, error)
}

type Config struct {
	DashboardTTL time.Duration
	Location     *time.Location
}

type Service struct {
	cases    repository.SurgicalCaseRepository
	theatres repository.TheatreRepository
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   *logger.Logger
	location *time.Location
	now      func() time.Time
}

func NewService(
	cases repository.SurgicalCaseRepository,
	theatres repository.TheatreRepository,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	config Config,
) *Service {
	if config.DashboardTTL <= 0 {
		config.DashboardTTL = 30 * time.Second
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Service{
		cases:    cases,
		theatres: theatres,
		cache:    cache.New(config.DashboardTTL, 2*config.DashboardTTL),
		metrics:  metrics,
		logger:   logger,
		location: config.Location,
		now:      time.Now,
	}
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now().In(s.location))
}

func (s *Service) TodaySchedule(ctx context.Context, actor model.Actor, facilityID uuid.UUID) (*model.DaySchedule, error) {
	return s.ScheduleByDate(ctx, actor, facilityID, s.today())
}

// ScheduleByDate lists every case booked on the date, ordered by theatre and start time.
func (s *Service) ScheduleByDate(ctx context.Context, actor model.Actor, facilityID uuid.UUID, date model.Date) (*model.DaySchedule, error) {
	if err := checkFacility(actor, facilityID); err != nil {
		return nil, err
	}
	cases, err := s.cases.ListByFacilityDates(ctx, facilityID, date, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return &model.DaySchedule{FacilityID: facilityID, Date: date, Cases: cases}, nil
}

// ScheduleByWeek returns seven day schedules starting at weekStart. Days
// without cases are included with an empty list.
func (s *Service) ScheduleByWeek(ctx context.Context, actor model.Actor, facilityID uuid.UUID, weekStart model.Date) (*model.WeekSchedule, error) {
	if err := checkFacility(actor, facilityID); err != nil {
		return nil, err
	}
	cases, err := s.cases.ListByFacilityDates(ctx, facilityID, weekStart, weekStart.AddDays(6))
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	week := &model.WeekSchedule{FacilityID: facilityID, WeekStart: weekStart, Days: make([]*model.DaySchedule, 7)}
	byDate := make(map[string]*model.DaySchedule, 7)
	for i := range week.Days {
		d := weekStart.AddDays(i)
		week.Days[i] = &model.DaySchedule{FacilityID: facilityID, Date: d, Cases: []*model.SurgicalCase{}}
		byDate[d.String()] = week.Days[i]
	}
	for _, c := range cases {
		if day, ok := byDate[c.ScheduledDate.String()]; ok {
			day.Cases = append(day.Cases, c)
		}
	}
	return week, nil
}

// Dashboard summarises the facility's day. Results are cached per facility
// for the configured TTL.
func (s *Service) Dashboard(ctx context.Context, actor model.Actor, facilityID uuid.UUID) (*model.Dashboard, error) {
	if err := checkFacility(actor, facilityID); err != nil {
		return nil, err
	}

	today := s.today()
	key := facilityID.String() + "/" + today.String()
	if cached, found := s.cache.Get(key); found {
		s.metrics.DashboardCache.WithLabelValues("hit").Inc()
		return cached.(*model.Dashboard), nil
	}
	s.metrics.DashboardCache.WithLabelValues("miss").Inc()

	dashboard, err := s.buildDashboard(ctx, facilityID, today)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, dashboard, cache.DefaultExpiration)
	return dashboard, nil
}

func (s *Service) buildDashboard(ctx context.Context, facilityID uuid.UUID, today model.Date) (*model.Dashboard, error) {
	scheduled, err := s.cases.CountByDateAndStatus(ctx, facilityID, today, model.CaseStatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("failed to count scheduled cases: %w", err)
	}
	inProgress, err := s.cases.ListByStatus(ctx, facilityID, model.CaseStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-progress cases: %w", err)
	}
	postOp, err := s.cases.ListByStatus(ctx, facilityID, model.CaseStatusPostOp)
	if err != nil {
		return nil, fmt.Errorf("failed to list post-op cases: %w", err)
	}
	counts, err := s.theatres.CountByStatus(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to count theatres: %w", err)
	}

	return &model.Dashboard{
		FacilityID:      facilityID,
		Date:            today,
		ScheduledToday:  scheduled,
		InProgressCases: inProgress,
		PostOpCases:     postOp,
		Occupancy:       occupancy(counts),
	}, nil
}

// occupancy is the share of active theatres currently IN_USE.
func occupancy(counts map[model.TheatreStatus]int) model.TheatreOccupancy {
	occ := model.TheatreOccupancy{ByStatus: counts}
	for _, n := range counts {
		occ.Total += n
	}
	if occ.Total > 0 {
		occ.OccupancyPercent = float64(counts[model.TheatreStatusInUse]) * 100 / float64(occ.Total)
	}
	return occ
}

func checkFacility(actor model.Actor, facilityID uuid.UUID) error {
	if facilityID == uuid.Nil {
		return apperrors.BadRequest("facility_id is required", nil)
	}
	if !actor.CanAccess(facilityID) {
		return apperrors.Forbidden("cannot view another facility")
	}
	return nil
}
