package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/church-sms/internal/metrics"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/service/dispatch"
	"github.com/jmehdipour/church-sms/internal/util"
	"go.uber.org/zap"
)

var (
	ErrInvalidSchedule = errors.New("invalid scheduled message")
	ErrNotCancellable  = errors.New("scheduled message can no longer be cancelled")
)

const (
	MsgNothingDue = "No scheduled messages due"
	MsgLocked     = "scheduler run already in progress"
)

// Submitter is the dispatch loop entry point.
type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// ItemResult is one processed scheduled message. Either the counts or Error is set.
type ItemResult struct {
	ID           string `json:"id"`
	CampaignName string `json:"campaign_name"`
	Delivered    *int   `json:"delivered,omitempty"`
	Failed       *int   `json:"failed,omitempty"`
	Error        string `json:"error,omitempty"`
}

// TriggerResult is the trigger response body:
// {message, processed} when nothing ran, {success, processed, results} otherwise.
type TriggerResult struct {
	Message   string       `json:"message,omitempty"`
	Success   bool         `json:"success,omitempty"`
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results,omitempty"`
}

type CreateRequest struct {
	CampaignName  string
	Message       string
	Recipients    []string
	RecipientType model.RecipientType
	RecipientName string
	GroupID       *int64
	ScheduledDate string // YYYY-MM-DD
	ScheduledTime string // HH:MM[:SS]
}

type Service struct {
	repo     repository.ScheduledMessagesRepository
	dispatch Submitter
	locker   Locker // nil disables the run lock
	loc      *time.Location
	phone    util.PhoneNormalizer
	log      *zap.Logger
}

func New(
	repo repository.ScheduledMessagesRepository,
	dispatch Submitter,
	locker Locker,
	loc *time.Location,
	phone util.PhoneNormalizer,
	log *zap.Logger,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, dispatch: dispatch, locker: locker, loc: loc, phone: phone, log: log}
}

// RunDue dispatches every scheduled message due at now, one after another.
func (s *Service) RunDue(ctx context.Context, now time.Time) (TriggerResult, error) {
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			metrics.SchedulerRunsTotal.WithLabelValues("error").Inc()
			return TriggerResult{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			metrics.SchedulerRunsTotal.WithLabelValues("locked").Inc()
			s.log.Info("scheduler run skipped, lock held")
			return TriggerResult{Message: MsgLocked}, nil
		}
		defer unlock()
	}

	local := now.In(s.loc)
	rows, err := s.repo.ListDue(ctx, local.Format(model.DateLayout), local.Format(model.TimeLayout))
	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues("error").Inc()
		return TriggerResult{}, fmt.Errorf("list due scheduled messages: %w", err)
	}

	due := rows[:0]
	for _, m := range rows {
		if m.IsDue(local) {
			due = append(due, m)
		}
	}

	if len(due) == 0 {
		metrics.SchedulerRunsTotal.WithLabelValues("empty").Inc()
		return TriggerResult{Message: MsgNothingDue}, nil
	}

	out := TriggerResult{Success: true, Results: make([]ItemResult, 0, len(due))}
	for _, m := range due {
		// unclaimed rows stay scheduled for the next pass
		if ctx.Err() != nil {
			s.log.Info("scheduler run interrupted, leaving remaining rows", zap.Int("processed", out.Processed))
			break
		}
		item, ok := s.process(ctx, m)
		if !ok {
			continue
		}
		out.Results = append(out.Results, item)
		out.Processed++
	}

	if out.Processed == 0 {
		metrics.SchedulerRunsTotal.WithLabelValues("empty").Inc()
		return TriggerResult{Message: MsgNothingDue}, nil
	}

	metrics.SchedulerRunsTotal.WithLabelValues("processed").Inc()
	s.log.Info("scheduler run finished", zap.Int("due", len(due)), zap.Int("processed", out.Processed))

	return out, nil
}

// process claims and dispatches one row; ok=false when the claim was lost.
func (s *Service) process(ctx context.Context, m model.ScheduledMessage) (ItemResult, bool) {
	item := ItemResult{ID: m.ID, CampaignName: m.CampaignName}
	log := s.log.With(zap.String("scheduled_id", m.ID))

	// a claimed row must reach sent or failed, whatever happens to the caller
	ctx = context.WithoutCancel(ctx)

	claimed, err := s.repo.MarkSending(ctx, m.ID)
	if err != nil {
		log.Error("claim scheduled message failed", zap.Error(err))
		item.Error = err.Error()
		return item, true
	}
	if !claimed {
		log.Info("scheduled message no longer pending, skipped")
		return item, false
	}

	res, err := s.dispatch.Submit(ctx, dispatch.Request{
		CampaignName:  m.CampaignName,
		Message:       m.Message,
		Recipients:    m.Recipients,
		RecipientType: m.RecipientType,
		RecipientName: m.RecipientName,
		GroupID:       m.GroupID,
	})
	if err != nil {
		item.Error = err.Error()
		if mErr := s.repo.MarkFailed(ctx, m.ID, item.Error); mErr != nil {
			log.Error("mark scheduled message failed", zap.Error(mErr))
		}
		metrics.ScheduledMessagesTotal.WithLabelValues(model.ScheduleFailed.String()).Inc()
		log.Warn("scheduled dispatch failed", zap.Error(err))
		return item, true
	}

	if err := s.repo.MarkSent(ctx, m.ID, res.CampaignID); err != nil {
		log.Error("mark scheduled message sent", zap.Error(err))
	}
	metrics.ScheduledMessagesTotal.WithLabelValues(model.ScheduleSent.String()).Inc()

	item.Delivered = &res.Delivered
	item.Failed = &res.Failed
	return item, true
}

// Create validates and stores a scheduled message in status scheduled.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.ScheduledMessage, error) {
	name := strings.TrimSpace(req.CampaignName)
	msg := strings.TrimSpace(req.Message)
	if name == "" || msg == "" {
		return model.ScheduledMessage{}, fmt.Errorf("%w: campaign name and message are required", ErrInvalidSchedule)
	}

	rt := req.RecipientType
	if rt == "" {
		rt = model.RecipientManual
	}
	if !rt.Valid() {
		return model.ScheduledMessage{}, fmt.Errorf("%w: unknown recipient type %q", ErrInvalidSchedule, rt)
	}

	phones, invalid := s.phone.Partition(req.Recipients)
	if len(invalid) > 0 {
		return model.ScheduledMessage{}, fmt.Errorf("%w: invalid phone number %q", ErrInvalidSchedule, invalid[0])
	}
	if len(phones) == 0 && req.GroupID == nil {
		return model.ScheduledMessage{}, fmt.Errorf("%w: recipients or group id required", ErrInvalidSchedule)
	}

	date := strings.TrimSpace(req.ScheduledDate)
	if _, err := time.ParseInLocation(model.DateLayout, date, s.loc); err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("%w: scheduled date %q, want YYYY-MM-DD", ErrInvalidSchedule, req.ScheduledDate)
	}
	clock, err := model.ParseScheduleTime(req.ScheduledTime)
	if err != nil {
		return model.ScheduledMessage{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	m := model.ScheduledMessage{
		ID:            util.NewID(),
		CampaignName:  name,
		Message:       msg,
		Recipients:    phones,
		RecipientType: rt,
		RecipientName: strings.TrimSpace(req.RecipientName),
		GroupID:       req.GroupID,
		ScheduledDate: date,
		ScheduledTime: clock,
		Status:        model.ScheduleScheduled,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return model.ScheduledMessage{}, err
	}
	return m, nil
}

// Cancel is legal only while the message is still scheduled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ok, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrNotCancellable
}

func (s *Service) List(ctx context.Context, status model.ScheduleStatus, limit, offset int) ([]model.ScheduledMessage, error) {
	return s.repo.List(ctx, status, limit, offset)
}
