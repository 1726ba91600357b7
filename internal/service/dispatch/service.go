package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/church-sms/internal/metrics"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/jmehdipour/church-sms/internal/util"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid send request")
	ErrGatewayConfig  = errors.New("sms gateway not configured")
)

// Gateway sends one SMS and returns the provider message id.
type Gateway interface {
	Configured() error
	Send(ctx context.Context, phone, content string) (string, error)
}

// MemberLister resolves group recipients.
type MemberLister interface {
	ListMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error)
}

type Request struct {
	CampaignName  string
	Message       string
	Recipients    []string
	RecipientType model.RecipientType
	RecipientName string
	GroupID       *int64
}

type Result struct {
	CampaignID string
	Status     model.CampaignStatus
	Total      int
	Delivered  int
	Failed     int
}

type Config struct {
	Phone      util.PhoneNormalizer
	PerSegment int64 // minor units
}

// Service is the dispatch loop shared by the send endpoint and the scheduler.
type Service struct {
	cfg       Config
	gw        Gateway
	campaigns repository.CampaignsRepository
	reports   repository.DeliveryReportsRepository
	groups    MemberLister
	log       *zap.Logger
	now       func() time.Time
}

func New(
	cfg Config,
	gw Gateway,
	campaigns repository.CampaignsRepository,
	reports repository.DeliveryReportsRepository,
	groups MemberLister,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		gw:        gw,
		campaigns: campaigns,
		reports:   reports,
		groups:    groups,
		log:       log,
		now:       time.Now,
	}
}

// Submit creates a campaign and sends to every unique recipient in order.
// Per-recipient failures never abort the loop; datastore errors do.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	c, err := s.prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if err := s.gw.Configured(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrGatewayConfig, err)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// a started campaign runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	if err := s.campaigns.Create(ctx, c); err != nil {
		return Result{}, fmt.Errorf("create campaign: %w", err)
	}

	log := s.log.With(zap.String("campaign_id", c.ID), zap.Int("recipients", c.RecipientCount))
	log.Info("campaign dispatch started")

	res := Result{CampaignID: c.ID, Total: c.RecipientCount}

	for _, phone := range c.Recipients {
		rep := s.deliver(ctx, c.ID, phone, c.Message)

		if err := s.reports.Insert(ctx, rep); err != nil {
			log.Error("delivery report write failed", zap.String("phone", phone), zap.Error(err))
			return s.abort(ctx, res, fmt.Errorf("write delivery report: %w", err))
		}

		if rep.Status == model.ReportDelivered {
			res.Delivered++
		} else {
			res.Failed++
		}
		metrics.MessagesTotal.WithLabelValues(rep.Status.String()).Inc()
	}

	res.Status = model.CampaignSent
	if err := s.campaigns.Finalize(ctx, c.ID, res.Status, res.Delivered, res.Failed, s.now()); err != nil {
		log.Error("campaign finalize failed", zap.Error(err))
		return res, fmt.Errorf("finalize campaign: %w", err)
	}

	metrics.CampaignsTotal.WithLabelValues(res.Status.String()).Inc()
	log.Info("campaign dispatch finished",
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
	)

	return res, nil
}

// prepare validates the request and builds the campaign row.
func (s *Service) prepare(ctx context.Context, req Request) (model.Campaign, error) {
	name := strings.TrimSpace(req.CampaignName)
	msg := strings.TrimSpace(req.Message)
	if name == "" {
		return model.Campaign{}, fmt.Errorf("%w: campaign name is required", ErrInvalidRequest)
	}
	if msg == "" {
		return model.Campaign{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	rt := req.RecipientType
	if rt == "" {
		rt = model.RecipientManual
	}
	if !rt.Valid() {
		return model.Campaign{}, fmt.Errorf("%w: unknown recipient type %q", ErrInvalidRequest, rt)
	}

	raw := req.Recipients
	fromGroup := false
	if len(raw) == 0 && req.GroupID != nil && s.groups != nil {
		members, err := s.groups.ListMembers(ctx, *req.GroupID)
		if err != nil {
			return model.Campaign{}, fmt.Errorf("resolve group %d: %w", *req.GroupID, err)
		}
		for _, m := range members {
			raw = append(raw, m.Phone)
		}
		fromGroup = true
	}

	phones, invalid := s.cfg.Phone.Partition(raw)
	if len(invalid) > 0 {
		// stored group members were accepted earlier; skip them, reject caller input
		if !fromGroup {
			return model.Campaign{}, fmt.Errorf("%w: invalid phone number %q", ErrInvalidRequest, invalid[0])
		}
		s.log.Warn("skipping invalid group member phones",
			zap.Int64("group_id", *req.GroupID),
			zap.Strings("phones", invalid),
		)
	}
	if len(phones) == 0 {
		return model.Campaign{}, fmt.Errorf("%w: no recipients", ErrInvalidRequest)
	}

	segments := util.Segments(msg)

	return model.Campaign{
		ID:             util.NewID(),
		Name:           name,
		Message:        msg,
		Recipients:     phones,
		RecipientType:  rt,
		RecipientName:  strings.TrimSpace(req.RecipientName),
		GroupID:        req.GroupID,
		RecipientCount: len(phones),
		Segments:       segments,
		Cost:           int64(len(phones)) * int64(segments) * s.cfg.PerSegment,
		Status:         model.CampaignSending,
		CreatedAt:      s.now().UTC(),
	}, nil
}

// deliver sends to one recipient and builds its report. It never fails.
func (s *Service) deliver(ctx context.Context, campaignID, phone, msg string) model.DeliveryReport {
	now := s.now().UTC()
	rep := model.DeliveryReport{
		ID:         util.NewIDAt(now),
		CampaignID: campaignID,
		Phone:      phone,
		CreatedAt:  now,
	}

	providerID, err := s.send(ctx, phone, msg)
	if err != nil {
		text := err.Error()
		rep.Status = model.ReportFailed
		rep.ErrorMessage = &text
		s.log.Warn("sms send failed",
			zap.String("campaign_id", campaignID),
			zap.String("phone", phone),
			zap.Error(err),
		)
		return rep
	}

	rep.Status = model.ReportDelivered
	rep.ProviderMessageID = &providerID
	rep.DeliveredAt = &now
	return rep
}

func (s *Service) send(ctx context.Context, phone, msg string) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	return s.gw.Send(ctx, phone, msg)
}

// abort finalizes the campaign as failed. Recipients without a report are
// counted as failed so the counts still add up to the recipient count.
func (s *Service) abort(ctx context.Context, res Result, cause error) (Result, error) {
	res.Status = model.CampaignFailed
	res.Failed = res.Total - res.Delivered
	if err := s.campaigns.Finalize(ctx, res.CampaignID, res.Status, res.Delivered, res.Failed, s.now()); err != nil {
		cause = errors.Join(cause, fmt.Errorf("finalize campaign: %w", err))
	}
	metrics.CampaignsTotal.WithLabelValues(res.Status.String()).Inc()
	return res, cause
}
