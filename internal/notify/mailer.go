// Package notify delivers failure e-mails for endpoints that opted in, and
// records every attempt as a Notification row. Synthesized no-signal checks
// never reach this package; alerting on them would need the very process
// that is down.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/pond75jnu/svcmon/config"
	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/pkg/common"
)

type Mailer struct {
	cfg config.SmtpConfig
	db  *gorm.DB
}

func NewMailer(cfg config.SmtpConfig, db *gorm.DB) *Mailer {
	return &Mailer{cfg: cfg, db: db}
}

// NotifyFailure sends one failure mail for a persisted check result. Repeat
// failures for the same endpoint on the same day are deduped into SKIPPED
// rows. Delivery problems are recorded, never propagated; alerting must not
// disturb the polling loop.
func (m *Mailer) NotifyFailure(ctx context.Context, ep store.EndpointProbe, rec store.CheckRecord) {
	if ep.OwnerContact == "" {
		return
	}

	dedupeKey := fmt.Sprintf("%d:%s", ep.EndpointID, rec.CheckedAt.UTC().Format("2006-01-02"))

	var count int64
	if err := m.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("dedupe_key = ? and status = ?", dedupeKey, domain.NotifySent).
		Count(&count).Error; err != nil {
		zap.L().Error("notification dedupe query failed", zap.Error(err))
		return
	}

	title := fmt.Sprintf("[SVCMON] %s check failed", ep.SiteName)
	body := m.renderBody(ep, rec)

	if count > 0 {
		m.record(ctx, ep, title, body, dedupeKey, domain.NotifySkipped)
		return
	}

	if !m.cfg.Enabled {
		m.record(ctx, ep, title, body, dedupeKey, domain.NotifySkipped)
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", ep.OwnerContact)
	msg.SetHeader("Subject", title)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		zap.L().Error("failure mail send failed",
			zap.String("to", ep.OwnerContact),
			zap.String("site", ep.SiteName),
			zap.Error(err))
		m.record(ctx, ep, title, body, dedupeKey, domain.NotifyFailed)
		return
	}

	zap.L().Info("failure mail sent",
		zap.String("to", ep.OwnerContact),
		zap.String("site", ep.SiteName),
		zap.Int64("endpoint_id", ep.EndpointID))
	m.record(ctx, ep, title, body, dedupeKey, domain.NotifySent)
}

func (m *Mailer) renderBody(ep store.EndpointProbe, rec store.CheckRecord) string {
	detail := "unknown"
	switch {
	case rec.Error != nil:
		detail = *rec.Error
	case rec.StatusCode != nil:
		detail = fmt.Sprintf("http status %d", *rec.StatusCode)
	}
	return fmt.Sprintf(
		"Endpoint: %s\nSite: %s (%s)\nSegment: %s\nResult: %s\nChecked at: %s\nTrace: %s\n",
		ep.URL, ep.SiteName, ep.Domain, ep.NetworkGroup,
		detail, rec.CheckedAt.Format(time.RFC3339), rec.TraceID)
}

func (m *Mailer) record(ctx context.Context, ep store.EndpointProbe, title, body, dedupeKey, status string) {
	err := m.db.WithContext(ctx).Create(&domain.Notification{
		ID:         common.UUIDint64(),
		EndpointID: ep.EndpointID,
		Level:      "RED",
		Title:      title,
		Body:       body,
		SentTo:     ep.OwnerContact,
		SentAt:     time.Now().UTC(),
		DedupeKey:  dedupeKey,
		Status:     status,
	}).Error
	if err != nil {
		zap.L().Error("notification record failed", zap.Error(err))
	}
}
