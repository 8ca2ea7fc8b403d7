package app

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/pkg/common"
)

func (a *Application) checkSuper() {
	const superUsername = "admin"
	const defaultPassword = "svcmon"

	hashedPassword := common.Sha256HashWithSalt(defaultPassword, common.GetSecretSalt())

	var operator domain.SysOpr
	err := a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     "N/A",
			Username:  superUsername,
			Password:  hashedPassword,
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	if !strings.EqualFold(operator.Status, common.ENABLED) {
		if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).
			Update("status", common.ENABLED).Error; err != nil {
			zap.L().Error("failed to repair super admin account", zap.Error(err))
		}
	}
}

// settingSchema is one default runtime setting
type settingSchema struct {
	Key         string
	Default     string
	Description string
}

var defaultSettings = []settingSchema{
	{"monitor.check_retention_days", "90", "Days to keep check rows before pruning"},
	{"monitor.max_workers", "50", "Upper bound for concurrent probes"},
	{"notify.daily_dedupe", "true", "Suppress repeat failure mails within one day"},
	{"notify.min_level", "RED", "Lowest status that triggers a failure mail"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range defaultSettings {
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

// checkDefaultNetworkGroup seeds one segment so a fresh install has somewhere
// to hang domains.
func (a *Application) checkDefaultNetworkGroup() {
	var count int64
	a.gormDB.Model(&domain.NetworkGroup{}).Count(&count)
	if count > 0 {
		return
	}
	if err := a.gormDB.Create(&domain.NetworkGroup{
		ID:   common.UUIDint64(),
		Name: "default",
		Note: "Auto-created segment",
	}).Error; err != nil {
		zap.L().Error("failed to create default network group", zap.Error(err))
	} else {
		zap.L().Info("initialized default network group")
	}
}
