package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/pond75jnu/svcmon/internal/domain"
)

const settingsCacheTTL = 30 * time.Second

type settingsEntry struct {
	value    string
	loadedAt time.Time
}

// ConfigManager reads runtime settings from sys_config with a short-lived
// cache so hot loops do not hammer the store.
type ConfigManager struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]settingsEntry
}

func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{
		db:    db,
		cache: make(map[string]settingsEntry),
	}
}

func (m *ConfigManager) GetString(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	entry, ok := m.cache[key]
	m.mu.RUnlock()
	if ok && time.Since(entry.loadedAt) < settingsCacheTTL {
		return entry.value
	}

	var cfg domain.SysConfig
	err := m.db.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		return ""
	}

	m.mu.Lock()
	m.cache[key] = settingsEntry{value: cfg.Value, loadedAt: time.Now()}
	m.mu.Unlock()
	return cfg.Value
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.GetString(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.GetString(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.GetString(category, name))
}
