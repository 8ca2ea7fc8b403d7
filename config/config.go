package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

// MonitorConfig drives the polling engine. Segment is the network-group name
// this process is responsible for; empty means all segments.
type MonitorConfig struct {
	Segment        string `yaml:"segment" json:"segment"`
	BatchSize      int    `yaml:"batch_size" json:"batch_size"`
	PollCadenceSec int    `yaml:"poll_cadence_sec" json:"poll_cadence_sec"`
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency"`
	ProbeTimeout   int    `yaml:"probe_timeout_sec" json:"probe_timeout_sec"`
	SilenceScanSec int    `yaml:"silence_scan_sec" json:"silence_scan_sec"`
	ErrorBackoff   int    `yaml:"error_backoff_sec" json:"error_backoff_sec"`
}

type SmtpConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Monitor  MonitorConfig `yaml:"monitor" json:"monitor"`
	Smtp     SmtpConfig    `yaml:"smtp" json:"smtp"`
	Logger   LogConfig     `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "svcmon",
		Location: "Asia/Seoul",
		Workdir:  "/var/svcmon",
		Debug:    false,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1816,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "svcmon",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  32,
		IdleConn: 8,
	},
	Monitor: MonitorConfig{
		BatchSize:      50,
		PollCadenceSec: 10,
		MaxConcurrency: 50,
		ProbeTimeout:   30,
		SilenceScanSec: 30,
		ErrorBackoff:   5,
	},
	Smtp: SmtpConfig{
		Enabled: false,
		Port:    25,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/svcmon/svcmon.log",
	},
}

func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	setEnvValue("SVCMON_DB_HOST", &cfg.Database.Host)
	setEnvValue("SVCMON_DB_NAME", &cfg.Database.Name)
	setEnvValue("SVCMON_DB_USER", &cfg.Database.User)
	setEnvValue("SVCMON_DB_PASSWD", &cfg.Database.Passwd)
	setEnvIntValue("SVCMON_DB_PORT", &cfg.Database.Port)
	setEnvValue("SVCMON_WORKDIR", &cfg.System.Workdir)
	setEnvValue("SVCMON_SEGMENT", &cfg.Monitor.Segment)
	return cfg
}

func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "data"), 0755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "logs"), 0755)
}

func setEnvValue(name string, f *string) {
	if v := os.Getenv(name); v != "" {
		*f = v
	}
}

func setEnvIntValue(name string, f *int) {
	if v := os.Getenv(name); v != "" {
		*f = cast.ToInt(v)
	}
}
