package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"rmndr/internal/logging"
)

// Config is the full process configuration. It is decoded strictly:
// unknown keys are rejected so typos fail at startup, not in production.
type Config struct {
	Log       logging.Config  `json:"log"`
	Server    ServerConfig    `json:"server"`
	Messenger MessengerConfig `json:"messenger"`
	NLP       NLPConfig       `json:"nlp"`
	Token     TokenConfig     `json:"token"`
	Store     StoreConfig     `json:"store"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type ServerConfig struct {
	Listen      string `json:"listen"`
	VerifyToken string `json:"verify_token"`
	AppSecret   string `json:"app_secret"`
}

type MessengerConfig struct {
	APIBase     string   `json:"api_base"`
	AccessToken string   `json:"access_token"`
	Timeout     Duration `json:"timeout"`
	SendPerSec  float64  `json:"send_per_sec"`
	SendBurst   int      `json:"send_burst"`
}

type NLPConfig struct {
	APIBase string   `json:"api_base"`
	Token   string   `json:"token"`
	Version string   `json:"version"`
	Timeout Duration `json:"timeout"`
}

type TokenConfig struct {
	Secret string `json:"secret"`
}

type StoreConfig struct {
	Path        string   `json:"path"`
	BusyTimeout Duration `json:"busy_timeout"`
}

type SchedulerConfig struct {
	Workers   int      `json:"workers"`
	Tick      Duration `json:"tick"`
	QueueSize int      `json:"queue_size"`
	RetryMax  int      `json:"retry_max"`
}

// Secrets may come from the environment instead of the config file so
// the file can be committed without credentials.
func (c *Config) applyEnv() {
	if v := os.Getenv("RMNDR_ACCESS_TOKEN"); v != "" {
		c.Messenger.AccessToken = v
	}
	if v := os.Getenv("RMNDR_NLP_TOKEN"); v != "" {
		c.NLP.Token = v
	}
	if v := os.Getenv("RMNDR_APP_SECRET"); v != "" {
		c.Server.AppSecret = v
	}
	if v := os.Getenv("RMNDR_VERIFY_TOKEN"); v != "" {
		c.Server.VerifyToken = v
	}
	if v := os.Getenv("RMNDR_TOKEN_SECRET"); v != "" {
		c.Token.Secret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Messenger.APIBase == "" {
		c.Messenger.APIBase = "https://graph.facebook.com/v2.6"
	}
	if c.Messenger.Timeout <= 0 {
		c.Messenger.Timeout = Duration(5 * time.Second)
	}
	if c.Messenger.SendPerSec <= 0 {
		c.Messenger.SendPerSec = 10
	}
	if c.Messenger.SendBurst <= 0 {
		c.Messenger.SendBurst = 5
	}
	if c.NLP.APIBase == "" {
		c.NLP.APIBase = "https://api.wit.ai"
	}
	if c.NLP.Version == "" {
		c.NLP.Version = "20170901"
	}
	if c.NLP.Timeout <= 0 {
		c.NLP.Timeout = Duration(5 * time.Second)
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/rmndr.db"
	}
	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = Duration(5 * time.Second)
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.Scheduler.Tick <= 0 {
		c.Scheduler.Tick = Duration(time.Second)
	}
	if c.Scheduler.QueueSize <= 0 {
		c.Scheduler.QueueSize = 64
	}
	if c.Scheduler.RetryMax <= 0 {
		c.Scheduler.RetryMax = 100
	}
}

func (c *Config) Validate() error {
	if c.Messenger.AccessToken == "" {
		return errors.New("messenger.access_token is required (or RMNDR_ACCESS_TOKEN)")
	}
	if c.NLP.Token == "" {
		return errors.New("nlp.token is required (or RMNDR_NLP_TOKEN)")
	}
	if c.Server.VerifyToken == "" {
		return errors.New("server.verify_token is required (or RMNDR_VERIFY_TOKEN)")
	}
	if c.Token.Secret == "" {
		return errors.New("token.secret is required (or RMNDR_TOKEN_SECRET)")
	}
	if len(c.Token.Secret) < 16 {
		return fmt.Errorf("token.secret too short (%d bytes, want >= 16)", len(c.Token.Secret))
	}
	return nil
}
