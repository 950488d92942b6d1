// Package config loads friday.yaml from $FRIDAY_HOME/config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrisonrobin/friday/pkg/derive"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "friday"
	configDir  = "config"
	configFile = "friday.yaml"

	EnvHome         = "FRIDAY_HOME"
	EnvTimezone     = "FRIDAY_TIMEZONE"
	EnvCacheBackend = "FRIDAY_CACHE_BACKEND"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Home string `yaml:"-"`

	Timezone           string   `yaml:"timezone"`
	WorkHours          string   `yaml:"work_hours"`
	DeepWorkHours      []string `yaml:"deep_work_hours"`
	WorkTaskLists      []string `yaml:"work_task_lists"`
	PersonalTaskLists  []string `yaml:"personal_task_lists"`
	UrgentDays         int      `yaml:"urgent_days"`
	FreeSlotMinMinutes int      `yaml:"free_slot_min_minutes"`
	Strict             bool     `yaml:"strict"`

	TickTick    TickTick    `yaml:"ticktick"`
	Taskwarrior Taskwarrior `yaml:"taskwarrior"`
	OrgMode     OrgMode     `yaml:"orgmode"`
	Google      Google      `yaml:"google"`
	ICalPal     ICalPal     `yaml:"icalpal"`
	Calendar    Calendar    `yaml:"calendar"`

	Cache    Cache    `yaml:"cache"`
	Fetch    Fetch    `yaml:"fetch"`
	Journal  Journal  `yaml:"journal"`
	Reasoner Reasoner `yaml:"reasoner"`
	Metrics  Metrics  `yaml:"metrics"`

	TemplatesDir string `yaml:"templates_dir"`
}

type TickTick struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenFile    string `yaml:"token_file"`
	BaseURL      string `yaml:"base_url"`
}

type Taskwarrior struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Filter  []string `yaml:"filter"`
}

type OrgMode struct {
	Enabled bool     `yaml:"enabled"`
	Files   []string `yaml:"files"`
}

type Google struct {
	ClientSecretFile string          `yaml:"client_secret_file"`
	Accounts         []GoogleAccount `yaml:"accounts"`
}

// GoogleAccount is one signed-in account. ConfigFolder holds its token.json;
// Calendars filters by display name and defaults to the primary calendar.
type GoogleAccount struct {
	ConfigFolder string   `yaml:"config_folder"`
	Label        string   `yaml:"label"`
	Calendars    []string `yaml:"calendars"`
}

// Name is the label, falling back to the folder's base name.
func (a GoogleAccount) Name() string {
	if a.Label != "" {
		return a.Label
	}
	return filepath.Base(a.ConfigFolder)
}

type ICalPal struct {
	Enabled          bool     `yaml:"enabled"`
	Command          string   `yaml:"command"`
	IncludeCalendars []string `yaml:"include_calendars"`
	ExcludeCalendars []string `yaml:"exclude_calendars"`
}

type Calendar struct {
	// Precedence orders sources from most to least trusted when the same
	// event is reported twice.
	Precedence []string `yaml:"precedence"`
}

type Cache struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	Dir           string        `yaml:"dir"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Retention     time.Duration `yaml:"retention"`
}

type Fetch struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

type Journal struct {
	Dir string `yaml:"dir"`
}

type Reasoner struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used for keys missing from the file.
func Default(home string) *Config {
	return &Config{
		Home:               home,
		Timezone:           "America/Toronto",
		WorkHours:          "09:00-17:00",
		DeepWorkHours:      []string{"09:00-11:00", "14:00-16:00"},
		UrgentDays:         derive.DefaultUrgentDays,
		FreeSlotMinMinutes: int(derive.DefaultMinSlot / time.Minute),
		TickTick: TickTick{
			Enabled:   true,
			TokenFile: filepath.Join(home, configDir, ".tokens.json"),
		},
		Taskwarrior: Taskwarrior{Command: "task"},
		ICalPal:     ICalPal{Command: "icalPal"},
		Calendar:    Calendar{Precedence: []string{"google", "icalpal"}},
		Cache: Cache{
			Backend:   BackendFile,
			TTL:       5 * time.Minute,
			Dir:       filepath.Join(home, "data", "cache"),
			RedisAddr: "localhost:6379",
			Retention: 7 * 24 * time.Hour,
		},
		Fetch:    Fetch{Timeout: 30 * time.Second, Concurrency: 4},
		Journal:  Journal{Dir: filepath.Join(home, "journal", "daily")},
		Reasoner: Reasoner{Command: "claude", Timeout: 5 * time.Minute},

		TemplatesDir: filepath.Join(home, "templates"),
	}
}

// GetHome resolves $FRIDAY_HOME, defaulting to ~/friday.
func GetHome() (string, error) {
	if h := os.Getenv(EnvHome); h != "" {
		return ExpandPath(h)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, appName), nil
}

func GetConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, configFile), nil
}

// Load reads the config file under $FRIDAY_HOME. A missing file yields the
// defaults.
func Load() (*Config, error) {
	home, err := GetHome()
	if err != nil {
		return nil, err
	}
	return LoadFile(home, filepath.Join(home, configDir, configFile))
}

// LoadFile reads path, applying defaults for home and env overrides.
func LoadFile(home, path string) (*Config, error) {
	cfg := Default(home)

	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	if tz := os.Getenv(EnvTimezone); tz != "" {
		cfg.Timezone = tz
	}
	if backend := os.Getenv(EnvCacheBackend); backend != "" {
		cfg.Cache.Backend = backend
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.TickTick.TokenFile,
		&c.Google.ClientSecretFile,
		&c.Cache.Dir,
		&c.Journal.Dir,
		&c.TemplatesDir,
		&c.Metrics.Textfile,
	}
	for i := range c.Google.Accounts {
		paths = append(paths, &c.Google.Accounts[i].ConfigFolder)
	}
	for i := range c.OrgMode.Files {
		paths = append(paths, &c.OrgMode.Files[i])
	}
	for _, p := range paths {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks the values that are parsed later so that mistakes fail
// at load time.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.WorkWindow(); err != nil {
		return fmt.Errorf("work_hours: %w", err)
	}
	if _, err := c.DeepWorkWindows(); err != nil {
		return fmt.Errorf("deep_work_hours: %w", err)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.UrgentDays < 0 {
		return fmt.Errorf("urgent_days must not be negative")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) WorkWindow() (derive.Window, error) {
	return derive.ParseWindow(c.WorkHours)
}

func (c *Config) DeepWorkWindows() ([]derive.Window, error) {
	return derive.ParseWindows(c.DeepWorkHours)
}

func (c *Config) MinSlot() time.Duration {
	if c.FreeSlotMinMinutes <= 0 {
		return derive.DefaultMinSlot
	}
	return time.Duration(c.FreeSlotMinMinutes) * time.Minute
}

// Save writes cfg to its config path with 0600 permissions.
func Save(cfg *Config) error {
	path := filepath.Join(cfg.Home, configDir, configFile)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, strings.TrimPrefix(p, "~")), nil
}
