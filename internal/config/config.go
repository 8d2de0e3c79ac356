package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/budget"
)

const FileName = "adp.yml"

// Config models adp.yml.
type Config struct {
	Portal struct {
		Name string `yaml:"name" json:"name"`
		ULB  string `yaml:"ulb" json:"ulb"`
		// MachineID distinguishes portal processes in generated work ids.
		MachineID uint16 `yaml:"machine_id" json:"machine_id"`
	} `yaml:"portal" json:"portal"`
	Budget struct {
		Ceiling string `yaml:"ceiling" json:"ceiling"`
	} `yaml:"budget" json:"budget"`
	Workflow struct {
		RoleMatching string `yaml:"role_matching" json:"role_matching"`
	} `yaml:"workflow" json:"workflow"`
	Storage struct {
		Primary          string `yaml:"primary" json:"primary"`
		MemoryQuotaBytes int    `yaml:"memory_quota_bytes" json:"memory_quota_bytes"`
	} `yaml:"storage" json:"storage"`
	Attachments struct {
		MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
	} `yaml:"attachments" json:"attachments"`
	Session struct {
		TTL string `yaml:"ttl" json:"ttl"`
	} `yaml:"session" json:"session"`
	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		DevLogin bool   `yaml:"dev_login" json:"dev_login"`
		// LoginRate is dev logins allowed per second.
		LoginRate float64 `yaml:"login_rate" json:"login_rate"`
	} `yaml:"server" json:"server"`
	Webhooks []Webhook `yaml:"webhooks" json:"webhooks"`
	Sectors  []string  `yaml:"sectors" json:"sectors"`
}

type Webhook struct {
	URL    string   `yaml:"url" json:"url"`
	Events []string `yaml:"events" json:"events"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with adp config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault falls back to the built-in defaults when the workspace has
// no config file.
func LoadOrDefault(workspace string) (*Config, error) {
	if _, err := os.Stat(Path(workspace)); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(workspace)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	ceiling, err := decimal.NewFromString(strings.TrimSpace(c.Budget.Ceiling))
	if err != nil {
		return fmt.Errorf("config.budget.ceiling must be a number: %w", err)
	}
	if err := budget.ValidateAmount(ceiling); err != nil {
		return fmt.Errorf("config.budget.ceiling %s", err.Error())
	}
	switch c.Workflow.RoleMatching {
	case "", "exact", "legacy":
	default:
		return fmt.Errorf("config.workflow.role_matching must be exact or legacy")
	}
	switch c.Storage.Primary {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("config.storage.primary must be sqlite or memory")
	}
	if c.Storage.MemoryQuotaBytes < 0 {
		return fmt.Errorf("config.storage.memory_quota_bytes must not be negative")
	}
	if c.Attachments.MaxBytes < 0 {
		return fmt.Errorf("config.attachments.max_bytes must not be negative")
	}
	if c.Session.TTL != "" {
		if _, err := time.ParseDuration(c.Session.TTL); err != nil {
			return fmt.Errorf("config.session.ttl: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	if len(c.Sectors) == 0 {
		return fmt.Errorf("config.sectors is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Sectors {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("config.sectors contains an empty sector")
		}
		if seen[s] {
			return fmt.Errorf("sector %q listed twice", s)
		}
		seen[s] = true
	}
	for i, h := range c.Webhooks {
		if h.URL == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
	}
	return nil
}

// CeilingAmount returns the parsed budget ceiling. Validate must have passed.
func (c *Config) CeilingAmount() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Budget.Ceiling))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func (c *Config) HasSector(s string) bool {
	for _, v := range c.Sectors {
		if v == s {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `portal:
  name: "15th Finance Commission ADP Works"
  ulb: ""
  # unique per process sharing a database; 0 derives it from the host's private IP
  machine_id: 0

budget:
  # total cost an engineer may hold before forwarding, in rupees
  ceiling: "1000000"

workflow:
  # exact: queues match role tags exactly
  # legacy: case-insensitive substring match on status and section
  role_matching: exact

storage:
  primary: sqlite
  memory_quota_bytes: 5242880

attachments:
  max_bytes: 5242880

session:
  ttl: 24h

log:
  level: info
  format: text

server:
  addr: 127.0.0.1:8080
  dev_login: false
  login_rate: 1

webhooks: []

sectors:
  - Sanitation and ODF
  - Drinking Water Supply
  - Rainwater Harvesting
  - Water Recycling
  - Solid Waste Management
  - Storm Water Drains
  - Roads
  - Street Lights
  - Parks and Playgrounds
  - Burial Grounds
  - Community Toilets
  - Public Toilets
  - Septage Management
  - Underground Drainage
  - Water Bodies Rejuvenation
  - Markets
  - Slaughter Houses
  - Bus Shelters
  - Municipal Buildings
  - Other Basic Services
`
