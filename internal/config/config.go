package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/influmate/influmate/internal/profile"
	"github.com/influmate/influmate/internal/scoring"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sheets   Sheets   `yaml:"sheets"`
	Poller   Poller   `yaml:"poller"`
	Scoring  Scoring  `yaml:"scoring"`
	Dispatch Dispatch `yaml:"dispatch"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
}

type Sheets struct {
	CredentialsFile string      `yaml:"credentials_file"`
	Intake          IntakeSheet `yaml:"intake"`
	Posts           PostsSheet  `yaml:"posts"`
}

// IntakeSheet configures the campaign-intake spreadsheet. StatusColumn and
// EmailColumn are sheet column letters; MinColumns is the structural
// validation threshold for a submitted row.
type IntakeSheet struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Range         string `yaml:"range"`
	StatusColumn  string `yaml:"status_column"`
	EmailColumn   string `yaml:"email_column"`
	MinColumns    int    `yaml:"min_columns"`
	Marker        string `yaml:"marker"`
}

// PostsSheet configures the raw influencer-posts spreadsheet.
type PostsSheet struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Range         string `yaml:"range"`
}

type Poller struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type Scoring struct {
	TopN  int           `yaml:"top_n"`
	Rules []ScoringRule `yaml:"rules"`
}

// ScoringRule is the yaml form of one goal-matching rule. Rules are tried
// in order; a rule without keywords matches every goal.
type ScoringRule struct {
	Name      string        `yaml:"name"`
	Keywords  []string      `yaml:"keywords"`
	Weights   RuleWeights   `yaml:"weights"`
	TierBonus RuleTierBonus `yaml:"tier_bonus"`
}

type RuleWeights struct {
	Engagement float64 `yaml:"engagement"`
	Share      float64 `yaml:"share"`
	Comment    float64 `yaml:"comment"`
	Reach      float64 `yaml:"reach"`
}

type RuleTierBonus struct {
	Tiers  []string `yaml:"tiers"`
	Weight float64  `yaml:"weight"`
}

type Dispatch struct {
	FormURL string `yaml:"form_url"`
	SMTP    SMTP   `yaml:"smtp"`
}

// SMTP configures the notification sender. The password is read from the
// environment variable named by PasswordEnv, never from the config file.
type SMTP struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	Subject     string `yaml:"subject"`
	Body        string `yaml:"body"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for influmate.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "influmate")
}

// DataDir returns the XDG data directory for influmate.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "influmate")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/influmate/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'influmate init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sheets: Sheets{
			CredentialsFile: "credentials.json",
			Intake: IntakeSheet{
				Range:        "'Data'!A1:Z",
				StatusColumn: "M",
				EmailColumn:  "L",
				MinColumns:   6,
				Marker:       "Processed",
			},
			Posts: PostsSheet{
				Range: "'posts'!A1:Z",
			},
		},
		Poller:  Poller{IntervalSeconds: 10},
		Scoring: Scoring{TopN: 3},
		Dispatch: Dispatch{
			SMTP: SMTP{
				Port:        587,
				PasswordEnv: "INFLUMATE_SMTP_PASSWORD",
				Subject:     "Your influencer shortlist is ready",
				Body:        "We received your campaign request. The ranked shortlist is attached below.",
			},
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// ScoringRules converts the configured rule table to the engine's form.
// An empty table means the built-in defaults.
func (c *Config) ScoringRules() []scoring.Rule {
	if len(c.Scoring.Rules) == 0 {
		return scoring.DefaultRules()
	}

	rules := make([]scoring.Rule, len(c.Scoring.Rules))
	for i, r := range c.Scoring.Rules {
		tiers := make([]profile.Tier, 0, len(r.TierBonus.Tiers))
		for _, t := range r.TierBonus.Tiers {
			tiers = append(tiers, profile.ParseTier(t))
		}
		rules[i] = scoring.Rule{
			Name:     r.Name,
			Keywords: r.Keywords,
			Weights: scoring.Weights{
				Engagement: r.Weights.Engagement,
				Share:      r.Weights.Share,
				Comment:    r.Weights.Comment,
				Reach:      r.Weights.Reach,
			},
			Bonus: scoring.TierBonus{Tiers: tiers, Weight: r.TierBonus.Weight},
		}
	}
	return rules
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
