package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Provider identifiers accepted by the agent factory.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds everything a play session needs, resolved once at startup.
// It is built in main from the persisted user config, the environment and
// command-line flags, then passed by reference into the components — no
// package reads the environment after this point.
type Config struct {
	// Game / interpreter
	GameFile        string
	InterpreterPath string
	ProfilePath     string

	// Session
	MaxTurns      int
	Verbose       bool
	AutoSave      bool
	SaveFile      string
	AssumeRestore bool
	TranscriptDB  string

	// Provider selection
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Sampling and output caps forwarded to the provider
	Temperature      float32
	TopP             float32
	MaxCommandTokens int

	// Timeouts
	StartTimeout   time.Duration
	TurnTimeout    time.Duration
	RequestTimeout time.Duration
}

// Defaults returns a Config with everything except the game file filled in.
func Defaults() *Config {
	return &Config{
		InterpreterPath:  "dfrotz",
		MaxTurns:         50,
		AutoSave:         true,
		Provider:         ProviderAnthropic,
		Temperature:      0.7,
		TopP:             0.9,
		MaxCommandTokens: 150,
		StartTimeout:     10 * time.Second,
		TurnTimeout:      15 * time.Second,
		RequestTimeout:   60 * time.Second,
	}
}

// ApplyEnv overlays provider credentials and endpoints from the environment.
// Called once by main, after godotenv has populated the process environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GRUEBOT_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	switch c.Provider {
	case ProviderAnthropic:
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.APIKey == "" {
			c.APIKey = v
		}
		if v := os.Getenv("ANTHROPIC_MODEL"); v != "" && c.Model == "" {
			c.Model = v
		}
	case ProviderOllama:
		if v := os.Getenv("OLLAMA_BASE_URL"); v != "" && c.BaseURL == "" {
			c.BaseURL = v
		}
		if v := os.Getenv("OLLAMA_MODEL"); v != "" && c.Model == "" {
			c.Model = v
		}
	}
}

// Finish fills derived fields and validates the result. It must be called
// after the game file is known.
func (c *Config) Finish() error {
	if c.GameFile == "" {
		return fmt.Errorf("no game file specified")
	}
	if _, err := os.Stat(c.GameFile); err != nil {
		return fmt.Errorf("game file not found: %s", c.GameFile)
	}

	gameName := strings.TrimSuffix(filepath.Base(c.GameFile), filepath.Ext(c.GameFile))
	gameDir := filepath.Dir(c.GameFile)

	if c.SaveFile == "" {
		// Frotz appends .qzl (Quetzal) when saving, so the default path
		// carries the extension up front.
		c.SaveFile = filepath.Join(gameDir, "saves", gameName+"_autosave.qzl")
	}
	if c.TranscriptDB == "" {
		c.TranscriptDB = filepath.Join(gameDir, "saves", gameName+"_transcript.db")
	}

	if c.Model == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-5-20250929"
		case ProviderOllama:
			c.Model = "llama3.1"
		}
	}
	if c.Provider == ProviderOllama && c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434/v1"
	}

	switch c.Provider {
	case ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	case ProviderOllama:
		// Local server, key is irrelevant.
	default:
		return fmt.Errorf("unknown provider: %s (supported: anthropic, ollama)", c.Provider)
	}
	return nil
}

// SnapshotPath returns where the knowledge snapshot for the configured game
// file lives. One snapshot per game file, next to the save file.
func (c *Config) SnapshotPath() string {
	gameName := strings.TrimSuffix(filepath.Base(c.GameFile), filepath.Ext(c.GameFile))
	return filepath.Join(filepath.Dir(c.SaveFile), gameName+"_knowledge.json")
}

// Persisted is the slice of Config the user keeps between runs
// (provider choice, credentials, model overrides).
type Persisted struct {
	Provider    string `json:"provider,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	Interpreter string `json:"interpreter,omitempty"`
}

// Manager handles loading and saving the persisted configuration.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager rooted at the
// platform user config directory.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "gruebot")}, nil
}

// Path returns the absolute path to the config.json file.
func (m *Manager) Path() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the persisted configuration from disk.
// A missing file is not an error; it returns an empty Persisted.
func (m *Manager) Load() (*Persisted, error) {
	path := m.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Persisted{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	return &p, nil
}

// Save writes the persisted configuration with restricted permissions (0600),
// since it may contain an API key.
func (m *Manager) Save(p *Persisted) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Apply overlays the persisted values onto cfg where cfg has no value yet.
func (p *Persisted) Apply(cfg *Config) {
	if p.Provider != "" {
		cfg.Provider = p.Provider
	}
	if p.APIKey != "" && cfg.APIKey == "" {
		cfg.APIKey = p.APIKey
	}
	if p.Model != "" && cfg.Model == "" {
		cfg.Model = p.Model
	}
	if p.BaseURL != "" && cfg.BaseURL == "" {
		cfg.BaseURL = p.BaseURL
	}
	if p.Interpreter != "" {
		cfg.InterpreterPath = p.Interpreter
	}
}
