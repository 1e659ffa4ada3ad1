package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mpataki/mend/internal/models"
)

type Config struct {
	DataDir string
	DBPath  string

	ProjectDir string
	BackupDir  string
	AgentFile  string
	PromptFile string

	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	MaxTurns    int
	ResultLimit int
	TestCommand string
	TestDir     string
	EntryFile   string
}

func New() (*Config, error) {
	// Credentials may live in a .env next to the caller.
	godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("MEND_DATA_DIR", filepath.Join(homeDir, ".mend"))
	provider := getEnv("MEND_PROVIDER", "gemini")

	c := &Config{
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, "mend.db"),
		Provider:    provider,
		Model:       getEnv("MEND_MODEL", defaultModel(provider)),
		MaxTurns:    intEnv("MEND_MAX_TURNS", 10),
		ResultLimit: intEnv("MEND_RESULT_LIMIT", 10240),
		TestCommand: getEnv("MEND_TEST_COMMAND", "pytest"),
		TestDir:     getEnv("MEND_TEST_DIR", ""),
		EntryFile:   getEnv("MEND_ENTRY_FILE", "main.py"),
	}

	switch provider {
	case "openai":
		c.APIKey = os.Getenv("OPENAI_API_KEY")
		c.BaseURL = os.Getenv("OPENAI_BASE_URL")
	default:
		c.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	c.SetProjectDir(getEnv("MEND_PROJECT_DIR", "."))

	return c, nil
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-4o-mini"
	}
	return "gemini-1.5-flash"
}

// SetProjectDir pins the project root and every path derived from it. The
// backup lands in a sibling directory so a restore can replace the project
// tree wholesale.
func (c *Config) SetProjectDir(dir string) {
	clean := filepath.Clean(dir)
	c.ProjectDir = clean
	c.BackupDir = clean + "_backup"
	c.AgentFile = filepath.Join(clean, ".mend", "agent.md")
	c.PromptFile = filepath.Join(clean, "main.prompt")
}

// Apply overlays a per-project manifest; zero values keep the defaults.
func (c *Config) Apply(p *models.Project) {
	if p == nil {
		return
	}
	if p.TestCommand != "" {
		c.TestCommand = p.TestCommand
	}
	if p.TestDir != "" {
		c.TestDir = p.TestDir
	}
	if p.EntryFile != "" {
		c.EntryFile = p.EntryFile
	}
	if p.Model != "" {
		c.Model = p.Model
	}
	if p.MaxTurns > 0 {
		c.MaxTurns = p.MaxTurns
	}
}

// TestArgv splits the configured test command into argv form.
func (c *Config) TestArgv() []string {
	argv := strings.Fields(c.TestCommand)
	if len(argv) == 0 {
		return []string{"pytest"}
	}
	return argv
}

func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
