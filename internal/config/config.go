// Package config provides configuration file support for aqo.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = ".aqo.yaml"

// Defaults applied when the config file omits a value.
const (
	DefaultConcurrency         = 3
	DefaultMaxIterations       = 5
	DefaultValidationBatchSize = 5
	DefaultRetries             = 2
	DefaultRetryDelay          = 2 * time.Second
	DefaultStateDir            = ".aqo"
	DefaultTicketsDir          = ".aqo/tickets"
)

// Duration is a custom type that handles YAML duration parsing.
// Supports both Go duration format ("5m", "300s") and numeric seconds.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(time.Duration(v) * time.Second)
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// AgentSpec declares one scan agent: what it looks for and what it may
// touch while looking.
type AgentSpec struct {
	// ID is the unique agent identifier used on the command line and in
	// run state.
	ID string `yaml:"id"`
	// Prompt is the inline scan prompt. Mutually exclusive with PromptFile.
	Prompt string `yaml:"prompt"`
	// PromptFile is a path to the scan prompt, relative to the config
	// file's directory.
	PromptFile string `yaml:"prompt_file"`
	// Patterns limits the scan to matching files. Empty means the whole
	// repository.
	Patterns []string `yaml:"patterns"`
	// AllowedTools restricts the agent's tool access during scans.
	AllowedTools []string `yaml:"allowed_tools"`
}

// Config represents the aqo configuration file. Pointer fields
// distinguish "not set" from explicit zero values.
type Config struct {
	Concurrency         *int        `yaml:"concurrency"`
	MaxIterations       *int        `yaml:"max_iterations"`
	ValidationBatchSize *int        `yaml:"validation_batch_size"`
	Retries             *int        `yaml:"retries"`
	RetryDelay          *Duration   `yaml:"retry_delay"`
	StateDir            *string     `yaml:"state_dir"`
	TicketsDir          *string     `yaml:"tickets_dir"`
	Model               *string     `yaml:"model"`
	Agents              []AgentSpec `yaml:"agents"`

	// dir is the directory the config was loaded from, used to resolve
	// relative prompt file paths.
	dir string
}

// LoadResult contains the loaded config and any warnings encountered.
type LoadResult struct {
	Config   *Config
	Warnings []string
}

// LoadFromDir reads .aqo.yaml from the specified directory.
// Returns an empty config (not error) if the file doesn't exist.
func LoadFromDir(dir string) (*LoadResult, error) {
	return LoadFromPath(filepath.Join(dir, ConfigFileName))
}

// LoadFromPath reads a config file and returns warnings for unknown keys.
// Returns an empty config (not error) if the file doesn't exist.
// Returns an error if the file exists but is invalid YAML or fails
// validation.
func LoadFromPath(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadResult{Config: &Config{dir: filepath.Dir(path)}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	warnings := checkUnknownKeys(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}

	return &LoadResult{Config: &cfg, Warnings: warnings}, nil
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	if c.Concurrency != nil && *c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", *c.Concurrency)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", *c.MaxIterations)
	}
	if c.ValidationBatchSize != nil && *c.ValidationBatchSize < 1 {
		return fmt.Errorf("validation_batch_size must be >= 1, got %d", *c.ValidationBatchSize)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", *c.Retries)
	}
	if c.RetryDelay != nil && *c.RetryDelay <= 0 {
		return fmt.Errorf("retry_delay must be > 0, got %s", time.Duration(*c.RetryDelay))
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, spec := range c.Agents {
		if spec.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("duplicate agent id %q", spec.ID)
		}
		seen[spec.ID] = true

		if spec.Prompt != "" && spec.PromptFile != "" {
			return fmt.Errorf("agent %q: prompt and prompt_file are mutually exclusive", spec.ID)
		}
		if spec.Prompt == "" && spec.PromptFile == "" {
			return fmt.Errorf("agent %q: one of prompt or prompt_file is required", spec.ID)
		}
	}
	return nil
}

// Agent returns the spec for the given agent ID.
func (c *Config) Agent(id string) (AgentSpec, error) {
	for _, spec := range c.Agents {
		if spec.ID == id {
			return spec, nil
		}
	}
	return AgentSpec{}, &domain.UnknownAgentError{AgentID: id}
}

// AgentIDs returns all configured agent IDs in declaration order.
func (c *Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for _, spec := range c.Agents {
		ids = append(ids, spec.ID)
	}
	return ids
}

// ResolvePrompt returns the scan prompt for a spec, reading PromptFile
// relative to the config file's directory when set.
func (c *Config) ResolvePrompt(spec AgentSpec) (string, error) {
	if spec.Prompt != "" {
		return spec.Prompt, nil
	}
	path := spec.PromptFile
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("agent %q: reading prompt file: %w", spec.ID, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("agent %q: prompt file %s is empty", spec.ID, spec.PromptFile)
	}
	return prompt, nil
}

// ConcurrencyOrDefault returns the configured concurrency or the default.
func (c *Config) ConcurrencyOrDefault() int {
	if c.Concurrency != nil {
		return *c.Concurrency
	}
	return DefaultConcurrency
}

// MaxIterationsOrDefault returns the fix iteration cap or the default.
func (c *Config) MaxIterationsOrDefault() int {
	if c.MaxIterations != nil {
		return *c.MaxIterations
	}
	return DefaultMaxIterations
}

// ValidationBatchSizeOrDefault returns the validation batch size or the default.
func (c *Config) ValidationBatchSizeOrDefault() int {
	if c.ValidationBatchSize != nil {
		return *c.ValidationBatchSize
	}
	return DefaultValidationBatchSize
}

// RetriesOrDefault returns the retry count or the default.
func (c *Config) RetriesOrDefault() int {
	if c.Retries != nil {
		return *c.Retries
	}
	return DefaultRetries
}

// RetryDelayOrDefault returns the base retry delay or the default.
func (c *Config) RetryDelayOrDefault() time.Duration {
	if c.RetryDelay != nil {
		return c.RetryDelay.AsDuration()
	}
	return DefaultRetryDelay
}

// StateDirOrDefault returns the run state directory or the default.
func (c *Config) StateDirOrDefault() string {
	if c.StateDir != nil {
		return *c.StateDir
	}
	return DefaultStateDir
}

// TicketsDirOrDefault returns the tickets directory or the default.
func (c *Config) TicketsDirOrDefault() string {
	if c.TicketsDir != nil {
		return *c.TicketsDir
	}
	return DefaultTicketsDir
}

// ModelOrDefault returns the configured model, or empty for the CLI default.
func (c *Config) ModelOrDefault() string {
	if c.Model != nil {
		return *c.Model
	}
	return ""
}

// knownTopLevelKeys are the valid top-level keys in the config file.
var knownTopLevelKeys = []string{
	"concurrency", "max_iterations", "validation_batch_size", "retries",
	"retry_delay", "state_dir", "tickets_dir", "model", "agents",
}

// knownAgentKeys are the valid keys for entries under "agents".
var knownAgentKeys = []string{"id", "prompt", "prompt_file", "patterns", "allowed_tools"}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var warnings []string

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// If we can't parse, let the main parser handle the error
		return nil
	}

	for key := range raw {
		if !slices.Contains(knownTopLevelKeys, key) {
			warning := fmt.Sprintf("unknown key %q in %s", key, ConfigFileName)
			if suggestion := findSimilar(key, knownTopLevelKeys); suggestion != "" {
				warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			warnings = append(warnings, warning)
		}
	}

	if agents, ok := raw["agents"].([]any); ok {
		for i, entry := range agents {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			for key := range m {
				if !slices.Contains(knownAgentKeys, key) {
					warning := fmt.Sprintf("unknown key %q in agents[%d] of %s", key, i, ConfigFileName)
					if suggestion := findSimilar(key, knownAgentKeys); suggestion != "" {
						warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
					}
					warnings = append(warnings, warning)
				}
			}
		}
	}

	return warnings
}

// findSimilar finds the most similar string from candidates using Levenshtein distance.
// Returns empty string if no candidate is similar enough (threshold: 3 edits).
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		dist := levenshtein(input, candidate)
		if dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshtein calculates the Levenshtein distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}
