package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "consensus.retry_budget")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// agentIDRegex validates agent identifiers: they appear in log attributes,
// vote targets, and sqlite rows, so keep them to a safe character set.
var agentIDRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidThemes returns the list of valid TUI themes
func ValidThemes() []string {
	return []string{"default", "mono"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateConsensus()...)
	errors = append(errors, c.validateRateLimits()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateAgents validates the agent set
func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d].id", i)
		switch {
		case a.ID == "":
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   a.ID,
				Message: "cannot be empty",
			})
		case !agentIDRegex.MatchString(a.ID):
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   a.ID,
				Message: "must start with a letter and contain only alphanumeric characters, hyphens, or underscores",
			})
		case seen[a.ID]:
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   a.ID,
				Message: "duplicate agent id",
			})
		}
		seen[a.ID] = true
	}

	return errors
}

// validateConsensus validates the ConsensusConfig
func (c *Config) validateConsensus() []ValidationError {
	var errors []ValidationError

	if c.Consensus.Threshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "consensus.threshold",
			Value:   c.Consensus.Threshold,
			Message: "must be non-negative (0 waits for all votes)",
		})
	}

	if c.Consensus.MaxDurationSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "consensus.max_duration_seconds",
			Value:   c.Consensus.MaxDurationSeconds,
			Message: "must be positive",
		})
	}

	// Guard against rounds configured to run for days by accident
	const maxDurationSecondsLimit = 24 * 60 * 60
	if c.Consensus.MaxDurationSeconds > maxDurationSecondsLimit {
		errors = append(errors, ValidationError{
			Field:   "consensus.max_duration_seconds",
			Value:   c.Consensus.MaxDurationSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds (24h)", maxDurationSecondsLimit),
		})
	}

	if c.Consensus.MaxDebateRounds < -1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.max_debate_rounds",
			Value:   c.Consensus.MaxDebateRounds,
			Message: "must be non-negative (-1 removes the cap)",
		})
	}

	if c.Consensus.RetryBudget < -1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.retry_budget",
			Value:   c.Consensus.RetryBudget,
			Message: "must be non-negative (-1 disables retries)",
		})
	}

	if c.Consensus.PresentationTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "consensus.presentation_timeout_seconds",
			Value:   c.Consensus.PresentationTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateRateLimits validates the per-resource-key budgets
func (c *Config) validateRateLimits() []ValidationError {
	var errors []ValidationError

	for key, rl := range c.RateLimits {
		if key == "" {
			errors = append(errors, ValidationError{
				Field:   "rate_limits",
				Value:   key,
				Message: "resource key cannot be empty",
			})
			continue
		}
		if rl.MaxRequests <= 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("rate_limits.%s.max_requests", key),
				Value:   rl.MaxRequests,
				Message: "must be positive (remove the entry for unlimited)",
			})
		}
		if rl.WindowSeconds <= 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("rate_limits.%s.window_seconds", key),
				Value:   rl.WindowSeconds,
				Message: "must be positive",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if c.Store.MaxContentChars < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_content_chars",
			Value:   c.Store.MaxContentChars,
			Message: "must be non-negative (0 drops content events)",
		})
	}
	if strings.ContainsRune(c.Store.Path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "store.path",
			Value:   c.Store.Path,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.Theme != "" && !slices.Contains(ValidThemes(), c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}
	if c.TUI.TimelineLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.timeline_limit",
			Value:   c.TUI.TimelineLimit,
			Message: "must be non-negative (0 means unlimited)",
		})
	}

	return errors
}
