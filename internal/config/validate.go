package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	if cfg.ExecutionAPIURL == "" {
		errs = append(errs, ValidationError{
			Field:   "EXECUTION_API_URL",
			Message: "required",
		})
	} else if err := validateURL(cfg.ExecutionAPIURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "EXECUTION_API_URL",
			Message: err.Error(),
		})
	}

	if cfg.TokenAPIURL == "" {
		errs = append(errs, ValidationError{
			Field:   "TOKEN_API_URL",
			Message: "required",
		})
	} else if err := validateURL(cfg.TokenAPIURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "TOKEN_API_URL",
			Message: err.Error(),
		})
	}

	if err := validateURL(cfg.ProviderBaseURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "PROVIDER_BASE_URL",
			Message: err.Error(),
		})
	}

	for field, str := range map[string]string{
		"DB_OP_TIMEOUT":    cfg.DBOpTimeoutStr,
		"FETCH_TIMEOUT":    cfg.FetchTimeoutStr,
		"DISPATCH_TIMEOUT": cfg.DispatchTimeoutStr,
		"DEDUP_RETENTION":  cfg.DedupRetentionStr,
		"TEST_SESSION_TTL": cfg.TestSessionTTLStr,
	} {
		d, err := time.ParseDuration(str)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "must be positive",
			})
		}
	}

	if cfg.JanitorEnabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.JanitorSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "JANITOR_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
