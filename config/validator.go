package config

import (
	"net/url"
	"regexp"
	"sync"

	"chatgate/model"
)

// Rule is one declarative validation check. Check returns true when the
// config satisfies the rule.
type Rule struct {
	Field   string
	Check   func(ServiceConfig) bool
	Message string
}

// Result is the outcome of a validation pass. Errors holds every violation.
type Result struct {
	Valid  bool
	Errors []model.FieldError
}

// Err converts a failed Result into a *model.ValidationError, or nil.
func (r Result) Err(p model.ProviderID) error {
	if r.Valid {
		return nil
	}
	return &model.ValidationError{Provider: p, Errors: r.Errors}
}

const minAPIKeyLength = 20

var (
	organizationPattern = regexp.MustCompile(`^org-[A-Za-z0-9]+$`)
	apiVersionPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var baseRules = []Rule{
	{
		Field:   "timeout",
		Check:   func(c ServiceConfig) bool { return c.Timeout == nil || *c.Timeout > 0 },
		Message: "must be greater than 0",
	},
	{
		Field:   "maxRetries",
		Check:   func(c ServiceConfig) bool { return c.MaxRetries == nil || *c.MaxRetries >= 0 },
		Message: "must not be negative",
	},
	{
		Field:   "baseUrl",
		Check:   func(c ServiceConfig) bool { return c.BaseURL == "" || isHTTPURL(c.BaseURL) },
		Message: "must be a valid http(s) URL",
	},
}

var apiKeyLengthRule = Rule{
	Field:   "apiKey",
	Check:   func(c ServiceConfig) bool { return c.APIKey == "" || len(c.APIKey) >= minAPIKeyLength },
	Message: "must be at least 20 characters",
}

var providerRules = map[model.ProviderID][]Rule{
	model.ProviderOllama: {
		{
			Field:   "port",
			Check:   func(c ServiceConfig) bool { return c.Port == nil || (*c.Port >= 1 && *c.Port <= 65535) },
			Message: "must be between 1 and 65535",
		},
	},
	model.ProviderOpenAI: {
		apiKeyLengthRule,
		{
			Field:   "organization",
			Check:   func(c ServiceConfig) bool { return c.Organization == "" || organizationPattern.MatchString(c.Organization) },
			Message: "must look like org-XXXX",
		},
	},
	model.ProviderDeepSeek: {
		apiKeyLengthRule,
	},
	model.ProviderAnthropic: {
		apiKeyLengthRule,
		{
			Field:   "apiVersion",
			Check:   func(c ServiceConfig) bool { return c.APIVersion == "" || apiVersionPattern.MatchString(c.APIVersion) },
			Message: "must be a date like 2023-06-01",
		},
	},
}

// Validator applies the base rules plus the rules registered for a provider.
type Validator struct {
	mu    sync.RWMutex
	rules map[model.ProviderID][]Rule
}

// NewValidator returns a validator preloaded with the built-in provider rules.
func NewValidator() *Validator {
	rules := make(map[model.ProviderID][]Rule, len(providerRules))
	for p, rs := range providerRules {
		rules[p] = append([]Rule(nil), rs...)
	}
	return &Validator{rules: rules}
}

// AddRules appends provider specific rules.
func (v *Validator) AddRules(p model.ProviderID, rules ...Rule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[p] = append(v.rules[p], rules...)
}

// Validate runs every rule and collects all violations. It never panics on a
// misbehaving rule: a panicking check counts as a violation.
func (v *Validator) Validate(p model.ProviderID, cfg ServiceConfig) Result {
	v.mu.RLock()
	rules := append(append([]Rule(nil), baseRules...), v.rules[p]...)
	v.mu.RUnlock()

	var errs []model.FieldError
	for _, r := range rules {
		if !safeCheck(r, cfg) {
			errs = append(errs, model.FieldError{Field: r.Field, Message: r.Message})
		}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func safeCheck(r Rule, cfg ServiceConfig) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return r.Check(cfg)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
