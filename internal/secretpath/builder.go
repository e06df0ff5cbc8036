// Package secretpath turns a database username and service name into the
// secret-store path that holds the password.
//
// The classification rules encode a site-specific naming scheme, so every
// piece of it is configurable:
//
//   - category: "app" when the lower-cased username matches AppPattern, else "admin"
//   - system:   "prime" when the lower-cased service matches PrimePattern, else "online"
//   - path:     Template with {system}, {category}, {region}, {service} and {user}
//     replaced; service and user are lower-cased
package secretpath

import (
	"fmt"
	"regexp"
	"strings"

	dserrors "github.com/coredevops/coredev/internal/errors"
)

const (
	CategoryApp   = "app"
	CategoryAdmin = "admin"
	SystemPrime   = "prime"
	SystemOnline  = "online"

	DefaultAppPattern   = `app`
	DefaultPrimePattern = `^\w+pd\d+`
	DefaultTemplate     = "tct{system}/db/oracle/{category}/{region}{service}/{system}/{user}"
)

// Rules configure the builder.
type Rules struct {
	AppPattern   string `yaml:"app_pattern"`
	PrimePattern string `yaml:"prime_pattern"`
	Template     string `yaml:"template"`
	RegionPrefix string `yaml:"region_prefix"`
}

// DefaultRules returns the stock naming convention.
func DefaultRules() Rules {
	return Rules{
		AppPattern:   DefaultAppPattern,
		PrimePattern: DefaultPrimePattern,
		Template:     DefaultTemplate,
	}
}

// Builder builds secret paths from a compiled set of rules.
type Builder struct {
	app      *regexp.Regexp
	prime    *regexp.Regexp
	template string
	region   string
}

// NewBuilder compiles rules. Empty fields fall back to the defaults.
func NewBuilder(rules Rules) (*Builder, error) {
	defaults := DefaultRules()
	if rules.AppPattern == "" {
		rules.AppPattern = defaults.AppPattern
	}
	if rules.PrimePattern == "" {
		rules.PrimePattern = defaults.PrimePattern
	}
	if rules.Template == "" {
		rules.Template = defaults.Template
	}

	app, err := regexp.Compile(rules.AppPattern)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "secret_path.app_pattern",
			Value:      rules.AppPattern,
			Message:    fmt.Sprintf("invalid regular expression: %v", err),
			Suggestion: "Use RE2 syntax, e.g. 'app' or '^app_'",
		}
	}
	prime, err := regexp.Compile(rules.PrimePattern)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "secret_path.prime_pattern",
			Value:      rules.PrimePattern,
			Message:    fmt.Sprintf("invalid regular expression: %v", err),
			Suggestion: `Use RE2 syntax, e.g. '^\w+pd\d+'`,
		}
	}
	if !strings.Contains(rules.Template, "{user}") {
		return nil, dserrors.ConfigError{
			Field:      "secret_path.template",
			Value:      rules.Template,
			Message:    "template must reference {user}",
			Suggestion: "See the default: " + DefaultTemplate,
		}
	}

	return &Builder{
		app:      app,
		prime:    prime,
		template: rules.Template,
		region:   strings.ToLower(rules.RegionPrefix),
	}, nil
}

// Category classifies a username as app or admin.
func (b *Builder) Category(username string) string {
	if b.app.MatchString(strings.ToLower(username)) {
		return CategoryApp
	}
	return CategoryAdmin
}

// System classifies a service as prime or online.
func (b *Builder) System(service string) string {
	if b.prime.MatchString(strings.ToLower(service)) {
		return SystemPrime
	}
	return SystemOnline
}

// Build returns the secret path for username on service. The result does not
// depend on the case of either argument.
func (b *Builder) Build(username, service string) string {
	r := strings.NewReplacer(
		"{system}", b.System(service),
		"{category}", b.Category(username),
		"{region}", b.region,
		"{service}", strings.ToLower(service),
		"{user}", strings.ToLower(username),
	)
	return r.Replace(b.template)
}
