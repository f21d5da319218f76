// Package config loads and validates peer configuration.
//
// Configuration is a YAML file. Values are checked in two passes: an
// embedded CUE schema enforces field types and formats, then Go checks the
// cross-field rules (self and coordinator must be listed peers, the timeout
// must be positive).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/tray"
)

//go:embed schema.cue
var schemaCUE string

// ErrInvalidConfig is matched by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Error codes for validation failures.
const (
	ErrCodeParse       = "E201" // YAML could not be parsed
	ErrCodeSchema      = "E202" // CUE schema violation
	ErrCodeTimeout     = "E203" // timeout not a positive duration
	ErrCodeSelf        = "E204" // self not in peers
	ErrCodeCoordinator = "E205" // coordinator not in peers
)

// Config is one peer's configuration.
type Config struct {
	// Self is this peer's ref.
	Self string `yaml:"self" json:"self"`

	// Coordinator is the peer currently holding write authority.
	// Empty means no coordinator is online.
	Coordinator string `yaml:"coordinator" json:"coordinator"`

	Listen    string `yaml:"listen" json:"listen"`
	Database  string `yaml:"database" json:"database"`
	Timeout   string `yaml:"timeout" json:"timeout"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Key       string `yaml:"key" json:"key"`

	// DamageChat enables listing successful participants for damage.
	DamageChat bool `yaml:"damage_chat" json:"damage_chat"`

	// Peers maps peer refs to base URLs.
	Peers map[string]string `yaml:"peers" json:"peers"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Listen:    "127.0.0.1:7420",
		Database:  "savetray.db",
		Timeout:   delegate.DefaultTimeout.String(),
		Namespace: tray.DefaultNamespace,
		Key:       tray.DefaultKey,
		Peers:     map[string]string{},
	}
}

// RequestTimeout returns the parsed Timeout, or delegate.DefaultTimeout if
// it does not parse.
func (c Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return delegate.DefaultTimeout
	}
	return d
}

// PeerURLs returns Peers keyed by delegate.PeerRef.
func (c Config) PeerURLs() map[delegate.PeerRef]string {
	out := make(map[delegate.PeerRef]string, len(c.Peers))
	for ref, u := range c.Peers {
		out[delegate.PeerRef(ref)] = u
	}
	return out
}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// ValidationError collects every failure found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ValidationError{Errors: []FieldError{{Message: err.Error(), Code: ErrCodeParse}}}
	}
	if cfg.Peers == nil {
		cfg.Peers = map[string]string{}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the schema and the cross-field rules.
func Validate(cfg Config) error {
	var errs []FieldError
	errs = append(errs, validateSchema(cfg)...)

	if d, err := time.ParseDuration(cfg.Timeout); err != nil || d <= 0 {
		errs = append(errs, FieldError{Field: "timeout", Message: fmt.Sprintf("%q is not a positive duration", cfg.Timeout), Code: ErrCodeTimeout})
	}
	if _, ok := cfg.Peers[cfg.Self]; cfg.Self != "" && !ok {
		errs = append(errs, FieldError{Field: "self", Message: fmt.Sprintf("%q is not listed in peers", cfg.Self), Code: ErrCodeSelf})
	}
	if _, ok := cfg.Peers[cfg.Coordinator]; cfg.Coordinator != "" && !ok {
		errs = append(errs, FieldError{Field: "coordinator", Message: fmt.Sprintf("%q is not listed in peers", cfg.Coordinator), Code: ErrCodeCoordinator})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateSchema(cfg Config) []FieldError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("config schema: %v", err))
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(cfg))
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []FieldError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		out = append(out, FieldError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrCodeSchema,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
