package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/rewind/internal/prune"
	"github.com/roach88/rewind/internal/rehydrate"
)

// Error codes for configuration loading.
const (
	ErrCodeConfigRead    = "E001" // config file missing or unreadable
	ErrCodeConfigParse   = "E002" // CUE parse or build failure
	ErrCodeConfigInvalid = "E003" // field present but invalid
)

// LoadError represents a configuration error with a stable code.
type LoadError struct {
	Code    string // E001, E002, E003
	Path    string // config file path, empty when not file-specific
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DefaultRetentionMs is the prune retention window used when the
// config file does not set one: thirty days.
const DefaultRetentionMs int64 = 30 * 24 * 60 * 60 * 1000

// PruneConfig holds retention settings for the prune command.
type PruneConfig struct {
	RetentionMs int64
	BatchSize   int
	MaxBatches  int
	Archive     bool
}

// Config is the resolved service configuration. Flag values override
// it, and it overrides the built-in defaults.
type Config struct {
	StorePath string
	BlobDir   string
	Recovery  rehydrate.RecoveryPolicy
	Prune     PruneConfig
}

// DefaultConfig returns the configuration used when no config file is
// given.
func DefaultConfig() Config {
	return Config{
		StorePath: "rewind.db",
		BlobDir:   ".rewind/blobs",
		Recovery:  rehydrate.RecoverEmpty,
		Prune: PruneConfig{
			RetentionMs: DefaultRetentionMs,
			BatchSize:   prune.DefaultBatchSize,
			MaxBatches:  0,
			Archive:     true,
		},
	}
}

// LoadConfig loads the CUE config file at path on top of the
// defaults. An empty path skips the file entirely; a missing file at
// an explicit path is an E001 error.
//
// The file shape is:
//
//	store:    { path: string }
//	blob:     { dir: string }
//	snapshot: { recovery: "empty" | "strict" }
//	prune:    { retention_ms: int, batch_size: int, max_batches: int, archive: bool }
//
// Every field is optional and defaults apply per field.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return cfg, &LoadError{
			Code:    ErrCodeConfigRead,
			Path:    path,
			Message: fmt.Sprintf("cannot read config: %v", err),
		}
	}

	cueCtx := cuecontext.New()
	instances := load.Instances([]string{path}, nil)
	if len(instances) == 0 {
		return cfg, &LoadError{
			Code:    ErrCodeConfigParse,
			Path:    path,
			Message: "no CUE instance found",
		}
	}
	if instances[0].Err != nil {
		return cfg, &LoadError{
			Code:    ErrCodeConfigParse,
			Path:    path,
			Message: fmt.Sprintf("failed to load: %v", instances[0].Err),
		}
	}

	value := cueCtx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return cfg, &LoadError{
			Code:    ErrCodeConfigParse,
			Path:    path,
			Message: fmt.Sprintf("failed to build: %v", err),
		}
	}

	dec := &configDecoder{root: value, path: path}

	if err := dec.str("store.path", &cfg.StorePath); err != nil {
		return cfg, err
	}
	if err := dec.str("blob.dir", &cfg.BlobDir); err != nil {
		return cfg, err
	}

	var recovery string
	if err := dec.str("snapshot.recovery", &recovery); err != nil {
		return cfg, err
	}
	switch recovery {
	case "":
		// not set, keep default
	case "empty":
		cfg.Recovery = rehydrate.RecoverEmpty
	case "strict":
		cfg.Recovery = rehydrate.RecoverStrict
	default:
		return cfg, dec.invalid("snapshot.recovery", fmt.Sprintf("must be \"empty\" or \"strict\", got %q", recovery))
	}

	if err := dec.int64Field("prune.retention_ms", &cfg.Prune.RetentionMs); err != nil {
		return cfg, err
	}
	if err := dec.intField("prune.batch_size", &cfg.Prune.BatchSize); err != nil {
		return cfg, err
	}
	if err := dec.intField("prune.max_batches", &cfg.Prune.MaxBatches); err != nil {
		return cfg, err
	}
	if err := dec.boolField("prune.archive", &cfg.Prune.Archive); err != nil {
		return cfg, err
	}

	if cfg.StorePath == "" {
		return cfg, dec.invalid("store.path", "cannot be empty")
	}
	if cfg.BlobDir == "" {
		return cfg, dec.invalid("blob.dir", "cannot be empty")
	}
	if cfg.Prune.RetentionMs <= 0 {
		return cfg, dec.invalid("prune.retention_ms", "must be positive")
	}
	if cfg.Prune.BatchSize <= 0 {
		return cfg, dec.invalid("prune.batch_size", "must be positive")
	}
	if cfg.Prune.MaxBatches < 0 {
		return cfg, dec.invalid("prune.max_batches", "cannot be negative")
	}

	return cfg, nil
}

// configDecoder reads optional scalar fields out of a built CUE value.
// Missing fields leave the destination untouched.
type configDecoder struct {
	root cue.Value
	path string
}

func (d *configDecoder) invalid(field, message string) *LoadError {
	return &LoadError{
		Code:    ErrCodeConfigInvalid,
		Path:    d.path,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

func (d *configDecoder) str(field string, out *string) error {
	v := d.root.LookupPath(cue.ParsePath(field))
	if !v.Exists() {
		return nil
	}
	s, err := v.String()
	if err != nil {
		return d.invalid(field, err.Error())
	}
	*out = s
	return nil
}

func (d *configDecoder) int64Field(field string, out *int64) error {
	v := d.root.LookupPath(cue.ParsePath(field))
	if !v.Exists() {
		return nil
	}
	n, err := v.Int64()
	if err != nil {
		return d.invalid(field, err.Error())
	}
	*out = n
	return nil
}

func (d *configDecoder) intField(field string, out *int) error {
	v := d.root.LookupPath(cue.ParsePath(field))
	if !v.Exists() {
		return nil
	}
	n, err := v.Int64()
	if err != nil {
		return d.invalid(field, err.Error())
	}
	*out = int(n)
	return nil
}

func (d *configDecoder) boolField(field string, out *bool) error {
	v := d.root.LookupPath(cue.ParsePath(field))
	if !v.Exists() {
		return nil
	}
	b, err := v.Bool()
	if err != nil {
		return d.invalid(field, err.Error())
	}
	*out = b
	return nil
}
