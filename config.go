package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

// FileConfig is the optional TOML configuration. Command line flags win over
// values set here.
//
//	exclude       = ["**/*.log", "*.tmp"]
//	protected     = ["/srv/data"]
//	logfile       = "lockprobe.log"
//	force         = false
//	grace_period  = "5s"
//	query_timeout = "30s"
//	max_workers   = 0
type FileConfig struct {
	Exclude      []string `toml:"exclude" validate:"dive,required,glob"`
	Protected    []string `toml:"protected" validate:"dive,required"`
	Logfile      string   `toml:"logfile"`
	Force        bool     `toml:"force"`
	GracePeriod  string   `toml:"grace_period" validate:"omitempty,duration"`
	QueryTimeout string   `toml:"query_timeout" validate:"omitempty,duration"`
	MaxWorkers   int      `toml:"max_workers" validate:"gte=0,lte=200"`
}

func validGlob(fl validator.FieldLevel) bool {
	return doublestar.ValidatePattern(fl.Field().String())
}

func validDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("glob", validGlob)
	_ = v.RegisterValidation("duration", validDuration)
	return v
}

// LoadFileConfig decodes and validates the TOML file at path.
func LoadFileConfig(path string) (*FileConfig, error) {
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config okunamadı: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "UYARI: bilinmeyen config anahtarları: %v\n", undecoded)
	}

	if err := newValidator().Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return nil, fmt.Errorf("geçersiz config alanı %s (%s): %v", e.Namespace(), e.Tag(), e.Value())
		}
		return nil, fmt.Errorf("geçersiz config: %w", err)
	}
	return &cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
