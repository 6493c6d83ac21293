package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Section is one feature area an organization can be entitled to.
type Section struct {
	Code string `mapstructure:"code" json:"code"`
	Name string `mapstructure:"name" json:"name"`
}

// SectionCatalog is the closed set of sections accepted at provisioning time.
type SectionCatalog struct {
	Sections []Section `mapstructure:"sections" json:"sections"`
}

func DefaultSectionCatalog() SectionCatalog {
	return SectionCatalog{
		Sections: []Section{
			{Code: "bookings", Name: "Bookings"},
			{Code: "calendar", Name: "Calendar"},
			{Code: "maintenance", Name: "Maintenance"},
			{Code: "expenses", Name: "Expenses"},
			{Code: "documents", Name: "Documents"},
			{Code: "messaging", Name: "Messaging"},
		},
	}
}

// Contains reports whether code names a known section.
func (c SectionCatalog) Contains(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, section := range c.Sections {
		if section.Code == code {
			return true
		}
	}
	return false
}

type SectionCatalogHolder struct {
	current atomic.Value // holds SectionCatalog
}

// NewStaticSectionCatalogHolder returns a holder that never reloads.
func NewStaticSectionCatalogHolder(catalog SectionCatalog) *SectionCatalogHolder {
	holder := &SectionCatalogHolder{}
	holder.current.Store(normalizeCatalog(catalog))
	return holder
}

func NewSectionCatalogHolder(cfg Config) (*SectionCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("sections")
	v.SetConfigType("yml")
	v.AddConfigPath(cfg.SectionsDir)
	v.AddConfigPath("/etc/sharehold")

	v.SetEnvPrefix("SHAREHOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return NewStaticSectionCatalogHolder(DefaultSectionCatalog()), nil
	}

	var catalog SectionCatalog
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, err
	}
	if err := validateSectionCatalog(catalog); err != nil {
		return nil, err
	}

	holder := NewStaticSectionCatalogHolder(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SectionCatalog
		if err := v.Unmarshal(&updated); err != nil {
			zap.L().Warn("section catalog reload failed", zap.Error(err))
			return
		}
		if err := validateSectionCatalog(updated); err != nil {
			zap.L().Warn("invalid section catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(normalizeCatalog(updated))
		zap.L().Info("section catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SectionCatalogHolder) Get() SectionCatalog {
	return h.current.Load().(SectionCatalog)
}

func validateSectionCatalog(catalog SectionCatalog) error {
	if len(catalog.Sections) == 0 {
		return errors.New("sections cannot be empty")
	}
	seen := make(map[string]struct{}, len(catalog.Sections))
	for _, section := range catalog.Sections {
		code := strings.ToLower(strings.TrimSpace(section.Code))
		if code == "" {
			return errors.New("section code cannot be empty")
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("duplicate section code %q", code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

func normalizeCatalog(catalog SectionCatalog) SectionCatalog {
	out := SectionCatalog{Sections: make([]Section, 0, len(catalog.Sections))}
	for _, section := range catalog.Sections {
		code := strings.ToLower(strings.TrimSpace(section.Code))
		name := strings.TrimSpace(section.Name)
		if name == "" {
			name = code
		}
		out.Sections = append(out.Sections, Section{Code: code, Name: name})
	}
	return out
}
