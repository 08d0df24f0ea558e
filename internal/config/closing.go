package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ClosingConfig is operator policy for billing-closure sessions. It is loaded
// from a mounted file so policy can change without a redeploy.
type ClosingConfig struct {
	// Currency is the ISO 4217 code used for display formatting.
	Currency string `mapstructure:"currency"`
	// Locale selects the number/date formatting locale (BCP 47 tag).
	Locale string `mapstructure:"locale"`
	// DefaultMissingPriceBehavior seeds each group's configuration:
	// "block" or "allow_manual".
	DefaultMissingPriceBehavior string `mapstructure:"defaultMissingPriceBehavior"`
	// MaxInstallments caps the installment choice offered to operators.
	// The scheduler itself never accepts more than 12.
	MaxInstallments int `mapstructure:"maxInstallments"`
}

func DefaultClosingConfig() ClosingConfig {
	return ClosingConfig{
		Currency:                    "BRL",
		Locale:                      "pt-BR",
		DefaultMissingPriceBehavior: "block",
		MaxInstallments:             12,
	}
}

// ClosingConfigHolder exposes the current closing policy with hot reload.
type ClosingConfigHolder struct {
	current atomic.Value // holds ClosingConfig
}

func NewClosingConfigHolder() (*ClosingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("closing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sphera/config")
	v.AddConfigPath("/etc/sphera")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPHERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultClosingConfig()
	v.SetDefault("closing.currency", defaults.Currency)
	v.SetDefault("closing.locale", defaults.Locale)
	v.SetDefault("closing.defaultMissingPriceBehavior", defaults.DefaultMissingPriceBehavior)
	v.SetDefault("closing.maxInstallments", defaults.MaxInstallments)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ClosingConfig
	if err := v.UnmarshalKey("closing", &cfg); err != nil {
		return nil, err
	}
	if err := validateClosingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ClosingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ClosingConfig
		if err := v.UnmarshalKey("closing", &updated); err != nil {
			log.Printf("[closing-config] reload failed: %v", err)
			return
		}
		if err := validateClosingConfig(updated); err != nil {
			log.Printf("[closing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[closing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ClosingConfigHolder) Get() ClosingConfig {
	if cfg, ok := h.current.Load().(ClosingConfig); ok {
		return cfg
	}
	return DefaultClosingConfig()
}

func validateClosingConfig(cfg ClosingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("closing.currency cannot be empty")
	}
	switch cfg.DefaultMissingPriceBehavior {
	case "block", "allow_manual":
	default:
		return errors.New("closing.defaultMissingPriceBehavior must be block or allow_manual")
	}
	if cfg.MaxInstallments < 2 || cfg.MaxInstallments > 12 {
		return errors.New("closing.maxInstallments must be between 2 and 12")
	}
	return nil
}
