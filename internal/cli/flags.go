package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/phyalf"
	"github.com/hupe1980/phyalf/internal/config"
)

// loadConfig reads --config and applies every flag the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read --config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	var errs []error
	set := func(name string, apply func() error) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			if err := apply(); err != nil {
				errs = append(errs, fmt.Errorf("failed to read --%s flag: %w", name, err))
			}
		}
	}
	str := func(name string, dst *string) {
		set(name, func() (err error) { *dst, err = flags.GetString(name); return })
	}

	set("force", func() (err error) { cfg.Convert.Force, err = flags.GetBool("force"); return })
	str("label", &cfg.Convert.Label)
	set("amp-scale", func() (err error) { cfg.Convert.AmpScale, err = flags.GetFloat64("amp-scale"); return })
	set("channels", func() (err error) { cfg.Convert.Channels, err = flags.GetInt("channels"); return })
	str("backend", &cfg.Publish.Backend)
	str("bucket", &cfg.Publish.Bucket)
	str("prefix", &cfg.Publish.Prefix)
	str("endpoint", &cfg.Publish.Endpoint)
	str("region", &cfg.Publish.Region)
	str("commit-table", &cfg.Publish.CommitTable)
	str("compression", &cfg.Publish.Compression)
	str("manifest-codec", &cfg.Publish.ManifestCodec)
	set("concurrency", func() (err error) { cfg.Publish.Concurrency, err = flags.GetInt("concurrency"); return })
	set("rate", func() (err error) { cfg.Publish.Rate, err = flags.GetInt64("rate"); return })
	set("verbose", func() error {
		v, err := flags.GetBool("verbose")
		if v {
			cfg.Logging.Level = "debug"
		}
		return err
	})
	set("json-logs", func() error {
		v, err := flags.GetBool("json-logs")
		if v {
			cfg.Logging.Format = "json"
		}
		return err
	})
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*phyalf.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return phyalf.NewJSONLogger(level), nil
	}
	return phyalf.NewTextLogger(level), nil
}
