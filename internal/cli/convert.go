package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/phyalf"
	"github.com/hupe1980/phyalf/model"
)

// RunConvert converts args[0] into the ALF directory args[1].
func RunConvert(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	src, err := model.Load(args[0])
	if err != nil {
		return err
	}

	progress := newProgressReporter(cfg.Logging.Format == "json")
	defer func() { progress.Done(err) }()

	metrics := &phyalf.BasicMetricsCollector{}
	out, err := phyalf.Convert(cmd.Context(), src, args[1],
		phyalf.WithForce(cfg.Convert.Force),
		phyalf.WithLabel(cfg.Convert.Label),
		phyalf.WithAmplitudeScale(cfg.Convert.AmpScale),
		phyalf.WithWaveformChannels(cfg.Convert.Channels),
		phyalf.WithDepthBatchSize(cfg.Convert.DepthBatch),
		phyalf.WithLogger(logger),
		phyalf.WithMetricsCollector(metrics),
		phyalf.WithProgress(progress.Stage),
	)
	if err != nil {
		return err
	}

	stats := metrics.GetStats()
	logger.InfoContext(cmd.Context(), "converted",
		"src", args[0],
		"dst", args[1],
		"written", stats.WriteCount,
		"skipped", stats.SkipCount,
		"bytes", stats.WriteBytes,
	)
	if out != nil {
		return out.Describe(cmd.OutOrStdout())
	}
	return nil
}
