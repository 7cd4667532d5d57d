// Package cli implements the phyalf command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the phyalf command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "phyalf",
		Short: "Convert spike sorting output to ALF datasets",
		Long: `phyalf converts a Kilosort/phy spike sorting directory into an ALF
dataset of spikes, clusters, channels and templates files, and publishes
converted datasets to a local directory, S3 or MinIO.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	convertCmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Convert a phy directory into an ALF dataset",
		Args:  cobra.ExactArgs(2),
		RunE:  RunConvert,
	}
	convertCmd.Flags().Bool("force", false, "Overwrite existing outputs")
	convertCmd.Flags().String("label", "", "Label appended to every ALF file name")
	convertCmd.Flags().Float64("amp-scale", 1, "Factor applied to spike, cluster and template amplitudes")
	convertCmd.Flags().Int("channels", 32, "Nearest channels kept per template")

	publishCmd := &cobra.Command{
		Use:   "publish <dir>",
		Short: "Upload an ALF dataset and commit a manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  RunPublish,
	}
	addStoreFlags(publishCmd)
	publishCmd.Flags().String("compression", "none", "Blob compression: none|lz4|zstd")
	publishCmd.Flags().String("manifest-codec", "go-json", "Manifest codec: go-json|json")
	publishCmd.Flags().Int("concurrency", 4, "Parallel uploads")
	publishCmd.Flags().Int64("rate", 0, "Upload limit in bytes per second (0 = unlimited)")

	fetchCmd := &cobra.Command{
		Use:   "fetch <dir>",
		Short: "Download the current published dataset into a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  RunFetch,
	}
	addStoreFlags(fetchCmd)

	describeCmd := &cobra.Command{
		Use:   "describe <dir>",
		Short: "Summarize a phy or ALF directory",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDescribe,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "phyalf %s\n", version)
		},
	}

	rootCmd.AddCommand(
		convertCmd,
		publishCmd,
		fetchCmd,
		describeCmd,
		versionCmd,
	)

	return rootCmd
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "local", "Storage backend: local|s3|minio")
	cmd.Flags().String("bucket", "", "Bucket name, or the target directory for the local backend")
	cmd.Flags().String("prefix", "", "Key prefix inside the bucket")
	cmd.Flags().String("endpoint", "", "S3-compatible endpoint")
	cmd.Flags().String("region", "", "AWS region")
	cmd.Flags().String("commit-table", "", "DynamoDB table guarding CURRENT (s3 only)")
}
