package cli

import (
	"atsmatch/internal/common"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match [resume-file] [job-description-file]",
	Short: "Score a resume against a job description",
	Long: `Score a resume against a job description.

The resume may be a PDF, DOCX or plain-text file. Documents are whitespace
normalized and email addresses and phone numbers are redacted before scoring.
The job description is read as plain text. The json format writes the same
report the HTTP API returns.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if matchConfig.OutputFormat == "" {
			matchConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if matchConfig.Mode == "" {
			matchConfig.Mode = cfg.Matching.DefaultMode
		}
		if err := common.ValidateTopK(matchConfig.TopK, cfg.Matching.MaxTopK); err != nil {
			return err
		}
		return common.ValidateOutputFormat(matchConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runMatch,
}

var matchConfig common.MatchCommandConfig

func init() {
	matchCmd.Flags().StringVarP(&matchConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	matchCmd.Flags().StringVar(&matchConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	matchCmd.Flags().StringVar(&matchConfig.Mode, "mode", "", "Scoring mode: semantic or strict (default from config)")
	matchCmd.Flags().IntVar(&matchConfig.TopK, "top-k", 0, "Number of relevant resume lines to report (default from config)")

	_ = matchCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
	_ = matchCmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"semantic", "strict"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if common.WarnUnknownMode(matchConfig.Mode) {
		logger.Warn("Unknown mode, using semantic", "mode", matchConfig.Mode)
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	runCfg := matchConfig
	runCfg.ResumeFile = args[0]
	runCfg.JobFile = args[1]
	runCfg.MaxFileSize = cfg.App.MaxFileSize

	return common.RunMatchCommand(cmd.Context(), logger, svc.matcher, runCfg)
}
