package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spigell/resume-tailor/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Print five improvement suggestions for a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		suggest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().String("job", "", "file with the job description (optional)")
	suggestCmd.Flags().String("resume", "", "file with the resume text")
}

func suggest(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	resumeText, err := readSource("resume", flagString(cmd, "resume"))
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}

	var jobText string
	if path := flagString(cmd, "job"); path != "" {
		if jobText, err = readSource("job", path); err != nil {
			logger.Fatal("reading the job description", zap.Error(err))
		}
	}

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}
	defer svc.Close()

	result, err := svc.Suggest(ctx, resumeText, jobText)
	if err != nil {
		logger.Fatal("getting suggestions", zap.String("message", result.Message), zap.Error(err))
	}

	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}
	for i, suggestion := range result.Suggestions {
		fmt.Printf("%d. %s\n", i+1, suggestion)
	}
}
