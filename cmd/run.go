package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spigell/resume-tailor/internal/agents"
	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/tailor"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultOutput = "resume_tailored.tex"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a job description and generate a tailored resume",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("job", "", "file with the job description")
	runCmd.Flags().String("resume", "", "file with the resume text")
	runCmd.Flags().StringP("output", "o", defaultOutput, "where to write the generated LaTeX document")
	runCmd.Flags().StringP("instruction", "i", "", "extra instruction for the generator, answered with retrieved context")
	runCmd.Flags().BoolP("quick", "q", false, "stop after the strategy: print the match score and gaps only")
}

// run is the pipeline command.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-tailor", zap.String("version", version))

	jobText, err := readSource("job", flagString(cmd, "job"))
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}
	resumeText, err := readSource("resume", flagString(cmd, "resume"))
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}
	defer svc.Close()

	in := tailor.Input{JobText: jobText, ResumeText: resumeText}

	if instruction := flagString(cmd, "instruction"); instruction != "" {
		ingested, err := svc.Ingest(ctx, tailor.IngestInput{ResumeText: resumeText, JobText: jobText})
		if err != nil {
			logger.Fatal("indexing the sources", zap.Error(err))
		}
		logger.Info(ingested.Message, zap.String("session_id", ingested.SessionID))

		in.SessionID = ingested.SessionID
		in.Instruction = instruction
		defer svc.DropSession(ctx, ingested.SessionID)
	}

	var result *tailor.RunResult
	if quick, _ := cmd.Flags().GetBool("quick"); quick {
		result, err = svc.RunQuick(ctx, in)
	} else {
		result, err = svc.RunFull(ctx, in)
	}

	for _, stage := range result.Stages {
		logger.Debug("stage", zap.String("name", stage.Stage), zap.String("state", string(stage.State)),
			zap.Duration("took", stage.FinishedAt.Sub(stage.StartedAt)))
	}
	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}

	if err != nil {
		logger.Fatal("pipeline failed", zap.String("message", result.Message), zap.Error(err))
	}

	printStrategy(result.Strategy)

	if result.Document == nil {
		logger.Info(result.Message)
		return
	}

	output := flagString(cmd, "output")
	if err := os.WriteFile(output, []byte(result.Document.Body), 0o644); err != nil {
		logger.Fatal("writing the document", zap.Error(err))
	}

	logger.Info(result.Message, zap.String("output", output), zap.String("format", result.Document.FormatTag))
}

func printStrategy(s *agents.Strategy) {
	if s == nil {
		return
	}

	fmt.Printf("Match score: %d/100\n", s.MatchScore)
	if s.MatchSummary != "" {
		fmt.Println(s.MatchSummary)
	}

	printList("Strong matches", s.StrongMatches)

	if len(s.Gaps) > 0 {
		fmt.Println("\nGaps:")
		for _, gap := range s.Gaps {
			line := "  - " + gap.Missing
			if gap.Severity != "" {
				line += " (" + gap.Severity + ")"
			}
			if gap.Mitigation != "" {
				line += ": " + gap.Mitigation
			}
			fmt.Println(line)
		}
	}

	printList("Emphasize", s.Emphasize)
	printList("Keywords to add", s.AddKeywords)
	printList("Action items", s.ActionItems)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n  - %s\n", title, strings.Join(items, "\n  - "))
}

func flagString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(value)
}
