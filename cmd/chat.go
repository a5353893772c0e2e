package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spigell/resume-tailor/internal/feedback"
	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/tailor"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	CommandExit    = "/exit"
	CommandDrop    = "/drop"
	CommandSuggest = "/suggest"

	PromptSkipRating = "Skip"
)

var errExit = errors.New("exit requested")

var ratingPrompt = promptui.Select{
	Label: "Rate the answer",
	Items: []string{PromptSkipRating, "5", "4", "3", "2", "1"},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Index a resume and a job description, then tailor the resume interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("job", "", "file with the job description")
	chatCmd.Flags().String("resume", "", "file with the resume text")
	chatCmd.Flags().String("session", "", "session id to reuse; a new one is generated when empty")
}

// chatState is what the loop needs between instructions.
type chatState struct {
	svc        *service
	logger     *zap.Logger
	sessionID  string
	resumeText string
	jobText    string
}

func chat(cmd *cobra.Command) {
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

	ingested, err := svc.Ingest(ctx, tailor.IngestInput{
		SessionID:  flagString(cmd, "session"),
		ResumeText: resumeText,
		JobText:    jobText,
	})
	if err != nil {
		logger.Fatal("indexing the sources", zap.Error(err))
	}
	logger.Info(ingested.Message, zap.String("session_id", ingested.SessionID))

	state := &chatState{
		svc:        svc,
		logger:     logger,
		sessionID:  ingested.SessionID,
		resumeText: resumeText,
		jobText:    jobText,
	}

	fmt.Printf("Type an instruction or a question. Commands: %s, %s, %s\n", CommandSuggest, CommandDrop, CommandExit)

	for {
		input := promptui.Prompt{Label: "Instruction"}
		instruction, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading the instruction", zap.Error(err))
		}

		if err := state.handle(ctx, strings.TrimSpace(instruction)); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("handling the instruction", zap.Error(err))
		}
	}
}

func (s *chatState) handle(ctx context.Context, instruction string) error {
	switch instruction {
	case "":
		return nil
	case CommandExit:
		return errExit
	case CommandDrop:
		result := s.svc.DropSession(ctx, s.sessionID)
		s.logger.Info(result.Message)
		return errExit
	case CommandSuggest:
		result, err := s.svc.Suggest(ctx, s.resumeText, s.jobText)
		if err != nil {
			return err
		}
		for i, suggestion := range result.Suggestions {
			fmt.Printf("%d. %s\n", i+1, suggestion)
		}
		return nil
	}

	result, err := s.svc.TailorInstruction(ctx, s.sessionID, instruction)
	for _, warning := range result.Warnings {
		s.logger.Warn(warning)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n\n", result.Content)

	return s.rate(ctx, instruction, result.Content)
}

func (s *chatState) rate(ctx context.Context, instruction, generated string) error {
	_, choice, err := ratingPrompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return errExit
		}
		return err
	}
	if choice == PromptSkipRating {
		return nil
	}

	rating, err := strconv.Atoi(choice)
	if err != nil {
		return fmt.Errorf("parsing rating %q: %w", choice, err)
	}

	commentPrompt := promptui.Prompt{Label: "Comment (optional)"}
	comment, err := commentPrompt.Run()
	if err != nil && !errors.Is(err, promptui.ErrEOF) {
		return err
	}

	result, err := s.svc.SubmitFeedback(ctx, feedback.Submission{
		SessionID:   s.sessionID,
		Instruction: instruction,
		Generated:   generated,
		Rating:      rating,
		Comment:     strings.TrimSpace(comment),
	})
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		s.logger.Warn(warning)
	}
	s.logger.Info(result.Message, zap.Int("rating", rating))

	if result.Refined != "" {
		fmt.Printf("\nRefined:\n%s\n\n", result.Refined)
	}
	return nil
}
