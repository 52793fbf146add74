package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/affirmation-studio/backend/internal/config"
	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/ai"
	"github.com/zhouzirui/affirmation-studio/backend/internal/service/speech"
)

var (
	cfg     *config.Config
	timeout time.Duration

	rootCmd = &cobra.Command{
		Use:           "affirmtester",
		Short:         "Exercise the language model and speech providers by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug("no .env file loaded", "err", err)
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(loaded.Log)
			cfg = loaded
			return nil
		},
	}
)

func main() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")
	rootCmd.AddCommand(generateCmd(), validateCmd(), voicesCmd(), synthesizeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func newAIService(ctx context.Context) (*ai.Service, error) {
	if !cfg.AI.Enabled() {
		return nil, errors.New("set ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and ARK_MODEL")
	}
	return ai.NewService(ctx, cfg.AI)
}

func newSpeechService() (*speech.Service, error) {
	if !cfg.Speech.Enabled() {
		return nil, errors.New("set ELEVENLABS_API_KEY")
	}
	return speech.NewService(cfg.Speech.Model()), nil
}

// readItems takes affirmations from --text or --file, one per line.
func readItems(text, file string) ([]string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		text = string(data)
	}
	lines := affirmation.SplitLines(text)
	if len(lines) == 0 {
		return nil, errors.New("no affirmations given, use --text or --file")
	}
	return lines, nil
}

func generateCmd() *cobra.Command {
	var (
		goal  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate affirmations for a goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			svc, err := newAIService(ctx)
			if err != nil {
				return err
			}
			lines, err := svc.Generate(ctx, goal, count)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "what the affirmations should support")
	cmd.Flags().IntVar(&count, "count", 0, "number of affirmations (default from AFFIRMATION_COUNT)")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func validateCmd() *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Ask the model to review affirmations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readItems(text, file)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd)
			defer cancel()

			svc, err := newAIService(ctx)
			if err != nil {
				return err
			}
			result, err := svc.Validate(ctx, items)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", result.Status)
			if result.Message != "" {
				fmt.Fprintf(out, "message: %s\n", result.Message)
			}
			for _, sg := range result.Suggestions {
				fmt.Fprintf(out, "- %q -> %q", sg.Original, sg.Suggested)
				if sg.Reason != "" {
					fmt.Fprintf(out, " (%s)", sg.Reason)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "affirmations, one per line")
	cmd.Flags().StringVar(&file, "file", "", "file with one affirmation per line")
	return cmd
}

func voicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices offered by the speech provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			svc, err := newSpeechService()
			if err != nil {
				return err
			}
			voices, err := svc.ListVoices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no voices available")
				return nil
			}
			for _, v := range voices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.ID, v.Label())
			}
			return nil
		},
	}
}

func synthesizeCmd() *cobra.Command {
	var text, file, voiceID, out string
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Read affirmations aloud and save the audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readItems(text, file)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd)
			defer cancel()

			svc, err := newSpeechService()
			if err != nil {
				return err
			}
			audio, err := svc.Synthesize(ctx, strings.Join(items, ". "), voiceID)
			if err != nil {
				return err
			}

			if out == "" {
				out = audio.Filename
			}
			if err := os.WriteFile(out, audio.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			log.Info("audio written", "file", out, "type", audio.ContentType, "size", humanize.Bytes(uint64(audio.Size)))
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "affirmations, one per line")
	cmd.Flags().StringVar(&file, "file", "", "file with one affirmation per line")
	cmd.Flags().StringVar(&voiceID, "voice", "", "voice id (see the voices command)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default derived from the audio type)")
	_ = cmd.MarkFlagRequired("voice")
	return cmd
}
