package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ankichat/ankichat/internal/config"
	"github.com/ankichat/ankichat/internal/domain"
	"github.com/ankichat/ankichat/internal/importer"
	"github.com/ankichat/ankichat/internal/llm"
	"github.com/ankichat/ankichat/internal/review"
	"github.com/ankichat/ankichat/internal/storage"
	"github.com/ankichat/ankichat/internal/training"
)

func main() {
	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(fs); err != nil {
		slog.Error("ankichat failed", "error", err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet) error {
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	setupLogging(cfg.LogLevel)

	modeStr, _ := fs.GetString("mode")
	mode, err := training.ParseMode(modeStr)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	client := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	manager := review.NewManager(db, client, review.ManagerConfig{MaxCards: cfg.MaxSessionCards})

	ctx := context.Background()

	if doImport, _ := fs.GetBool("import"); doImport {
		im := importer.New(db, cfg.UserID, cfg.ReposDir, manager.DropCard)
		if err := im.Run(ctx, cfg.Sources); err != nil {
			return err
		}
	}

	return runSession(ctx, manager, client, cfg.UserID, mode)
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func runSession(ctx context.Context, manager *review.Manager, client *llm.Client, userID string, mode training.Mode) error {
	session, err := manager.Start(ctx, userID, mode)
	if err != nil {
		return err
	}
	defer manager.End(userID, mode)

	if session.State() == review.StateCompleted {
		fmt.Println("No cards due for review. Come back later.")
		return nil
	}

	fmt.Printf("Starting %s review session. Type /quit to stop early.\n\n", mode)

	input := bufio.NewScanner(os.Stdin)
	for {
		view, err := session.NextCard(ctx)
		if errors.Is(err, review.ErrSessionFinished) {
			break
		}
		if err != nil {
			return err
		}

		printPrompt(view)

		answer, quit := readAnswer(input)
		if quit {
			break
		}

		result, err := session.SubmitAnswer(ctx, answer)
		if err != nil {
			if errors.Is(err, review.ErrSessionFinished) {
				break
			}
			var invalid training.ErrInvalidAnswer
			if errors.As(err, &invalid) {
				fmt.Printf("  %s\n\n", invalid.Reason)
				continue
			}
			var persistence *review.PersistenceError
			if errors.As(err, &persistence) {
				fmt.Println("  Could not save your review, try again.")
				continue
			}
			return err
		}

		printResult(ctx, client, view, result)
	}

	printSummary(session.Summary())
	return nil
}

func printPrompt(view review.CardView) {
	fmt.Printf("[%d/%d] %s\n", view.Position, view.Total, view.Prompt.Front)
	if view.Prompt.Text != "" && view.Prompt.Text != view.Prompt.Front {
		fmt.Println(view.Prompt.Text)
	}
	for i, choice := range view.Prompt.Choices {
		fmt.Printf("  %d) %s\n", i+1, choice)
	}
	if view.Prompt.Degraded {
		fmt.Println("  (content generation unavailable, showing the card as-is)")
	}
}

func readAnswer(input *bufio.Scanner) (answer string, quit bool) {
	fmt.Print("> ")
	if !input.Scan() {
		return "", true
	}
	answer = strings.TrimSpace(input.Text())
	if answer == "/quit" {
		return "", true
	}
	return answer, false
}

func printResult(ctx context.Context, client *llm.Client, view review.CardView, result domain.ReviewResult) {
	if result.Correct {
		fmt.Printf("  Correct! (score %d)\n\n", result.Score)
		return
	}

	fmt.Printf("  Incorrect. The answer was: %s\n", view.Card.Back)
	explanation, err := client.GenerateExplanation(ctx, view.Card, result.Submitted)
	if err == nil && explanation != "" {
		fmt.Printf("  %s\n", explanation)
	}
	fmt.Println()
}

func printSummary(summary review.Summary) {
	fmt.Printf("\nSession %s: %d/%d reviewed, %d correct, %d incorrect (%.0f%% accuracy) in %s\n",
		summary.State,
		summary.Reviewed,
		summary.Total,
		summary.Correct,
		summary.Incorrect,
		summary.Accuracy*100,
		summary.Duration.Round(time.Second),
	)
}
