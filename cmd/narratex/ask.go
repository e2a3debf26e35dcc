package narratex

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/narratex/narratex"
	"github.com/narratex/narratex/pkg/config"
	"github.com/narratex/narratex/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the knowledge base",
	Long: `Ask a question over the knowledge base from the command line.

With a question argument the command answers once and exits. Without one it
starts an interactive conversation that keeps session context between turns,
so follow-up questions can refer back to earlier answers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

var (
	askSessionID string
	askMode      string
	askTopK      int
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askSessionID, "session", "", "Session ID to continue")
	askCmd.Flags().StringVar(&askMode, "mode", "exploration", "Session mode (exploration, creation, learning)")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "Number of retrieval results (0 uses the configured default)")
	askCmd.Flags().String("kb-dir", "./kb", "Knowledge base snapshot directory")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("kb-dir") {
		cfg.KB.Dir, _ = cmd.Flags().GetString("kb-dir")
	}

	logger := buildLogger(cfg)
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()

	if len(args) == 1 {
		return askOnce(ctx, engine, args[0])
	}
	return askInteractive(ctx, engine)
}

func askOnce(ctx context.Context, engine *narratex.Engine, question string) error {
	answer, err := engine.Ask(ctx, question, narratex.AskOptions{
		SessionID: askSessionID,
		Mode:      types.Mode(askMode),
		TopK:      askTopK,
	})
	if err != nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func askInteractive(ctx context.Context, engine *narratex.Engine) error {
	fmt.Println("Interactive mode. Type a question, or 'exit' to quit.")

	sessionID := askSessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		answer, err := engine.Ask(ctx, question, narratex.AskOptions{
			SessionID: sessionID,
			Mode:      types.Mode(askMode),
			TopK:      askTopK,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = answer.SessionID
		printAnswer(answer)
	}
}

func printAnswer(answer *types.Answer) {
	fmt.Println()
	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		for i, src := range answer.Sources {
			fmt.Printf("  [%d] %s (%s) score=%.2f\n", i+1, src.ItemID, src.ItemType, src.RelevanceScore)
		}
	}
	fmt.Printf("\nconfidence=%.2f session=%s elapsed=%s\n", answer.Confidence, answer.SessionID, answer.Elapsed)
}
