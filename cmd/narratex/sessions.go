package narratex

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narratex/narratex/pkg/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored conversation sessions",
	Long: `List conversation sessions. Only sessions restored from durable storage
are visible here, so configure session.persist_path (or NARRATEX_SESSION_PATH)
to share sessions between the server and this command.`,
	RunE: runSessions,
}

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the turn history of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(historyCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := buildLogger(cfg)
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	ids := engine.Sessions().List()
	if len(ids) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, id := range ids {
		sess, err := engine.Sessions().Get(id)
		if err != nil {
			continue
		}
		fmt.Printf("%s  mode=%s  turns=%d  updated=%s\n",
			sess.ID, sess.Mode, len(sess.History)/2, sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := buildLogger(cfg)
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	history, err := engine.History(args[0])
	if err != nil {
		return err
	}
	for _, msg := range history {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
	return nil
}
