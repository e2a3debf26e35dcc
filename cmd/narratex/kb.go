package narratex

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narratex/narratex/pkg/config"
	"github.com/narratex/narratex/pkg/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect a knowledge base snapshot",
	Long: `Inspect a knowledge base snapshot: derived video metadata and per-family
record counts. Useful for checking what the ingestion pipeline produced
before serving it.`,
	RunE: runKB,
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.Flags().String("kb-dir", "./kb", "Knowledge base snapshot directory")
}

func runKB(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("kb-dir") {
		cfg.KB.Dir, _ = cmd.Flags().GetString("kb-dir")
	}

	logger := buildLogger(cfg)
	store, err := kb.NewStore(cfg.KB.Dir, logger)
	if err != nil {
		return err
	}

	md, err := store.Metadata()
	if err != nil {
		return err
	}

	fmt.Printf("Video:    %s (%s)\n", md.Title, md.VideoID)
	fmt.Printf("Duration: %dm%02ds\n", md.DurationMs/60000, md.DurationMs%60000/1000)
	fmt.Printf("Atoms:    %d\n", md.AtomCount)
	fmt.Printf("Segments: %d\n", md.SegmentCount)
	fmt.Printf("Entities: %d\n", md.EntityCount)

	topics, err := store.Topics()
	if err != nil {
		return err
	}
	fmt.Printf("Topics:   %d\n", len(topics))

	g, err := store.Graph()
	if err != nil {
		return err
	}
	fmt.Printf("Graph:    %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))

	clips, err := store.Clips()
	if err != nil {
		return err
	}
	fmt.Printf("Clips:    %d\n", len(clips))
	return nil
}
