package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/hybridrag/pkg/ingest"
)

var (
	ingestWorkers int
	ingestStartID int
	ingestTopics  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Load, chunk, embed and store every document in a folder",
	Long: `Ingest loads every PDF, DOCX, text and HTML file directly inside folder,
splits the text into chunks, embeds them in batches and upserts them into the
collection. Files that cannot be read and batches that fail to embed are
reported and skipped; ids of a skipped batch are not reused.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent embedding batches (default from config)")
	ingestCmd.Flags().IntVar(&ingestStartID, "start-id", -1, "first record id (default from config)")
	ingestCmd.Flags().BoolVar(&ingestTopics, "topics", false, "print the most frequent words of each document")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if ingestWorkers > 0 {
		cfg.Ingest.Workers = ingestWorkers
	}
	if ingestStartID >= 0 {
		cfg.Ingest.StartID = ingestStartID
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in := a.ingestor
	if ingestTopics {
		in = in.WithTopics(cfg.Ingest.Topics)
	}

	report, finish := ingestProgress()
	color.Blue("\nStarting ingestion of %s into %s\n", args[0], cfg.Store.Collection)

	summary, err := in.WithProgress(report).IngestFolder(ctx, args[0], cfg.Store.Collection)
	finish()
	if err != nil {
		return fmt.Errorf("failed to ingest folder: %w", err)
	}

	printSummary(summary)
	return nil
}

func printSummary(s *ingest.Summary) {
	fmt.Println()
	color.Green("✓ Loaded %d documents", s.Documents)
	for _, u := range s.Unsupported {
		color.Yellow("  skipped %s: %s", u.Path, u.Reason)
	}

	if len(s.Topics) > 0 {
		ids := make([]string, 0, len(s.Topics))
		for id := range s.Topics {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			color.Cyan("  %s: %s", id, strings.Join(s.Topics[id], ", "))
		}
	}

	color.Green("✓ Stored %d of %d chunks in %d batches (%s)", s.Upserted, s.Chunks, s.Batches, s.Duration.Round(time.Millisecond))
	for _, b := range s.SkippedBatches {
		color.Red("  batch %d (ids %d-%d) skipped: %v", b.Index, b.FirstID, b.FirstID+b.Size-1, b.Err)
	}
	if !s.Complete() {
		color.Yellow("Ingestion finished with %d skipped batches", len(s.SkippedBatches))
	}
	color.Blue("Next free id: %d", s.NextID)
}
