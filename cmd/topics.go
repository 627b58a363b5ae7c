package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/hybridrag/pkg/loader"
	"github.com/xhad/hybridrag/pkg/topics"
)

var topicsCount int

// topicsCmd only reads files, so it skips config validation.
var topicsCmd = &cobra.Command{
	Use:               "topics <folder|file>...",
	Short:             "Print the most frequent words of each document",
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runTopics,
}

func init() {
	topicsCmd.Flags().IntVarP(&topicsCount, "count", "n", topics.DefaultCount, "number of words per document")
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(cmd *cobra.Command, args []string) error {
	registry := loader.NewRegistry()

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return fmt.Errorf("failed to read folder: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && registry.Supported(e.Name()) {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}

	for _, path := range files {
		doc, err := registry.Load(cmd.Context(), path)
		if errors.Is(err, loader.ErrUnsupported) || errors.Is(err, loader.ErrEmptyDocument) {
			color.Yellow("%s: %v", path, err)
			continue
		}
		if err != nil {
			return err
		}
		color.Cyan("%s", doc.ID)
		fmt.Println("  " + strings.Join(topics.Extract(doc.Content, topicsCount), ", "))
	}
	return nil
}
