package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	cfgPkg "github.com/xhad/hybridrag/pkg/config"
)

var (
	configPath string
	collection string
	storeURL   string
	driver     string
	profile    string

	cfg *cfgPkg.Config
)

var rootCmd = &cobra.Command{
	Use:   "hybridrag",
	Short: "Hybrid retrieval-augmented question answering over local documents",
	Long: `hybridrag ingests a folder of PDF, DOCX, text and HTML files into a vector
collection and answers questions from it. Candidates returned by the vector
store are reranked with a weighted mix of vector, TF-IDF and BM25 scores
before the best one is handed to the language model.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&collection, "collection", "c", "", "vector collection name")
	rootCmd.PersistentFlags().StringVar(&driver, "store", "", "vector store driver (pgvector or memory)")
	rootCmd.PersistentFlags().StringVar(&storeURL, "db-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "ranking profile (native or cross-lingual)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if collection != "" {
		c.Store.Collection = collection
	}
	if driver != "" {
		c.Store.Driver = driver
	}
	if storeURL != "" {
		c.Store.URL = storeURL
	}
	if profile != "" {
		c.Ranking.Profile = profile
	}

	if errs := c.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(c.Log.Level),
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer:         os.Stderr,
			ColorOutput:    true,
			EndWithMessage: true,
		},
	}

	cfg = c
	return nil
}
