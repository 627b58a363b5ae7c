package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/hybridrag/pkg/llm"
	"github.com/xhad/hybridrag/pkg/rag"
)

var (
	askDirect  bool
	askTask    string
	askVerbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question from the collection",
	Long: `Ask embeds the question, queries the collection for the closest chunks,
reranks them and answers from the best match. With --direct the question is
sent straight to the model, framed by the prompt for --task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askDirect, "direct", false, "skip retrieval and ask the model directly")
	askCmd.Flags().StringVar(&askTask, "task", llm.DefaultTask, "prompt type for --direct: "+strings.Join(llm.Tasks(), ", "))
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "show the selected context and its scores")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner("🤖 Generating response...")
	var answer string
	if askDirect {
		answer, err = a.chat.Generate(ctx, llm.TaskPrompt(askTask, question))
	} else {
		answer, err = askRAG(cmd, a, question)
	}
	spinner.Finish()
	fmt.Print("\r")

	if errors.Is(err, rag.ErrNoMatch) {
		color.Yellow("No matching context in collection %s", cfg.Store.Collection)
		return nil
	}
	if err != nil {
		return err
	}

	color.Cyan("Assistant: %s", answer)
	return nil
}

func askRAG(cmd *cobra.Command, a *app, question string) (string, error) {
	if !askVerbose {
		return a.answerer.Answer(cmd.Context(), cfg.Store.Collection, question)
	}

	result, err := a.retriever.Retrieve(cmd.Context(), cfg.Store.Collection, question)
	if err != nil {
		return "", err
	}
	fmt.Print("\r")
	color.Blue("Context [%s] %s (vector %.3f, tfidf %.3f, bm25 %.3f, combined %.3f)",
		a.ranker.Profile().Name, result.Candidate.ID,
		result.Vector, result.TFIDF, result.BM25, result.Combined)
	fmt.Println(result.Candidate.Raw)

	return a.chat.Generate(cmd.Context(), llm.AnswerPrompt(result.Candidate.Raw, question))
}
