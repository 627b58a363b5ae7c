package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/hybridrag/pkg/session"
)

var chatMode string

const chatHelp = `Chat opens an interactive conversation. In default mode the model sees the
whole record; in rag mode every question is answered from the collection.

Commands:
  /mode default|rag    switch answering mode
  /collection <name>   switch collection
  /ingest <folder>     ingest a folder into the current collection
  /new                 start a new chat record
  /list                list chat records
  /select <n>          switch to chat record n
  exit                 quit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long:  chatHelp,
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", string(session.ModeDefault), "answering mode (default or rag)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mode, err := session.ParseMode(chatMode)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession()
	sess.SetMode(mode)

	// Interactive chat loop with colored output
	color.Cyan("\nChat with your knowledge base (type 'exit' to quit, /help for commands)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	assistantPrompt("\nAssistant: %s\n", session.Greeting)

	for {
		userPrompt("\nYou [%s/%s]: ", sess.Mode(), sess.Collection())
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}
		if strings.HasPrefix(query, "/") {
			if err := chatCommand(cmd, a, sess, query); err != nil {
				color.Red("Error: %v", err)
			}
			continue
		}

		spinner := getSpinner("🤖 Generating response...")
		reply, err := sess.Ask(ctx, query)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		assistantPrompt("Assistant: %s\n", reply.Content)
	}

	return scanner.Err()
}

func chatCommand(cmd *cobra.Command, a *app, sess *session.Session, line string) error {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help":
		fmt.Println(chatHelp)

	case "mode":
		mode, err := session.ParseMode(arg)
		if err != nil {
			return err
		}
		sess.SetMode(mode)
		color.Blue("Mode set to %s", mode)

	case "collection":
		if err := sess.SetCollection(arg); err != nil {
			return err
		}
		color.Blue("Collection set to %s", arg)

	case "ingest":
		if arg == "" {
			return fmt.Errorf("usage: /ingest <folder>")
		}
		report, finish := ingestProgress()
		summary, err := a.ingestor.WithProgress(report).IngestFolder(cmd.Context(), arg, sess.Collection())
		finish()
		if err != nil {
			return fmt.Errorf("failed to ingest folder: %w", err)
		}
		printSummary(summary)

	case "new":
		sess.NewChat()
		color.Cyan("Assistant: %s", session.Greeting)

	case "list":
		current := sess.Current()
		for i, title := range sess.Titles() {
			marker := " "
			if i == current {
				marker = "*"
			}
			fmt.Printf("%s %d. %s\n", marker, i, title)
		}

	case "select":
		i, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("usage: /select <n>")
		}
		if err := sess.Select(i); err != nil {
			return err
		}
		for _, m := range sess.Messages() {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}

	default:
		return fmt.Errorf("unknown command /%s", name)
	}
	return nil
}
