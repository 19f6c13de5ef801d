package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/prdforge/internal/app"
	"github.com/ternarybob/prdforge/internal/logger"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/store"
)

// Generate command flags
var (
	answersFlag []string
	saveFlag    bool
	titleFlag   string
	formatFlag  string
)

var generateCmd = &cobra.Command{
	Use:   "generate [idea]",
	Short: "Generate a PRD from the command line",
	Long: `Generate a product requirements document for an idea. The idea is read
from the arguments, or from stdin when no arguments are given.

Examples:
  prdforge generate "a shared grocery list for roommates"
  prdforge generate --answer "Roommates" --answer "Splitting costs" "grocery app"
  cat idea.txt | prdforge generate --save --title "Grocery" --format markdown
`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringArrayVarP(&answersFlag, "answer", "a", nil, "Answer to a clarifying question (repeatable)")
	generateCmd.Flags().BoolVar(&saveFlag, "save", false, "Save the generated PRD as a draft")
	generateCmd.Flags().StringVar(&titleFlag, "title", "", "Title used when saving")
	generateCmd.Flags().StringVarP(&formatFlag, "format", "f", "json", "Output format (json, markdown)")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if formatFlag != "json" && formatFlag != "markdown" {
		return fmt.Errorf("unknown format %q (want json or markdown)", formatFlag)
	}

	idea, err := readIdea(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg, false)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Shutdown()

	doc, err := a.Orchestrator.RunWithAnswers(ctx, idea, answersFlag)
	if err != nil {
		return err
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "markdown" {
		fmt.Fprintln(out, prd.Markdown(doc))
	} else {
		fmt.Fprintln(out, string(content))
	}

	if saveFlag {
		saved, err := a.Documents.Create(ctx, store.CreateInput{Title: titleFlag, Content: content})
		if err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %q as %s\n", saved.Title, saved.ID)
	}
	return nil
}

// readIdea joins args, falling back to r when there are none.
func readIdea(args []string, r io.Reader) (string, error) {
	idea := strings.TrimSpace(strings.Join(args, " "))
	if idea == "" && r != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read idea from stdin: %w", err)
		}
		idea = strings.TrimSpace(string(data))
	}
	if idea == "" {
		return "", fmt.Errorf("an idea is required")
	}
	return idea, nil
}
