package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/social-studio/internal/workflow"
)

var generateInput string

var generateCmd = &cobra.Command{
	Use:       "generate <kind>",
	Short:     "Run one content workflow and print the result as JSON",
	Long:      "Runs a content workflow over --input (or stdin when --input is \"-\") and prints the extracted fields.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := workflow.Kind(args[0])
		if _, ok := workflow.Schema(kind); !ok {
			return eris.Errorf("unknown workflow %q (want one of %s)", args[0], strings.Join(kindNames(), ", "))
		}

		input, err := readInput(cmd.InOrStdin(), generateInput)
		if err != nil {
			return err
		}

		if err := cfg.Validate("generate"); err != nil {
			return err
		}
		orch, err := newOrchestrator(cfg, newMetrics(cfg))
		if err != nil {
			return err
		}

		rec, err := orch.Run(cmd.Context(), kind, input)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func kindNames() []string {
	kinds := workflow.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// readInput returns flag, or all of r when flag is "-".
func readInput(r io.Reader, flag string) (string, error) {
	if flag == "-" {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		flag = string(b)
	}
	if strings.TrimSpace(flag) == "" {
		return "", eris.New("--input is required")
	}
	return flag, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	generateCmd.Flags().StringVar(&generateInput, "input", "", "input text (\"-\" reads stdin)")
	rootCmd.AddCommand(generateCmd)
}
