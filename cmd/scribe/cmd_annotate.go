package scribe

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjzar/scribe/internal/errors"
	"github.com/sjzar/scribe/internal/transcript"
)

var annotateFlags struct {
	names  string
	output string
}

var annotateCmd = &cobra.Command{
	Use:     "annotate <transcript.json>",
	Short:   "Replace speaker ids in a saved JSON transcript with names",
	Example: `  scribe annotate meeting.json --names "Alice,Bob" -o meeting.tex`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAnnotate,
}

func init() {
	annotateCmd.Flags().StringVar(&annotateFlags.names, "names", "", "comma separated names in speaker order")
	annotateCmd.Flags().StringVarP(&annotateFlags.output, "output", "o", "", "export file, format taken from the extension")
	_ = annotateCmd.MarkFlagRequired("names")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.InvalidSource(args[0], err.Error())
	}
	t, err := transcript.FromJSON(data)
	if err != nil {
		return err
	}
	if err := t.Annotate(transcript.ParseNames(annotateFlags.names), nil); err != nil {
		return err
	}
	if annotateFlags.output == "" {
		fmt.Fprint(cmd.OutOrStdout(), t.String())
		return nil
	}
	return t.Save(annotateFlags.output)
}
