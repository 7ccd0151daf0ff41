package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
)

func parseBenchmark(path string) (*xccdf.Document, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return xccdf.Parse(data)
}

var extractRuleOut string

var extractRuleCmd = &cobra.Command{
	Use:   "extract-rule <xccdf> <rule-id>",
	Short: "Cut one rule, its group chain and referenced values out of a benchmark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := parseBenchmark(args[0])
		if err != nil {
			return err
		}
		ext, err := doc.ExtractRule(args[1])
		if err != nil {
			return err
		}
		return writeOutput(cmd, extractRuleOut, ext.Bytes())
	},
}

var mergeXCCDFOut string

var mergeXCCDFCmd = &cobra.Command{
	Use:   "merge-xccdf <master> <fragment>...",
	Short: "Fold edited rule fragments back into a master benchmark",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		master, err := parseBenchmark(args[0])
		if err != nil {
			return err
		}
		frags := make([]*xccdf.Document, 0, len(args)-1)
		for _, path := range args[1:] {
			f, err := parseBenchmark(path)
			if err != nil {
				return err
			}
			frags = append(frags, f)
		}
		merged, rep := xccdf.Merge(master, frags...)
		slog.Info("merged benchmark", "replaced", len(rep.Replaced), "added", len(rep.Added))
		for _, id := range rep.Added {
			slog.Debug("element added", "element", id)
		}
		return writeOutput(cmd, mergeXCCDFOut, merged.Bytes())
	},
}

func init() {
	extractRuleCmd.Flags().StringVarP(&extractRuleOut, "out", "o", "", "Output file (stdout when empty)")
	mergeXCCDFCmd.Flags().StringVarP(&mergeXCCDFOut, "out", "o", "", "Output file (stdout when empty)")
	rootCmd.AddCommand(extractRuleCmd, mergeXCCDFCmd)
}
