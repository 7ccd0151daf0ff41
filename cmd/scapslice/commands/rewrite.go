package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/scapslice/internal/rewrite"
)

var (
	rewriteRule     string
	rewriteTitle    string
	rewriteOut      string
	rewriteXCCDF    string
	rewriteXCCDFOut string
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <oval>",
	Short: "Canonicalize a single-rule OVAL document and bind trustee checks to a variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		res, err := rewrite.New(eng.Config().Rewriter).Rewrite(rewrite.Input{
			RuleID: rewriteRule,
			Title:  rewriteTitle,
			OVAL:   data,
		})
		if err != nil {
			return err
		}
		if res == nil {
			slog.Info("no trustee check found, document left unchanged", "rule", rewriteRule)
			return writeOutput(cmd, rewriteOut, data)
		}
		slog.Info("rewrote document", "rule", rewriteRule, "definition", res.NewDefinitionID,
			"variables", len(res.Variables), "pattern", res.Pattern)

		if rewriteXCCDF != "" {
			doc, err := parseBenchmark(rewriteXCCDF)
			if err != nil {
				return err
			}
			rep, err := doc.ApplyPatch(res.Patch)
			if err != nil {
				return err
			}
			slog.Info("patched benchmark", "exports", len(rep.ExportsAdded), "values", len(rep.ValuesAdded))
			out := rewriteXCCDFOut
			if out == "" {
				out = rewriteXCCDF
			}
			if err := writeOutput(cmd, out, doc.Bytes()); err != nil {
				return err
			}
		}
		return writeOutput(cmd, rewriteOut, res.OVAL)
	},
}

func init() {
	rewriteCmd.Flags().StringVar(&rewriteRule, "rule", "", "Rule id the document was extracted for")
	rewriteCmd.Flags().StringVar(&rewriteTitle, "title", "", "Rule title holding the quoted trustee list (definition title when empty)")
	rewriteCmd.Flags().StringVarP(&rewriteOut, "out", "o", "", "Output file (stdout when empty)")
	rewriteCmd.Flags().StringVar(&rewriteXCCDF, "xccdf", "", "Benchmark to patch with the new check-export bindings and values")
	rewriteCmd.Flags().StringVar(&rewriteXCCDFOut, "xccdf-out", "", "Where to write the patched benchmark (in place when empty)")
	_ = rewriteCmd.MarkFlagRequired("rule")
	rootCmd.AddCommand(rewriteCmd)
}
