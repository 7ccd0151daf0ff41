package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/artifact"
	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/scap"
)

func buildGraph(path string) (*oval.Graph, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return oval.Build(data, eng.Config().BuildOptions())
}

var (
	subsetOut     string
	subsetXCCDF   string
	subsetMapping string
	subsetRules   []string
)

var subsetCmd = &cobra.Command{
	Use:   "subset <oval> [definition-id...]",
	Short: "Keep only the given definitions (or the definitions of the given rules) and what they reference",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return subsetByRules(cmd, args[0])
		}
		g, err := buildGraph(args[0])
		if err != nil {
			return err
		}
		if err := g.RetainReachableFrom(args[1:]); err != nil {
			return err
		}
		slog.Info("subset built", "definitions", len(g.Definitions()), "nodes", g.NodeCount())
		return writeOutput(cmd, subsetOut, g.Serialize(eng.Config().SerializeOptions()))
	},
}

func subsetByRules(cmd *cobra.Command, ovalPath string) error {
	f := batchFlags{oval: ovalPath, xccdf: subsetXCCDF, mapping: subsetMapping}
	b, err := f.batch()
	if err != nil {
		return err
	}
	var included []string
	if len(subsetRules) > 0 {
		included = subsetRules
	}
	data, missing, err := eng.FullBenchmark(b, included)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		slog.Warn("mapped definitions not in oval", "ids", missing)
	}
	return writeOutput(cmd, subsetOut, data)
}

var (
	pruneOut           string
	pruneReverseExtend bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune <oval> <definition-id>...",
	Short: "Delete definitions and everything only they reference",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph(args[0])
		if err != nil {
			return err
		}
		opts := eng.Config().CascadeOptions()
		if cmd.Flags().Changed("reverse-extend") {
			opts.ReverseExtend = pruneReverseExtend
		}
		for _, id := range args[1:] {
			if !g.Has(id) {
				// already removed by an earlier cascade
				slog.Debug("definition already gone", "id", id)
				continue
			}
			if err := g.CascadeDelete(id, opts); err != nil {
				return err
			}
		}
		slog.Info("pruned", "definitions", len(g.Definitions()), "nodes", g.NodeCount())
		return writeOutput(cmd, pruneOut, g.Serialize(eng.Config().SerializeOptions()))
	},
}

var analyzePlatform string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <oval> [definition-id...]",
	Short: "Classify definitions against the target platform's probe capabilities",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph(args[0])
		if err != nil {
			return err
		}
		a, err := analyzer.New(g, eng.Config().AnalyzerOptions())
		if err != nil {
			return err
		}
		platform := analyzePlatform
		if platform == "" {
			if p, ok := scap.DetectPlatform(nil, g.Root()); ok {
				platform = string(p)
			}
		}
		if len(args) == 1 {
			return printJSON(cmd, a.ClassifyAll(platform))
		}
		var out []analyzer.Classification
		for _, id := range args[1:] {
			c, err := a.Classify(id, platform)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return printJSON(cmd, out)
	},
}

var regexCmd = &cobra.Command{
	Use:   "regex <oval>",
	Short: "Report pattern-match expressions an RE2 engine cannot evaluate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := buildGraph(args[0])
		if err != nil {
			return err
		}
		a, err := analyzer.New(g, eng.Config().AnalyzerOptions())
		if err != nil {
			return err
		}
		issues := a.RegexIssues()
		if issues == nil {
			issues = []analyzer.RegexIssue{}
		}
		return printJSON(cmd, issues)
	},
}

var (
	mergeOVALOut   string
	mergeOVALStore string
)

var mergeOVALCmd = &cobra.Command{
	Use:   "merge-oval [oval...]",
	Short: "Merge single-rule OVAL documents; the first occurrence of an id wins",
	RunE: func(cmd *cobra.Command, args []string) error {
		var docs [][]byte
		if mergeOVALStore != "" {
			stored, err := artifact.NewLocalStore(mergeOVALStore).LoadOVAL(cmd.Context())
			if err != nil {
				return err
			}
			docs = append(docs, stored...)
		}
		for _, path := range args {
			data, err := readInput(path)
			if err != nil {
				return err
			}
			docs = append(docs, data)
		}
		if len(docs) == 0 {
			return cmd.Usage()
		}
		out, err := oval.Merge(eng.Config().SerializeOptions(), docs...)
		if err != nil {
			return err
		}
		slog.Info("merged oval documents", "documents", len(docs))
		return writeOutput(cmd, mergeOVALOut, out)
	},
}

func init() {
	subsetCmd.Flags().StringVarP(&subsetOut, "out", "o", "", "Output file (stdout when empty)")
	subsetCmd.Flags().StringVar(&subsetXCCDF, "xccdf", "", "XCCDF benchmark the rule mapping is derived from")
	subsetCmd.Flags().StringVar(&subsetMapping, "mapping", "", "JSON rule id to definition id map")
	subsetCmd.Flags().StringSliceVar(&subsetRules, "rule", nil, "Rule ids to include (all mapped rules when empty)")

	pruneCmd.Flags().StringVarP(&pruneOut, "out", "o", "", "Output file (stdout when empty)")
	pruneCmd.Flags().BoolVar(&pruneReverseExtend, "reverse-extend", false, "Also delete definitions that extend a deleted one")

	analyzeCmd.Flags().StringVar(&analyzePlatform, "platform", "", "Target platform (detected when empty)")

	mergeOVALCmd.Flags().StringVarP(&mergeOVALOut, "out", "o", "", "Output file (stdout when empty)")
	mergeOVALCmd.Flags().StringVar(&mergeOVALStore, "store", "", "Merge every OVAL document of an extract output directory")

	rootCmd.AddCommand(subsetCmd, pruneCmd, analyzeCmd, regexCmd, mergeOVALCmd)
}
