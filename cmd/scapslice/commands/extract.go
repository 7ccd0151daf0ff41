package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/scapslice/internal/artifact"
	"github.com/gyaneshwarpardhi/scapslice/internal/engine"
	"github.com/gyaneshwarpardhi/scapslice/internal/scap"
	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
)

// batchFlags are shared by the commands that run a batch.
type batchFlags struct {
	oval     string
	xccdf    string
	mapping  string
	platform string
	rewrite  bool
	out      string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.oval, "oval", "", "OVAL definitions file")
	cmd.Flags().StringVar(&f.xccdf, "xccdf", "", "XCCDF benchmark file")
	cmd.Flags().StringVar(&f.mapping, "mapping", "", "JSON rule id to definition id map (derived from --xccdf when empty)")
	cmd.Flags().StringVar(&f.platform, "platform", "", "Target platform: windows, linux, macos (detected when empty)")
	cmd.Flags().BoolVar(&f.rewrite, "rewrite", false, "Apply the trustee rewrite to every extracted rule")
	cmd.Flags().StringVarP(&f.out, "out", "o", "out", "Output directory")
	_ = cmd.MarkFlagRequired("oval")
}

func (f *batchFlags) batch() (engine.Batch, error) {
	b := engine.Batch{Platform: f.platform, Rewrite: f.rewrite}
	var err error
	if b.OVAL, err = readInput(f.oval); err != nil {
		return b, err
	}
	if f.xccdf != "" {
		if b.XCCDF, err = readInput(f.xccdf); err != nil {
			return b, err
		}
	}
	if f.mapping != "" {
		if b.Mapping, err = scap.LoadMapping(f.mapping); err != nil {
			return b, err
		}
	}
	return b, nil
}

var (
	extractFlags batchFlags
	extractFull  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract one OVAL (and XCCDF) document per benchmark rule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := extractFlags.batch()
		if err != nil {
			return err
		}
		rep, err := runBatch(cmd, b, extractFlags.out)
		if err != nil {
			return err
		}
		if extractFull {
			data, missing, err := eng.FullBenchmark(b, nil)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				slog.Warn("full benchmark is missing definitions", "ids", missing)
			}
			if err := writeOutput(cmd, filepath.Join(extractFlags.out, "full-oval.xml"), data); err != nil {
				return err
			}
		}
		return printJSON(cmd, summary(rep))
	},
}

func init() {
	extractFlags.register(extractCmd)
	extractCmd.Flags().BoolVar(&extractFull, "full", false, "Also write the whole-benchmark OVAL of every mapped rule")
	rootCmd.AddCommand(extractCmd)
}

// runBatch runs one batch, stores its artifacts under out and publishes the
// report to the ops server.
func runBatch(cmd *cobra.Command, b engine.Batch, out string) (*engine.Report, error) {
	rep, err := eng.Run(cmd.Context(), b)
	if err != nil {
		return nil, err
	}
	ops.SetReport(rep)
	store := artifact.NewLocalStore(out)
	if err := store.SaveReport(cmd.Context(), rep); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}
	if rep.Err != nil {
		slog.Warn("batch finished with failures", "run_id", rep.RunID, "failed", rep.Count(engine.StatusFailed))
	}
	return rep, nil
}

type batchSummary struct {
	RunID       string `json:"run_id"`
	Platform    string `json:"platform"`
	OK          int    `json:"ok"`
	Manual      int    `json:"manual"`
	Failed      int    `json:"failed"`
	Unsupported int    `json:"unsupported"`
	RegexIssues int    `json:"regex_issues"`
}

func summary(rep *engine.Report) batchSummary {
	s := batchSummary{
		RunID:       rep.RunID,
		Platform:    string(rep.Platform),
		OK:          rep.Count(engine.StatusOK),
		Manual:      rep.Count(engine.StatusManual),
		Failed:      rep.Count(engine.StatusFailed),
		RegexIssues: len(rep.RegexIssues),
	}
	for _, it := range rep.Items {
		if it.Status == engine.StatusOK && !it.Classification.Supported {
			s.Unsupported++
		}
	}
	return s
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var splitOut string

var splitCmd = &cobra.Command{
	Use:   "split <datastream>",
	Short: "Split an SCAP source data stream into its XCCDF, OVAL and CPE components",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		comps, err := scap.SplitDataStream(data)
		if err != nil {
			return err
		}
		for _, k := range []scap.Component{scap.ComponentXCCDF, scap.ComponentOVAL, scap.ComponentCPEOVAL, scap.ComponentCPEDictionary} {
			b, ok := comps.Bytes(k)
			if !ok {
				slog.Debug("component not present", "component", k)
				continue
			}
			if err := writeOutput(cmd, filepath.Join(splitOut, k.FileName()), b); err != nil {
				return err
			}
		}
		if p, ok := scap.DetectPlatform(comps[scap.ComponentXCCDF], comps[scap.ComponentOVAL]); ok {
			slog.Info("platform detected", "platform", p)
		}
		root := comps[scap.ComponentXCCDF]
		if root == nil {
			return nil
		}
		doc, err := xccdf.FromRoot(root)
		if err != nil {
			return err
		}
		m := scap.RuleMapping(doc)
		path := filepath.Join(splitOut, "mapping.json")
		if err := m.Save(path); err != nil {
			return err
		}
		slog.Info("wrote rule mapping", "path", path, "rules", len(m))
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", ".", "Output directory")
	rootCmd.AddCommand(splitCmd)
}
