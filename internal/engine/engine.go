package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gyaneshwarpardhi/scapslice/internal/analyzer"
	"github.com/gyaneshwarpardhi/scapslice/internal/config"
	"github.com/gyaneshwarpardhi/scapslice/internal/metrics"
	"github.com/gyaneshwarpardhi/scapslice/internal/oval"
	"github.com/gyaneshwarpardhi/scapslice/internal/rewrite"
	"github.com/gyaneshwarpardhi/scapslice/internal/scap"
	"github.com/gyaneshwarpardhi/scapslice/internal/xccdf"
	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// ErrNoMapping is returned when a batch carries neither a mapping nor a
// benchmark to derive one from.
var ErrNoMapping = errors.New("batch has no rule mapping and no benchmark")

// Batch is one extraction run over a benchmark's OVAL definitions.
type Batch struct {
	OVAL []byte
	// XCCDF is optional. When set, each item also gets its extracted rule
	// benchmark.
	XCCDF []byte
	// Mapping is derived from XCCDF when nil.
	Mapping scap.Mapping
	// Platform is detected from the documents when empty.
	Platform string
	// Rewrite runs the trustee rewrite on every extracted document.
	Rewrite bool
}

// Status is the outcome class of one item.
type Status string

const (
	StatusOK     Status = "ok"
	StatusManual Status = "manual"
	StatusFailed Status = "failed"
)

// Item is the result for one mapping entry.
type Item struct {
	Key            string                  `json:"key"`
	RuleID         string                  `json:"rule_id"`
	DefinitionID   string                  `json:"definition_id"`
	Status         Status                  `json:"status"`
	OVAL           []byte                  `json:"-"`
	XCCDF          []byte                  `json:"-"`
	Classification analyzer.Classification `json:"classification"`
	Rewritten      bool                    `json:"rewritten,omitempty"`
	Err            error                   `json:"-"`
	Error          string                  `json:"error,omitempty"`
	DurationMs     int64                   `json:"duration_ms"`
}

// Report is the outcome of a whole batch.
type Report struct {
	RunID       string                `json:"run_id"`
	Platform    analyzer.Platform     `json:"platform"`
	Fallback    bool                  `json:"fallback,omitempty"`
	Items       []*Item               `json:"items"`
	RegexIssues []analyzer.RegexIssue `json:"regex_issues"`
	// Err combines every failed item; nil when all succeeded.
	Err error `json:"-"`
}

// Count returns how many items ended with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Engine runs extraction batches.
type Engine struct {
	conf atomic.Pointer[config.Config]
}

// New creates an Engine using cfg.
func New(cfg *config.Config) *Engine {
	e := &Engine{}
	e.conf.Store(cfg)
	return e
}

// SwapConfig atomically replaces the configuration (used on hot-reload).
// Batches already running keep the config they started with.
func (e *Engine) SwapConfig(cfg *config.Config) {
	e.conf.Store(cfg)
}

// Config returns the configuration new batches will use.
func (e *Engine) Config() *config.Config {
	return e.conf.Load()
}

// Run builds the source graph once and extracts every mapping entry on the
// worker pool. A malformed input document fails the batch; per-item
// failures are recorded on the item and combined into Report.Err.
func (e *Engine) Run(ctx context.Context, b Batch) (*Report, error) {
	cfg := e.conf.Load()
	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	metrics.BatchesRun.Inc()

	g, err := oval.Build(b.OVAL, cfg.BuildOptions())
	if err != nil {
		return nil, fmt.Errorf("run %s: oval: %w", runID, err)
	}
	var doc *xccdf.Document
	if b.XCCDF != nil {
		if doc, err = xccdf.Parse(b.XCCDF); err != nil {
			return nil, fmt.Errorf("run %s: xccdf: %w", runID, err)
		}
	}
	mapping := b.Mapping
	if mapping == nil {
		if doc == nil {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNoMapping)
		}
		mapping = scap.RuleMapping(doc)
	}
	a, err := analyzer.New(g, cfg.AnalyzerOptions())
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	requested := b.Platform
	if requested == "" {
		var benchRoot *xmlquery.Node
		if doc != nil {
			benchRoot = doc.Root()
		}
		if p, ok := scap.DetectPlatform(benchRoot, g.Root()); ok {
			requested = string(p)
		}
	}
	platform, fallback := a.Resolve(requested)

	report := &Report{RunID: runID, Platform: platform, Fallback: fallback}
	for _, k := range mapping.Keys() {
		report.Items = append(report.Items, &Item{Key: k, DefinitionID: mapping[k]})
	}
	log.Info("batch started", "items", len(report.Items), "platform", platform, "fallback", fallback)

	w := &runner{
		cfg:      cfg,
		g:        g,
		doc:      doc,
		a:        a,
		rw:       rewrite.New(cfg.Rewriter),
		platform: string(platform),
		rewrite:  b.Rewrite,
		log:      log,
	}
	pool := newWorkerPool(ctx, cfg.Engine.Workers, cfg.Engine.QueueDepth, w.process)
	for _, it := range report.Items {
		if err := pool.SubmitWait(ctx, it); err != nil {
			break
		}
		if pool.QueueCap() > 0 {
			metrics.QueueUtilization.Set(float64(pool.QueueLen()) / float64(pool.QueueCap()))
		}
	}
	pool.Drain()
	metrics.QueueUtilization.Set(0)

	for _, it := range report.Items {
		if it.Status == "" {
			// never picked up before cancellation
			it.Status = StatusFailed
			it.Err = context.Cause(ctx)
			if it.Err == nil {
				it.Err = errors.New("item not processed")
			}
			metrics.ItemsProcessed.WithLabelValues(string(StatusFailed)).Inc()
		}
		if it.Err != nil {
			it.Error = it.Err.Error()
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s: %w", it.Key, it.Err))
		}
	}

	report.RegexIssues = a.RegexIssues()
	for _, is := range report.RegexIssues {
		metrics.RegexIssues.WithLabelValues(is.Reason).Inc()
	}

	log.Info("batch finished",
		"ok", report.Count(StatusOK),
		"manual", report.Count(StatusManual),
		"failed", report.Count(StatusFailed),
		"regex_issues", len(report.RegexIssues),
	)
	return report, nil
}

// FullBenchmark retains the union of definitions mapped from the included
// rule ids (every mapped rule when included is nil) and serializes the
// result. Mapped definitions absent from the document are returned as
// missing rather than failing the call.
func (e *Engine) FullBenchmark(b Batch, included []string) (out []byte, missing []string, err error) {
	cfg := e.conf.Load()
	g, err := oval.Build(b.OVAL, cfg.BuildOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("full benchmark: oval: %w", err)
	}
	mapping := b.Mapping
	if mapping == nil {
		if b.XCCDF == nil {
			return nil, nil, fmt.Errorf("full benchmark: %w", ErrNoMapping)
		}
		doc, err := xccdf.Parse(b.XCCDF)
		if err != nil {
			return nil, nil, fmt.Errorf("full benchmark: xccdf: %w", err)
		}
		mapping = scap.RuleMapping(doc)
	}
	if included == nil {
		for _, k := range mapping.Keys() {
			included = append(included, scap.BaseID(k))
		}
	}

	var roots []string
	for _, def := range mapping.DefinitionsFor(included) {
		if !g.Has(def) {
			missing = append(missing, def)
			continue
		}
		roots = append(roots, def)
	}
	if len(missing) > 0 {
		slog.Warn("mapped definitions missing from oval", "count", len(missing), "ids", missing)
	}
	if err := g.RetainReachableFrom(roots); err != nil {
		return nil, missing, fmt.Errorf("full benchmark: %w", err)
	}
	return g.Serialize(cfg.SerializeOptions()), missing, nil
}

// runner carries the read-only state shared by the workers of one batch.
type runner struct {
	cfg      *config.Config
	g        *oval.Graph
	doc      *xccdf.Document
	a        *analyzer.Analyzer
	rw       *rewrite.Rewriter
	platform string
	rewrite  bool
	log      *slog.Logger
}

func (r *runner) process(ctx context.Context, it *Item) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		it.DurationMs = elapsed.Milliseconds()
		metrics.ItemDuration.Observe(float64(elapsed) / float64(time.Millisecond))
		metrics.ItemsProcessed.WithLabelValues(string(it.Status)).Inc()
	}()

	it.RuleID = r.ruleID(it.Key)
	if err := ctx.Err(); err != nil {
		r.fail(it, err)
		return
	}
	if it.DefinitionID == "" || it.DefinitionID == scap.ManualRule {
		it.Status = StatusManual
		r.log.Debug("manual rule skipped", "rule", it.RuleID)
		return
	}

	sub := r.g.Clone()
	if err := sub.RetainReachableFrom([]string{it.DefinitionID}); err != nil {
		r.fail(it, err)
		return
	}
	it.OVAL = sub.Serialize(r.cfg.SerializeOptions())

	cls, err := r.a.Classify(it.DefinitionID, r.platform)
	if err != nil {
		r.fail(it, err)
		return
	}
	it.Classification = cls
	if !cls.Supported {
		metrics.UnsupportedDefinitions.WithLabelValues(string(cls.Platform)).Inc()
	}

	var ext *xccdf.Document
	if r.doc != nil {
		if ext, err = r.doc.ExtractRule(it.RuleID); err != nil {
			r.fail(it, err)
			return
		}
	}

	if r.rewrite {
		if err := r.rewriteItem(it, ext); err != nil {
			r.fail(it, err)
			return
		}
	}
	if ext != nil {
		it.XCCDF = ext.Bytes()
	}
	it.Status = StatusOK
}

// rewriteItem swaps the item's OVAL for its rewritten form and patches the
// extracted rule. A title without a value list leaves the item unchanged.
func (r *runner) rewriteItem(it *Item, ext *xccdf.Document) error {
	in := rewrite.Input{RuleID: it.RuleID, OVAL: it.OVAL}
	if ext != nil {
		if rule, ok := ext.Rule(it.RuleID); ok {
			in.Title = xmltree.Text(xmltree.Child(rule, "title"))
		}
	}
	res, err := r.rw.Rewrite(in)
	if errors.Is(err, rewrite.ErrTitlePattern) {
		r.log.Warn("rewrite skipped", "rule", it.RuleID, "err", err)
		return nil
	}
	if err != nil || res == nil {
		return err
	}
	if ext != nil {
		if _, err := ext.ApplyPatch(res.Patch); err != nil {
			return err
		}
	}
	it.OVAL = res.OVAL
	it.Rewritten = true
	return nil
}

// ruleID resolves a mapping key to a rule id: the key itself when the
// benchmark has such a rule, otherwise the key without its check suffix.
func (r *runner) ruleID(key string) string {
	if r.doc != nil {
		if _, ok := r.doc.Rule(key); ok {
			return key
		}
	}
	return scap.BaseID(key)
}

func (r *runner) fail(it *Item, err error) {
	it.Status = StatusFailed
	it.Err = err
	r.log.Warn("item failed", "key", it.Key, "definition", it.DefinitionID, "err", err)
}
