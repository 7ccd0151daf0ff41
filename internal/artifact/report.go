package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/scapslice/internal/engine"
)

// Output directories and the report file name.
const (
	OVALDir    = "oval"
	XCCDFDir   = "xccdf"
	ReportFile = "report.json"
)

// SaveReport writes every successful item's documents under OVALDir and
// XCCDFDir, merges the file-name maps with any already stored, and writes
// the report itself.
func (s *LocalStore) SaveReport(ctx context.Context, rep *engine.Report) error {
	ovalNames, err := s.LoadFilenames(ctx, OVALDir)
	if err != nil {
		return err
	}
	xccdfNames, err := s.LoadFilenames(ctx, XCCDFDir)
	if err != nil {
		return err
	}

	for _, it := range rep.Items {
		if it.Status != engine.StatusOK {
			continue
		}
		// mapping keys stay distinct for multi-check rules
		name := RuleKey(it.Key)
		if err := s.PutBytes(ctx, OVALDir+"/"+name, it.OVAL); err != nil {
			return fmt.Errorf("save %s: %w", it.Key, err)
		}
		ovalNames[it.Key] = name
		if it.XCCDF != nil {
			if err := s.PutBytes(ctx, XCCDFDir+"/"+name, it.XCCDF); err != nil {
				return fmt.Errorf("save %s: %w", it.Key, err)
			}
			xccdfNames[it.Key] = name
		}
	}

	if err := s.SaveFilenames(ctx, OVALDir, ovalNames); err != nil {
		return err
	}
	if len(xccdfNames) > 0 {
		if err := s.SaveFilenames(ctx, XCCDFDir, xccdfNames); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.PutBytes(ctx, ReportFile, append(data, '\n'))
}

// LoadOVAL returns the stored OVAL documents of every key in the OVAL
// file-name map, in sorted key order.
func (s *LocalStore) LoadOVAL(ctx context.Context) ([][]byte, error) {
	names, err := s.LoadFilenames(ctx, OVALDir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		data, err := s.readAll(ctx, OVALDir+"/"+names[k])
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
