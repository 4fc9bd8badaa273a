package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/questionpool"
)

type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// value prints text, or v in JSON mode.
func (p *printer) value(v any, text string) error {
	if p.json {
		return p.encode(v)
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

func (p *printer) pool(v poolView) error {
	if p.json {
		return p.encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", v.ID)
	fmt.Fprintf(tw, "name:\t%s\n", v.Name)
	fmt.Fprintf(tw, "description:\t%s\n", v.Description)
	fmt.Fprintf(tw, "creator:\t%s\n", v.Creator)
	fmt.Fprintf(tw, "editor:\t%s\n", v.Editor)
	fmt.Fprintf(tw, "deleted:\t%t\n", v.Deleted)
	fmt.Fprintf(tw, "questions:\t%d\n", len(v.Questions))
	for _, q := range v.Questions {
		fmt.Fprintf(tw, "\t%s\n", q)
	}
	return tw.Flush()
}

func (p *printer) list(items []questionpool.ListItem) error {
	if p.json {
		if items == nil {
			items = []questionpool.ListItem{}
		}
		return p.encode(items)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATOR\tQUESTIONS\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			it.ID, it.Name, it.Creator, it.QuestionCount, it.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (p *printer) events(envs []es.Envelope) error {
	if p.json {
		if envs == nil {
			envs = []es.Envelope{}
		}
		return p.encode(envs)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tVERSION\tTYPE\tSCHEMA\tOCCURRED\tDATA")
	for _, e := range envs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%s\n",
			e.Seq, e.Version, e.Type, e.GetSchemaVersion(), e.OccurredAt.Format(time.RFC3339), e.Data)
	}
	return tw.Flush()
}

// printStats prints every counter and histogram sample count gathered from
// reg, one line per series.
func printStats(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			series := mf.GetName()
			if len(labels) > 0 {
				series += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", series, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%gs", series, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
