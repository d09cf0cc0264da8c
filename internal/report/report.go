// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders pipeline results as terminal or Markdown tables.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pdiddy/quality-engine/internal/classifier"
	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/internal/modality"
	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/store"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Mode selects the table rendering.
type Mode string

const (
	ASCII    Mode = "table"
	Markdown Mode = "markdown"
)

// ParseMode accepts "table", "markdown" or "md".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "table":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: use table or markdown", s)
	}
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func render(w io.Writer, t table.Writer, m Mode) error {
	var out string
	if m == Markdown {
		out = t.RenderMarkdown()
	} else {
		out = t.Render()
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func rightAlign(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight}
	}
	return cfgs
}

func f4(v float64) string { return fmt.Sprintf("%.4f", v) }

func pct(v float64) string { return fmt.Sprintf("%.1f%%", 100*v) }

// Classification writes the per-class precision, recall, F1 and support
// followed by the accuracy and the macro and weighted averages.
func Classification(w io.Writer, r classifier.Report, m Mode) error {
	t := newTable("Classification report")
	t.AppendHeader(table.Row{"Label", "Precision", "Recall", "F1", "Support"})
	for _, c := range r.Classes {
		t.AppendRow(table.Row{c.Label.String(), f4(c.Precision), f4(c.Recall), f4(c.F1), c.Support})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"accuracy", "", "", f4(r.Accuracy), r.Support})
	t.AppendRow(table.Row{"macro avg", f4(r.MacroPrecision), f4(r.MacroRecall), f4(r.MacroF1), r.Support})
	t.AppendRow(table.Row{"weighted avg", f4(r.WeightedPrecision), f4(r.WeightedRecall), f4(r.WeightedF1), r.Support})
	t.SetColumnConfigs(rightAlign(2, 3, 4, 5))
	return render(w, t, m)
}

// Confusion writes the confusion matrix with true labels as rows.
func Confusion(w io.Writer, r classifier.Report, m Mode) error {
	t := newTable("Confusion matrix (rows: weak label, columns: predicted)")
	header := table.Row{""}
	for _, l := range types.Labels {
		header = append(header, l.String())
	}
	t.AppendHeader(header)
	for _, l := range types.Labels {
		row := table.Row{l.String()}
		for _, p := range types.Labels {
			row = append(row, r.Confusion[l][p])
		}
		t.AppendRow(row)
	}
	t.SetColumnConfigs(rightAlign(2, 3, 4))
	return render(w, t, m)
}

// Distribution writes the weak label counts and shares.
func Distribution(w io.Writer, d label.Distribution, m Mode) error {
	t := newTable("Label distribution")
	t.AppendHeader(table.Row{"Label", "Items", "Share"})
	for _, l := range types.Labels {
		t.AppendRow(table.Row{l.String(), d.Counts[l], pct(d.Fraction(l))})
	}
	t.AppendFooter(table.Row{"Total", d.Total, ""})
	t.SetColumnConfigs(rightAlign(2, 3))
	return render(w, t, m)
}

// Decision writes the per-size evidence of a modality comparison and its
// verdict.
func Decision(w io.Writer, d modality.Decision, m Mode) error {
	t := newTable(fmt.Sprintf("%s vs %s", d.Candidate, d.Baseline))
	t.AppendHeader(table.Row{"Items", d.Baseline, d.Candidate, "Delta"})
	for _, e := range d.Evidence {
		t.AppendRow(table.Row{e.Size, f4(e.BaselineMacroF1), f4(e.CandidateMacroF1), fmt.Sprintf("%+.4f", e.Delta)})
	}
	verdict := "REJECTED"
	if d.Accepted {
		verdict = "ACCEPTED"
	}
	t.AppendFooter(table.Row{verdict, "", "", fmt.Sprintf("margin %.4f", d.Margin)})
	t.SetColumnConfigs(rightAlign(1, 2, 3, 4))
	if err := render(w, t, m); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, d.Reasoning)
	return err
}

// Prediction writes one prediction with its signal breakdown.
func Prediction(w io.Writer, p model.Prediction, m Mode) error {
	t := newTable("Prediction")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"quality", fmt.Sprintf("%s (%d)", p.Quality, p.QualityLabel)},
		{"p(Low)", f4(p.Probabilities[types.QualityLow])},
		{"p(Medium)", f4(p.Probabilities[types.QualityMedium])},
		{"p(High)", f4(p.Probabilities[types.QualityHigh])},
		{"word_count", p.Signals.WordCount},
		{"text_score", f4(p.Signals.TextScore)},
		{"price_is_outlier", p.Signals.PriceIsOutlier},
		{"price_sanity_score", f4(p.Signals.PriceSanityScore)},
		{"consistency_score", f4(p.Signals.ConsistencyScore)},
		{"composite_score", f4(p.WeakLabel.CompositeScore)},
		{"weak_label", p.WeakLabel.QualityLabel.String()},
		{"model_version", p.ModelVersion},
	})
	return render(w, t, m)
}

// Stats writes the per-label product counts and average prices.
func Stats(w io.Writer, st [types.NumClasses]store.LabelStats, m Mode) error {
	t := newTable("Products by quality")
	t.AppendHeader(table.Row{"Label", "Items", "Avg price", "Quality score"})
	total := 0
	for _, s := range st {
		t.AppendRow(table.Row{s.Name, s.Count, fmt.Sprintf("%.2f", s.AveragePrice), fmt.Sprintf("%.1f", s.QualityScore)})
		total += s.Count
	}
	t.AppendFooter(table.Row{"Total", total, "", ""})
	t.SetColumnConfigs(rightAlign(2, 3, 4))
	return render(w, t, m)
}
