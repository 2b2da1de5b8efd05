package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"addrmatch/internal/engine"
)

// debugPreview shows, for each enqueued fragment, the cumulative composed
// query up to that fragment and a sample of its rows. Nothing is
// materialised.
func (p *Pipeline) debugPreview(ctx context.Context, opts RunOptions) error {
	out := opts.out()
	total := len(p.queue)
	for i := 1; i <= total; i++ {
		subset := p.queue[:i]
		sql, err := composeFrom(subset)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n=== DEBUG STEP %d/%d — alias %s ===\n", i, total, subset[i-1].alias)
		if opts.DebugShowSQL {
			fmt.Fprintln(out, sql)
			fmt.Fprintln(out, "--------------------------------------------")
		}
		res, err := p.session.Query(ctx, fmt.Sprintf("%s\nLIMIT %d", sql, opts.maxRows()))
		if err != nil {
			return err
		}
		renderSample(out, res)
	}
	return nil
}

// debugIncremental materialises each fragment one at a time under its alias,
// so failures localise to a single fragment and intermediates stay around
// for inspection.
func (p *Pipeline) debugIncremental(ctx context.Context, opts RunOptions) error {
	out := opts.out()
	total := len(p.queue)
	for i, e := range p.queue {
		if opts.DebugShowSQL {
			fmt.Fprintf(out, "\n=== DEBUG STEP %d/%d — alias %s ===\n", i+1, total, e.alias)
			fmt.Fprintln(out, e.sql)
			fmt.Fprintln(out, "--------------------------------------------")
		}
		if err := p.session.CreateTempTableAs(ctx, e.alias, e.sql); err != nil {
			return err
		}
		res, err := p.session.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", e.alias, opts.maxRows()))
		if err != nil {
			return err
		}
		renderSample(out, res)
	}
	return nil
}

// printSegments prints each materialised checkpoint segment and the final
// composed query when pretty printing is enabled.
func (p *Pipeline) printSegments(opts RunOptions, finalSQL string) {
	if !opts.PrettyPrintSQL {
		return
	}
	out := opts.out()
	for i, cp := range p.checkpoints {
		fmt.Fprintf(out, "\n=== SQL SEGMENT %d (materialised checkpoint saved as %s) ===\n", i+1, cp.Relation)
		fmt.Fprintln(out, cp.SQL)
	}
	label := "final segment"
	if len(p.checkpoints) > 0 {
		label = "final segment after checkpoints"
	}
	fmt.Fprintf(out, "\n=== SQL SEGMENT %d (%s, alias %s) ===\n", len(p.checkpoints)+1, label, p.current)
	fmt.Fprintln(out, finalSQL)
}

// renderSample writes result rows as an aligned table.
func renderSample(out io.Writer, res *engine.Result) {
	if res.Empty() {
		fmt.Fprintln(out, "(no rows)")
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = engine.AsString(v)
		}
		table.Append(cells)
	}
	table.Render()
}
