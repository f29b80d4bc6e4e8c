package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeKeywords(md, summary)
	w.writePages(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Onion Crawl Report")
	md.PlainText("")

	rows := [][]string{}
	if s.Session != nil {
		rows = append(rows,
			[]string{"Session", "`" + s.Session.ID + "`"},
			[]string{"Seed", "`" + s.Session.Seed + "`"},
			[]string{"Started", s.Session.StartedAt.Format("2006-01-02 15:04:05 MST")},
			[]string{"Status", string(s.Session.Status)},
			[]string{"Dispatched", strconv.Itoa(s.Session.Dispatched)},
		)
	}
	rows = append(rows,
		[]string{"Pages", strconv.Itoa(s.Pages)},
		[]string{"Hosts", strconv.Itoa(s.Hosts)},
		[]string{"Screenshots", strconv.Itoa(s.Screenshots)},
		[]string{"Blacklisted", strconv.Itoa(len(s.Blacklisted))},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case len(s.Blacklisted) > 0:
		md.Warningf("%d page(s) belong to denylisted domains.", len(s.Blacklisted))
	case s.HasAlerts():
		md.Note("Keywords were found, no denylisted domains were visited.")
	default:
		md.Tip("No keywords or denylisted domains found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, s *Summary) {
	md.H2("Keyword Hits")
	md.PlainText("")

	if len(s.Keywords) == 0 {
		md.PlainText("No keywords found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Keywords))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Keyword"),
		piechart.WithShowData(true),
	)
	for i, k := range s.Keywords {
		rows[i] = []string{k.Keyword, strconv.Itoa(k.Pages)}
		chart.LabelAndIntValue(k.Keyword, uint64(k.Pages)) //nolint:gosec // page counts are non-negative
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, s *Summary) {
	md.H2("Pages")
	md.PlainText("")

	if len(s.Results) == 0 {
		md.PlainText("No pages were recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Results))
	for i, r := range s.Results {
		flag := ""
		if r.Blacklisted {
			flag = "⚠️"
		}
		rows[i] = []string{
			"`" + truncateString(r.URL, 80) + "`",
			orDash(escapeCell(truncateString(r.Metadata.Title, 50))),
			orDash(strings.Join(r.KeywordsFound, ", ")),
			flag,
			orDash(r.ScreenshotPath),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Keywords", "Denylisted", "Screenshot"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [onioncrawl](https://github.com/nao1215/onioncrawl)*")
}

// escapeCell keeps page titles from breaking the table layout.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ").Replace(s)
}
