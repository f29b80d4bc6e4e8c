package report

import (
	"fmt"
	"io"
	"strings"
)

const ruleWidth = 70

// SimpleWriter outputs a plain-text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds a line per page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page, not only the alerts.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeAlerts(&sb, summary)
	if w.verbose {
		w.writePages(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         ONIONCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	if s.Session != nil {
		fmt.Fprintf(sb, "Session:        %s\n", s.Session.ID)
		fmt.Fprintf(sb, "Seed:           %s\n", s.Session.Seed)
		fmt.Fprintf(sb, "Status:         %s\n", s.Session.Status)
		fmt.Fprintf(sb, "Dispatched:     %d\n", s.Session.Dispatched)
	}
	fmt.Fprintf(sb, "Pages:          %d\n", s.Pages)
	fmt.Fprintf(sb, "Hosts:          %d\n", s.Hosts)
	fmt.Fprintf(sb, "Screenshots:    %d\n", s.Screenshots)
	fmt.Fprintf(sb, "Blacklisted:    %d\n", len(s.Blacklisted))
	if !s.First.IsZero() {
		fmt.Fprintf(sb, "Period:         %s - %s\n",
			s.First.Format("2006-01-02 15:04:05 MST"), s.Last.Format("2006-01-02 15:04:05 MST"))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAlerts(sb *strings.Builder, s *Summary) {
	writeSection(sb, "KEYWORD HITS")
	if len(s.Keywords) == 0 {
		sb.WriteString("  No keywords found\n")
	}
	for _, k := range s.Keywords {
		fmt.Fprintf(sb, "  %-20s %d page(s)\n", k.Keyword, k.Pages)
	}
	sb.WriteString("\n")

	writeSection(sb, "BLACKLISTED PAGES")
	if len(s.Blacklisted) == 0 {
		sb.WriteString("  None\n")
	}
	for _, u := range s.Blacklisted {
		fmt.Fprintf(sb, "  [!] %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, s *Summary) {
	writeSection(sb, "PAGES")
	for _, r := range s.Results {
		marker := "[+]"
		if r.Blacklisted {
			marker = "[!]"
		}
		fmt.Fprintf(sb, "  %s %s\n", marker, r.URL)
		if r.Metadata.Title != "" {
			fmt.Fprintf(sb, "      Title:    %s\n", r.Metadata.Title)
		}
		if len(r.KeywordsFound) > 0 {
			fmt.Fprintf(sb, "      Keywords: %s\n", strings.Join(r.KeywordsFound, ", "))
		}
	}
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
