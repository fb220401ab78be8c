package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/search"
)

const (
	exactMarker = "★"
	userMarker  = "✎"
	noMatch     = "no match"
)

// styles colour the result when w is a terminal and render plain text otherwise.
type styles struct {
	heading lipgloss.Style
	exact   lipgloss.Style
	user    lipgloss.Style
	detail  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		heading: r.NewStyle().Bold(true),
		exact:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		user:    r.NewStyle().Foreground(lipgloss.Color("81")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// writeResult renders both short-lists. User pairs and exact matches are marked.
func writeResult(w io.Writer, result *search.Result) {
	if result.Empty() {
		fmt.Fprintln(w, noMatch)
		return
	}
	st := newStyles(w)

	fmt.Fprintln(w, st.heading.Render("Keyword matches:"))
	if len(result.Lexical) == 0 {
		fmt.Fprintf(w, "  %s\n", noMatch)
	}
	for i, c := range result.Lexical {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, st.markers(c), c.Pair.TargetText)
		st.writeDetails(w, c, "")
	}

	fmt.Fprintln(w, st.heading.Render("Similar phrases:"))
	switch {
	case result.SemanticSkipped:
		fmt.Fprintf(w, "  %s (%s phrases of %s have no vectors)\n", noMatch, result.Query.Source, result.Index.Name)
	case len(result.Semantic) == 0:
		fmt.Fprintf(w, "  %s\n", noMatch)
	}
	for i, c := range result.Semantic {
		fmt.Fprintf(w, "  %d.    %s\n", i+1, c.Pair.TargetText)
		st.writeDetails(w, c, fmt.Sprintf("score %.3f", c.Score))
	}
}

func (st styles) markers(c *core.Candidate) string {
	user, exact := " ", " "
	if c.Signals.Has(core.SignalUser) {
		user = st.user.Render(userMarker)
	}
	if c.Signals.Has(core.SignalExact) {
		exact = st.exact.Render(exactMarker)
	}
	return user + exact
}

func (st styles) writeDetails(w io.Writer, c *core.Candidate, extra string) {
	line := c.Pair.SourceText
	if extra != "" {
		line += ", " + extra
	}
	fmt.Fprintf(w, "        %s\n", st.detail.Render("("+line+")"))
	if c.Pair.Note != "" {
		fmt.Fprintf(w, "        %s\n", st.detail.Render("note: "+c.Pair.Note))
	}
}

func describeEmbedding(info *core.IndexInfo) string {
	if info.Embedded == core.ColumnNone {
		return "none"
	}
	return fmt.Sprintf("%s with %s", info.Embedded, info.Generation())
}

func writeIndexes(w io.Writer, infos []*core.IndexInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(w, "no indexes")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGES\tPAIRS\tEMBEDDED\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s-%s\t%d\t%s\t%s\n",
			info.Name, info.SourceLang, info.TargetLang, info.Count,
			describeEmbedding(info), info.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func writeUserPairs(w io.Writer, pairs []*core.TranslationPair) error {
	if len(pairs) == 0 {
		fmt.Fprintln(w, "no user pairs")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLANGUAGES\tSOURCE\tTARGET")
	for _, p := range pairs {
		fmt.Fprintf(tw, "%d\t%s-%s\t%s\t%s\n", p.Id, p.SourceLang, p.TargetLang,
			core.SingleLine(p.SourceText), core.SingleLine(p.TargetText))
	}
	return tw.Flush()
}
