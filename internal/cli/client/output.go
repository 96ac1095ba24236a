package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// shortTime renders an RFC 3339 timestamp in local time, or the raw value
// when it does not parse.
func shortTime(raw string) string {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func printAskResult(w io.Writer, result *AskResult) {
	fmt.Fprintln(w, result.Answer)

	if len(result.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(result.Sources, ", "))
	}
	if len(result.News) > 0 {
		fmt.Fprintln(w, "\nRecent news:")
		for _, a := range result.News {
			printArticle(w, a)
		}
	}
}

func printArticle(w io.Writer, a Article) {
	fmt.Fprintf(w, "  - %s (%s)\n", a.Headline, shortTime(a.PublishedAt))
	if a.URL != "" {
		fmt.Fprintf(w, "    %s\n", a.URL)
	}
}

func printTranscript(w io.Writer, session *Session) {
	title := session.Title
	if title == "" {
		title = "New chat"
	}
	fmt.Fprintf(w, "%s  (%s)\n\n", title, session.ID)
	if len(session.Messages) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range session.Messages {
		fmt.Fprintf(w, "[%s] %s:\n%s\n\n", shortTime(m.CreatedAt), roleLabel(m.Role), m.Content)
	}
}

func roleLabel(role string) string {
	if role == "assistant" {
		return "Advisor"
	}
	return "You"
}
