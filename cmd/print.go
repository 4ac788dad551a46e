package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/kb"
)

// printTechniques renders a query result as a terminal table. Truncation is
// always announced; a capped list without the true count would be silently
// lying to the analyst.
func printTechniques(snapshot *kb.KnowledgeBase, result schemas.QueryResult, title string) {
	if result.TotalMatched == 0 {
		fmt.Printf("No techniques found for %s.\n", title)
		return
	}

	fmt.Println(title)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTACTICS\tDATA SOURCES\tTHREAT ACTORS")
	for _, technique := range result.Techniques {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			technique.ExternalID,
			clip(technique.Name, 48),
			strings.Join(technique.Tactics, ", "),
			clip(strings.Join(snapshot.DataSourceNamesFor(technique.ID), ", "), 60),
			clip(strings.Join(snapshot.ActorNamesFor(technique.ID), ", "), 48))
	}
	w.Flush()

	if result.Truncated {
		fmt.Printf("\nShowing %d of %d matches (results truncated).\n", len(result.Techniques), result.TotalMatched)
	} else {
		fmt.Printf("\n%d matches.\n", result.TotalMatched)
	}
}

// clip shortens a display string to max runes. Counting runes, not bytes,
// keeps multi-byte characters intact at the cut point.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
