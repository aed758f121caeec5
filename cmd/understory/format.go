package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jward/understory"
)

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputReport writes the report in the requested format.
func outputReport(w io.Writer, rep *understory.Report, format string) error {
	if format == "text" {
		renderText(w, rep)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// renderText prints the by-language summary as a table, then the import
// relationships as aligned columns. Map keys are sorted so output is stable.
func renderText(w io.Writer, rep *understory.Report) {
	fmt.Fprintf(w, "Project: %s\n", rep.ProjectRoot)
	fmt.Fprintf(w, "Files: %d total, %d importable\n\n", rep.TotalFiles, rep.ImportableFiles)

	if len(rep.ByLanguage) > 0 {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.Style().Options.SeparateRows = false
		tbl.AppendHeader(table.Row{"LANGUAGE", "COUNT", "SAMPLE"})
		for _, tag := range sortedKeys(rep.ByLanguage) {
			summary := rep.ByLanguage[tag]
			tbl.AppendRow(table.Row{tag, summary.Count, strings.Join(summary.Files, ", ")})
		}
		fmt.Fprintln(w, tbl.Render())
	}

	if len(rep.ImportRelationships) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tIMPORT\tKIND\tRESOLVED\tTARGET")
		for _, file := range sortedKeys(rep.ImportRelationships) {
			for _, entry := range rep.ImportRelationships[file] {
				target := ""
				if len(entry.Candidates) > 0 {
					target = entry.Candidates[0]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n",
					file, entry.Raw, entry.Kind, entry.Resolved, target)
			}
		}
		tw.Flush()
	}

	if len(rep.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range rep.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
