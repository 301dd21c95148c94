package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"github.com/singlebase/singlebase-go/core"
)

// printResult writes a successful result to stdout and turns a failed one
// into an error carrying the matching exit code.
func (a *App) printResult(res core.Result) error {
	re, failed := core.AsError(res)
	if failed {
		return exitWithCode(exitCodeForKind(re.Kind), re)
	}
	ok := res.(*core.ResultOK)

	if a.jsonOutput {
		return a.writeJSON(map[string]any{
			"ok":     true,
			"status": ok.StatusCode,
			"data":   ok.Data,
			"meta":   ok.Meta,
		})
	}

	if len(ok.Data) == 0 {
		fmt.Fprintln(a.stdout, "No records.")
	} else {
		table, err := pterm.DefaultTable.WithHasHeader().WithData(recordTable(ok.Data)).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, table)
	}

	if len(ok.Meta) > 0 {
		keys := sortedKeys(ok.Meta)
		for _, k := range keys {
			fmt.Fprintf(a.stdout, "%s: %s\n", k, formatValue(ok.Meta[k]))
		}
	}
	return nil
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// recordTable lays records out as rows. Columns are the union of all keys,
// _key first and the rest sorted.
func recordTable(records []core.Record) pterm.TableData {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i] == "_key" || columns[j] == "_key" {
			return columns[i] == "_key"
		}
		return columns[i] < columns[j]
	})

	data := pterm.TableData{columns}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec[col]; ok {
				row[i] = formatValue(v)
			}
		}
		data = append(data, row)
	}
	return data
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
