package ledger

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/template"
	"time"
)

// FormatEntryOrg renders an entry as an Org-mode heading with its facts
// in a PROPERTIES drawer.
func FormatEntryOrg(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %.2f lots @ %.2f (%s) %s\n", e.OrderType, e.LotSize, e.Price, shortID(e.OrderID), e.Status)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ORDER_ID: %s\n", e.OrderID)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", e.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":STOP_LOSS: %.2f\n", e.StopLoss)
	fmt.Fprintf(&b, ":TAKE_PROFIT: %.2f\n", e.TakeProfit)
	fmt.Fprintf(&b, ":BALANCE: %.2f\n", e.Balance)
	if !e.Open() {
		fmt.Fprintf(&b, ":CLOSE_PRICE: %.2f\n", e.ClosePrice)
		fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", e.CloseTime.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, ":PROFIT_LOSS: %.2f\n", e.ProfitLoss)
		fmt.Fprintf(&b, ":CLOSE_REASON: %s\n", e.CloseReason)
	}
	b.WriteString(":END:\n")
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}

var summaryOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"pf": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"entry": FormatEntryOrg,
}

type summaryReport struct {
	Title   string
	Summary
	Entries []Entry
}

// WriteOrg renders the summary and every entry as an Org document.
func (s Summary) WriteOrg(w io.Writer, title string, entries []Entry) error {
	t, err := template.New("summary").Funcs(summaryOrgFuncs).Parse(summaryOrgTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, summaryReport{Title: title, Summary: s, Entries: entries})
}

const summaryOrgTemplate = `* LEDGER: {{.Title}}
:PROPERTIES:
:TRADES:      {{.Trades}}
:OPEN:        {{.Open}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:PROFIT_FAC:  {{pf .ProfitFactor}}
:END:

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Open    | {{.Open}} |
| Total   | {{len .Entries}} |
{{- if .Entries}}

* Trades
{{- range .Entries}}
{{entry .}}
{{- end}}
{{- end}}
`
