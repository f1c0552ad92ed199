package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tealeg/xlsx/v2"
)

// Sheet names of the Excel rendering.
const (
	SheetSummary   = "Summary"
	SheetSources   = "Bad sources"
	SheetReasons   = "Rejection reasons"
	SheetBlacklist = "Blacklist"
)

const ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r QualityReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Excel renders the report as an xlsx workbook.
func Excel(r QualityReport) ([]byte, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, err
	}
	for _, kv := range [][2]string{
		{"Period start", r.PeriodStart.Format("2006-01-02 15:04")},
		{"Period end", r.PeriodEnd.Format("2006-01-02 15:04")},
		{"Total leads", fmt.Sprint(r.TotalLeads)},
		{"Rejected leads", fmt.Sprint(r.RejectedLeads)},
		{"Rejection rate, %", fmt.Sprintf("%.1f", r.RejectionRate)},
		{"Placements", fmt.Sprint(r.SourceCount)},
	} {
		addRow(summary, kv[0], kv[1])
	}

	sources, err := f.AddSheet(SheetSources)
	if err != nil {
		return nil, err
	}
	addRow(sources, "utm_source", "utm_campaign", "utm_content", "Total", "Rejected", "Rejection rate, %")
	for _, s := range r.BadSources {
		row := addRow(sources, s.Placement.Source, s.Placement.Campaign, s.Placement.Content)
		row.AddCell().SetInt64(s.TotalLeads)
		row.AddCell().SetInt64(s.RejectedLeads)
		row.AddCell().SetFloatWithFormat(s.RejectionRate(), "0.0")
	}

	reasons, err := f.AddSheet(SheetReasons)
	if err != nil {
		return nil, err
	}
	addRow(reasons, "Reason", "Count")
	for _, rc := range r.TopReasons {
		addRow(reasons, rc.Reason).AddCell().SetInt64(rc.Count)
	}

	bl, err := f.AddSheet(SheetBlacklist)
	if err != nil {
		return nil, err
	}
	addRow(bl, "Placement", "Reason", "Added at", "Days left")
	for _, e := range r.Blacklist {
		added := ""
		if !e.AddedAt.IsZero() {
			added = e.AddedAt.Format("2006-01-02")
		}
		addRow(bl, e.Key, e.Reason, added).AddCell().SetFloatWithFormat(e.TTLDays, "0.0")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func addRow(sheet *xlsx.Sheet, values ...string) *xlsx.Row {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
	return row
}
