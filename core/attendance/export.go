package attendance

import (
	"bytes"
	"sort"

	"github.com/xuri/excelize/v2"
)

const (
	detailSheet  = "Attendance"
	summarySheet = "Summary"
)

func writeWorkbook(rows []ReportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), detailSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	header := []interface{}{"date", "event", "player", "status", "notes"}
	if err := f.SetSheetRow(detailSheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(detailSheet, "A1", "E1", bold); err != nil {
		return nil, err
	}

	type counts struct{ present, late, absent, excused int }
	perPlayer := make(map[string]*counts)

	for i, r := range rows {
		line := []interface{}{r.EventDate.String(), r.EventTitle, r.PlayerName, string(r.Status), r.Notes}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(detailSheet, cell, &line); err != nil {
			return nil, err
		}

		c, ok := perPlayer[r.PlayerName]
		if !ok {
			c = new(counts)
			perPlayer[r.PlayerName] = c
		}
		switch r.Status {
		case StatusPresent:
			c.present++
		case StatusLate:
			c.late++
		case StatusAbsent:
			c.absent++
		case StatusExcused:
			c.excused++
		}
	}
	if err := f.SetColWidth(detailSheet, "A", "E", 18); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	header = []interface{}{"player", "present", "late", "absent", "excused", "credits used"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "F1", bold); err != nil {
		return nil, err
	}

	players := make([]string, 0, len(perPlayer))
	for name := range perPlayer {
		players = append(players, name)
	}
	sort.Strings(players)
	for i, name := range players {
		c := perPlayer[name]
		line := []interface{}{name, c.present, c.late, c.absent, c.excused, c.present + c.late}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return nil, err
		}
	}

	return f.WriteToBuffer()
}
