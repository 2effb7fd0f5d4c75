package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"care-ats/internal/phone"
	"care-ats/internal/types"
)

// RowError is a data row that could not be imported.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// columns maps candidate fields to header indices; -1 means absent.
type columns struct {
	phone, name, status, roles, quals        int
	driver, dbs, rtw, training, start, hours int
	experience                               int
}

// detectColumns guesses which header holds which field. Headers in manual
// sheets vary ("Mobile", "Phone number", "Car driver?"), so matching is by
// keyword and the first match wins.
func detectColumns(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(dst *int, i int) {
		if *dst == -1 {
			*dst = i
		}
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "phone") || strings.Contains(l, "mobile") || strings.Contains(l, "tel") || l == "number":
			set(&c.phone, i)
		case strings.Contains(l, "name"):
			set(&c.name, i)
		case strings.Contains(l, "status") && !strings.Contains(l, "dbs") && !strings.Contains(l, "driv") && !strings.Contains(l, "train"):
			set(&c.status, i)
		case strings.Contains(l, "dbs"):
			set(&c.dbs, i)
		case strings.Contains(l, "experience") || strings.Contains(l, "notes") || strings.Contains(l, "summary"):
			set(&c.experience, i)
		case strings.Contains(l, "train") || strings.Contains(l, "certificate"):
			set(&c.training, i)
		case strings.Contains(l, "driv") || strings.Contains(l, "car") || strings.Contains(l, "licen"):
			set(&c.driver, i)
		case strings.Contains(l, "right to work") || strings.Contains(l, "visa") || strings.Contains(l, "rtw"):
			set(&c.rtw, i)
		case strings.Contains(l, "qualif") || strings.Contains(l, "nvq"):
			set(&c.quals, i)
		case strings.Contains(l, "role") || strings.Contains(l, "position") || strings.Contains(l, "job"):
			set(&c.roles, i)
		case strings.Contains(l, "start"):
			set(&c.start, i)
		case strings.Contains(l, "hours") || strings.Contains(l, "availab") || strings.Contains(l, "shift"):
			set(&c.hours, i)
		}
	}
	return c
}

// LoadCandidates reads candidates from the first sheet of the workbook at path.
func LoadCandidates(path, countryCode string) ([]types.Candidate, []RowError, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return readCandidates(f, countryCode)
}

// Read is LoadCandidates for an uploaded workbook.
func Read(r io.Reader, countryCode string) ([]types.Candidate, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readCandidates(f, countryCode)
}

func readCandidates(f *excelize.File, countryCode string) ([]types.Candidate, []RowError, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.phone == -1 {
		return nil, nil, fmt.Errorf("no phone column in header %q", rows[0])
	}

	cell := func(r []string, i int) string {
		if i >= 0 && i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}

	var (
		out     []types.Candidate
		skipped []RowError
		seen    = map[string]int{}
	)
	for i, r := range rows[1:] {
		rowNum := i + 2
		if len(strings.Join(r, "")) == 0 {
			continue
		}

		raw := cell(r, cols.phone)
		num := phone.Normalize(raw, countryCode)
		if num == "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("invalid phone %q", raw)})
			continue
		}
		if first, dup := seen[num]; dup {
			skipped = append(skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}
		seen[num] = rowNum

		c := types.Candidate{
			Phone:             num,
			Name:              cell(r, cols.name),
			Status:            strings.ToLower(cell(r, cols.status)),
			Source:            types.SourceImport,
			Roles:             splitList(cell(r, cols.roles)),
			Qualifications:    splitList(cell(r, cols.quals)),
			DriverStatus:      known(cell(r, cols.driver)),
			DBSStatus:         known(cell(r, cols.dbs)),
			RightToWork:       known(cell(r, cols.rtw)),
			TrainingStatus:    known(cell(r, cols.training)),
			EarliestStartDate: known(cell(r, cols.start)),
			PreferredHours:    known(cell(r, cols.hours)),
			ExperienceSummary: known(cell(r, cols.experience)),
		}
		if !types.ValidStatus(c.Status) {
			c.Status = types.StatusNew
		}
		out = append(out, c)
	}
	return out, skipped, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if p = strings.TrimSpace(p); types.Known(p) {
			out = append(out, p)
		}
	}
	return out
}

func known(s string) string {
	if types.Known(s) {
		return s
	}
	return ""
}
