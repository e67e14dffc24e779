package sheets

// cellRange is a zero-based, end-exclusive block of cells on the report sheet.
type cellRange struct {
	StartRow, EndRow int
	StartCol, EndCol int
}

// reportLayout is the prepared sheet content plus the cells that hold money.
type reportLayout struct {
	Values     [][]any
	Currency   []cellRange
	Headings   []int
	DetailsRow int
}

func (l *reportLayout) add(rows ...[]any) int {
	start := len(l.Values)
	l.Values = append(l.Values, rows...)
	return start
}

func (l *reportLayout) heading(title string) {
	l.Headings = append(l.Headings, l.add([]any{title}))
}

func (l *reportLayout) currency(startRow, endRow, startCol, endCol int) {
	if endRow <= startRow {
		return
	}
	l.Currency = append(l.Currency, cellRange{
		StartRow: startRow,
		EndRow:   endRow,
		StartCol: startCol,
		EndCol:   endCol,
	})
}
