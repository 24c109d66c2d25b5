package sheets

import (
	"reflect"
	"testing"
)

func TestColumnName(t *testing.T) {
	cases := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, c := range cases {
		if got := columnName(c.col); got != c.want {
			t.Errorf("columnName(%d) = %q, want %q", c.col, got, c.want)
		}
	}
}

// The values API omits trailing empty cells and rows entirely; the
// conversion must pad the result back to the requested rectangle.
func TestToStringRowsPadsHeightAndWidth(t *testing.T) {
	values := [][]interface{}{{"a", "b"}}

	got := toStringRows(values, 3, 3)
	want := [][]string{
		{"a", "b", ""},
		{"", "", ""},
		{"", "", ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toStringRows = %v, want %v", got, want)
	}

	// An entirely blank region still yields the full rectangle.
	got = toStringRows(nil, 2, 1)
	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 1 {
		t.Errorf("blank region not padded: %v", got)
	}

	// Open-ended requests are returned as-is.
	got = toStringRows(values, 0, 0)
	if len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("open-ended read reshaped: %v", got)
	}
}

func TestRangeA1(t *testing.T) {
	cases := []struct {
		row, col, height, width int
		want                    string
	}{
		{2, 1, 3, 8, "'予約一覧'!A2:H4"},
		{1, 4, 1, 12, "'参加情報'!D1:O1"},
		{2, 2, 0, 1, "'参加情報'!B2:B"},
		{1, 1, 1, 0, "'参加情報'!1:1"},
	}
	sheetNames := []string{"予約一覧", "参加情報", "参加情報", "参加情報"}
	for i, c := range cases {
		if got := rangeA1(sheetNames[i], c.row, c.col, c.height, c.width); got != c.want {
			t.Errorf("rangeA1(%d,%d,%d,%d) = %q, want %q", c.row, c.col, c.height, c.width, got, c.want)
		}
	}
}
