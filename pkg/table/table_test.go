package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cmts-monitor/pkg/dump"
	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/section"
)

const modemDump = `CMTS#show cable modem
MAC Address     IP Address      US Intf    MAC      Prim  Online  Number  
                                           State    Sid   Time    CPE
0011.2233.4455  10.1.0.10       C1/0/U0    online   1     2d03h   1
0011.2233.6677  10.1.0.11       C1/0/U1    offline  2     0       0
0011.2233.8899  10.1.0.12       C1/0/U1    online   3

CMTS#show cpe all
CM MAC          CPE MAC         CPE IP Address
0011.2233.4455  aabb.cc00.0001  192.168.0.10
0011.2233.4455  aabb.cc00.0002  192.168.0.11

CMTS#show running-config | include desc
cable modem 0011.2233.4455 description "101"
cable modem 0011.2233.6677 description '102'

CMTS#`

func extract(t *testing.T, label string, rule section.EndRule) *section.Section {
	t.Helper()
	s, err := section.Extract(dump.Parse(modemDump), label, rule)
	require.NoError(t, err)
	return s
}

func modemSpec() Spec {
	return Spec{
		Name:     "modems",
		DropRows: []int{1},
		Columns: []Column{
			{Name: "MAC Address"},
			{Name: "IP Address"},
			{Name: "MAC"},
			{Name: "Online"},
			{Name: "Number", Type: TypeInt},
		},
		Key: "MAC Address",
	}
}

func TestBuild_SelectsDeclaredColumnsInOrder(t *testing.T) {
	tbl, err := Build(extract(t, "show cable modem", section.EndBlank), modemSpec())
	require.NoError(t, err)

	assert.Equal(t, "modems", tbl.Name)
	assert.Equal(t, []string{"MAC Address", "IP Address", "MAC", "Online", "Number"}, tbl.Names())
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"0011.2233.4455", "10.1.0.10", "online", "2d03h", "1"}, tbl.Rows[0])
	for _, r := range tbl.Rows {
		assert.Len(t, r, 5)
	}
}

func TestBuild_ReorderedSubset(t *testing.T) {
	spec := modemSpec()
	spec.Columns = []Column{{Name: "Number"}, {Name: "MAC Address"}}

	tbl, err := Build(extract(t, "show cable modem", section.EndBlank), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"Number", "MAC Address"}, tbl.Names())
	assert.Equal(t, []string{"0", "0011.2233.6677"}, tbl.Rows[1])
}

func TestBuild_ShortRowsFilled(t *testing.T) {
	tbl, err := Build(extract(t, "show cable modem", section.EndBlank), modemSpec())
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Value(2, "Number"))
	assert.Equal(t, "online", tbl.Value(2, "MAC"))
}

func TestBuild_WithoutDropRowsKeepsContinuation(t *testing.T) {
	spec := modemSpec()
	spec.DropRows = nil

	tbl, err := Build(extract(t, "show cable modem", section.EndBlank), spec)
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Len())
}

func TestBuild_ColumnMissing(t *testing.T) {
	spec := modemSpec()
	spec.Columns = append(spec.Columns, Column{Name: "US_Pwr"})

	_, err := Build(extract(t, "show cable modem", section.EndBlank), spec)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeColumnMissing))
}

func TestBuild_RenameAfterSelection(t *testing.T) {
	spec := Spec{
		Name:    "cpe",
		Columns: []Column{{Name: "CM MAC"}, {Name: "CPE IP Address"}},
		Rename:  map[string]string{"CM MAC": "MAC Address"},
		Key:     "MAC Address",
	}

	tbl, err := Build(extract(t, "show cpe all", section.EndBlank), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAC Address", "CPE IP Address"}, tbl.Names())
	assert.Equal(t, "0011.2233.4455", tbl.KeyOf(1))
	assert.Equal(t, []string{"192.168.0.10", "192.168.0.11"}, tbl.ColumnValues("CPE IP Address"))
}

func TestBuild_KeyNormalized(t *testing.T) {
	sec := &section.Section{
		Label: "x",
		Rows: []section.Row{
			{"MAC Address", "Room"},
			{" 0011.AABB.CCDD ", "12"},
		},
	}
	tbl, err := Build(sec, Spec{
		Name:    "x",
		Columns: []Column{{Name: "MAC Address"}, {Name: "Room"}},
		Key:     "MAC Address",
	})
	require.NoError(t, err)
	assert.Equal(t, "0011.aabb.ccdd", tbl.KeyOf(0))
}

func TestBuild_Fields(t *testing.T) {
	spec := Spec{
		Name: "rooms",
		Fields: []Field{
			{Name: "MAC Address", Index: 2},
			{Name: "Room", Index: -1, Type: TypeInt, TrimQuotes: true},
		},
		Key: "MAC Address",
	}

	tbl, err := Build(extract(t, "show running-config | include desc", section.EndPrompt), spec)
	require.NoError(t, err)

	// the blank line before the prompt is skipped
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"0011.2233.4455", "101"}, tbl.Rows[0])
	assert.Equal(t, []string{"0011.2233.6677", "102"}, tbl.Rows[1])
	assert.Equal(t, []string{"Room"}, tbl.ColumnsOfType(TypeInt))
	assert.Equal(t, []string{"MAC Address"}, tbl.ColumnsOfType(TypeString))
}

func TestBuild_FieldOutOfRange(t *testing.T) {
	sec := &section.Section{Label: "x", Lines: []string{"only two"}}
	tbl, err := Build(sec, Spec{Name: "x", Fields: []Field{{Name: "a", Index: 5}, {Name: "b", Index: -3}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, tbl.Rows[0])
}

func TestBuild_NoHeaderRow(t *testing.T) {
	sec := &section.Section{Label: "x"}
	_, err := Build(sec, modemSpec())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeColumnMissing))
}

func TestBuild_NilSection(t *testing.T) {
	_, err := Build(nil, modemSpec())
	require.Error(t, err)
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		code errors.ErrorCode
	}{
		{name: "missing name", spec: Spec{Columns: []Column{{Name: "a"}}}, code: errors.ErrCodeInvalidRequest},
		{name: "no columns", spec: Spec{Name: "t"}, code: errors.ErrCodeInvalidRequest},
		{
			name: "both layouts",
			spec: Spec{Name: "t", Columns: []Column{{Name: "a"}}, Fields: []Field{{Name: "b"}}},
			code: errors.ErrCodeInvalidRequest,
		},
		{name: "bad drop row", spec: Spec{Name: "t", Columns: []Column{{Name: "a"}}, DropRows: []int{0}}, code: errors.ErrCodeInvalidRequest},
		{name: "bad type", spec: Spec{Name: "t", Columns: []Column{{Name: "a", Type: "decimal"}}}, code: errors.ErrCodeInvalidRequest},
		{
			name: "rename collision",
			spec: Spec{Name: "t", Columns: []Column{{Name: "a"}, {Name: "b"}}, Rename: map[string]string{"a": "b"}},
			code: errors.ErrCodeColumnConflict,
		},
		{name: "key not selected", spec: Spec{Name: "t", Columns: []Column{{Name: "a"}}, Key: "b"}, code: errors.ErrCodeColumnMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}

	assert.NoError(t, modemSpec().Validate())
}

func TestTable_CellOutOfRange(t *testing.T) {
	tbl := &Table{
		Name:    "manual",
		Key:     "MAC",
		Columns: []Column{{Name: "MAC"}, {Name: "Room"}},
		Rows:    [][]string{{"a", "12"}, {"b"}},
	}
	assert.Equal(t, "12", tbl.Cell(0, 1))
	assert.Equal(t, "", tbl.Cell(1, 1))
	assert.Equal(t, "", tbl.Cell(1, -1))
	assert.Equal(t, "", tbl.Value(1, "Room"))
	assert.Equal(t, []string{"12", ""}, tbl.ColumnValues("Room"))
}
