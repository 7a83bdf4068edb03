package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cmts-monitor/pkg/table"
)

func TestRecordSet_Append(t *testing.T) {
	rs := NewRecordSet("MAC Address", "Room")

	require.NoError(t, rs.Append(Record{"MAC Address": Str("a1")}))
	assert.Equal(t, Null, rs.Get(0, "Room"))

	err := rs.Append(Record{"Unknown": Int(1)})
	require.Error(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestRecordSet_FromTable(t *testing.T) {
	tbl := &table.Table{
		Name:    "modems",
		Key:     "MAC Address",
		Columns: []table.Column{{Name: "MAC Address"}, {Name: "Number", Type: table.TypeInt}},
		Rows:    [][]string{{"a1", "3"}},
	}
	rs := FromTable(tbl)
	assert.Equal(t, []string{"MAC Address", "Number"}, rs.Columns)
	assert.Equal(t, table.TypeInt, rs.Types["Number"])
	assert.Equal(t, Str("3"), rs.Get(0, "Number"))
}

func TestRecordSet_CloneIsDeep(t *testing.T) {
	rs := NewRecordSet("MAC Address", "CPE IP Address")
	require.NoError(t, rs.Append(Record{
		"MAC Address":    Str("a1"),
		"CPE IP Address": ListOf(Str("10.0.0.1")),
	}))

	cp := rs.Clone()
	cp.Records[0]["CPE IP Address"].(List)[0] = Str("changed")
	cp.Columns[0] = "changed"

	assert.Equal(t, List{Str("10.0.0.1")}, rs.Get(0, "CPE IP Address"))
	assert.Equal(t, "MAC Address", rs.Columns[0])

	var nilSet *RecordSet
	assert.Nil(t, nilSet.Clone())
	assert.Zero(t, nilSet.Len())
}

func TestRecordSet_TableRows(t *testing.T) {
	rs := NewRecordSet("MAC Address", "Room", "CPE IP Address")
	require.NoError(t, rs.Append(Record{
		"MAC Address":    Str("a1"),
		"Room":           Int(101),
		"CPE IP Address": ListOf(Str("10.0.0.1"), Str("10.0.0.2")),
	}))
	require.NoError(t, rs.Append(Record{"MAC Address": Str("b2")}))

	assert.Equal(t, []string{"MAC Address", "Room", "CPE IP Address"}, rs.TableHeader())
	assert.Equal(t, [][]string{
		{"a1", "101", "[10.0.0.1 10.0.0.2]"},
		{"b2", "", ""},
	}, rs.TableRows())
}
