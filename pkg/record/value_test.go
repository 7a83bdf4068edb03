package record

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValue_Kind(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"int", Int(1), KindInt},
		{"float", Float(1.5), KindFloat},
		{"string", Str("a"), KindString},
		{"list", ListOf(Str("a")), KindList},
		{"null", Null, KindNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Kind())
		})
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", Int(-1), `-1`},
		{"integral float", Float(42), `42.0`},
		{"float", Float(-3.25), `-3.25`},
		{"string", Str("online"), `"online"`},
		{"list", ListOf(Str("10.0.0.1"), Str("10.0.0.2")), `["10.0.0.1","10.0.0.2"]`},
		{"empty list", List(nil), `[]`},
		{"null", Null, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestValue_MarshalJSON_NaN(t *testing.T) {
	_, err := json.Marshal(Float(math.NaN()))
	require.Error(t, err)
}

func TestValue_MarshalYAML(t *testing.T) {
	doc := map[string]Value{
		"room": Int(101),
		"ips":  ListOf(Str("a"), Str("b")),
		"snr":  Null,
	}
	b, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), "room: 101")
	assert.Contains(t, string(b), "- a\n")
	assert.Contains(t, string(b), "snr: null")
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{`12`, Int(12)},
		{`12.0`, Float(12)},
		{`1e3`, Float(1000)},
		{`"N/A"`, Str("N/A")},
		{`null`, Null},
		{`[1, "a", null]`, List{Int(1), Str("a"), Null}},
		{`[]`, List{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeValue([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeValue([]byte(`{`))
	require.Error(t, err)
}

func TestValue_RoundTripKeepsKind(t *testing.T) {
	for _, v := range []Value{Int(7), Float(7), Float(0.5), Str("7")} {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		got, err := DecodeValue(b)
		require.NoError(t, err)
		assert.Equal(t, v.Kind(), got.Kind(), string(b))
		assert.Equal(t, v, got)
	}
}

func TestToValue(t *testing.T) {
	assert.Equal(t, Int(3), ToValue(3))
	assert.Equal(t, Int(3), ToValue(int64(3)))
	assert.Equal(t, Float(0.5), ToValue(0.5))
	assert.Equal(t, Str("x"), ToValue("x"))
	assert.Equal(t, Null, ToValue(nil))
	assert.Equal(t, Str("true"), ToValue(true))
	assert.Equal(t, Int(1), ToValue(Int(1)))
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(Null))
	assert.False(t, IsNull(Str("")))
	assert.False(t, IsNull(List{}))
}

func TestList_String(t *testing.T) {
	assert.Equal(t, "[a 1]", ListOf(Str("a"), Int(1)).String())
	assert.Equal(t, []any{"a", int64(1)}, ListOf(Str("a"), Int(1)).Any())
}

func TestList_UnmarshalJSON(t *testing.T) {
	var got map[string]map[string]List
	data := `{"1700000000": {"Us Bytes": [1024, -1], "DS_SNR": [35.0, 2.5], "CPE IP Address": [["10.0.0.2"], []], "Room": [null]}}`
	require.NoError(t, json.Unmarshal([]byte(data), &got))

	cols := got["1700000000"]
	assert.Equal(t, List{Int(1024), Int(-1)}, cols["Us Bytes"])
	assert.Equal(t, List{Float(35), Float(2.5)}, cols["DS_SNR"])
	assert.Equal(t, List{List{Str("10.0.0.2")}, List{}}, cols["CPE IP Address"])
	assert.Equal(t, List{Null}, cols["Room"])

	b, err := json.Marshal(got)
	require.NoError(t, err)
	var again map[string]map[string]List
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, got, again)

	var empty List
	require.NoError(t, json.Unmarshal([]byte("null"), &empty))
	assert.Empty(t, empty)

	var bad List
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &bad))
}

func TestList_UnmarshalYAML(t *testing.T) {
	var got map[string]List
	require.NoError(t, yaml.Unmarshal([]byte("bytes: [1024, -1]\nsnr: [2.5]\nmac: [online]\n"), &got))
	assert.Equal(t, List{Int(1024), Int(-1)}, got["bytes"])
	assert.Equal(t, List{Float(2.5)}, got["snr"])
	assert.Equal(t, List{Str("online")}, got["mac"])
}
