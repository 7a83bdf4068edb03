package history

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cmts-monitor/pkg/errors"
	"github.com/NVIDIA/cmts-monitor/pkg/record"
	"github.com/NVIDIA/cmts-monitor/pkg/snapshot"
	"github.com/NVIDIA/cmts-monitor/pkg/store"
)

const day = int64(24 * 60 * 60)

var now = time.Unix(1700000000, 0)

func capture(t *testing.T, ts int64) *snapshot.Snapshot {
	t.Helper()
	rs := record.NewRecordSet("MAC Address", "Room", "MAC", "Online", "Us Bytes", "Ds Bytes")
	require.NoError(t, rs.Append(record.Record{
		"MAC Address": record.Str("0011.2233.4455"),
		"Room":        record.Str("101"),
		"MAC":         record.Str("online"),
		"Online":      record.Str("2d03h"),
		"Us Bytes":    record.Str("1024"),
		"Ds Bytes":    record.Str("N/A"),
	}))
	return snapshot.Assemble(rs, nil, ts)
}

// writeArchives creates one archive per group of capture times, oldest group first.
func writeArchives(t *testing.T, dir string, groups ...[]int64) {
	t.Helper()
	for _, g := range groups {
		var snaps []*snapshot.Snapshot
		for _, ts := range g {
			snaps = append(snaps, capture(t, ts))
		}
		_, err := store.WriteArchive(context.Background(), dir, snapshot.NewHistory(snaps...))
		require.NoError(t, err)
	}
}

func collect(t *testing.T, seq func(func(*Batch) bool)) []*Batch {
	t.Helper()
	var out []*Batch
	for b := range seq {
		out = append(out, b)
	}
	return out
}

func TestArchives_NaturalDescending(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"1.tar.gz", "2.tar.gz", "10.tar.gz", "9.tar.gz", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o600))
	}

	paths, err := NewReader(dir).Archives()
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"10.tar.gz", "9.tar.gz", "2.tar.gz", "1.tar.gz"}, names)
}

func TestArchives_MissingDir(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing")).Archives()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeArchiveRead))
}

func TestAll_UsageProjection(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, []int64{100, 200}, []int64{300})

	seq, err := NewReader(dir).All(context.Background(), KindUsage)
	require.NoError(t, err)
	batches := collect(t, seq)

	require.Len(t, batches, 3)
	// newest archive first, newest member first
	assert.Equal(t, int64(300), batches[0].Latest)
	assert.Equal(t, int64(200), batches[1].Latest)
	assert.Equal(t, int64(100), batches[2].Latest)
	assert.Equal(t, "200.json", batches[1].Member)

	data := batches[0].Data["300"]
	assert.Equal(t, record.List{record.Int(1024)}, data["Us Bytes"])
	assert.Equal(t, record.List{record.Int(-1)}, data["Ds Bytes"])
	assert.NotContains(t, data, "Room")
}

func TestAll_UptimeProjection(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, []int64{100})

	seq, err := NewReader(dir).All(context.Background(), KindUptime)
	require.NoError(t, err)
	batches := collect(t, seq)

	require.Len(t, batches, 1)
	data := batches[0].Data["100"]
	assert.Equal(t, record.List{record.Int(101)}, data["Room"])
	assert.Equal(t, record.List{record.Str("online")}, data["MAC"])
	assert.Equal(t, record.List{record.Str("2d03h")}, data["Online"])
	assert.NotContains(t, data, "Us Bytes")
}

func TestAll_SkipsUnreadableEntries(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, []int64{100})

	// 2.tar.gz: one bad member followed by a good one
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, m := range []struct{ name, body string }{
		{"bad.json", `{"oops": `},
		{"200.json", `{"200": {"Us Bytes": ["5"], "Ds Bytes": ["6"], "Usage": {}}}`},
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.tar.gz"), buf.Bytes(), 0o600))

	// 3.tar.gz: not gzip at all
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.tar.gz"), []byte("garbage"), 0o600))

	seq, err := NewReader(dir).All(context.Background(), KindUsage)
	require.NoError(t, err)
	batches := collect(t, seq)

	require.Len(t, batches, 2)
	assert.Equal(t, int64(200), batches[0].Latest)
	assert.Equal(t, record.List{record.Int(6)}, batches[0].Data["200"]["Ds Bytes"])
	assert.Equal(t, int64(100), batches[1].Latest)
}

func TestUpTo_StopsAtAgeBound(t *testing.T) {
	dir := t.TempDir()
	base := now.Unix()
	writeArchives(t, dir,
		[]int64{base - 10*day},
		[]int64{base - 3*day},
		[]int64{base - 2*day},
		[]int64{base - 3600})

	r := NewReader(dir, WithClock(func() time.Time { return now }))

	seq, err := r.UpTo(context.Background(), KindUsage, 3)
	require.NoError(t, err)
	batches := collect(t, seq)
	require.Len(t, batches, 2)
	assert.Equal(t, base-3600, batches[0].Latest)
	assert.Equal(t, base-2*day, batches[1].Latest)

	seq, err = r.LastDay(context.Background(), KindUsage)
	require.NoError(t, err)
	assert.Len(t, collect(t, seq), 1)

	seq, err = r.LastWeek(context.Background(), KindUsage)
	require.NoError(t, err)
	week := collect(t, seq)
	assert.Len(t, week, 3)

	// sequences are restartable
	again := collect(t, seq)
	assert.Equal(t, len(week), len(again))
}

func TestUpTo_MembersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := now.Unix()
	writeArchives(t, dir,
		[]int64{base - 9*day, base - 8*day},
		[]int64{base - 3*day, base - 2*day, base - 3600})

	r := NewReader(dir, WithClock(func() time.Time { return now }))

	seq, err := r.LastDay(context.Background(), KindUsage)
	require.NoError(t, err)
	day1 := collect(t, seq)
	require.Len(t, day1, 1)
	assert.Equal(t, base-3600, day1[0].Latest)

	seq, err = r.LastWeek(context.Background(), KindUsage)
	require.NoError(t, err)
	var got []int64
	for _, b := range collect(t, seq) {
		got = append(got, b.Latest)
	}
	assert.Equal(t, []int64{base - 3600, base - 2*day, base - 3*day}, got)

	seq, err = r.All(context.Background(), KindUsage)
	require.NoError(t, err)
	got = got[:0]
	for _, b := range collect(t, seq) {
		got = append(got, b.Latest)
	}
	assert.True(t, slices.IsSortedFunc(got, func(a, b int64) int { return int(b - a) }))
	assert.Len(t, got, 5)
}

func TestUpTo_EarlyBreak(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, []int64{now.Unix() - 20}, []int64{now.Unix() - 10})

	seq, err := NewReader(dir, WithClock(func() time.Time { return now })).UpTo(context.Background(), KindUsage, 1)
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestAll_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir, []int64{100}, []int64{200})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq, err := NewReader(dir).All(ctx, KindUsage)
	require.NoError(t, err)
	assert.Empty(t, collect(t, seq))
}

func TestAll_UnknownKind(t *testing.T) {
	_, err := NewReader(t.TempDir()).All(context.Background(), Kind("power"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindUsage, k)

	k, err = ParseKind("Uptime")
	require.NoError(t, err)
	assert.Equal(t, KindUptime, k)

	_, err = ParseKind("power")
	require.Error(t, err)

	assert.Equal(t, []string{"Us Bytes", "Ds Bytes"}, KindUsage.Columns())
}

func TestNaturalCompare(t *testing.T) {
	names := []string{"10.tar.gz", "2.tar.gz", "1.tar.gz", "100.tar.gz", "a.tar.gz", "backup-3", "backup-20"}
	slices.SortFunc(names, naturalCompare)
	assert.Equal(t, []string{"1.tar.gz", "2.tar.gz", "10.tar.gz", "100.tar.gz", "a.tar.gz", "backup-3", "backup-20"}, names)

	assert.Equal(t, 0, naturalCompare("7.tar.gz", "7.tar.gz"))
	assert.Equal(t, 1, naturalCompare("12.tar.gz", "9.tar.gz"))
}
