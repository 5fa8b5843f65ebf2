package snapshot

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(sec int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, sec, 0, time.UTC)
}

func TestNewInfersColumnKinds(t *testing.T) {
	s := New([]string{"time_tag", "kp", "station", "mixed", "empty"}, [][]any{
		{"2024-03-01T00:00:00", 2.33, "boulder", int64(1), nil},
		{"2024-03-01T00:01:00", 3.0, "boulder", "x", nil},
	})

	require.Equal(t, KindString, s.Columns[0].Kind)
	require.Equal(t, KindFloat, s.Columns[1].Kind)
	require.Equal(t, KindString, s.Columns[2].Kind)
	require.Equal(t, KindUnknown, s.Columns[3].Kind)
	require.Equal(t, KindUnknown, s.Columns[4].Kind)
	require.Equal(t, 2, s.Len())
}

func TestCloneIsIndependent(t *testing.T) {
	s := New([]string{"a", "b"}, [][]any{{int64(1), []byte("xy")}})
	cp := s.Clone()

	cp.Rows[0][0] = int64(99)
	cp.Rows[0][1].([]byte)[0] = 'z'
	cp.Columns[0].Name = "renamed"

	require.Equal(t, int64(1), s.Rows[0][0])
	require.Equal(t, []byte("xy"), s.Rows[0][1])
	require.Equal(t, "a", s.Columns[0].Name)
}

func TestEstimateSizeGrowsWithRows(t *testing.T) {
	small := New([]string{"v"}, [][]any{{"a"}})
	large := New([]string{"v"}, [][]any{{"a"}, {"bbbbbbbbbbbbbbbbbbbb"}, {"c"}})

	require.Greater(t, large.EstimateSize(), small.EstimateSize())
	require.Zero(t, (*Snapshot)(nil).EstimateSize())
}

func TestNormalizeLowercasesAndParsesTimes(t *testing.T) {
	raw := New([]string{"Time_Tag", "Kp_Index", "ObservedAt"}, [][]any{
		{"2024-03-01T00:00:00", 2.0, "2024-03-01 00:00:00"},
		{"2024-03-01T00:01:00Z", 3.0, nil},
	})

	out, warnings := Normalize(raw)
	require.Empty(t, warnings)
	require.Equal(t, []string{"time_tag", "kp_index", "observedat"}, out.ColumnNames())
	require.Equal(t, KindTime, out.Columns[0].Kind)
	require.Equal(t, KindTime, out.Columns[2].Kind)
	require.Equal(t, ts(0), out.Rows[0][0])
	require.Equal(t, ts(60), out.Rows[1][0])
	require.Nil(t, out.Rows[1][2])

	// input untouched
	require.Equal(t, "Time_Tag", raw.Columns[0].Name)
	require.Equal(t, "2024-03-01T00:00:00", raw.Rows[0][0])
}

func TestNormalizeLeavesUnparseableColumn(t *testing.T) {
	raw := New([]string{"date", "update_time"}, [][]any{
		{"not a date", "2024-03-01"},
		{"2024-03-01", "2024-03-02"},
	})

	out, warnings := Normalize(raw)
	require.Len(t, warnings, 1)
	require.Equal(t, "date", warnings[0].Column)
	require.ErrorIs(t, warnings[0], ErrUnparseableTime)

	require.Equal(t, "not a date", out.Rows[0][0])
	require.Equal(t, "2024-03-01", out.Rows[1][0])
	require.Equal(t, KindString, out.Columns[0].Kind)
	require.Equal(t, KindTime, out.Columns[1].Kind)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := New([]string{"TIME_TAG", "Bz_GSM"}, [][]any{
		{"2024-03-01T00:00:00", -4.2},
		{"2024-03-01T00:00:01", -4.5},
	})

	once, _ := Normalize(raw)
	twice, warnings := Normalize(once)
	require.Empty(t, warnings)
	require.Equal(t, once, twice)
}

func TestPickTimeColumn(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
		want    string
		ok      bool
	}{
		{"prefers timetag", []string{"date", "timetag"}, "timetag", true},
		{"time_tag is not a timetag", []string{"date", "time_tag"}, "date", true},
		{"prefers exact time", []string{"obs_date", "time"}, "time", true},
		{"prefers _at suffix", []string{"issue_date", "processed_at"}, "processed_at", true},
		{"falls back to first", []string{"value", "obs_date", "observed"}, "obs_date", true},
		{"no time column", []string{"kp", "station"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := make([]any, len(tc.columns))
			s := New(tc.columns, [][]any{row})
			got, ok := PickTimeColumn(s)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestPickTimeColumnEmptySnapshot(t *testing.T) {
	_, ok := PickTimeColumn(New([]string{"time_tag"}, nil))
	require.False(t, ok)
	_, ok = PickTimeColumn(nil)
	require.False(t, ok)
}

func TestCatalogTimeColumnAcceptsAuditColumns(t *testing.T) {
	col, ok := CatalogTimeColumn([]string{"id", "created", "value"})
	require.True(t, ok)
	require.Equal(t, "created", col)

	col, ok = CatalogTimeColumn([]string{"id", "updated_at", "time_tag"})
	require.True(t, ok)
	require.Equal(t, "updated_at", col)

	_, ok = CatalogTimeColumn([]string{"id", "kp"})
	require.False(t, ok)
}

func TestMaxTime(t *testing.T) {
	s := New([]string{"time", "v"}, [][]any{{ts(5), 1.0}, {ts(9), 2.0}, {nil, 3.0}, {ts(2), 4.0}})

	max, ok := MaxTime(s, "time")
	require.True(t, ok)
	require.Equal(t, ts(9), max)

	_, ok = MaxTime(s, "missing")
	require.False(t, ok)

	_, ok = MaxTime(New([]string{"time"}, [][]any{{"raw"}}), "time")
	require.False(t, ok)
}

func TestMergeByTimeKeepsNewerRowOnTie(t *testing.T) {
	prev := New([]string{"t", "v"}, [][]any{{ts(1), int64(10)}, {ts(2), int64(20)}})
	next := New([]string{"v", "t"}, [][]any{{int64(99), ts(2)}, {int64(30), ts(3)}})

	merged, err := MergeByTime(prev, next, "t")
	require.NoError(t, err)
	require.Equal(t, [][]any{
		{ts(1), int64(10)},
		{ts(2), int64(99)},
		{ts(3), int64(30)},
	}, merged.Rows)

	// inputs untouched
	require.Equal(t, int64(20), prev.Rows[1][1])
	require.Len(t, next.Rows, 2)
}

func TestMergeByTimeSortsAndKeepsUntimedRows(t *testing.T) {
	prev := New([]string{"t", "v"}, [][]any{{ts(5), 1.0}, {nil, 2.0}})
	next := New([]string{"t", "v"}, [][]any{{ts(7), 3.0}, {ts(6), 4.0}})

	merged, err := MergeByTime(prev, next, "t")
	require.NoError(t, err)
	require.Equal(t, [][]any{
		{ts(5), 1.0},
		{ts(6), 4.0},
		{ts(7), 3.0},
		{nil, 2.0},
	}, merged.Rows)
}

func TestMergeByTimeRejectsSchemaDrift(t *testing.T) {
	prev := New([]string{"t", "v"}, [][]any{{ts(1), 1.0}})

	_, err := MergeByTime(prev, New([]string{"t", "w"}, nil), "t")
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = MergeByTime(prev, New([]string{"t", "v", "extra"}, nil), "t")
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = MergeByTime(prev, New([]string{"t", "v"}, nil), "missing")
	require.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	s := New([]string{"time_tag", "kp", "count", "station", "ok", "raw"}, [][]any{
		{ts(1), 2.5, int64(7), "boulder", true, []byte{0x01, 0x02}},
		{ts(2), nil, int64(-3), "fredericksburg", false, nil},
	})

	payload, err := Compress(s)
	require.NoError(t, err)

	restored, err := Decompress(payload)
	require.NoError(t, err)
	require.Equal(t, s, restored)
}

func TestCompressRoundTripNonFiniteFloats(t *testing.T) {
	s := New([]string{"time_tag", "flux"}, [][]any{
		{ts(1), math.NaN()},
		{ts(2), math.Inf(1)},
		{ts(3), math.Inf(-1)},
		{ts(4), 1.5e-6},
	})

	payload, err := Compress(s)
	require.NoError(t, err)

	restored, err := Decompress(payload)
	require.NoError(t, err)
	require.Equal(t, KindFloat, restored.Columns[1].Kind)
	require.True(t, math.IsNaN(restored.Rows[0][1].(float64)))
	require.True(t, math.IsInf(restored.Rows[1][1].(float64), 1))
	require.True(t, math.IsInf(restored.Rows[2][1].(float64), -1))
	require.Equal(t, 1.5e-6, restored.Rows[3][1])
	require.Equal(t, ts(4), restored.Rows[3][0])

	require.True(t, math.IsNaN(s.Rows[0][1].(float64)), "source rows untouched")
}

func TestCompressRoundTripMixedColumnKeepsCellTypes(t *testing.T) {
	s := New([]string{"reading"}, [][]any{
		{float64(2)},
		{int64(3)},
		{"n/a"},
		{math.NaN()},
	})
	require.Equal(t, KindUnknown, s.Columns[0].Kind)

	payload, err := Compress(s)
	require.NoError(t, err)

	restored, err := Decompress(payload)
	require.NoError(t, err)
	require.Equal(t, float64(2), restored.Rows[0][0])
	require.Equal(t, int64(3), restored.Rows[1][0])
	require.Equal(t, "n/a", restored.Rows[2][0])
	require.True(t, math.IsNaN(restored.Rows[3][0].(float64)))
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("definitely not gzip"))
	require.Error(t, err)
}
