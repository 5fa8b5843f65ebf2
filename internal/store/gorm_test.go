package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/swdash/internal/database/testutil"
)

type boulderKIndex struct {
	ID      uint      `gorm:"primaryKey"`
	TimeTag time.Time `gorm:"index"`
	KIndex  float64
	Station string
}

func (boulderKIndex) TableName() string { return "boulder_k_index_1m" }

type solarRegion struct {
	ID         uint `gorm:"primaryKey"`
	ObservedAt time.Time
	Region     int
}

func (solarRegion) TableName() string { return "solar_regions" }

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func seedGateway(t *testing.T) (*GormGateway, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithTables(&solarRegion{}, &boulderKIndex{}))

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&boulderKIndex{
			TimeTag: base.Add(time.Duration(i) * time.Minute),
			KIndex:  float64(i) + 0.5,
			Station: "boulder",
		}).Error)
	}
	require.NoError(t, db.Create(&solarRegion{ObservedAt: base, Region: 13664}).Error)

	gw, err := NewGormGateway(db, WithExcludedTables("refresh_runs"))
	require.NoError(t, err)
	return gw, db
}

func TestNewGormGatewayWithoutDatabase(t *testing.T) {
	_, err := NewGormGateway(nil)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestListTablesSortedAndFiltered(t *testing.T) {
	gw, db := seedGateway(t)
	require.NoError(t, db.Exec("CREATE TABLE refresh_runs (id TEXT)").Error)

	tables, err := gw.ListTables(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"boulder_k_index_1m", "solar_regions"}, tables)
}

func TestColumnsFromCatalog(t *testing.T) {
	gw, _ := seedGateway(t)

	cols, err := gw.Columns(context.Background(), "boulder_k_index_1m")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "time_tag", "k_index", "station"}, cols)
}

func TestQueryReturnsRowsAndHonoursCap(t *testing.T) {
	gw, _ := seedGateway(t)
	ctx := context.Background()

	all, err := gw.Query(ctx, "boulder_k_index_1m", 0)
	require.NoError(t, err)
	require.Equal(t, 5, all.Len())
	require.Equal(t, []string{"id", "time_tag", "k_index", "station"}, all.ColumnNames())

	stationIdx := all.ColumnIndex("station")
	require.Equal(t, "boulder", all.Rows[0][stationIdx])

	capped, err := gw.Query(ctx, "boulder_k_index_1m", 2)
	require.NoError(t, err)
	require.Equal(t, 2, capped.Len())
}

func TestQuerySinceIsStrictAndAscending(t *testing.T) {
	gw, _ := seedGateway(t)

	snap, err := gw.QuerySince(context.Background(), "boulder_k_index_1m", "time_tag", base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())

	idx := snap.ColumnIndex("k_index")
	require.Equal(t, 3.5, snap.Rows[0][idx])
	require.Equal(t, 4.5, snap.Rows[1][idx])
}

func TestQueryRejectsInvalidIdentifiers(t *testing.T) {
	gw, _ := seedGateway(t)
	ctx := context.Background()

	_, err := gw.Query(ctx, `boulder"; DROP TABLE solar_regions; --`, 0)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	var qerr *QueryError
	require.True(t, errors.As(err, &qerr))
	require.Equal(t, "query", qerr.Op)

	_, err = gw.QuerySince(ctx, "boulder_k_index_1m", "time tag", base)
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestQueryMissingTableIsQueryError(t *testing.T) {
	gw, _ := seedGateway(t)

	_, err := gw.Query(context.Background(), "no_such_table", 0)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	require.Equal(t, "no_such_table", qerr.Table)
}
