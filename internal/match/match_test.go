package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/yield-atlas/internal/fips"
	"github.com/sells-group/yield-atlas/internal/model"
)

func county(code int, name string) *model.County {
	return &model.County{StateCode: 17, CountyCode: code, Name: name, GEOID: fips.GEOID(17, code)}
}

func record(code int, name string, yield float64) model.YieldRecord {
	return model.YieldRecord{StateCode: 17, CountyCode: model.Int(code), CountyName: name, GeoLevel: "COUNTY", Yield: model.Float(yield)}
}

func fallback(yield *float64) model.YieldRecord {
	return model.YieldRecord{StateCode: 17, CountyName: "OTHER COUNTIES", GeoLevel: "COUNTY", Yield: yield}
}

func opts() Options {
	return Options{StateCode: 17, FallbackName: "OTHER COUNTIES"}
}

func TestJoin_DirectAndFallback(t *testing.T) {
	counties := []*model.County{county(1, "Adams"), county(99, "Ninety-Nine")}
	records := []model.YieldRecord{record(1, "ADAMS", 180), fallback(model.Float(150))}

	report, err := Join(counties, records, opts())
	require.NoError(t, err)

	require.NotNil(t, counties[0].Yield)
	assert.Equal(t, 180.0, *counties[0].Yield)
	assert.Equal(t, model.YieldSourceDirect, counties[0].YieldSource)

	require.NotNil(t, counties[1].Yield)
	assert.Equal(t, 150.0, *counties[1].Yield)
	assert.Equal(t, model.YieldSourceFallback, counties[1].YieldSource)

	assert.Equal(t, []*model.County{counties[0]}, report.Matched)
	assert.Equal(t, []*model.County{counties[1]}, report.Filled)
	assert.Empty(t, report.Unresolved)
	assert.True(t, report.OK())
	require.NotNil(t, report.Fallback)
	assert.Equal(t, "OTHER COUNTIES", report.Fallback.CountyName)
	assert.Equal(t, "1 matched, 1 filled from fallback, 0 unresolved, 0 unused records", report.Summary())
}

func TestJoin_EveryCountyHasYield(t *testing.T) {
	counties := []*model.County{county(1, "A"), county(3, "B"), county(5, "C"), county(7, "D")}
	records := []model.YieldRecord{record(3, "B", 201.5), record(7, "D", 0), fallback(model.Float(163))}

	_, err := Join(counties, records, opts())
	require.NoError(t, err)
	for _, c := range counties {
		assert.NotNil(t, c.Yield, c.Name)
	}
	assert.Equal(t, 0.0, *counties[3].Yield)
	assert.Equal(t, model.YieldSourceDirect, counties[3].YieldSource)
}

func TestJoin_SuppressedRecordUsesFallback(t *testing.T) {
	counties := []*model.County{county(5, "Bond")}
	suppressed := model.YieldRecord{StateCode: 17, CountyCode: model.Int(5), CountyName: "BOND"}
	records := []model.YieldRecord{suppressed, fallback(model.Float(150))}

	report, err := Join(counties, records, opts())
	require.NoError(t, err)
	assert.Equal(t, 150.0, *counties[0].Yield)
	assert.Equal(t, model.YieldSourceFallback, counties[0].YieldSource)
	assert.Empty(t, report.UnusedRecords)
}

func TestJoin_FallbackNameFolding(t *testing.T) {
	counties := []*model.County{county(9, "Brown")}
	fb := fallback(model.Float(140))
	fb.CountyName = "  other   Counties "

	_, err := Join(counties, []model.YieldRecord{fb}, opts())
	require.NoError(t, err)
	assert.Equal(t, 140.0, *counties[0].Yield)
}

func TestJoin_ConfiguredFallbackName(t *testing.T) {
	counties := []*model.County{county(9, "Brown")}
	fb := fallback(model.Float(140))
	fb.CountyName = "OTHER (COMBINED) COUNTIES"

	o := opts()
	o.FallbackName = "Other (Combined) Counties"
	_, err := Join(counties, []model.YieldRecord{fallback(model.Float(1)), fb}, o)
	require.NoError(t, err)
	assert.Equal(t, 140.0, *counties[0].Yield)
}

func TestJoin_NoFallbackIsJoinError(t *testing.T) {
	counties := []*model.County{county(1, "Adams"), county(99, "Ninety-Nine")}
	records := []model.YieldRecord{record(1, "ADAMS", 180)}

	report, err := Join(counties, records, opts())
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageJoin))
	assert.Contains(t, err.Error(), `no "OTHER COUNTIES" record`)
	assert.Contains(t, err.Error(), "Ninety-Nine (17099)")

	require.NotNil(t, report)
	assert.Equal(t, []*model.County{counties[1]}, report.Unresolved)
	assert.False(t, report.OK())
}

func TestJoin_SuppressedFallbackIsJoinError(t *testing.T) {
	counties := []*model.County{county(99, "Ninety-Nine")}

	report, err := Join(counties, []model.YieldRecord{fallback(nil)}, opts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback record has no yield")
	assert.Len(t, report.Unresolved, 1)
}

func TestJoin_DuplicateRecordCode(t *testing.T) {
	counties := []*model.County{county(1, "Adams")}
	records := []model.YieldRecord{record(1, "ADAMS", 180), record(1, "ADAMS", 181)}

	_, err := Join(counties, records, opts())
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageJoin))
	assert.Contains(t, err.Error(), "county 17001")
}

func TestJoin_OtherStatesIgnored(t *testing.T) {
	counties := []*model.County{county(1, "Adams")}
	other := record(1, "ADAMS", 999)
	other.StateCode = 18
	records := []model.YieldRecord{other, record(1, "ADAMS", 180), fallback(model.Float(150))}

	_, err := Join(counties, records, opts())
	require.NoError(t, err)
	assert.Equal(t, 180.0, *counties[0].Yield)
}

func TestJoin_AllStatesKeysOnStateAndCounty(t *testing.T) {
	indiana := &model.County{StateCode: 18, CountyCode: 1, Name: "Adams", GEOID: "18001"}
	counties := []*model.County{county(1, "Adams"), indiana}
	records := []model.YieldRecord{record(1, "ADAMS", 180), fallback(model.Float(150))}

	report, err := Join(counties, records, Options{FallbackName: "OTHER COUNTIES"})
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageJoin))
	assert.Contains(t, err.Error(), "Adams (18001)")
	assert.Nil(t, indiana.Yield)
	assert.Equal(t, []*model.County{indiana}, report.Unresolved)
	assert.Equal(t, 180.0, *counties[0].Yield)
}

func TestJoin_AllStatesSharedCountyCode(t *testing.T) {
	indiana := &model.County{StateCode: 18, CountyCode: 1, Name: "Adams", GEOID: "18001"}
	wells := &model.County{StateCode: 18, CountyCode: 179, Name: "Wells", GEOID: "18179"}
	counties := []*model.County{county(1, "Adams"), county(3, "Alexander"), indiana, wells}

	inAdams := record(1, "ADAMS", 120)
	inAdams.StateCode = 18
	inOther := fallback(model.Float(110))
	inOther.StateCode = 18
	records := []model.YieldRecord{record(1, "ADAMS", 180), fallback(model.Float(150)), inAdams, inOther}

	report, err := Join(counties, records, Options{FallbackName: "OTHER COUNTIES"})
	require.NoError(t, err)

	assert.Equal(t, 180.0, *counties[0].Yield)
	assert.Equal(t, 150.0, *counties[1].Yield)
	assert.Equal(t, 120.0, *indiana.Yield)
	assert.Equal(t, model.YieldSourceDirect, indiana.YieldSource)
	assert.Equal(t, 110.0, *wells.Yield)
	assert.Equal(t, model.YieldSourceFallback, wells.YieldSource)

	require.Len(t, report.Fallbacks, 2)
	assert.Equal(t, 150.0, *report.Fallbacks[17].Yield)
	assert.Equal(t, 110.0, *report.Fallbacks[18].Yield)
	assert.Equal(t, 17, report.Fallback.StateCode)
}

func TestJoin_UnusedRecords(t *testing.T) {
	counties := []*model.County{county(1, "Adams")}
	records := []model.YieldRecord{record(1, "ADAMS", 180), record(201, "NOWHERE", 10), fallback(model.Float(150))}

	report, err := Join(counties, records, opts())
	require.NoError(t, err)
	require.Len(t, report.UnusedRecords, 1)
	assert.Equal(t, "NOWHERE", report.UnusedRecords[0].CountyName)
}

func TestJoin_Idempotent(t *testing.T) {
	counties := []*model.County{county(1, "Adams"), county(99, "Ninety-Nine")}
	records := []model.YieldRecord{record(1, "ADAMS", 180), fallback(model.Float(150))}

	_, err := Join(counties, records, opts())
	require.NoError(t, err)
	first := snapshot(counties)

	counties[0].PctChange = model.Float(12)
	_, err = Join(counties, records, opts())
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(counties))
}

func TestJoin_DoesNotAliasRecordValues(t *testing.T) {
	counties := []*model.County{county(1, "Adams")}
	records := []model.YieldRecord{record(1, "ADAMS", 180), fallback(model.Float(150))}

	_, err := Join(counties, records, opts())
	require.NoError(t, err)
	*counties[0].Yield = 0
	assert.Equal(t, 180.0, *records[0].Yield)
}

func TestJoin_RequiresFallbackName(t *testing.T) {
	_, err := Join(nil, nil, Options{StateCode: 17})
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageJoin))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, normalizeName("OTHER COUNTIES"), normalizeName(" other\tcounties "))
	assert.NotEqual(t, normalizeName("OTHER COUNTIES"), normalizeName("OTHER COUNTY"))
}

type joined struct {
	Yield  float64
	Source model.YieldSource
	Pct    *float64
}

func snapshot(counties []*model.County) []joined {
	out := make([]joined, len(counties))
	for i, c := range counties {
		out[i] = joined{Yield: *c.Yield, Source: c.YieldSource, Pct: c.PctChange}
	}
	return out
}
