package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaSentiment/internal/model"
)

var sentinels = []string{model.DefaultSentinel}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_MeanPerQuarter(t *testing.T) {
	series := model.Series{ID: "SENT", Column: "sentiment", Frequency: model.Daily}
	obs := []model.Observation{
		{Date: day(2020, time.April, 2), Value: "3"},
		{Date: day(2020, time.January, 5), Value: "1"},
		{Date: day(2020, time.March, 31), Value: "2"},
		{Date: day(2020, time.June, 30), Value: "5"},
		{Date: day(2020, time.May, 1), Value: "."},
	}

	table, err := Normalize(series, obs, Mean, sentinels)
	require.NoError(t, err)
	require.Len(t, table.Cells, 2)

	assert.Equal(t, model.Quarter{Year: 2020, Quarter: 1}, table.Cells[0].Key)
	assert.Equal(t, "1.5", table.Cells[0].Raw)
	assert.Equal(t, model.Quarter{Year: 2020, Quarter: 2}, table.Cells[1].Key)
	assert.Equal(t, "4", table.Cells[1].Raw)
	assert.Equal(t, "sentiment", table.Column)
}

func TestNormalize_NoDuplicateKeys(t *testing.T) {
	series := model.Series{ID: "DJIA", Column: "stock_close", Frequency: model.Daily}
	var obs []model.Observation
	for d := day(2018, time.January, 1); d.Before(day(2020, time.January, 1)); d = d.AddDate(0, 0, 1) {
		obs = append(obs, model.Observation{Date: d, Value: "100"})
	}

	table, err := Normalize(series, obs, Mean, sentinels)
	require.NoError(t, err)
	assert.Len(t, table.Cells, 8)

	seen := map[model.Quarter]bool{}
	for i, c := range table.Cells {
		assert.False(t, seen[c.Key], "duplicate key %s", c.Key)
		seen[c.Key] = true
		if i > 0 {
			assert.True(t, table.Cells[i-1].Key.Before(c.Key))
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	_, err := Normalize(model.Series{ID: "X"}, nil, Mean, sentinels)
	var insufficient *model.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "X", insufficient.Series)
}

func TestNormalize_AllMissingQuarter(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2021, time.January, 4), Value: "10"},
		{Date: day(2021, time.April, 5), Value: "."},
		{Date: day(2021, time.May, 5), Value: "."},
	}
	_, err := Normalize(model.Series{ID: "DJIA"}, obs, Mean, sentinels)

	var malformed *model.MalformedObservationError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, model.Quarter{Year: 2021, Quarter: 2}, malformed.Period)
}

func TestNormalize_NonNumeric(t *testing.T) {
	obs := []model.Observation{{Date: day(2021, time.January, 4), Value: "n/a"}}
	_, err := Normalize(model.Series{ID: "DJIA"}, obs, Mean, sentinels)

	var malformed *model.MalformedObservationError
	assert.ErrorAs(t, err, &malformed)
}

func TestNormalize_NonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Infinity"} {
		obs := []model.Observation{
			{Date: day(2021, time.January, 4), Value: "10"},
			{Date: day(2021, time.January, 5), Value: raw},
		}
		_, err := Normalize(model.Series{ID: "DJIA"}, obs, Mean, sentinels)

		var malformed *model.MalformedObservationError
		assert.ErrorAs(t, err, &malformed, raw)
	}
}

func TestParseValue(t *testing.T) {
	v, ok := ParseValue(" 1.5 ")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
	for _, raw := range []string{"", ".", "abc", "NaN", "inf"} {
		_, ok := ParseValue(raw)
		assert.False(t, ok, raw)
	}
}

func TestTagQuarterly_KeepsSentinels(t *testing.T) {
	series := model.Series{ID: "GDP", Column: "gdp", Frequency: model.Quarterly}
	obs := []model.Observation{
		{Date: day(2020, time.April, 1), Value: "."},
		{Date: day(2020, time.January, 1), Value: "21000.5"},
	}

	table, err := TagQuarterly(series, obs)
	require.NoError(t, err)
	require.Len(t, table.Cells, 2)
	assert.Equal(t, "21000.5", table.Cells[0].Raw)
	assert.Equal(t, ".", table.Cells[1].Raw)
}

func TestTagQuarterly_DuplicateQuarter(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2020, time.January, 1), Value: "1"},
		{Date: day(2020, time.February, 1), Value: "2"},
	}
	_, err := TagQuarterly(model.Series{ID: "GDP", Frequency: model.Quarterly}, obs)

	var malformed *model.MalformedObservationError
	assert.ErrorAs(t, err, &malformed)
}

func TestBuildTable_Dispatch(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2020, time.January, 1), Value: "1"},
		{Date: day(2020, time.January, 2), Value: "3"},
	}

	daily, err := BuildTable(model.Series{ID: "A", Frequency: model.Daily}, obs, sentinels)
	require.NoError(t, err)
	assert.Equal(t, "2", daily.Cells[0].Raw)

	_, err = BuildTable(model.Series{ID: "B", Frequency: model.Quarterly}, obs, sentinels)
	assert.Error(t, err)
}
