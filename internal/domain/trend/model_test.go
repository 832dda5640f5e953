package trend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	r := &Report{
		ID:      "r1",
		Query:   Query{Geo: "IT-52", Timeframe: "today 5-y"},
		Missing: []string{"hikikomori"},
		Stats: []KeywordStats{
			{Keyword: "mindfulness", Mean: 30, Slope: 0.12, Direction: DirectionUp},
			{Keyword: "trauma", Mean: math.NaN(), Slope: -0.05, Direction: DirectionDown},
			{Keyword: "ipnosi", Mean: math.Inf(1), Slope: 0, Direction: DirectionDown},
		},
	}

	sm := r.Summarize()
	assert.Equal(t, "IT-52", sm.Geo)
	assert.Equal(t, []string{"hikikomori"}, sm.Missing)
	require.Len(t, sm.Stats, 3)

	require.NotNil(t, sm.Stats[0].Mean)
	assert.Equal(t, 30.0, *sm.Stats[0].Mean)
	assert.Equal(t, DirectionUp, sm.Stats[0].Direction)
	assert.Nil(t, sm.Stats[1].Mean)
	assert.Equal(t, -0.05, sm.Stats[1].Slope)
	assert.Nil(t, sm.Stats[2].Mean)
}

func TestSummarize_NoStats(t *testing.T) {
	sm := (&Report{ID: "empty"}).Summarize()
	assert.NotNil(t, sm.Stats)
	assert.Empty(t, sm.Stats)
}
