package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoordinate(t *testing.T) {
	c, err := NewCoordinate(6.9271, 79.8612)
	require.NoError(t, err)
	assert.Equal(t, []float64{79.8612, 6.9271}, c.CoordsToList())

	_, err = NewCoordinate(91, 0)
	assert.Error(t, err)

	_, err = NewCoordinate(0, math.NaN())
	assert.Error(t, err)

	_, err = NewCoordinate(-90, 180)
	assert.NoError(t, err, "range bounds are inclusive")
}

func TestCoordinateEqual(t *testing.T) {
	a := Coordinate{Lat: 1, Lon: 2}
	assert.True(t, a.Equal(Coordinate{Lat: 1 + 5e-10, Lon: 2}))
	assert.False(t, a.Equal(Coordinate{Lat: 1 + 1e-8, Lon: 2}))
}

func TestProviderErrorKinds(t *testing.T) {
	err := Unavailable("vroom", assert.AnError)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrProviderRejected)
	assert.ErrorIs(t, err, assert.AnError)

	rej := Rejected("vroom", nil)
	assert.ErrorIs(t, rej, ErrProviderRejected)
	assert.Equal(t, "vroom: provider rejected request", rej.Error())
}

func TestVisitedStopIDsSkipsEndLeg(t *testing.T) {
	first := "A"
	r := RouteResult{OrderedLegs: []RouteLeg{
		{ToStopID: "A"},
		{FromStopID: &first, ToStopID: "B"},
		{ToStopID: EndLocationID},
	}}
	assert.Equal(t, []string{"A", "B"}, r.VisitedStopIDs())
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "no. 10 galle road, colombo", NormalizeAddress("  No. 10   Galle Road,\tColombo \n"))
	assert.Equal(t, NormalizeAddress("Colombo Fort"), NormalizeAddress("colombo   FORT"))
	assert.Equal(t, "", NormalizeAddress("   "))
}
