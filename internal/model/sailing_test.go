package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShipCode(t *testing.T) {
	testCases := []struct {
		sail     SailCode
		expected ShipCode
	}{
		{sail: "SD2501", expected: "SD"},
		{sail: "WH240915018", expected: "WH"},
		{sail: "X", expected: "X"},
		{sail: "", expected: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, test.sail.ShipCode(), "sail code %q", test.sail)
	}
}

func TestActionValid(t *testing.T) {
	require.True(t, ActionPrices.Valid())
	require.True(t, ActionAvailability.Valid())
	require.False(t, Action("prices").Valid())
	require.False(t, Action("").Valid())
}

func TestOccupancy(t *testing.T) {
	o := Occupancy{Adults: 3, Kids: 1}
	require.Equal(t, 4, o.Total())
	require.Equal(t, "3a1k", o.String())
}
