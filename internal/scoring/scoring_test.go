package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csaplanner.dev/internal/csa"
)

func leg(key string, dep, arr int) csa.Leg {
	return csa.Leg{Key: key, Departure: dep, Arrival: arr}
}

func route(walkIn, walkOut int, legs ...csa.Leg) csa.Route {
	r := csa.Route{InitialWalk: walkIn, FinalWalk: walkOut, Legs: legs}
	if len(legs) > 0 {
		r.Departure = legs[0].Departure
		r.Arrival = legs[len(legs)-1].Arrival
		r.Transfers = len(legs) - 1
		keys := make([]string, len(legs))
		for i, l := range legs {
			keys[i] = l.Key
		}
		r.Key = strings.Join(keys, csa.KeySeparator)
	}
	return r
}

func TestScore(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name  string
		route csa.Route
		want  int
	}{
		{"single leg with long walk", route(3, 4, leg("A", 480, 490)), 31},
		{"single leg short walk", route(1, 1, leg("A", 480, 490)), 15},
		{"risky transfer", route(0, 0, leg("A", 480, 490), leg("B", 492, 500)), 44},
		{"missed transfer spike", route(0, 0, leg("A", 480, 490), leg("B", 490, 500)), 167},
		{"comfortable transfer", route(0, 0, leg("A", 480, 490), leg("B", 500, 510)), 20 + 15 + 15},
		{"legs out of order", route(0, 0, leg("B", 492, 500), leg("A", 480, 490)), 44},
		{"walk only", route(4, 0), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Score(&tt.route))
		})
	}
}

func TestExplain(t *testing.T) {
	r := route(2, 6, leg("A", 480, 490), leg("B", 493, 503))
	b := DefaultWeights().Explain(&r)

	assert.InDelta(t, 20, b.RideTime, 0.001)
	assert.InDelta(t, 3, b.TransferWait, 0.001)
	assert.InDelta(t, 2, b.Risk, 0.001)
	assert.InDelta(t, 8, b.Walk, 0.001)
	assert.InDelta(t, 5*2.5+3*4.0, b.WeightedWalk, 0.001)
	assert.Equal(t, 1, b.Transfers)
}

func TestFilterAndDeduplicate(t *testing.T) {
	w := DefaultWeights()

	t.Run("shared connection keeps the cheaper route", func(t *testing.T) {
		cheap := route(0, 0, leg("K1", 480, 490), leg("K2", 500, 520))
		costly := route(0, 0, leg("K3", 470, 495), leg("K2", 500, 525))

		got := w.FilterAndDeduplicate(w.ScoreAll([]csa.Route{costly, cheap}))
		require.Len(t, got, 1)
		assert.Equal(t, "K1|K2", got[0].Route.Key)
	})

	t.Run("score factor", func(t *testing.T) {
		best := route(0, 0, leg("A", 480, 500))    // 20
		ok := route(0, 0, leg("B", 485, 525))      // 40
		tooSlow := route(0, 0, leg("C", 490, 531)) // 41

		got := w.FilterAndDeduplicate(w.ScoreAll([]csa.Route{tooSlow, ok, best}))
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Route.Key)
		assert.Equal(t, "B", got[1].Route.Key)
	})

	t.Run("same departure or arrival", func(t *testing.T) {
		a := route(0, 0, leg("A", 480, 500))
		sameDep := route(0, 0, leg("B", 480, 510))
		sameArr := route(0, 0, leg("C", 475, 500))
		dup := route(0, 0, leg("A", 480, 500))

		got := w.FilterAndDeduplicate(w.ScoreAll([]csa.Route{a, sameDep, sameArr, dup}))
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0].Route.Key)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, w.FilterAndDeduplicate(nil))
	})
}

func TestDeduplicateIdempotent(t *testing.T) {
	w := DefaultWeights()
	routes := []csa.Route{
		route(1, 2, leg("A", 480, 500)),
		route(1, 2, leg("B", 490, 505)),
		route(0, 3, leg("C", 500, 512), leg("D", 516, 530)),
		route(2, 2, leg("E", 510, 530), leg("D", 516, 540)),
		route(1, 1, leg("F", 530, 545)),
		route(9, 9, leg("G", 540, 590)),
	}

	once := w.FilterAndDeduplicate(w.ScoreAll(routes))
	twice := w.FilterAndDeduplicate(once)
	assert.Equal(t, once, twice)
	assert.NotEmpty(t, once)
}

func TestByDeparture(t *testing.T) {
	scored := []Scored{
		{Route: route(0, 0, leg("B", 510, 520)), Score: 10},
		{Route: route(0, 0, leg("A", 480, 520)), Score: 40},
		{Route: route(0, 0, leg("C", 495, 520)), Score: 25},
	}
	ByDeparture(scored)
	assert.Equal(t, "A", scored[0].Route.Key)
	assert.Equal(t, "C", scored[1].Route.Key)
	assert.Equal(t, "B", scored[2].Route.Key)
}
