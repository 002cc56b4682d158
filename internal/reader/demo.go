package reader

import (
	"context"
	"math"

	"github.com/anchor/vaultaire/config"
	"github.com/anchor/vaultaire/internal/broker"
	"github.com/anchor/vaultaire/internal/types"
	"github.com/anchor/vaultaire/internal/wire"
)

// demoSource tags every synthesized point.
func demoSource() types.SourceDict {
	return types.SourceDict{"wave": "sine"}
}

// demoPoints synthesizes the demo burst: one measurement every
// DemoStepSeconds starting at the request's first whole second, for
// DemoPointCount steps, filtered to [alpha, omega]. The value traces a
// sine with a DemoPeriodSeconds period.
func demoPoints(req types.Request) []types.Point {
	base := req.Alpha / 1e9

	var points []types.Point
	for k := uint64(0); k < config.DemoPointCount; k++ {
		ts := (base + config.DemoStepSeconds*k) * 1e9
		if ts < req.Alpha || ts > req.Omega {
			continue
		}
		seconds := float64(ts / 1e9)
		points = append(points, types.Point{
			Origin:    req.Origin,
			Source:    demoSource(),
			Timestamp: ts,
			Payload: types.Payload{
				Kind:        types.PayloadReal,
				Measurement: math.Sin(2 * math.Pi * seconds / config.DemoPeriodSeconds),
			},
		})
	}
	return points
}

func (w *Worker) processDemo(ctx context.Context, msg broker.Message, req types.Request) {
	points := demoPoints(req)
	if len(points) == 0 {
		return
	}
	w.reply(ctx, msg, wire.EncodePoints(points))
}
