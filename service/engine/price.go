package engine

import (
	"math/big"
	"time"

	"github.com/namebid/auctiond/lib/auction"
)

// dutchPrice returns the clearing price elapsed into the descent. The price
// starts at StartPrice, never rises, and is clamped to FloorPrice from the
// end of the descent onward. All arithmetic is integral; division rounds
// down, which keeps a descending curve non-increasing.
func dutchPrice(p *auction.DutchParams, elapsed time.Duration) *big.Int {
	if elapsed <= 0 {
		return new(big.Int).Set(p.StartPrice)
	}
	if elapsed >= p.Duration {
		return new(big.Int).Set(p.FloorPrice)
	}

	t := big.NewInt(elapsed.Nanoseconds())
	dur := big.NewInt(p.Duration.Nanoseconds())
	diff := new(big.Int).Sub(p.StartPrice, p.FloorPrice)

	switch p.Curve {
	case auction.CurveQuadratic:
		// floor + diff * (dur-t)^2 / dur^2: fast early descent easing out
		// toward the floor.
		remain := new(big.Int).Sub(dur, t)
		num := new(big.Int).Mul(diff, remain)
		num.Mul(num, remain)
		num.Div(num, new(big.Int).Mul(dur, dur))
		return num.Add(num, p.FloorPrice)
	default:
		// start - diff * t / dur: constant-rate descent.
		num := new(big.Int).Mul(diff, t)
		num.Div(num, dur)
		return new(big.Int).Sub(p.StartPrice, num)
	}
}
