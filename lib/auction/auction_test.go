package auction

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDutch(base time.Time) Auction {
	return Auction{
		Listing:   "example.eth",
		Kind:      KindDutch,
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Dutch: &DutchParams{
			StartPrice: big.NewInt(1000),
			FloorPrice: big.NewInt(100),
			Duration:   time.Hour,
			Curve:      CurveLinear,
		},
	}
}

func validSealed(base time.Time) Auction {
	return Auction{
		Listing:     "example.eth",
		Kind:        KindSealed,
		StartTime:   base,
		EndTime:     base.Add(time.Hour),
		RevealStart: base.Add(time.Hour),
		RevealEnd:   base.Add(2 * time.Hour),
		Sealed:      &SealedParams{MinDeposit: big.NewInt(0)},
	}
}

func TestAuctionValidate(t *testing.T) {
	t.Parallel()
	base := time.Now()

	require.Error(t, (&Auction{}).Validate())
	require.NoError(t, func() error { a := validDutch(base); return a.Validate() }())

	tests := []struct {
		name   string
		mutate func(a *Auction)
	}{
		{"empty listing", func(a *Auction) { a.Listing = "" }},
		{"end before start", func(a *Auction) { a.EndTime = a.StartTime.Add(-time.Second) }},
		{"end equals start", func(a *Auction) { a.EndTime = a.StartTime }},
		{"negative extension", func(a *Auction) { a.AntiSnipingExtension = -time.Second }},
		{"fees exceed 100%", func(a *Auction) { a.Fees = Fees{ProtocolBps: 9000, CreatorBps: 2000} }},
		{"missing dutch params", func(a *Auction) { a.Dutch = nil }},
		{"both param sets", func(a *Auction) { a.Sealed = &SealedParams{MinDeposit: big.NewInt(0)} }},
		{"floor above start", func(a *Auction) { a.Dutch.FloorPrice = big.NewInt(2000) }},
		{"zero duration", func(a *Auction) { a.Dutch.Duration = 0 }},
		{"duration window mismatch", func(a *Auction) { a.Dutch.Duration = time.Minute }},
		{"invalid curve", func(a *Auction) { a.Dutch.Curve = Curve(99) }},
		{"negative start price", func(a *Auction) { a.Dutch.StartPrice = big.NewInt(-1) }},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			a := validDutch(base)
			a.Dutch = &DutchParams{
				StartPrice: new(big.Int).Set(a.Dutch.StartPrice),
				FloorPrice: new(big.Int).Set(a.Dutch.FloorPrice),
				Duration:   a.Dutch.Duration,
				Curve:      a.Dutch.Curve,
			}
			test.mutate(&a)
			require.Error(t, a.Validate())
		})
	}
}

func TestAuctionValidateSealed(t *testing.T) {
	t.Parallel()
	base := time.Now()

	a := validSealed(base)
	require.NoError(t, a.Validate())

	a = validSealed(base)
	a.RevealStart = a.EndTime.Add(time.Second)
	require.Error(t, a.Validate())

	a = validSealed(base)
	a.RevealEnd = a.RevealStart
	require.Error(t, a.Validate())

	a = validSealed(base)
	a.Sealed.MinDeposit = nil
	require.Error(t, a.Validate())

	a = validSealed(base)
	a.Dutch = validDutch(base).Dutch
	require.Error(t, a.Validate())
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateAmount(big.NewInt(0)))
	require.NoError(t, ValidateAmount(big.NewInt(1)))
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, ValidateAmount(max))

	require.Error(t, ValidateAmount(nil))
	require.Error(t, ValidateAmount(big.NewInt(-1)))
	require.Error(t, ValidateAmount(new(big.Int).Lsh(big.NewInt(1), 256)))
}

func TestParseAmount(t *testing.T) {
	t.Parallel()
	amount, err := ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", amount.String())

	_, err = ParseAmount("")
	require.Error(t, err)
	_, err = ParseAmount("0x10")
	require.Error(t, err)
	_, err = ParseAmount("-5")
	require.Error(t, err)
	_, err = ParseAmount("1.5")
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	t.Parallel()
	want := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	got, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Case-insensitive, 0x prefix optional.
	got, err = ParseAddress("0x00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	got, err = ParseAddress("00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseAddress("")
	require.Error(t, err)
	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("0xzz000000000000000000000000000000000000aa")
	require.Error(t, err)
}

func TestEnumStrings(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindUnspecified, KindDutch, KindSealed} {
		got, err := KindByString(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := KindByString("english")
	require.Error(t, err)
	assert.Equal(t, "invalid", Kind(99).String())

	for _, c := range []Curve{CurveLinear, CurveQuadratic} {
		got, err := CurveByString(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err = CurveByString("cubic")
	require.Error(t, err)

	for _, s := range []Status{
		StatusUnspecified, StatusUpcoming, StatusActive, StatusReveal, StatusSettled, StatusCanceled,
	} {
		got, err := StatusByString(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err = StatusByString("paused")
	require.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusSettled.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusUnspecified.Terminal())
	assert.False(t, StatusUpcoming.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusReveal.Terminal())
}

func TestSettlementResultNoWinner(t *testing.T) {
	t.Parallel()
	assert.True(t, (&SettlementResult{}).NoWinner())
	w := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	assert.False(t, (&SettlementResult{Winner: &w}).NoWinner())
}
