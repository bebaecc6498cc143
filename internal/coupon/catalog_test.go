package coupon

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(now time.Time) *Catalog {
	c := NewDefaultCatalog()
	c.Now = func() time.Time { return now }
	return c
}

var beforeExpiry = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	c := newTestCatalog(beforeExpiry)

	r, ok := c.Lookup("  save10 ")
	require.True(t, ok)
	require.Equal(t, "SAVE10", r.Code)
	require.Equal(t, 10, r.DiscountPercent)

	_, ok = c.Lookup("XYZ123")
	require.False(t, ok)
}

func TestValidateAcceptsEligibleSubtotal(t *testing.T) {
	c := newTestCatalog(beforeExpiry)

	r, err := c.Validate("save20", dec("120"))
	require.NoError(t, err)
	require.Equal(t, "SAVE20", r.Code)
	require.True(t, r.Discount(dec("120")).Equal(dec("24")))
}

func TestValidateRejections(t *testing.T) {
	c := NewCatalog(append(DefaultRules(), Rule{
		Code:            "RETIRED",
		DiscountPercent: 10,
		MinSubtotal:     decimal.Zero,
		Expiry:          time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:          false,
	}))
	c.Now = func() time.Time { return beforeExpiry }

	cases := []struct {
		name     string
		code     string
		subtotal string
		reason   Reason
		sentinel error
		message  string
	}{
		{"unknown", "XYZ123", "500", ReasonNotFound, ErrNotFound, "Invalid coupon code"},
		{"inactive", "retired", "500", ReasonInactive, ErrInactive, "This coupon is no longer valid"},
		{"empty cart", "SAVE10", "0", ReasonBelowMinimum, ErrBelowMinimum, "Minimum order amount of $50 required for this coupon"},
		{"just below", "SAVE20", "99.99", ReasonBelowMinimum, ErrBelowMinimum, "Minimum order amount of $100 required for this coupon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Validate(tc.code, dec(tc.subtotal))
			require.Error(t, err)

			var rej *Rejection
			require.True(t, errors.As(err, &rej))
			require.Equal(t, tc.reason, rej.Reason)
			require.ErrorIs(t, err, tc.sentinel)
			require.Equal(t, tc.message, err.Error())
		})
	}
}

func TestValidateMinimumIsInclusive(t *testing.T) {
	c := newTestCatalog(beforeExpiry)

	_, err := c.Validate("SAVE20", dec("100"))
	require.NoError(t, err)
}

func TestValidateExpiry(t *testing.T) {
	onExpiryDay := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)
	_, err := newTestCatalog(onExpiryDay).Validate("SAVE10", dec("80"))
	require.NoError(t, err)

	dayAfter := time.Date(2025, time.January, 1, 0, 0, 1, 0, time.UTC)
	_, err = newTestCatalog(dayAfter).Validate("SAVE10", dec("80"))
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, "This coupon has expired", err.Error())
}

func TestValidateChecksInactiveBeforeExpiry(t *testing.T) {
	c := NewCatalog([]Rule{{
		Code:   "OLD",
		Expiry: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Active: false,
	}})
	c.Now = func() time.Time { return beforeExpiry }

	_, err := c.Validate("OLD", dec("10"))
	require.ErrorIs(t, err, ErrInactive)
}

func TestDiscountKeepsFullPrecision(t *testing.T) {
	r, ok := NewDefaultCatalog().Lookup("SAVE20")
	require.True(t, ok)

	got := r.Discount(dec("329.98"))
	require.True(t, got.Equal(dec("65.996")), got.String())
}

func TestFlat50IsPercentOff(t *testing.T) {
	r, ok := NewDefaultCatalog().Lookup("FLAT50")
	require.True(t, ok)
	require.True(t, r.Discount(dec("400")).Equal(dec("200")))
}

func TestListAndCodes(t *testing.T) {
	c := NewDefaultCatalog()

	codes := c.Codes()
	require.Len(t, codes, 10)
	require.Equal(t, "BIGSAVE", codes[0])

	list := c.List()
	require.Len(t, list, 10)
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].Code, list[i].Code)
	}
}

func TestRuleJSONShape(t *testing.T) {
	r, _ := NewDefaultCatalog().Lookup("WELCOME15")
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "WELCOME15", body["code"])
	require.Equal(t, float64(15), body["discount"])
	require.Equal(t, "30", body["minAmount"])
	require.Equal(t, "2024-12-31", body["expiryDate"])
	require.Equal(t, true, body["valid"])
}
