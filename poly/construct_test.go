package poly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/polyorm/poly"
)

func TestConstruct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dealer1 := &Dealer{ID: 1}

	company1 := construct(t, f.companies, map[string]any{"id": 1, "dealer": dealer1})
	got, err := f.companyDealer.Resolve(t.Context(), company1)
	require.NoError(t, err)
	assert.Same(t, dealer1, got)
	assert.Equal(t, int64(1), company1.DealerID)

	company1.DealerID = 10
	got, err = f.companyDealer.Resolve(t.Context(), company1)
	require.NoError(t, err)
	assert.Equal(t, &Dealer{ID: 10}, got)

	assert.Equal(t, "<Company id: 1>", poly.Describe(company1))
}

func TestConstructSetsColumnsBeforeAttributes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	org := &Org{ID: 3}
	f.orgDB.put(org)

	// "buyer" sorts before "buyer_type", but the column must already be
	// set when the field reads it back.
	rec := construct(t, f.records, map[string]any{
		"buyer_type": "org",
		"buyer_id":   3,
		"seller":     &Dealer{ID: 8},
	})
	got, err := f.buyer.Resolve(t.Context(), rec)
	require.NoError(t, err)
	assert.Same(t, org, got)
	assert.Equal(t, nullID(8), rec.SellerID)
}

func TestConstructErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fields  map[string]any
		wantErr bool
		is      error
	}{
		{
			name:    "unknown attribute",
			fields:  map[string]any{"colour": "red"},
			wantErr: true,
			is:      poly.ErrNoBacking,
		},
		{
			name:    "unconvertible column value",
			fields:  map[string]any{"dealer_id": []string{"x"}},
			wantErr: true,
		},
		{
			name:   "rejected assignment is skipped",
			fields: map[string]any{"id": 2, "dealer": &Org{ID: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			c, err := poly.Construct(f.companies, tt.fields)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Zero(t, c.DealerID)
				return
			}
			require.Error(t, err)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestConstructNoBackingIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := poly.Construct(f.prices, map[string]any{"source": &Org{ID: 1}})
	require.ErrorIs(t, err, poly.ErrNoBacking)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	type named struct {
		ID   int64
		Name string
	}

	tests := []struct {
		name string
		v    any
		want string
	}{
		{name: "id", v: &Company{ID: 1}, want: "<Company id: 1>"},
		{name: "zero id", v: &Org{}, want: "<Org>"},
		{name: "name without identifier", v: named{ID: 3, Name: "acme"}, want: "<named name: acme>"},
		{name: "nil pointer", v: (*Org)(nil), want: "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, poly.Describe(tt.v))
		})
	}
}
