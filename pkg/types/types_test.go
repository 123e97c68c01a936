package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTripDocument_UpgradesV1(t *testing.T) {
	doc, err := DecodeTripDocument([]byte(`{"travelers":[" Sara@Example.com ",""],"total_cost":1200.5}`))
	require.NoError(t, err)

	assert.Equal(t, CurrentDocumentVersion, doc.SchemaVersion)
	require.Len(t, doc.Clients, 1)
	assert.Equal(t, "sara@example.com", doc.Clients[0].ClientEmail)
	assert.Equal(t, RoleTraveler, doc.Clients[0].Role)
	assert.Equal(t, 1200.5, doc.Financials.TotalCost)
}

func TestDecodeTripDocument(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		doc, err := DecodeTripDocument(nil)
		require.NoError(t, err)
		assert.Equal(t, CurrentDocumentVersion, doc.SchemaVersion)
		assert.NotNil(t, doc.Clients)
	})

	t.Run("current", func(t *testing.T) {
		doc, err := DecodeTripDocument([]byte(`{"schema_version":2,"clients":[{"client_email":"a@b.co","role":"traveler"}],"accommodations":[{"name":"Inn","nights":2}]}`))
		require.NoError(t, err)
		require.Len(t, doc.Clients, 1)
		require.Len(t, doc.Accommodations, 1)
		assert.Equal(t, 2, doc.Accommodations[0].Nights)
	})

	t.Run("newer version", func(t *testing.T) {
		_, err := DecodeTripDocument([]byte(`{"schema_version":9}`))
		require.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeTripDocument([]byte(`{`))
		require.Error(t, err)
	})
}

func TestTripDocument_Validate(t *testing.T) {
	valid := NewTripDocument()
	valid.Clients = []ClientAssignment{{ClientEmail: "a@b.co", Role: RoleTraveler}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		doc   TripDocument
		field string
	}{
		{"bad email", TripDocument{Clients: []ClientAssignment{{ClientEmail: "nope", Role: RoleTraveler}}}, "clients[0].client_email"},
		{"bad role", TripDocument{Clients: []ClientAssignment{{ClientEmail: "a@b.co", Role: "pilot"}}}, "clients[0].role"},
		{"negative cost", TripDocument{Financials: FinancialSummary{TotalCost: -1}}, "financials.total_cost"},
		{"negative deposit", TripDocument{Financials: FinancialSummary{Deposit: -1}}, "financials.deposit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEncodeSetsVersion(t *testing.T) {
	doc := &TripDocument{}
	raw, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema_version":2,"clients":[],"financials":{"total_cost":0}}`, string(raw))
}

func TestParseStatusAndRole(t *testing.T) {
	s, err := ParseStatus(" Canceled ")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, s)

	_, err = ParseStatus("lost")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleTraveler, r)

	r, err = ParseRole("PRIMARY_TRAVELER")
	require.NoError(t, err)
	assert.Equal(t, RolePrimaryTraveler, r)

	_, err = ParseRole("pilot")
	require.Error(t, err)
}

func TestTripHelpers(t *testing.T) {
	trip := &Trip{
		Destinations: []string{"Bristol", "Bath"},
		StartDate:    time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		Document: TripDocument{Clients: []ClientAssignment{
			{ClientEmail: "darren@example.com", Role: RoleTraveler},
			{ClientEmail: "sara@example.com", Role: RolePrimaryTraveler},
		}},
	}
	assert.Equal(t, "Bristol", trip.PrimaryDestination())
	assert.Equal(t, 2024, trip.Year())
	c, ok := trip.PrimaryClient()
	require.True(t, ok)
	assert.Equal(t, "sara@example.com", c.ClientEmail)

	empty := &Trip{}
	assert.Equal(t, "", empty.PrimaryDestination())
	assert.Equal(t, 0, empty.Year())
	_, ok = empty.PrimaryClient()
	assert.False(t, ok)
}

func TestEmailHelpers(t *testing.T) {
	assert.True(t, IsEmail(" Jane.Doe@Example.com "))
	assert.False(t, IsEmail("jane.doe@"))
	assert.False(t, IsEmail("example.com"))
	assert.Equal(t, "jane.doe@example.com", NormalizeEmail(" Jane.Doe@Example.COM"))
	assert.Equal(t, "jane.doe", EmailLocalPart("jane.doe@example.com"))
	assert.Equal(t, "nobody", EmailLocalPart("nobody"))
}

func TestErrorMessages(t *testing.T) {
	nf := &NotFoundError{
		Query:        "maui",
		Suggestions:  []Suggestion{{TripID: 1, Name: "Maui Escape"}},
		Alternatives: []string{"search by client email"},
	}
	assert.Equal(t, `no trip matches "maui"; closest: Maui Escape; try: search by client email`, nf.Error())

	cause := errors.New("disk full")
	ce := &ConsistencyError{TripID: 7, Missing: []AssignmentKey{{TripID: 7}}, Cause: cause}
	assert.ErrorIs(t, ce, cause)
	assert.Contains(t, ce.Error(), "1 missing, 0 extra")
	assert.Contains(t, ce.Error(), "reconcile_trip")

	te := &TimeoutError{Stage: "recompute", Budget: 5 * time.Second, Completed: 3}
	assert.Contains(t, te.Error(), "partial result returned")

	cx := &ComplexityError{Stage: "weighted", Limit: 32, Actual: 40}
	assert.Equal(t, "weighted stage: query has 40 terms, limit is 32", cx.Error())

	assert.Equal(t, "invalid slug: bad", NewValidationError("slug", "bad").Error())
}

func TestSameMetrics(t *testing.T) {
	a := TripFacts{TripID: 1, Nights: 3, Version: 1, LastComputed: time.Now()}
	b := TripFacts{TripID: 1, Nights: 3, Version: 2}
	assert.True(t, a.SameMetrics(b))
	b.TotalCost = 10
	assert.False(t, a.SameMetrics(b))
}
