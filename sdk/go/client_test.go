package adpsdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/app"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/server"
)

func newPortal(t *testing.T) string {
	t.Helper()
	p, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), DBPath: ":memory:", Out: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	handler, err := server.New(server.Config{
		Engine: p.Engine,
		Auth:   server.AuthConfig{JWTSecret: "sdk-secret", DevLogin: true, LoginRate: 100, Logger: p.Log},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func login(t *testing.T, url, user, role string) *Client {
	t.Helper()
	c := New(url)
	_, err := c.DevLogin(context.Background(), user, user, role)
	require.NoError(t, err)
	return c
}

func TestClientRejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	url := newPortal(t)
	eng := login(t, url, "eng1", "engineer")
	com := login(t, url, "com1", "Commissioner")

	me, err := eng.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Engineer", me.Section)

	cycle, err := eng.SetCycle(ctx, 1, "CR-12", "2024-04-01")
	require.NoError(t, err)
	assert.True(t, cycle.Active)

	w, err := eng.Submit(ctx, NewWork{
		Sector:       "Street Lights",
		ProposalName: "LED lights on Main Road",
		Locality:     "Main Road",
		WardNo:       "4",
		Cost:         "120000.50",
		Priority:     2,
		WorkImage:    &Upload{Name: "pole.jpg", MimeType: "image/jpeg", Content: []byte{0xff, 0xd8, 0xff}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CR-12", w.CRNumber)

	b, err := eng.Budget(ctx)
	require.NoError(t, err)
	assert.Equal(t, "₹8,79,999.50", b.Remaining)

	fwd, err := eng.Forward(ctx)
	require.NoError(t, err)
	require.Len(t, fwd.Items, 1)
	id := fwd.Items[0].ID

	_, err = com.Act(ctx, "reject", []string{id}, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "remarks_required", apiErr.Code)

	rejected, err := com.Act(ctx, "reject", []string{id}, "Attach the estimate")
	require.NoError(t, err)
	assert.Equal(t, "Commissioner Rejected", rejected.Items[0].Status)

	back, err := eng.Dashboard(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, back.Items, 1)

	re, err := eng.Resubmit(ctx, id, Correction{
		Note:           "estimate attached",
		DetailedReport: &Upload{Name: "estimate.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pending Review", re.Status)
	assert.Contains(t, re.DetailedReport, "data:application/pdf;base64,")

	groups, err := com.ByCR(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "CR-12", groups[0].CRNumber)

	events, err := com.EventsPage(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, events.Items, 2)
	assert.NotEmpty(t, events.NextCursor)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	url := newPortal(t)

	anon := New(url)
	_, err := anon.Me(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	cdma := login(t, url, "cdma1", "cdma")
	_, err = cdma.Forward(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "forbidden", apiErr.Code)

	eng := login(t, url, "eng1", "engineer")
	_, err = eng.Forward(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.Error(t, eng.DiscardLocal(ctx, "missing"))

	_, err = eng.Submit(ctx, NewWork{Sector: "Roads", ProposalName: "Kerb", Locality: "Ward 2", WardNo: "2", Cost: "10.005", Priority: 1})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad_request", apiErr.Code)

	_, err = eng.Submit(ctx, NewWork{Sector: "Roads", ProposalName: "Kerb", Locality: "Ward 2", WardNo: "2", Cost: "1000", Priority: 1})
	require.NoError(t, err)
	require.NoError(t, eng.EndSession(ctx))
	local, err := eng.LocalWorks(ctx)
	require.NoError(t, err)
	assert.Empty(t, local.Items)
}
