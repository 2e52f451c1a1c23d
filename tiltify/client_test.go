package tiltify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		BaseURL:    srv.URL + "/api/v3/",
		Token:      "secret",
		MaxRetries: 3,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}, zap.NewNop())
	return c, &hits
}

func TestGetCampaign_DecodesEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/campaigns/42", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"meta":{"status":200},"data":{"id":42,"name":"Charity Stream","slug":"charity-stream",
			"status":"published","causeId":7,"currency":"USD","avatar":{"src":"https://img/a.png"},
			"user":{"id":3,"username":"streamer","url":"/@streamer"},"team":{"id":9,"name":"Team Nine"}}}`))
	})

	camp, err := GetCampaign(context.Background(), c, "42")
	require.NoError(t, err)
	assert.Equal(t, ID("42"), camp.ID)
	assert.Equal(t, ID("7"), camp.CauseID)
	assert.Equal(t, "https://tiltify.com/@streamer/charity-stream", camp.URL())
	require.NotNil(t, camp.Team)
	assert.Equal(t, ID("9"), camp.Team.ID)
	assert.False(t, camp.Retired())
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"meta":{"status":404},"error":{"title":"Not Found"}}`))
	})

	env, err := c.Fetch(context.Background(), Campaigns, "1")
	require.NoError(t, err)
	assert.Equal(t, 404, env.Meta.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = GetCampaign(context.Background(), c, "1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"meta":{"status":200},"data":[{"id":1001,"name":"Ann","amount":5,"comment":""}]}`))
	})

	ds, err := Donations(context.Background(), c, "42")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, int64(1001), ds[0].ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestFetch_ExhaustedRetriesReturnStatus(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	env, err := c.Fetch(context.Background(), Campaigns, "42")
	require.NoError(t, err)
	assert.Equal(t, 429, env.Meta.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.True(t, errors.Is(env.Err(), ErrUnknownStatus))
}

func TestFetch_MalformedSuccessBody(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Fetch(context.Background(), Campaigns, "42")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestFetch_StopsOnCancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, Campaigns, "42")
	assert.Error(t, err)
}

func TestEntityCampaigns_SinglePage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/teams/9/campaigns", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("count"))
		w.Write([]byte(`{"meta":{"status":200},"data":[{"id":1,"status":"published"},{"id":2,"status":"retired"}]}`))
	})

	cs, err := EntityCampaigns(context.Background(), c, Teams, "9")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.True(t, cs[1].Retired())
}

func TestStatusError_Is(t *testing.T) {
	cases := map[int]error{
		400: ErrBadRequest,
		401: ErrUnauthorized,
		403: ErrForbidden,
		404: ErrNotFound,
		422: ErrUnprocessable,
		500: ErrUnknownStatus,
	}
	for status, want := range cases {
		err := (&Envelope{Meta: Meta{Status: status}}).Err()
		assert.ErrorIs(t, err, want, "status %d", status)
	}
	assert.NoError(t, (&Envelope{Meta: Meta{Status: 200}}).Err())
}
