package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/model"
	"chatgate/provider/testutil"
	"chatgate/stream"
)

func TestStatusStoreCountsChatsInFlight(t *testing.T) {
	s := NewStatusStore()
	var pushed []model.Status
	s.Subscribe(func(p model.ProviderID, st model.Status) { pushed = append(pushed, st) })

	s.BeginChat(model.ProviderOllama)
	s.BeginChat(model.ProviderOllama)
	assert.Equal(t, 2, s.InFlight(model.ProviderOllama))

	s.EndChat(model.ProviderOllama, nil)
	assert.True(t, s.Get(model.ProviderOllama).IsLoading)

	s.EndChat(model.ProviderOllama, func(st *model.Status) { st.IsAvailable = true })
	st := s.Get(model.ProviderOllama)
	assert.False(t, st.IsLoading)
	assert.True(t, st.IsAvailable)
	assert.Zero(t, s.InFlight(model.ProviderOllama))

	// An unmatched end never drives the count negative.
	s.EndChat(model.ProviderOllama, nil)
	assert.Zero(t, s.InFlight(model.ProviderOllama))

	require.NotEmpty(t, pushed)
	assert.False(t, pushed[len(pushed)-1].IsLoading)
}

func TestConcurrentChatsKeepProviderLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteStream(t, w, "application/x-ndjson", testutil.NDJSONBody("a", "b"))
	}))
	defer srv.Close()

	d := newTestDeps(t, model.ProviderOllama, srv, nil)
	svc, err := NewOllamaService(d)
	require.NoError(t, err)

	first, err := svc.Chat(context.Background(), "", testutil.SingleUserMessage("one"))
	require.NoError(t, err)
	second, err := svc.Chat(context.Background(), "", testutil.SingleUserMessage("two"))
	require.NoError(t, err)

	_, err = first.Collect()
	require.NoError(t, err)
	assert.Equal(t, stream.Completed, first.Outcome())
	assert.True(t, d.Status.Get(model.ProviderOllama).IsLoading)

	require.NoError(t, second.Close())
	assert.False(t, d.Status.Get(model.ProviderOllama).IsLoading)
	assert.Zero(t, d.Status.InFlight(model.ProviderOllama))
}
