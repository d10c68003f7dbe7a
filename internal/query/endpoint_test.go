package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/staffdesk/model"
)

func TestSequencer_laterTicketWins(t *testing.T) {
	seq := NewSequencer()

	first := seq.Issue("s-1:widgets")
	second := seq.Issue("s-1:widgets")
	other := seq.Issue("s-2:widgets")

	assert.False(t, seq.Current(first))
	assert.True(t, seq.Current(second))
	assert.True(t, seq.Complete(second))
	assert.False(t, seq.Complete(first), "earlier ticket finishing last must be superseded")
	assert.True(t, seq.Complete(other), "other keys are independent")
	assert.Zero(t, seq.Pending())
}

func TestSequencer_ticketAfterReleaseIsFresh(t *testing.T) {
	seq := NewSequencer()

	old := seq.Issue("k")
	require.True(t, seq.Complete(old))

	fresh := seq.Issue("k")
	assert.False(t, seq.Current(old))
	assert.True(t, seq.Current(fresh))
}

func withSession(id string) context.Context {
	return model.WithRequestContext(context.Background(), &model.RequestContext{SessionID: id})
}

func TestEndpoint_supersededQuery(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	caller := &fakeCaller{respond: func(_ string, body any) (any, error) {
		if body.(model.PageRequest).Filters["keyword"] == "slow" {
			close(started)
			<-release
		}
		return map[string]any{"list": widgets(1), "totalRecords": 1}, nil
	}}
	ep := NewEndpoint(New("widgets", caller, widgetHooks()), NewSequencer())
	ctx := withSession("s-1")

	slowErr := make(chan error, 1)
	go func() {
		_, err := ep.Query(ctx, json.RawMessage(`{"keyword":"slow","page":1,"pageSize":10}`))
		slowErr <- err
	}()
	<-started

	res, err := ep.Query(ctx, json.RawMessage(`{"keyword":"fast","page":1,"pageSize":10}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.(model.UiPageResult[widget]).TotalRecords)

	close(release)
	err = <-slowErr
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrSuperseded, env.Code)
}

func TestEndpoint_queryWithoutSessionIsNotSequenced(t *testing.T) {
	svc := New("widgets", nil, widgetHooks()).WithMockData(widgets(5), 0)
	seq := NewSequencer()
	ep := NewEndpoint(svc, seq)

	res, err := ep.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.(model.UiPageResult[widget]).List, 5)
	assert.Zero(t, seq.Pending())
}

func TestEndpoint_decodeErrors(t *testing.T) {
	ep := NewEndpoint(New("widgets", nil, widgetHooks()).WithMockData(widgets(2), 0), nil)
	ctx := context.Background()

	_, err := ep.Query(ctx, json.RawMessage(`{"page":`))
	assertBadRequest(t, err)

	_, err = ep.Detail(ctx, json.RawMessage(`{}`))
	assertBadRequest(t, err)

	_, err = ep.Create(ctx, nil)
	assertBadRequest(t, err)

	err = ep.BulkDelete(ctx, json.RawMessage(`{"ids":[]}`))
	assertBadRequest(t, err)
}

func TestEndpoint_crud(t *testing.T) {
	ep := NewEndpoint(New("widgets", nil, widgetHooks()).WithMockData(widgets(3), 0), nil)
	ctx := context.Background()

	assert.Equal(t, "widgets", ep.Name())

	got, err := ep.Detail(ctx, json.RawMessage(`{"id":"w-02"}`))
	require.NoError(t, err)
	assert.Equal(t, "Widget 02", got.(widget).Name)

	_, err = ep.Update(ctx, json.RawMessage(`{"id":"w-02","name":"Changed"}`))
	require.NoError(t, err)

	require.NoError(t, ep.BulkDelete(ctx, json.RawMessage(`{"ids":["w-01","w-02"]}`)))
	res, err := ep.Query(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.(model.UiPageResult[widget]).TotalRecords)

	err = ep.Delete(ctx, json.RawMessage(`{"id":"missing"}`))
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrNotFound, env.Code)
}

func assertBadRequest(t *testing.T, err error) {
	t.Helper()
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrBadRequest, env.Code)
}
