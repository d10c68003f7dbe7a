package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pitabwire/staffdesk/model"
)

// Resource is the untyped view of a Service used by the HTTP layer. Request
// bodies arrive as raw camelCase JSON.
type Resource interface {
	Name() string
	Query(ctx context.Context, body json.RawMessage) (any, error)
	Detail(ctx context.Context, body json.RawMessage) (any, error)
	Create(ctx context.Context, body json.RawMessage) (any, error)
	Update(ctx context.Context, body json.RawMessage) (any, error)
	Delete(ctx context.Context, body json.RawMessage) error
	BulkDelete(ctx context.Context, body json.RawMessage) error
}

// Endpoint adapts a typed Service to Resource.
type Endpoint[T any, P Params] struct {
	svc *Service[T, P]
	seq *Sequencer
}

// NewEndpoint wraps svc. When seq is non-nil, concurrent queries from the
// same session against this resource are sequenced and a superseded query
// fails with a SUPERSEDED error instead of returning stale data.
func NewEndpoint[T any, P Params](svc *Service[T, P], seq *Sequencer) *Endpoint[T, P] {
	return &Endpoint[T, P]{svc: svc, seq: seq}
}

// Name returns the resource path.
func (e *Endpoint[T, P]) Name() string {
	return e.svc.Resource()
}

// Query decodes params and runs GetPagedData.
func (e *Endpoint[T, P]) Query(ctx context.Context, body json.RawMessage) (any, error) {
	var params P
	if err := decodeBody(body, &params); err != nil {
		return nil, err
	}

	key, sequenced := e.sequenceKey(ctx)
	var ticket Ticket
	if sequenced {
		ticket = e.seq.Issue(key)
	}

	res, err := e.svc.GetPagedData(ctx, params)

	if sequenced && !e.seq.Complete(ticket) {
		return nil, model.NewSupersededError()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Endpoint[T, P]) sequenceKey(ctx context.Context) (string, bool) {
	if e.seq == nil {
		return "", false
	}
	rctx := model.RequestContextFrom(ctx)
	if rctx == nil || rctx.SessionID == "" {
		return "", false
	}
	return rctx.SessionID + ":" + e.svc.Resource(), true
}

// Detail decodes {"id": ...} and runs GetByID.
func (e *Endpoint[T, P]) Detail(ctx context.Context, body json.RawMessage) (any, error) {
	id, err := decodeID(body)
	if err != nil {
		return nil, err
	}
	return e.svc.GetByID(ctx, id)
}

// Create decodes an item and runs Create.
func (e *Endpoint[T, P]) Create(ctx context.Context, body json.RawMessage) (any, error) {
	var item T
	if err := decodeRequired(body, &item); err != nil {
		return nil, err
	}
	return e.svc.Create(ctx, item)
}

// Update decodes an item and runs Update.
func (e *Endpoint[T, P]) Update(ctx context.Context, body json.RawMessage) (any, error) {
	var item T
	if err := decodeRequired(body, &item); err != nil {
		return nil, err
	}
	return e.svc.Update(ctx, item)
}

// Delete decodes {"id": ...} and runs Delete.
func (e *Endpoint[T, P]) Delete(ctx context.Context, body json.RawMessage) error {
	id, err := decodeID(body)
	if err != nil {
		return err
	}
	return e.svc.Delete(ctx, id)
}

// BulkDelete decodes {"ids": [...]} and runs BulkDelete.
func (e *Endpoint[T, P]) BulkDelete(ctx context.Context, body json.RawMessage) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeRequired(body, &req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return model.NewBadRequestError("ids must not be empty")
	}
	return e.svc.BulkDelete(ctx, req.IDs)
}

// decodeBody decodes body into v. An empty body leaves v at its zero value.
func decodeBody(body json.RawMessage, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return model.NewBadRequestError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func decodeRequired(body json.RawMessage, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.NewBadRequestError("request body is required")
	}
	return decodeBody(body, v)
}

func decodeID(body json.RawMessage) (string, error) {
	var req idBody
	if err := decodeRequired(body, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		return "", model.NewBadRequestError("id is required")
	}
	return req.ID, nil
}
