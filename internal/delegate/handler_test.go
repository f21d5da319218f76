package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{
		ID:          "req-1",
		DocumentRef: "Message.1",
		Namespace:   "save-tray-5e",
		Key:         "saveTray",
		Value:       json.RawMessage(`{"schemaVersion":1,"records":[]}`),
	}
}

func newTestHandler(coordinator bool, docs ...Document) *Handler {
	m := make(map[string]Document, len(docs))
	for _, d := range docs {
		m[d.Ref()] = d
	}
	return NewHandler(newFlagAuthority(coordinator), memResolver{docs: m}, WithHandlerLogger(discardLogger()))
}

func TestHandler_Success(t *testing.T) {
	doc := newMemDocument("Message.1")
	h := newTestHandler(true, doc)

	res := h.Handle(context.Background(), validRequest())

	assert.Equal(t, Result{OK: true, Changed: true}, res)
	got, ok := doc.attachment("save-tray-5e", "saveTray")
	require.True(t, ok)
	assert.JSONEq(t, `{"schemaVersion":1,"records":[]}`, string(got))
	require.Len(t, doc.writes, 1)
	assert.Equal(t, "req-1", doc.writes[0].RequestID)
	assert.Equal(t, int64(1), doc.writes[0].Seq)
}

func TestHandler_NotCoordinatorLeavesDocumentUntouched(t *testing.T) {
	doc := newMemDocument("Message.1")
	doc.attachments["save-tray-5e/saveTray"] = json.RawMessage(`"before"`)
	h := newTestHandler(false, doc)

	res := h.Handle(context.Background(), validRequest())

	assert.Equal(t, Fail(ReasonNotAuthorized), res)
	got, _ := doc.attachment("save-tray-5e", "saveTray")
	assert.Equal(t, `"before"`, string(got))
	assert.Empty(t, doc.writes)
}

func TestHandler_BadRequest(t *testing.T) {
	h := newTestHandler(true, newMemDocument("Message.1"))

	for name, mutate := range map[string]func(*Request){
		"empty document": func(r *Request) { r.DocumentRef = "" },
		"blank document": func(r *Request) { r.DocumentRef = "  " },
	} {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			assert.Equal(t, Fail(ReasonBadRequest), h.Handle(context.Background(), req))
		})
	}
}

func TestHandler_EmptyNamespaceAndKeyAreWritten(t *testing.T) {
	doc := newMemDocument("Message.1")
	h := newTestHandler(true, doc)
	req := validRequest()
	req.Namespace = ""
	req.Key = ""

	assert.Equal(t, Succeeded(), h.Handle(context.Background(), req))
	got, ok := doc.attachment("", "")
	require.True(t, ok)
	assert.JSONEq(t, `{"schemaVersion":1,"records":[]}`, string(got))
}

func TestHandler_AuthorizationCheckedFirst(t *testing.T) {
	h := newTestHandler(false)
	req := validRequest()
	req.DocumentRef = ""

	assert.Equal(t, Fail(ReasonNotAuthorized), h.Handle(context.Background(), req))
}

func TestHandler_NotFound(t *testing.T) {
	h := newTestHandler(true)
	assert.Equal(t, Fail(ReasonNotFound), h.Handle(context.Background(), validRequest()))
}

func TestHandler_NilDocumentIsNotFound(t *testing.T) {
	var missing *memDocument
	resolver := memResolver{docs: map[string]Document{"Message.1": missing}}
	h := NewHandler(newFlagAuthority(true), resolver, WithHandlerLogger(discardLogger()))

	assert.Equal(t, Fail(ReasonNotFound), h.Handle(context.Background(), validRequest()))
}

func TestHandler_UnsupportedTarget(t *testing.T) {
	h := newTestHandler(true, readonlyDocument{ref: "Message.1"})
	assert.Equal(t, Fail(ReasonUnsupportedTarget), h.Handle(context.Background(), validRequest()))
}

func TestHandler_ResolverFailure(t *testing.T) {
	h := NewHandler(newFlagAuthority(true), memResolver{err: errors.New("db closed")}, WithHandlerLogger(discardLogger()))
	assert.Equal(t, Fail(ReasonInternalError), h.Handle(context.Background(), validRequest()))
}

func TestHandler_WriteFailure(t *testing.T) {
	doc := newMemDocument("Message.1")
	doc.failWith = errDisk
	h := newTestHandler(true, doc)

	assert.Equal(t, Fail(ReasonInternalError), h.Handle(context.Background(), validRequest()))
}

func TestHandler_FailedWriteDoesNotConsumeSeq(t *testing.T) {
	doc := newMemDocument("Message.1")
	h := newTestHandler(true, doc)

	doc.failWith = errDisk
	assert.Equal(t, Fail(ReasonInternalError), h.Handle(context.Background(), validRequest()))
	doc.panicWith = "boom"
	assert.Equal(t, Fail(ReasonInternalError), h.Handle(context.Background(), validRequest()))
	assert.Equal(t, int64(0), h.Clock().Current())

	doc.failWith = nil
	doc.panicWith = nil
	assert.Equal(t, Succeeded(), h.Handle(context.Background(), validRequest()))
	require.Len(t, doc.writes, 1)
	assert.Equal(t, int64(1), doc.writes[0].Seq)
	assert.Equal(t, int64(1), h.Clock().Current())
}

func TestHandler_PanicIsContained(t *testing.T) {
	doc := newMemDocument("Message.1")
	doc.panicWith = "boom"
	h := newTestHandler(true, doc)

	assert.NotPanics(t, func() {
		assert.Equal(t, Fail(ReasonInternalError), h.Handle(context.Background(), validRequest()))
	})

	// The handler keeps serving later requests.
	doc.panicWith = nil
	assert.Equal(t, Succeeded(), h.Handle(context.Background(), validRequest()))
}

func TestHandler_SeqMonotonic(t *testing.T) {
	doc := newMemDocument("Message.1")
	h := NewHandler(newFlagAuthority(true), memResolver{docs: map[string]Document{"Message.1": doc}},
		WithHandlerLogger(discardLogger()),
		WithClock(NewClockAt(41)),
	)

	h.Handle(context.Background(), validRequest())
	h.Handle(context.Background(), validRequest())

	require.Len(t, doc.writes, 2)
	assert.Equal(t, int64(42), doc.writes[0].Seq)
	assert.Equal(t, int64(43), doc.writes[1].Seq)
	assert.Equal(t, int64(43), h.Clock().Current())
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"valid", `{"id":"r","documentRef":"Message.1","namespace":"ns","key":"k","value":{"a":1}}`, true},
		{"missing value", `{"documentRef":"Message.1","namespace":"ns","key":"k"}`, true},
		{"empty namespace and key", `{"documentRef":"Message.1","namespace":"","key":""}`, true},
		{"missing namespace", `{"documentRef":"Message.1","key":"k"}`, false},
		{"missing document", `{"namespace":"ns","key":"k"}`, false},
		{"empty document", `{"documentRef":"","namespace":"ns","key":"k"}`, false},
		{"numeric namespace", `{"documentRef":"Message.1","namespace":7,"key":"k"}`, false},
		{"object key", `{"documentRef":"Message.1","namespace":"ns","key":{}}`, false},
		{"not an object", `[1,2]`, false},
		{"garbage", `{`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := DecodeRequest([]byte(tt.in))
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.NotEmpty(t, req.Value)
			}
		})
	}
}
