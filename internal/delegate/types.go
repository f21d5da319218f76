package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// PeerRef identifies a peer in the session.
type PeerRef string

// Reason classifies a failed commit.
type Reason string

const (
	// ReasonNoAuthority means no coordinator is currently online.
	ReasonNoAuthority Reason = "no-authority"

	// ReasonNotAuthorized means the handling peer was not the coordinator
	// when it processed the request (usually a coordinator handoff race).
	ReasonNotAuthorized Reason = "not-authorized"

	// ReasonBadRequest means the request shape was malformed.
	ReasonBadRequest Reason = "bad-request"

	// ReasonNotFound means the target document could not be resolved.
	ReasonNotFound Reason = "not-found"

	// ReasonUnsupportedTarget means the document cannot hold attachments.
	ReasonUnsupportedTarget Reason = "unsupported-target"

	// ReasonInternalError means the handler failed unexpectedly.
	ReasonInternalError Reason = "internal-error"

	// ReasonTransportFailure means the reply timed out or was never delivered.
	ReasonTransportFailure Reason = "transport-failure"
)

// Retryable reports whether a caller-initiated retry is a reasonable policy.
func (r Reason) Retryable() bool {
	return r == ReasonTransportFailure
}

// Result is the outcome of a commit, as reported by the coordinator or
// synthesized by the Requester.
type Result struct {
	OK      bool   `json:"ok"`
	Changed bool   `json:"changed,omitempty"`
	Reason  Reason `json:"reason,omitempty"`
}

// Fail returns a failed Result with the given reason.
func Fail(reason Reason) Result {
	return Result{OK: false, Reason: reason}
}

// Succeeded is the Result of a persisted write.
func Succeeded() Result {
	return Result{OK: true, Changed: true}
}

// Request asks the coordinator to replace one attachment on one document.
type Request struct {
	// ID correlates the request across peers' logs.
	ID          string          `json:"id"`
	DocumentRef string          `json:"documentRef"`
	Namespace   string          `json:"namespace"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
}

// wellFormed reports whether the request names a document. Namespace and key
// only need to be strings, so empty values are allowed.
func (r Request) wellFormed() bool {
	return strings.TrimSpace(r.DocumentRef) != ""
}

// DecodeRequest parses a request received from another peer.
//
// Returns false if the payload is not a JSON object, if documentRef is not a
// non-empty string, or if namespace or key are not strings. Handlers should
// answer such payloads with ReasonBadRequest.
func DecodeRequest(data []byte) (Request, bool) {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		DocumentRef json.RawMessage `json:"documentRef"`
		Namespace   json.RawMessage `json:"namespace"`
		Key         json.RawMessage `json:"key"`
		Value       json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Request{}, false
	}

	var req Request
	if json.Unmarshal(raw.DocumentRef, &req.DocumentRef) != nil || strings.TrimSpace(req.DocumentRef) == "" {
		return Request{}, false
	}
	if json.Unmarshal(raw.Namespace, &req.Namespace) != nil {
		return Request{}, false
	}
	if json.Unmarshal(raw.Key, &req.Key) != nil {
		return Request{}, false
	}
	_ = json.Unmarshal(raw.ID, &req.ID)
	req.Value = raw.Value
	if len(req.Value) == 0 {
		req.Value = json.RawMessage("null")
	}
	return req, true
}

// CoordinatorLookup reports the peer currently holding coordinator status.
type CoordinatorLookup interface {
	CurrentCoordinator(ctx context.Context) (PeerRef, bool)
}

// Transport delivers a request to a peer and returns its reply.
// Implementations should honor ctx cancellation, but the Requester does not
// rely on it.
type Transport interface {
	Send(ctx context.Context, peer PeerRef, req Request) (Result, error)
}

// Authority reports whether the local peer is currently the coordinator.
type Authority interface {
	IsCoordinator(ctx context.Context) bool
}

// ErrDocumentNotFound is returned by a DocumentResolver for unknown refs.
var ErrDocumentNotFound = errors.New("document not found")

// ErrUnreachable is wrapped by remote readers and transports when a peer
// could not be reached or answered with a non-success status.
var ErrUnreachable = errors.New("peer unreachable")

// DocumentResolver finds documents by reference.
type DocumentResolver interface {
	Resolve(ctx context.Context, ref string) (Document, error)
}

// Document is a resolved host document.
// Documents that can hold attachments also implement AttachmentWriter.
type Document interface {
	Ref() string
}

// Write is one wholesale attachment replacement.
type Write struct {
	RequestID string
	Namespace string
	Key       string
	Value     json.RawMessage

	// Seq is the coordinator's logical clock value for this write.
	Seq int64
}

// AttachmentWriter replaces a document attachment wholesale.
type AttachmentWriter interface {
	SetAttachment(ctx context.Context, w Write) error
}
