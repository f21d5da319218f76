package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
)

// HeaderPeer names the calling peer on every request.
const HeaderPeer = "X-Savetray-Peer"

// maxBodyBytes caps request and response bodies.
const maxBodyBytes = 1 << 20

// defaultClientTimeout is a backstop; Requester's own timeout is shorter.
const defaultClientTimeout = 30 * time.Second

// ClientOption configures HTTPTransport and HTTPLedgerReader.
type ClientOption func(*clientConfig)

type clientConfig struct {
	http   *http.Client
	logger *slog.Logger
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.http = c
	}
}

// WithClientLogger sets the logger (default slog.Default()).
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = l
	}
}

func newClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{
		http:   &http.Client{Timeout: defaultClientTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// HTTPTransport implements delegate.Transport over HTTP.
type HTTPTransport struct {
	dir *StaticDirectory
	cfg clientConfig
}

// NewHTTPTransport creates a transport that resolves peer URLs through dir
// and identifies itself as dir.Self().
func NewHTTPTransport(dir *StaticDirectory, opts ...ClientOption) *HTTPTransport {
	return &HTTPTransport{dir: dir, cfg: newClientConfig(opts)}
}

// Send posts req to peer and decodes its Result.
// Unknown peers, network errors and non-2xx replies wrap delegate.ErrUnreachable.
func (t *HTTPTransport) Send(ctx context.Context, peer delegate.PeerRef, req delegate.Request) (delegate.Result, error) {
	base, ok := t.dir.URL(peer)
	if !ok {
		return delegate.Result{}, fmt.Errorf("peer %q has no url: %w", peer, delegate.ErrUnreachable)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return delegate.Result{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/v1/queries/set-attachment"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return delegate.Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderPeer, string(t.dir.Self()))

	data, err := do(t.cfg.http, httpReq)
	if errors.Is(err, errNotFound) {
		return delegate.Result{}, fmt.Errorf("peer %s serves no write route: %w", peer, delegate.ErrUnreachable)
	}
	if err != nil {
		return delegate.Result{}, err
	}

	var res delegate.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return delegate.Result{}, fmt.Errorf("decode reply from %s: %v: %w", peer, err, delegate.ErrUnreachable)
	}
	t.cfg.logger.Debug("peer replied", "peer", peer, "request_id", req.ID, "ok", res.OK, "reason", res.Reason)
	return res, nil
}

// HTTPLedgerReader reads ledgers from one peer's document route.
// It implements tray.LedgerReader.
type HTTPLedgerReader struct {
	baseURL string
	self    delegate.PeerRef
	cfg     clientConfig
}

// NewHTTPLedgerReader creates a reader against the peer at baseURL.
func NewHTTPLedgerReader(baseURL string, self delegate.PeerRef, opts ...ClientOption) *HTTPLedgerReader {
	return &HTTPLedgerReader{
		baseURL: strings.TrimRight(baseURL, "/"),
		self:    self,
		cfg:     newClientConfig(opts),
	}
}

// ReadAttachment fetches a raw attachment value; nil if unset.
// Returns delegate.ErrDocumentNotFound on 404.
func (r *HTTPLedgerReader) ReadAttachment(ctx context.Context, documentRef, namespace, key string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/v1/documents/%s/attachments/%s/%s",
		r.baseURL, url.PathEscape(documentRef), url.PathEscape(namespace), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderPeer, string(r.self))

	data, err := do(r.cfg.http, req)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("document %q: %w", documentRef, delegate.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// ReadLedger fetches and decodes a ledger. An unset attachment is the
// empty ledger.
func (r *HTTPLedgerReader) ReadLedger(ctx context.Context, documentRef, namespace, key string) (ledger.Ledger, error) {
	raw, err := r.ReadAttachment(ctx, documentRef, namespace, key)
	if err != nil {
		return ledger.Ledger{}, err
	}
	return ledger.Decode(raw)
}

// CreateDocument registers a document on the peer. Creating an existing
// document with the same kind succeeds.
func (r *HTTPLedgerReader) CreateDocument(ctx context.Context, ref string, kind store.DocumentKind) error {
	body, err := json.Marshal(map[string]string{"kind": string(kind)})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/documents/%s", r.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderPeer, string(r.self))

	if _, err := do(r.cfg.http, req); err != nil {
		return fmt.Errorf("create document %q: %w", ref, err)
	}
	return nil
}

var errNotFound = errors.New("not found")

// do performs req and returns the body of a 2xx reply.
func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %v: %w", req.Method, req.URL.Path, err, delegate.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reply: %v: %w", err, delegate.ErrUnreachable)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s: %w",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)), delegate.ErrUnreachable)
	}
	return body, nil
}
