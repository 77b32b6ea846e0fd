package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"courier/internal/domain"
)

// HTTP talks to a relay server over plain HTTP.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a relay client for the given base URL. A nil client
// falls back to http.DefaultClient.
func NewHTTP(base string, hc *http.Client) *HTTP {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// PublishKeyBundle uploads this device's bundle to the directory.
func (c *HTTP) PublishKeyBundle(ctx context.Context, b domain.KeyBundle) error {
	return c.post(ctx, "/v1/bundles", b, nil)
}

// FetchKeyBundle retrieves a peer's published bundle. A 404 maps to
// domain.ErrPeerBundleUnavailable so callers can degrade cleanly.
func (c *HTTP) FetchKeyBundle(ctx context.Context, user domain.UserID) (domain.KeyBundle, error) {
	var out domain.KeyBundle
	err := c.getJSON(ctx, "/v1/bundles/"+url.PathEscape(user.String()), &out)
	if err != nil {
		if errStatus(err) == http.StatusNotFound {
			return domain.KeyBundle{}, domain.ErrPeerBundleUnavailable
		}
		return domain.KeyBundle{}, err
	}
	return out, nil
}

// FetchHistory returns all confirmed envelopes of a conversation in
// created-at order.
func (c *HTTP) FetchHistory(
	ctx context.Context,
	conversation domain.ConversationID,
) ([]domain.Envelope, error) {
	var envs []domain.Envelope
	path := "/v1/conversations/" + url.PathEscape(conversation.String()) + "/messages"
	if err := c.getJSON(ctx, path, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// SendMessage posts one envelope and returns the confirmed copy. The
// server deduplicates on the message id, so retrying after an ambiguous
// failure returns the already-confirmed envelope instead of a duplicate.
func (c *HTTP) SendMessage(ctx context.Context, req domain.SendRequest) (domain.Envelope, error) {
	var out struct {
		Message domain.Envelope `json:"message"`
	}
	path := "/v1/conversations/" + url.PathEscape(req.ConversationID.String()) + "/messages"
	if err := c.post(ctx, path, req, &out); err != nil {
		return domain.Envelope{}, err
	}
	return out.Message, nil
}

// UploadAttachment posts the encrypted blob and its metadata as a
// multipart body and returns the server-assigned URL reference.
func (c *HTTP) UploadAttachment(
	ctx context.Context,
	blobData []byte,
	meta domain.AttachmentMeta,
) (string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	metaPart, err := w.CreateFormField("meta")
	if err != nil {
		return "", err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", err
	}
	blobPart, err := w.CreateFormFile("blob", "blob")
	if err != nil {
		return "", err
	}
	if _, err := blobPart.Write(blobData); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/v1/attachments", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", &statusError{method: http.MethodPost, url: c.Base + "/v1/attachments", status: resp.StatusCode, text: resp.Status}
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// FetchAttachment downloads an encrypted blob by its URL reference,
// which may be relative to the relay base.
func (c *HTTP) FetchAttachment(ctx context.Context, ref string) ([]byte, error) {
	u := ref
	if strings.HasPrefix(ref, "/") {
		u = c.Base + ref
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &statusError{method: http.MethodGet, url: u, status: resp.StatusCode, text: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// Typing posts a typing signal. Callers treat failures as log-only.
func (c *HTTP) Typing(
	ctx context.Context,
	conversation domain.ConversationID,
	user domain.UserID,
	active bool,
) error {
	path := "/v1/conversations/" + url.PathEscape(conversation.String()) + "/typing"
	return c.post(ctx, path, struct {
		UserID domain.UserID `json:"user_id"`
		Active bool          `json:"active"`
	}{UserID: user, Active: active}, nil)
}

// --- plumbing ---

type statusError struct {
	method string
	url    string
	status int
	text   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("relay %s %s: %s", e.method, e.url, e.text)
}

// errStatus extracts the HTTP status of a statusError, or 0.
func errStatus(err error) int {
	if se, ok := err.(*statusError); ok {
		return se.status
	}
	return 0
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &statusError{method: http.MethodPost, url: c.Base + path, status: resp.StatusCode, text: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &statusError{method: http.MethodGet, url: c.Base + path, status: resp.StatusCode, text: resp.Status}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ domain.RelayClient = (*HTTP)(nil)
