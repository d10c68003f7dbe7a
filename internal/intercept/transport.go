// Package intercept provides http.RoundTrippers that sit between the BFF and
// the REST backend: key-case conversion of JSON bodies and propagation of the
// session token and correlation id.
package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pitabwire/staffdesk/internal/casing"
	"github.com/pitabwire/staffdesk/model"
)

// MarkerHeader flags a request or response whose body was already converted.
const MarkerHeader = "X-Case-Converted"

const defaultMaxBodyBytes = 10 << 20

// ErrBodyTooLarge is returned when a body due for conversion exceeds the
// transport's size limit.
var ErrBodyTooLarge = errors.New("intercept: body exceeds size limit")

// Direction identifies which leg of a round trip was converted.
type Direction string

// Conversion directions.
const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// CaseTransport converts outbound JSON bodies to snake_case and inbound JSON
// bodies to camelCase. Each message is converted at most once: a converted
// message carries MarkerHeader and is skipped by any later CaseTransport.
type CaseTransport struct {
	// Base performs the actual round trip. nil means http.DefaultTransport.
	Base http.RoundTripper
	// AllowList holds URL path fragments. Only requests whose path contains
	// one of them have their body converted.
	AllowList []string
	// Observe, when set, is called after every successful conversion.
	Observe func(Direction)
	// MaxBodyBytes bounds the bodies read for conversion. Zero means 10 MiB.
	MaxBodyBytes int64
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; a converted clone is sent instead.
func (t *CaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req
	if t.shouldConvertRequest(req) {
		converted, err := t.convertRequest(req)
		if err != nil {
			return nil, err
		}
		out = converted
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if shouldConvertResponse(resp) {
		if err := t.convertResponse(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	return resp, nil
}

func (t *CaseTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// readBody reads r whole, failing with ErrBodyTooLarge rather than
// truncating.
func (t *CaseTransport) readBody(r io.Reader) ([]byte, error) {
	limit := t.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, ErrBodyTooLarge
	}
	return raw, nil
}

func (t *CaseTransport) shouldConvertRequest(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return false
	}
	if isMarked(req.Header) {
		return false
	}
	return matchesAllowList(req.URL.Path, t.AllowList)
}

func (t *CaseTransport) convertRequest(req *http.Request) (*http.Request, error) {
	raw, err := t.readBody(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("intercept: read request body: %w", err)
	}

	clone := req.Clone(req.Context())
	body, ok := transformJSON(raw, casing.ToSnakeCase)
	if ok {
		clone.Header.Set(MarkerHeader, "true")
		t.observe(Outbound)
	} else {
		slog.Debug("intercept: request body is not JSON, sent unconverted",
			"path", req.URL.Path,
		)
	}
	setRequestBody(clone, body)
	return clone, nil
}

func shouldConvertResponse(resp *http.Response) bool {
	if resp.Body == nil || resp.Body == http.NoBody {
		return false
	}
	if isMarked(resp.Header) {
		return false
	}
	return isJSONContentType(resp.Header.Get("Content-Type"))
}

func (t *CaseTransport) convertResponse(resp *http.Response) error {
	raw, err := t.readBody(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("intercept: read response body: %w", err)
	}

	body, ok := transformJSON(raw, casing.ToCamelCase)
	if ok {
		resp.Header.Set(MarkerHeader, "true")
		t.observe(Inbound)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

func (t *CaseTransport) observe(d Direction) {
	if t.Observe != nil {
		t.Observe(d)
	}
}

// transformJSON decodes raw, applies fn and re-encodes. Numbers keep their
// original text. ok is false and raw is returned unchanged when raw is not a
// single JSON value.
func transformJSON(raw []byte, fn func(any) any) ([]byte, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw, false
	}
	out, err := json.Marshal(fn(v))
	if err != nil {
		return raw, false
	}
	return out, true
}

func setRequestBody(req *http.Request, body []byte) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

func isMarked(h http.Header) bool {
	return strings.EqualFold(h.Get(MarkerHeader), "true")
}

func matchesAllowList(path string, allow []string) bool {
	for _, fragment := range allow {
		if fragment != "" && strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// AuthTransport stamps the bearer token and correlation id of the calling
// request onto outbound backend requests.
type AuthTransport struct {
	Base http.RoundTripper
	// Token returns the session token carried by ctx, or "".
	Token func(ctx context.Context) string
}

// RoundTrip implements http.RoundTripper. Headers already present on the
// request are left alone.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var token string
	if t.Token != nil {
		token = t.Token(req.Context())
	}
	rctx := model.RequestContextFrom(req.Context())

	needAuth := token != "" && req.Header.Get("Authorization") == ""
	needCorrelation := rctx != nil && rctx.CorrelationID != "" && req.Header.Get("X-Correlation-Id") == ""
	if !needAuth && !needCorrelation {
		return t.base().RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if needAuth {
		clone.Header.Set("Authorization", "Bearer "+sanitizeHeader(token))
	}
	if needCorrelation {
		clone.Header.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
	}
	return t.base().RoundTrip(clone)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
