package xmlrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lydakis/rfremote/pkg/dispatch"
)

const defaultClientTimeout = 30 * time.Second

// Client calls a remote library over XML-RPC.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for the library at url, e.g.
// http://127.0.0.1:8270/mylib. A nil hc uses a client with a default timeout.
func NewClient(url string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultClientTimeout}
	}
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	return &Client{url: url, http: hc}
}

// Call invokes method and returns the decoded result. Faults are returned as
// *Fault errors.
func (c *Client) Call(ctx context.Context, method string, params ...any) (any, error) {
	var body bytes.Buffer
	if err := EncodeCall(&body, method, params...); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("calling %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return DecodeResponse(resp.Body)
}

// KeywordNames lists the remote library's keywords.
func (c *Client) KeywordNames(ctx context.Context) ([]string, error) {
	v, err := c.Call(ctx, MethodKeywordNames)
	if err != nil {
		return nil, err
	}
	return stringList(v)
}

// KeywordArguments describes a remote keyword's parameters.
func (c *Client) KeywordArguments(ctx context.Context, name string) ([]string, error) {
	v, err := c.Call(ctx, MethodKeywordArguments, name)
	if err != nil {
		return nil, err
	}
	return stringList(v)
}

// KeywordDocumentation fetches a remote keyword's documentation.
func (c *Client) KeywordDocumentation(ctx context.Context, name string) (string, error) {
	v, err := c.Call(ctx, MethodKeywordDocumentation, name)
	if err != nil {
		return "", err
	}
	doc, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected documentation type %T", v)
	}
	return doc, nil
}

// RunKeyword runs a remote keyword. A FAIL response is not an error.
func (c *Client) RunKeyword(ctx context.Context, name string, args []any) (dispatch.Response, error) {
	if args == nil {
		args = []any{}
	}
	v, err := c.Call(ctx, MethodRunKeyword, name, args)
	if err != nil {
		return dispatch.Response{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return dispatch.Response{}, fmt.Errorf("unexpected run_keyword result type %T", v)
	}
	return dispatch.FromMap(m), nil
}

// Stop asks the remote server to stop.
func (c *Client) Stop(ctx context.Context) (dispatch.Response, error) {
	return c.RunKeyword(ctx, dispatch.StopKeyword, nil)
}

func stringList(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected list type %T", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected list item type %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
