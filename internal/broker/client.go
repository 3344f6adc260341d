package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/driftcove/driftcove/internal/schema"
	"github.com/driftcove/driftcove/internal/shared/stringutils"
)

// maxDetailLen bounds how much of a failure response body is kept as detail.
const maxDetailLen = 500

// fetchTools issues the bounded catalog query: GET {endpoint}/tools.
func (b *Broker) fetchTools(ctx context.Context, endpoint string) ([]ToolDef, error) {
	ctx, cancel := context.WithTimeout(ctx, b.syncTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailLen))
		return nil, fmt.Errorf("catalog query: status %d: %s", resp.StatusCode, stringutils.Truncate(string(body), maxDetailLen))
	}

	var out struct {
		Tools []ToolDef `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}
	return out.Tools, nil
}

// CallTool proxies one invocation to the named server. The server must be
// connected; every failure mode comes back as a structured result, never as
// a raised fault, and the server's recorded status is left untouched.
func (b *Broker) CallTool(ctx context.Context, name, toolName string, args map[string]any) schema.CallResult {
	b.mu.Lock()
	s, ok := b.servers[name]
	if !ok {
		b.mu.Unlock()
		return schema.Fail(schema.KindNotFound, fmt.Sprintf("server %q not found", name))
	}
	if s.Status != StatusConnected {
		status := s.Status
		b.mu.Unlock()
		return schema.CallResult{
			Success: false,
			Kind:    schema.KindDisabled,
			Error:   fmt.Sprintf("server %q is not connected", name),
			Detail:  string(status),
		}
	}
	endpoint := s.Endpoint
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{"tool": toolName, "arguments": args})
	if err != nil {
		return schema.Fail(schema.KindProtocol, fmt.Sprintf("encode arguments: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/call", bytes.NewReader(payload))
	if err != nil {
		return schema.Fail(schema.KindProtocol, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		return schema.Fail(kind, fmt.Sprintf("call %s/%s: %v", name, toolName, err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return schema.CallResult{
			Success: false,
			Kind:    schema.KindProtocol,
			Error:   fmt.Sprintf("call %s/%s: status %d", name, toolName, resp.StatusCode),
			Detail:  stringutils.Truncate(string(body), maxDetailLen),
		}
	}

	var result any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			// Non-JSON 2xx bodies are still results, just opaque text.
			result = string(body)
		}
	}
	return schema.Ok(result)
}

// classifyTransportError maps a transport failure onto the error taxonomy:
// connection refused, timeout, or a generic connection failure.
func classifyTransportError(err error) schema.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return schema.KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return schema.KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return schema.KindConnection
	}
	return schema.KindConnection
}
