package consul

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ceyewan/consulctl/xerrors"
)

const (
	pathKV  = "v1/kv/"
	routeKV = "v1/kv/{key}"
)

func (c *httpClient) CreateKey(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := c.send(ctx, &Request{
		Method: http.MethodPut,
		Path:   pathKV + key,
		Route:  routeKV,
		Body:   []byte(value),
	}, key)
	return err
}

// ReadEntries 404 或空响应体（含 "null"）视为不存在，返回 found=false 且无错误
func (c *httpClient) ReadEntries(ctx context.Context, key string) ([]KeyEntry, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}

	resp, err := c.send(ctx, &Request{Method: http.MethodGet, Path: pathKV + key, Route: routeKV}, key)
	if err != nil {
		if resp != nil && resp.Status == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	body := strings.TrimSpace(string(resp.Body))
	if body == "" || body == "null" {
		return nil, false, nil
	}

	var entries []KeyEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, false, newError(DecodeError, err, key)
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	return entries, true, nil
}

// ReadValue 返回第一个条目的解码值；值不是合法 base64 时返回 DecodeError
func (c *httpClient) ReadValue(ctx context.Context, key string) (string, bool, error) {
	entries, found, err := c.ReadEntries(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	v, err := entries[0].DecodedValue()
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *httpClient) DeleteKey(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := c.send(ctx, &Request{Method: http.MethodDelete, Path: pathKV + key, Route: routeKV}, key)
	return err
}

func checkKey(key string) error {
	if key == "" {
		return newError(UnexpectedError, xerrors.Wrap(xerrors.ErrInvalidInput, "key is empty"))
	}
	return nil
}
