package capability

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/scraper"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installFetch exposes fetch(url, {method, headers, body}). The request
// runs on a host goroutine; the promise settles back on the loop.
func (s *scope) installFetch() error {
	return s.vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := s.vm.NewPromise()

		req, err := s.fetchRequest(call)
		if err != nil {
			_ = reject(s.vm.NewGoError(err))
			return s.vm.ToValue(promise)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-s.sc.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		go func() {
			defer cancel()
			resp, err := s.deps.HTTP.Do(ctx, req)
			if err != nil {
				s.deps.Metrics.RecordFetch(req.Method, "error")
				s.logger.Debug("Fetch failed", zap.String("url", req.URL), zap.Error(err))
			} else {
				s.deps.Metrics.RecordFetch(req.Method, strconv.Itoa(resp.Status))
			}

			s.sc.Schedule("fetch", func(vm *goja.Runtime) error {
				if err != nil {
					return reject(vm.NewGoError(fmt.Errorf("fetch %s: %w", req.URL, err)))
				}
				return resolve(s.responseObject(resp))
			})
		}()

		return s.vm.ToValue(promise)
	})
}

func (s *scope) fetchRequest(call goja.FunctionCall) (client.Request, error) {
	req := client.Request{
		URL:     call.Argument(0).String(),
		Method:  "GET",
		Headers: map[string]string{},
	}
	if goja.IsUndefined(call.Argument(0)) || req.URL == "" {
		return req, fmt.Errorf("fetch requires a URL")
	}

	opts, ok := call.Argument(1).(*goja.Object)
	if !ok {
		return req, nil
	}

	if m := opts.Get("method"); m != nil && !goja.IsUndefined(m) && !goja.IsNull(m) {
		req.Method = strings.ToUpper(m.String())
	}
	if h, ok := opts.Get("headers").(*goja.Object); ok {
		for _, key := range h.Keys() {
			req.Headers[key] = h.Get(key).String()
		}
	}
	if body := opts.Get("body"); body != nil && !goja.IsUndefined(body) && !goja.IsNull(body) {
		data, err := s.bodyBytes(body)
		if err != nil {
			return req, err
		}
		req.Body = data
	}
	return req, nil
}

// bodyBytes accepts strings, ArrayBuffers and typed arrays; anything else
// is sent as JSON.
func (s *scope) bodyBytes(v goja.Value) ([]byte, error) {
	if str, ok := v.Export().(string); ok {
		return []byte(str), nil
	}
	var raw []byte
	if err := s.vm.ExportTo(v, &raw); err == nil {
		return raw, nil
	}
	data, err := sandbox.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported fetch body: %w", err)
	}
	return data, nil
}

func (s *scope) responseObject(resp *client.Response) *goja.Object {
	vm := s.vm
	text := scraper.DecodeBody(resp.Body, resp.ContentType())

	headers := vm.NewObject()
	for k, v := range resp.Headers {
		_ = headers.Set(k, v)
	}

	obj := vm.NewObject()
	_ = obj.Set("url", resp.URL)
	_ = obj.Set("status", resp.Status)
	_ = obj.Set("statusText", resp.StatusText)
	_ = obj.Set("ok", resp.OK())
	_ = obj.Set("headers", headers)
	_ = obj.Set("body", text)
	_ = obj.Set("data", vm.NewArrayBuffer(resp.Body))
	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(text)
	})
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		v, err := s.parse(goja.Undefined(), vm.ToValue(text))
		if err != nil {
			s.throw(err)
		}
		return v
	})
	return obj
}
