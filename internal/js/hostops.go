package js

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/http"
)

// delay(ms) returns a promise resolved after at least ms milliseconds.
func (r *Runtime) delay(call goja.FunctionCall) goja.Value {
	ms := call.Argument(0).ToFloat()
	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}

	promise, resolve, _ := r.vm.NewPromise()
	enqueue := r.loop.reserve()
	time.AfterFunc(time.Duration(ms*float64(time.Millisecond)), func() {
		enqueue(func() error {
			resolve(goja.Undefined())
			return nil
		})
	})
	return r.vm.ToValue(promise)
}

// fetch(url, {method, headers, body}) performs the request off the owner
// goroutine and settles the returned promise on a later poll.
func (r *Runtime) fetch(call goja.FunctionCall) goja.Value {
	if r.client == nil {
		panic(r.vm.NewTypeError("fetch is not available in this runtime"))
	}

	url := call.Argument(0)
	if goja.IsUndefined(url) || goja.IsNull(url) {
		panic(r.vm.NewTypeError("fetch requires a URL"))
	}

	req, err := r.buildRequest(url.String(), call.Argument(1))
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}

	promise, resolve, reject := r.vm.NewPromise()
	enqueue := r.loop.reserve()
	go func() {
		resp, err := r.client.Do(r.ctx, req)
		enqueue(func() error {
			if err != nil {
				reject(r.vm.NewGoError(err))
				return nil
			}
			r.logger.WithFields(logrus.Fields{
				"method":   req.Method,
				"url":      req.URL,
				"status":   resp.StatusCode,
				"duration": resp.Timing.TotalTime,
			}).Debug("fetch completed")
			resolve(r.newResponseObject(resp))
			return nil
		})
	}()
	return r.vm.ToValue(promise)
}

func (r *Runtime) buildRequest(url string, options goja.Value) (*http.Request, error) {
	method := ""
	var opts *goja.Object
	if options != nil && !goja.IsUndefined(options) && !goja.IsNull(options) {
		opts = options.ToObject(r.vm)
		if m := opts.Get("method"); m != nil && !goja.IsUndefined(m) && !goja.IsNull(m) {
			method = m.String()
		}
	}

	req, err := http.NewRequest(method, url)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		return req, nil
	}

	if h := opts.Get("headers"); h != nil && !goja.IsUndefined(h) && !goja.IsNull(h) {
		headers := h.ToObject(r.vm)
		for _, key := range headers.Keys() {
			req.WithHeader(key, headers.Get(key).String())
		}
	}

	if b := opts.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
		if s, ok := b.Export().(string); ok {
			req.WithBody(s)
		} else {
			encoded, err := json.Marshal(b.Export())
			if err != nil {
				return nil, fmt.Errorf("fetch body: %w", err)
			}
			req.WithBody(string(encoded))
			if _, set := req.Headers["Content-Type"]; !set {
				req.WithHeader("Content-Type", "application/json")
			}
		}
	}

	return req, nil
}

func (r *Runtime) console(level, msg string) {
	entry := r.logger.WithField("source", "console")
	switch level {
	case "debug":
		entry.Debug(msg)
	case "warn":
		entry.Warn(msg)
	case "error":
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}
