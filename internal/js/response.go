package js

import (
	"encoding/json"

	"github.com/dop251/goja"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/pkg/jsonpath"
	"github.com/wesleyorama2/surge/pkg/jsonschema"
)

// newResponseObject converts resp into the object fetch resolves with:
// {status, ok, statusText, headers, body, json(path?), validate(schema)}.
func (r *Runtime) newResponseObject(resp *http.Response) goja.Value {
	vm := r.vm
	body := resp.BodyString()

	headers := vm.NewObject()
	for k, v := range resp.Headers {
		_ = headers.Set(k, v)
	}

	obj := vm.NewObject()
	_ = obj.Set("status", resp.StatusCode)
	_ = obj.Set("ok", resp.OK())
	_ = obj.Set("statusText", resp.StatusText)
	_ = obj.Set("headers", headers)
	_ = obj.Set("body", body)

	_ = obj.Set("json", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0)
		if goja.IsUndefined(path) || goja.IsNull(path) {
			var data interface{}
			if err := json.Unmarshal(resp.Body, &data); err != nil {
				panic(vm.NewTypeError("response body is not valid JSON: " + err.Error()))
			}
			return vm.ToValue(data)
		}
		v, ok := jsonpath.Lookup(body, path.String())
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	})

	_ = obj.Set("validate", func(call goja.FunctionCall) goja.Value {
		schema := call.Argument(0)
		var schemaStr string
		if s, ok := schema.Export().(string); ok {
			schemaStr = s
		} else {
			encoded, err := json.Marshal(schema.Export())
			if err != nil {
				panic(vm.NewTypeError("schema is not serialisable: " + err.Error()))
			}
			schemaStr = string(encoded)
		}
		_, errs := jsonschema.ValidateWithErrors(body, schemaStr)
		return vm.ToValue(errs.Messages())
	})

	return obj
}
