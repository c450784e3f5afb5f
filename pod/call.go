package pod

import (
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/kbukum/podflow/errors"
)

// ParamCallID carries the call id in the string form of a Call.
const ParamCallID = "callId"

// Call names an operation and its string-encoded parameters.
type Call struct {
	ID     string
	Method string
	Params map[string]string
}

// NewCall builds a call from alternating name, value pairs. A trailing name
// without a value is ignored.
func NewCall(method string, kv ...string) Call {
	c := Call{ID: uuid.NewString(), Method: method, Params: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		c.Params[kv[i]] = kv[i+1]
	}
	return c
}

// With returns a copy of c with name set to cast.ToString(value).
func (c Call) With(name string, value any) Call {
	params := make(map[string]string, len(c.Params)+1)
	for k, v := range c.Params {
		params[k] = v
	}
	params[name] = cast.ToString(value)
	c.Params = params
	return c
}

// String renders method?name=value&... with parameters sorted by name.
func (c Call) String() string {
	if len(c.Params) == 0 && c.ID == "" {
		return c.Method
	}
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	if c.ID != "" {
		q.Set(ParamCallID, c.ID)
	}
	return c.Method + "?" + q.Encode()
}

// ParseCall parses the form produced by String.
func ParseCall(s string) (Call, error) {
	method, query, _ := strings.Cut(s, "?")
	if method == "" {
		return Call{}, errors.InvalidFormat("call", "method?name=value")
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return Call{}, errors.InvalidFormat("call parameters", "url query").WithCause(err)
	}
	c := Call{Method: method, Params: make(map[string]string, len(q))}
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		if k == ParamCallID {
			c.ID = vs[0]
			continue
		}
		c.Params[k] = vs[0]
	}
	return c, nil
}

// ParamNames returns the parameter names in sorted order.
func (c Call) ParamNames() []string {
	names := make([]string, 0, len(c.Params))
	for k := range c.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Param returns the raw value of name.
func (c Call) Param(name string) (string, bool) {
	v, ok := c.Params[name]
	return v, ok
}

func (c Call) require(name string) (string, error) {
	v, ok := c.Params[name]
	if !ok {
		return "", errors.InvalidParameter(c.Method, name)
	}
	return v, nil
}

// ParamString returns name, failing if it is absent.
func (c Call) ParamString(name string) (string, error) {
	return c.require(name)
}

// ParamInt returns name converted to int.
func (c Call) ParamInt(name string) (int, error) {
	return convertParam(c, name, "int", cast.ToIntE)
}

// ParamInt64 returns name converted to int64.
func (c Call) ParamInt64(name string) (int64, error) {
	return convertParam(c, name, "int64", cast.ToInt64E)
}

// ParamFloat64 returns name converted to float64.
func (c Call) ParamFloat64(name string) (float64, error) {
	return convertParam(c, name, "float64", cast.ToFloat64E)
}

// ParamBool returns name converted to bool.
func (c Call) ParamBool(name string) (bool, error) {
	return convertParam(c, name, "bool", cast.ToBoolE)
}

func convertParam[T any](c Call, name, typ string, conv func(any) (T, error)) (T, error) {
	var zero T
	raw, err := c.require(name)
	if err != nil {
		return zero, err
	}
	v, err := conv(raw)
	if err != nil {
		return zero, errors.InvalidFormat(name, typ).WithCause(err)
	}
	return v, nil
}
