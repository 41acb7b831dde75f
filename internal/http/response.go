package http

import (
	"net/http"
	"strings"
	"time"
)

// TimingInfo holds the coarse timing of one request.
type TimingInfo struct {
	StartTime       time.Time
	TimeToFirstByte time.Duration
	TotalTime       time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       []byte
	Timing     TimingInfo
}

func newResponse(resp *http.Response, body []byte, timing TimingInfo) *Response {
	headers := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return &Response{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    headers,
		Body:       body,
		Timing:     timing,
	}
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}
