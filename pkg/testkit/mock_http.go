package testkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport implements http.RoundTripper over a scenario's mock steps.
//
//	mt := testkit.NewMockTransport(scenario)
//	apphttp.DefaultClient.Transport = mt
//	defer apphttp.ResetTransport()
type MockTransport struct {
	mu       sync.Mutex
	steps    []*mockEntry
	require  bool
	requests []*http.Request
}

type mockEntry struct {
	step  MockStep
	calls int
}

// NewMockTransport builds a MockTransport from the steps in s.
func NewMockTransport(s *Scenario) *MockTransport {
	return NewMockTransportSteps(s.IsMockRequired, s.MockSteps...)
}

// NewMockTransportSteps builds a MockTransport directly from steps, for unit
// tests that do not need a scenario file.
func NewMockTransportSteps(require bool, steps ...MockStep) *MockTransport {
	mt := &MockTransport{require: require}
	for _, step := range steps {
		mt.steps = append(mt.steps, &mockEntry{step: step})
	}
	return mt
}

// RoundTrip answers req from the first matching step.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.requests = append(mt.requests, req)

	for _, entry := range mt.steps {
		if entry.step.Method != "" && !strings.EqualFold(entry.step.Method, req.Method) {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), entry.step.MatchURL) {
			continue
		}

		entry.calls++
		if entry.step.Error != "" {
			return nil, errors.New(entry.step.Error)
		}
		return buildHTTPResponse(req, entry.step.ReturnData)
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call to %s", req.URL)
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(strings.NewReader(`{"error":"no mock configured"}`)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns every request seen so far, in order.
func (mt *MockTransport) Requests() []*http.Request {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]*http.Request(nil), mt.requests...)
}

// AssertAllCalled checks every step against its ExpectCalls.
func (mt *MockTransport) AssertAllCalled() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for _, e := range mt.steps {
		want := e.step.ExpectCalls
		switch {
		case want == 0 && e.calls == 0:
			errs = append(errs, fmt.Errorf("testkit: mock %s %q was never called", e.step.Method, e.step.MatchURL))
		case want < 0 && e.calls > 0:
			errs = append(errs, fmt.Errorf("testkit: mock %s %q called %d times, want none", e.step.Method, e.step.MatchURL, e.calls))
		case want > 0 && e.calls != want:
			errs = append(errs, fmt.Errorf("testkit: mock %s %q called %d times, want %d", e.step.Method, e.step.MatchURL, e.calls, want))
		}
	}
	return errs
}

func buildHTTPResponse(req *http.Request, rd MockReturnData) (*http.Response, error) {
	code := rd.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	body, err := rd.Bytes()
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	for k, v := range rd.Headers {
		header.Set(k, v)
	}

	return &http.Response{
		StatusCode:    code,
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
