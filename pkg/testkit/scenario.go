// Package testkit drives HTTP endpoint tests from JSON scenario files.
//
// Each scenario describes the request to fire, the expected status and body,
// and the outbound HTTP calls (scraper webhook, image CDN) to intercept on
// pkg/http.DefaultClient:
//
//	testdata/
//	  autofill_wrapped.json       ← scenario
//	  autofill_wrapped_req.json   ← request body
//	  autofill_wrapped_res.json   ← expected response body
//
//	func TestIngestEndpoints(t *testing.T) {
//	    testkit.RunDir(t, kernel.Handler(), "testdata", testkit.WithHeader("Authorization", "Bearer "+tok))
//	}
package testkit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Scenario describes a single REST API test case loaded from a JSON file.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	RequestMethod   string            `json:"requestMethod"`
	RequestURL      string            `json:"requestUrl"`
	RequestFileName string            `json:"requestFileName"` // relative to the scenario file
	Headers         map[string]string `json:"headers"`

	ResponseFileName string `json:"responseFileName"`
	ExpectedCode     int    `json:"expectedCode"`

	// IsMockRequired fails any outbound call that matches no mock step.
	IsMockRequired bool `json:"isMockRequired"`

	MockSteps []MockStep `json:"mockSteps"`

	dir string
}

// MockStep describes one intercepted outbound call.
type MockStep struct {
	// Method is the HTTP method to match; empty matches any.
	Method string `json:"method"`

	// MatchURL is a URL prefix; empty matches any request.
	MatchURL string `json:"matchUrl"`

	// Error, when set, makes the transport fail instead of answering.
	Error string `json:"error"`

	ReturnData MockReturnData `json:"returnData"`

	// ExpectCalls is the exact number of calls expected; -1 means "never".
	// Zero means "at least once".
	ExpectCalls int `json:"expectCalls"`
}

// MockReturnData is the synthetic response for a mock step.
type MockReturnData struct {
	StatusCode int               `json:"statusCode"` // defaults to 200
	Headers    map[string]string `json:"headers"`

	// Exactly one of Body (base64) or Text (verbatim) is used.
	Body string `json:"body"`
	Text string `json:"text"`
}

// Bytes returns the decoded response body.
func (d MockReturnData) Bytes() ([]byte, error) {
	if d.Body == "" {
		return []byte(d.Text), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(d.Body)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(d.Body)
		if err != nil {
			return nil, fmt.Errorf("testkit: base64 decode mock body: %w", err)
		}
	}
	return decoded, nil
}

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}

	s.dir = filepath.Dir(abs)
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	for i, step := range s.MockSteps {
		if _, err := step.ReturnData.Bytes(); err != nil {
			return fmt.Errorf("mockSteps[%d]: %w", i, err)
		}
	}
	return nil
}

// RequestBodyPath returns the absolute path of the request body file, or "".
func (s *Scenario) RequestBodyPath() string {
	return s.resolve(s.RequestFileName)
}

// ResponseBodyPath returns the absolute path of the expected response file, or "".
func (s *Scenario) ResponseBodyPath() string {
	return s.resolve(s.ResponseFileName)
}

func (s *Scenario) resolve(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}
