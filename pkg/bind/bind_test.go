package bind

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opsipintar/catalog/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type autofillInput struct {
	URL string `json:"url" validate:"required,url"`
}

func TestJSONValid(t *testing.T) {
	var in autofillInput
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://shope.ee/XYZ"}`))
	require.NoError(t, JSON(httptest.NewRecorder(), r, &in))
	assert.Equal(t, "https://shope.ee/XYZ", in.URL)
}

func TestJSONFieldError(t *testing.T) {
	var in autofillInput
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"not a url"}`))
	err := JSON(httptest.NewRecorder(), r, &in)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "url", fe.Field)
}

func TestJSONMalformedAndEmpty(t *testing.T) {
	var in autofillInput
	err := JSON(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), &in)
	assert.ErrorContains(t, err, "invalid JSON")

	err = JSON(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &in)
	assert.ErrorContains(t, err, "empty")
}

func TestJSONTooLarge(t *testing.T) {
	config.Set("MAX_BODY_BYTES", "16")
	defer config.Set("MAX_BODY_BYTES", "")

	var in autofillInput
	body := `{"url":"https://example.com/` + strings.Repeat("a", 64) + `"}`
	err := JSON(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &in)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Smart Lamp"))
	fw, err := mw.CreateFormFile("image", "lamp.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	data, header, err := Multipart(httptest.NewRecorder(), r, "image")
	require.NoError(t, err)
	assert.Equal(t, "lamp.png", header.Filename)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)
	assert.Equal(t, "Smart Lamp", r.FormValue("title"))
}
