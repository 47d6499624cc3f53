package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONSetsContentType(t *testing.T) {
	var gotCT, gotBody string
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(gohttp.StatusAccepted)
	}))
	defer srv.Close()

	resp, err := Post(srv.URL).Body(map[string]string{"url": "https://shope.ee/XYZ"}).Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "application/json", gotCT)
	assert.JSONEq(t, `{"url":"https://shope.ee/XYZ"}`, gotBody)
}

func TestGetSendsNoContentType(t *testing.T) {
	var headers gohttp.Header
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		headers = r.Header.Clone()
	}))
	defer srv.Close()

	_, err := Get(srv.URL).Browser().Header("Referer", "https://shopee.co.id/").Send()
	require.NoError(t, err)
	assert.Empty(t, headers.Get("Content-Type"))
	assert.Equal(t, BrowserUserAgent, headers.Get("User-Agent"))
	assert.Equal(t, "https://shopee.co.id/", headers.Get("Referer"))
}

func TestNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.WriteHeader(gohttp.StatusForbidden)
	}))
	defer srv.Close()

	resp, err := Get(srv.URL).Send()
	require.NoError(t, err)
	assert.Equal(t, gohttp.StatusForbidden, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(gohttp.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Get(url).Send()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Get("http://127.0.0.1:1/").WithContext(ctx).Send()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodesGzipAndBrotli(t *testing.T) {
	var gz, br bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(`{"name":"Smart Lamp"}`))
	require.NoError(t, zw.Close())
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(`{"name":"Smart Lamp"}`))
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		enc := r.URL.Query().Get("enc")
		w.Header().Set("Content-Encoding", enc)
		if enc == "gzip" {
			_, _ = w.Write(gz.Bytes())
			return
		}
		_, _ = w.Write(br.Bytes())
	}))
	defer srv.Close()

	for _, enc := range []string{"gzip", "br"} {
		resp, err := Get(srv.URL + "?enc=" + enc).Send()
		require.NoError(t, err, enc)
		var out struct{ Name string }
		require.NoError(t, json.Unmarshal(resp.Raw, &out), enc)
		assert.Equal(t, "Smart Lamp", out.Name, enc)
	}
}

func TestMaxBytes(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer srv.Close()

	_, err := Get(srv.URL).MaxBytes(32).Send()
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	resp, err := Get(srv.URL).MaxBytes(64).Send()
	require.NoError(t, err)
	assert.Len(t, resp.Raw, 64)
}
