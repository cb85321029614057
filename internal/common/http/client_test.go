package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attestation.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	var gotField, gotName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("chat_id")
		f, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		raw, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotContent = string(raw)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	resp, err := c.PostMultipart(context.Background(), srv.URL, map[string]string{"chat_id": "42"}, FilePart{Field: "document", Path: path})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, "42", gotField)
	assert.Equal(t, "attestation.pdf", gotName)
	assert.Equal(t, "%PDF-1.4", gotContent)
}

func TestClient_PostMultipart_MissingFile(t *testing.T) {
	c := NewClient(time.Second)
	_, err := c.PostMultipart(context.Background(), "http://127.0.0.1:0", nil, FilePart{Field: "document", Path: "/does/not/exist"})
	assert.Error(t, err)
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":[1,2]}`))
	}))
	defer srv.Close()

	var out struct {
		OK     bool  `json:"ok"`
		Result []int `json:"result"`
	}
	resp, err := NewClient(time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.True(t, out.OK)
	assert.Equal(t, []int{1, 2}, out.Result)
}

func TestClient_DoTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(50 * time.Millisecond)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	assert.Error(t, err)

	_, err = c.GetJSON(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}
