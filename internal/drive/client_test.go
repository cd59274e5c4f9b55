package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	svc, err := gdrive.NewService(context.Background(),
		option.WithEndpoint(ts.URL),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return NewClient(svc, nil)
}

// parseUpload splits a multipart media upload into its metadata and
// content parts. It runs inside test handlers, so it only asserts.
func parseUpload(t *testing.T, r *http.Request) (gdrive.File, []byte) {
	t.Helper()
	var meta gdrive.File
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !assert.NoError(t, err) {
		return meta, nil
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	part, err := mr.NextPart()
	if !assert.NoError(t, err) {
		return meta, nil
	}
	assert.NoError(t, json.NewDecoder(part).Decode(&meta))
	part, err = mr.NextPart()
	if !assert.NoError(t, err) {
		return meta, nil
	}
	content, err := io.ReadAll(part)
	assert.NoError(t, err)
	return meta, content
}

func TestEnsureFolderExisting(t *testing.T) {
	var query string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files":[{"id":"fold-1","name":"Kim's Scripts"}]}`)
	}))

	id, err := client.EnsureFolder(context.Background(), "Kim's Scripts")
	require.NoError(t, err)
	assert.Equal(t, "fold-1", id)

	assert.Contains(t, query, `name = 'Kim\'s Scripts'`)
	assert.Contains(t, query, "mimeType = 'application/vnd.google-apps.folder'")
	assert.Contains(t, query, "trashed = false")
}

func TestEnsureFolderCreates(t *testing.T) {
	var created gdrive.File
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"files":[]}`)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		fmt.Fprint(w, `{"id":"fold-new"}`)
	}))

	id, err := client.EnsureFolder(context.Background(), "MyTalk Backups")
	require.NoError(t, err)
	assert.Equal(t, "fold-new", id)
	assert.Equal(t, "MyTalk Backups", created.Name)
	assert.Equal(t, folderMimeType, created.MimeType)
}

func TestListPaginates(t *testing.T) {
	var query string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"files":[{"id":"f1","name":"metadata.json","size":"64","md5Checksum":"aaa","modifiedTime":"2026-03-14T09:30:00.000Z"}],"nextPageToken":"page-2"}`)
			return
		}
		fmt.Fprint(w, `{"files":[{"id":"f2","name":"original.txt","size":"128","md5Checksum":"bbb","modifiedTime":"2026-03-15T10:00:00.000Z"}]}`)
	}))

	files, err := client.List(context.Background(), "fold-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, &File{
		ID:           "f1",
		Name:         "metadata.json",
		Size:         64,
		MD5:          "aaa",
		ModifiedTime: "2026-03-14T09:30:00.000Z",
	}, files[0])
	assert.Equal(t, "f2", files[1].ID)
	assert.Contains(t, query, "'fold-1' in parents")
	assert.Contains(t, query, "trashed = false")
}

func TestUpload(t *testing.T) {
	var meta gdrive.File
	var content []byte
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/drive/v3/files", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		meta, content = parseUpload(t, r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"file-1","name":"original.txt","size":"11","md5Checksum":"abc123","modifiedTime":"2026-03-14T09:30:00.000Z"}`)
	}))

	f, err := client.Upload(context.Background(), "fold-1", "original.txt", strings.NewReader("hello drive"))
	require.NoError(t, err)

	assert.Equal(t, "original.txt", meta.Name)
	assert.Equal(t, []string{"fold-1"}, meta.Parents)
	assert.Equal(t, "hello drive", string(content))
	assert.Equal(t, &File{
		ID:           "file-1",
		Name:         "original.txt",
		Size:         11,
		MD5:          "abc123",
		ModifiedTime: "2026-03-14T09:30:00.000Z",
	}, f)
}

func TestUpdate(t *testing.T) {
	var content []byte
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/drive/v3/files/file-9", r.URL.Path)
		assert.Equal(t, http.MethodPatch, r.Method)
		_, content = parseUpload(t, r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"file-9","name":"original.txt","size":"7","md5Checksum":"def456"}`)
	}))

	f, err := client.Update(context.Background(), "file-9", strings.NewReader("revised"))
	require.NoError(t, err)
	assert.Equal(t, "revised", string(content))
	assert.Equal(t, "def456", f.MD5)
}

func TestDownload(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/missing" {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		assert.Equal(t, "/files/file-9", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		fmt.Fprint(w, "AUDIO-BYTES")
	}))

	var buf bytes.Buffer
	require.NoError(t, client.Download(context.Background(), "file-9", &buf))
	assert.Equal(t, "AUDIO-BYTES", buf.String())

	err := client.Download(context.Background(), "missing", io.Discard)
	require.ErrorContains(t, err, "failed to download")
}

func TestDelete(t *testing.T) {
	var deleted string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = strings.TrimPrefix(r.URL.Path, "/files/")
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.Delete(context.Background(), "file-9"))
	assert.Equal(t, "file-9", deleted)
}

func TestAbout(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		assert.Equal(t, "user, storageQuota", r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"user":{"emailAddress":"kim@example.com"},"storageQuota":{"usage":"1048576","limit":"16106127360"}}`)
	}))

	email, used, limit, err := client.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", email)
	assert.Equal(t, int64(1048576), used)
	assert.Equal(t, int64(16106127360), limit)
}

func TestFolderFromURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "bare id", in: "1AbCdEfGhIjK", want: "1AbCdEfGhIjK"},
		{name: "folder url", in: "https://drive.google.com/drive/folders/1AbCdEfGhIjK", want: "1AbCdEfGhIjK"},
		{name: "folder url with query", in: "https://drive.google.com/drive/folders/1AbCdEfGhIjK?usp=sharing", want: "1AbCdEfGhIjK"},
		{name: "multi account url", in: "https://drive.google.com/drive/u/0/folders/1AbCdEfGhIjK", want: "1AbCdEfGhIjK"},
		{name: "open url", in: "https://drive.google.com/open?id=1AbCdEfGhIjK", want: "1AbCdEfGhIjK"},
		{name: "surrounding space", in: "  1AbCdEfGhIjK\n", want: "1AbCdEfGhIjK"},
		{name: "empty", in: "", wantErr: "empty drive folder"},
		{name: "no id", in: "https://drive.google.com/drive/my-drive", wantErr: "no folder id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FolderFromURL(tt.in)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
