package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nodesync/nodesync/internal/reconcile"
)

type staticTokenSource struct{ tok string }

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: s.tok}, nil
}

func TestListNodeStoragePaginatesAndRecurses(t *testing.T) {
	calls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/nodes/abc123/files/osfstorage/", func(w http.ResponseWriter, r *http.Request) {
		calls++

		if r.URL.Query().Get("page[size]") != "" && calls == 1 {
			fmt.Fprintf(w, `{"data":[
				{"id":"f1","attributes":{"name":"notes.txt","kind":"file","extra.hashes":{"sha256":"aaa"}}},
				{"id":"d1","attributes":{"name":"subdir","kind":"folder"}}
			],"links":{"next":"/nodes/abc123/files/osfstorage/?page=2"}}`)
			return
		}

		fmt.Fprintf(w, `{"data":[
			{"id":"f2","attributes":{"name":"report.pdf","kind":"file","extra.hashes":{"sha256":"bbb"}}}
		],"links":{"next":""}}`)
	})
	mux.HandleFunc("/nodes/abc123/files/osfstorage/d1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[
			{"id":"f3","attributes":{"name":"child.txt","kind":"file","extra.hashes":{"sha256":"ccc"}}}
		],"links":{"next":""}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), staticTokenSource{"tok"}, nil)

	objs, err := client.ListNodeStorage(context.Background(), reconcile.Node{ID: "abc123"})
	require.NoError(t, err)
	require.Len(t, objs, 4)

	names := map[string]bool{}
	for _, o := range objs {
		names[o.Name] = true
	}

	assert.True(t, names["notes.txt"])
	assert.True(t, names["subdir"])
	assert.True(t, names["report.pdf"])
	assert.True(t, names["child.txt"])
}

func TestUploadAndDelete(t *testing.T) {
	var uploadedBody []byte

	mux := http.NewServeMux()
	mux.HandleFunc("/nodes/n1/files/osfstorage/root/", func(w http.ResponseWriter, r *http.Request) {
		uploadedBody, _ = io.ReadAll(r.Body)
		fmt.Fprintf(w, `{"data":{"id":"newid","attributes":{"name":"x.txt","kind":"file","extra.hashes":{"sha256":"xyz"}}}}`)
	})
	mux.HandleFunc("/files/newid/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), staticTokenSource{"tok"}, nil)

	created, err := client.Upload(context.Background(), "n1", "root", "x.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "newid", created.ID)
	assert.Equal(t, "hello", string(uploadedBody))

	require.NoError(t, client.Delete(context.Background(), created.ID))
}

func TestClassifyStatusRetryability(t *testing.T) {
	assert.True(t, isRetryable(http.StatusTooManyRequests))
	assert.True(t, isRetryable(http.StatusServiceUnavailable))
	assert.False(t, isRetryable(http.StatusNotFound))
	assert.ErrorIs(t, classifyStatus(http.StatusNotFound), ErrNotFound)
	assert.ErrorIs(t, classifyStatus(http.StatusConflict), ErrConflict)
	assert.Nil(t, classifyStatus(http.StatusOK))
}
