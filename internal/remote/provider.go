package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"log/slog"

	"golang.org/x/oauth2"

	"github.com/nodesync/nodesync/internal/reconcile"
)

// listPageSize bounds how many entries each storage listing page returns,
// mirroring the teacher's listChildrenPageSize constant.
const listPageSize = 100

// Client implements reconcile.RemoteClient against the hosting service's
// JSON:API storage endpoints (a waterbutler-style files API: each node
// exposes a provider-rooted file tree navigated by folder link, not by a
// single flat listing call).
type Client struct {
	hc *httpClient
}

// NewClient builds a remote.Client. tokens supplies the bearer token for
// every request — login/refresh itself stays out of scope, the same
// division of responsibility as the teacher's graph.Client + its
// auth.TokenSource.
func NewClient(baseURL string, httpClient *http.Client, tokens oauth2.TokenSource, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{hc: newHTTPClient(baseURL, httpClient, tokens, logger)}
}

// wireObject is one JSON:API resource in a storage listing response.
type wireObject struct {
	ID         string `json:"id"`
	Attributes struct {
		Name         string `json:"name"`
		Kind         string `json:"kind"` // "file" or "folder"
		Provider     string `json:"provider"`
		ExtraHashes  struct {
			SHA256 string `json:"sha256"`
		} `json:"extra.hashes"`
	} `json:"attributes"`
	Relationships struct {
		Parent struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"parent"`
	} `json:"relationships"`
	Links struct {
		Move     string `json:"move"`
		Upload   string `json:"upload"`
		Download string `json:"download"`
		NewFolder string `json:"new_folder"`
	} `json:"links"`
}

func (w wireObject) toRemoteObject(nodeID string) reconcile.RemoteObject {
	kind := reconcile.KindFile
	if w.Attributes.Kind == "folder" {
		kind = reconcile.KindFolder
	}

	return reconcile.RemoteObject{
		ID:       w.ID,
		Name:     w.Attributes.Name,
		Kind:     kind,
		ParentID: w.Relationships.Parent.Data.ID,
		SHA256:   w.Attributes.ExtraHashes.SHA256,
		NodeID:   nodeID,
	}
}

type listResponse struct {
	Data  []wireObject `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// ListNodeStorage walks a node's entire storage tree breadth-first,
// following folder links and paginating each listing via links.next —
// the JSON:API analogue of the teacher's @odata.nextLink handling in
// internal/graph/items.go.
func (c *Client) ListNodeStorage(ctx context.Context, node reconcile.Node) ([]reconcile.RemoteObject, error) {
	var out []reconcile.RemoteObject

	queue := []string{fmt.Sprintf("/nodes/%s/files/osfstorage/", node.ID)}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		objs, subfolders, err := c.listOnePage(ctx, node.ID, path)
		if err != nil {
			return nil, err
		}

		out = append(out, objs...)
		queue = append(queue, subfolders...)
	}

	return out, nil
}

// listOnePage fetches every page of a single folder listing, returning
// both the objects found and the folder-listing paths of any subfolders
// discovered (for ListNodeStorage's BFS queue).
func (c *Client) listOnePage(ctx context.Context, nodeID, path string) ([]reconcile.RemoteObject, []string, error) {
	var objs []reconcile.RemoteObject
	var subfolders []string

	next := fmt.Sprintf("%s?page[size]=%d", path, listPageSize)

	for next != "" {
		resp, err := c.hc.do(ctx, http.MethodGet, next, nil, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("remote: listing %s: %w", path, err)
		}

		var lr listResponse

		decErr := json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()

		if decErr != nil {
			return nil, nil, fmt.Errorf("remote: decoding listing %s: %w", path, decErr)
		}

		for _, w := range lr.Data {
			obj := w.toRemoteObject(nodeID)
			objs = append(objs, obj)

			if obj.Kind == reconcile.KindFolder {
				subfolders = append(subfolders, fmt.Sprintf("/nodes/%s/files/osfstorage/%s/", nodeID, obj.ID))
			}
		}

		next = lr.Links.Next
	}

	return objs, subfolders, nil
}

// moveRequest is the JSON:API action body for renaming or reparenting an
// object, per the waterbutler move/rename action shape.
type moveRequest struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
	Rename string `json:"rename,omitempty"`
}

func (c *Client) Move(ctx context.Context, id, newParentID, newName string) error {
	body, err := json.Marshal(moveRequest{Action: "rename", Path: newParentID, Rename: newName})
	if err != nil {
		return fmt.Errorf("remote: encoding move request: %w", err)
	}

	resp, err := c.hc.do(ctx, http.MethodPost, "/files/"+id+"/", bytes.NewReader(body), nil)
	if err != nil {
		return fmt.Errorf("remote: moving %s: %w", id, err)
	}
	resp.Body.Close()

	return nil
}

func (c *Client) CreateFolder(ctx context.Context, nodeID, parentID, name string) (reconcile.RemoteObject, error) {
	path := fmt.Sprintf("/nodes/%s/files/osfstorage/%s/?kind=folder&name=%s", nodeID, parentID, name)

	resp, err := c.hc.do(ctx, http.MethodPut, path, nil, nil)
	if err != nil {
		return reconcile.RemoteObject{}, fmt.Errorf("remote: creating folder %s: %w", name, err)
	}
	defer resp.Body.Close()

	var single struct {
		Data wireObject `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&single); err != nil {
		return reconcile.RemoteObject{}, fmt.Errorf("remote: decoding created folder %s: %w", name, err)
	}

	return single.Data.toRemoteObject(nodeID), nil
}

func (c *Client) Upload(ctx context.Context, nodeID, parentID, name string, content io.Reader) (reconcile.RemoteObject, error) {
	path := fmt.Sprintf("/nodes/%s/files/osfstorage/%s/?kind=file&name=%s", nodeID, parentID, name)

	resp, err := c.hc.do(ctx, http.MethodPut, path, content, http.Header{"Content-Type": []string{"application/octet-stream"}})
	if err != nil {
		return reconcile.RemoteObject{}, fmt.Errorf("remote: uploading %s: %w", name, err)
	}
	defer resp.Body.Close()

	var single struct {
		Data wireObject `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&single); err != nil {
		return reconcile.RemoteObject{}, fmt.Errorf("remote: decoding uploaded file %s: %w", name, err)
	}

	return single.Data.toRemoteObject(nodeID), nil
}

func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.hc.do(ctx, http.MethodGet, "/files/"+id+"/?action=download", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: downloading %s: %w", id, err)
	}

	return resp.Body, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.hc.do(ctx, http.MethodDelete, "/files/"+id+"/", nil, nil)
	if err != nil {
		return fmt.Errorf("remote: deleting %s: %w", id, err)
	}
	resp.Body.Close()

	return nil
}

var _ reconcile.RemoteClient = (*Client)(nil)
