package slick

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	neturl "net/url"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// DetectMimetype guesses a file's type from its name, then from its content.
func DetectMimetype(filename string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}

// UploadFile stores content in Slick under filename. An empty mimetype is
// detected.
func (c *Client) UploadFile(ctx context.Context, filename, mimetype string, content []byte) (*FileReference, error) {
	if mimetype == "" {
		mimetype = DetectMimetype(filename, content)
	}
	ref := &FileReference{
		Filename: filepath.Base(filename),
		Mimetype: mimetype,
		Length:   int64(len(content)),
	}

	body, err := c.sendJSON(ctx, http.MethodPost, "/files", ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", ref.Filename, err)
	}
	ref.ID = gjson.GetBytes(body, "id").String()
	if ref.ID == "" {
		return nil, fmt.Errorf("create file %s: %w", ref.Filename, ErrMissingID)
	}

	path := "/files/" + neturl.PathEscape(ref.ID) + "/content"
	if _, err := c.do(ctx, http.MethodPost, path, nil, content, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("upload file %s: %w", ref.Filename, err)
	}
	return ref, nil
}
