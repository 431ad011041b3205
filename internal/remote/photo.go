package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/guardtrack/patrolsync/internal/model"
)

// PhotoHandler uploads captured photos to POST /photos/upload as multipart
// requests. The image file is streamed from the spool directory through an
// io.Pipe so an upload never buffers the whole file in memory.
type PhotoHandler struct {
	client *Client
}

// NewPhotoHandler creates the photo upload handler.
func NewPhotoHandler(c *Client) *PhotoHandler {
	return &PhotoHandler{client: c}
}

func (h *PhotoHandler) EntityType() model.EntityType { return model.EntityPhoto }

func (h *PhotoHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	var photo model.Photo
	if err := rec.DecodePayload(&photo); err != nil {
		return "", &RemoteRejectedError{StatusCode: 422, Message: err.Error()}
	}

	f, err := os.Open(photo.FilePath)
	if err != nil {
		// A missing spool file cannot succeed on any retry.
		return "", &RemoteRejectedError{StatusCode: 422, Message: fmt.Sprintf("spool file unavailable: %v", err)}
	}
	defer f.Close()

	pr, pw := io.Pipe()
	// If do fails before issuing the request (no token, bad URL), nothing
	// ever reads the pipe and the writer goroutine would block on it.
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, rec, &photo, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.client.baseURL+"/photos/upload", pr)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := h.client.do(req, true)
	if err != nil {
		return "", err
	}

	var resp pushResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decode upload response: %w", err)}
	}
	if resp.ID == "" {
		return "", &TransientError{Err: fmt.Errorf("upload response missing id")}
	}
	return resp.ID, nil
}

// writeMultipart streams the metadata part followed by the image part.
func writeMultipart(mw *multipart.Writer, rec *model.SyncRecord, photo *model.Photo, f *os.File) error {
	meta, err := json.Marshal(pushBody{
		ClientUUID:   rec.UUID,
		LastModified: rec.LastModified,
		Record:       rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal photo metadata: %w", err)
	}
	if err := mw.WriteField("meta", string(meta)); err != nil {
		return fmt.Errorf("write meta field: %w", err)
	}

	part, err := mw.CreateFormFile("file", filepath.Base(photo.FilePath))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("stream photo: %w", err)
	}

	return mw.Close()
}
