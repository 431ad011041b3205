package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guardtrack/patrolsync/internal/model"
	"github.com/guardtrack/patrolsync/internal/route"
)

// Handler pushes records of one entity type to its backend endpoint.
//
// Push returns the server-assigned remote ID on success. Failures follow
// the package error taxonomy; a ConflictError is returned when the server
// holds a newer version of the record.
type Handler interface {
	EntityType() model.EntityType
	Push(ctx context.Context, rec *model.SyncRecord) (string, error)
}

// BatchHandler is implemented by handlers that send all pending records of
// their type in a single request. The returned map is keyed by local
// record ID; records absent from the map were not accepted.
type BatchHandler interface {
	Handler
	PushBatch(ctx context.Context, recs []*model.SyncRecord) (map[int64]string, error)
}

// Puller is implemented by handlers for server-authoritative data that
// flows down to the device.
type Puller interface {
	Pull(ctx context.Context) ([]route.Route, error)
}

// pushBody is the wire wrapper for single-record pushes. The client UUID
// doubles as the server-side idempotency key.
type pushBody struct {
	ClientUUID   string          `json:"client_uuid"`
	LastModified time.Time       `json:"last_modified"`
	Record       json.RawMessage `json:"record"`
}

// pushResponse is the data field of a successful push.
type pushResponse struct {
	ID string `json:"id"`
}

// Handlers returns the full handler set in no particular order; the
// orchestrator applies its own priority ranking.
func Handlers(c *Client) []Handler {
	return []Handler{
		NewTimeRecordHandler(c),
		NewCheckpointHandler(c),
		NewReportHandler(c),
		NewPhotoHandler(c),
		NewLocationHandler(c),
	}
}

// pushOne sends one record to the given endpoint and decodes the remote ID.
func pushOne(ctx context.Context, c *Client, path string, rec *model.SyncRecord) (string, error) {
	data, err := c.postJSON(ctx, path, pushBody{
		ClientUUID:   rec.UUID,
		LastModified: rec.LastModified,
		Record:       rec.Payload,
	})
	if err != nil {
		return "", err
	}

	var pr pushResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return "", &TransientError{Err: fmt.Errorf("decode push response: %w", err)}
	}
	if pr.ID == "" {
		return "", &TransientError{Err: fmt.Errorf("push response missing id")}
	}
	return pr.ID, nil
}

// TimeRecordHandler syncs clock punches to POST /time/clock.
type TimeRecordHandler struct {
	client *Client
}

// NewTimeRecordHandler creates the time record handler.
func NewTimeRecordHandler(c *Client) *TimeRecordHandler {
	return &TimeRecordHandler{client: c}
}

func (h *TimeRecordHandler) EntityType() model.EntityType { return model.EntityTimeRecord }

func (h *TimeRecordHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	return pushOne(ctx, h.client, "/time/clock", rec)
}

// CheckpointHandler syncs checkpoint verifications to POST /patrol/verify
// and pulls the server-authoritative route definitions.
type CheckpointHandler struct {
	client *Client
}

// NewCheckpointHandler creates the checkpoint handler.
func NewCheckpointHandler(c *Client) *CheckpointHandler {
	return &CheckpointHandler{client: c}
}

func (h *CheckpointHandler) EntityType() model.EntityType {
	return model.EntityCheckpointVerification
}

func (h *CheckpointHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	return pushOne(ctx, h.client, "/patrol/verify", rec)
}

// Pull fetches the assigned patrol routes from GET /patrol/routes.
func (h *CheckpointHandler) Pull(ctx context.Context) ([]route.Route, error) {
	data, err := h.client.getJSON(ctx, "/patrol/routes")
	if err != nil {
		return nil, err
	}

	var routes []route.Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("decode routes: %w", err)}
	}
	return routes, nil
}

// ReportHandler syncs activity reports to POST /reports. Reports are the
// one mutable entity type, so this endpoint is where version conflicts
// surface.
type ReportHandler struct {
	client *Client
}

// NewReportHandler creates the report handler.
func NewReportHandler(c *Client) *ReportHandler {
	return &ReportHandler{client: c}
}

func (h *ReportHandler) EntityType() model.EntityType { return model.EntityActivityReport }

func (h *ReportHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	return pushOne(ctx, h.client, "/reports", rec)
}

// LocationHandler syncs GPS track points. Points are low-value telemetry,
// so the whole pending backlog goes up as one POST /location/batch call.
type LocationHandler struct {
	client *Client
}

// NewLocationHandler creates the location batch handler.
func NewLocationHandler(c *Client) *LocationHandler {
	return &LocationHandler{client: c}
}

func (h *LocationHandler) EntityType() model.EntityType { return model.EntityLocationRecord }

// Push sends a single point. The orchestrator prefers PushBatch; this
// exists so the handler still satisfies the Handler contract.
func (h *LocationHandler) Push(ctx context.Context, rec *model.SyncRecord) (string, error) {
	ids, err := h.PushBatch(ctx, []*model.SyncRecord{rec})
	if err != nil {
		return "", err
	}
	id, ok := ids[rec.ID]
	if !ok {
		return "", &RemoteRejectedError{StatusCode: 422, Message: "point not accepted"}
	}
	return id, nil
}

// batchPoint pairs a point payload with its client UUID.
type batchPoint struct {
	ClientUUID string          `json:"client_uuid"`
	Record     json.RawMessage `json:"record"`
}

// batchResponse maps client UUIDs to server IDs for accepted points.
type batchResponse struct {
	IDs map[string]string `json:"ids"`
}

// PushBatch sends all pending points in one request.
func (h *LocationHandler) PushBatch(ctx context.Context, recs []*model.SyncRecord) (map[int64]string, error) {
	points := make([]batchPoint, 0, len(recs))
	for _, rec := range recs {
		points = append(points, batchPoint{ClientUUID: rec.UUID, Record: rec.Payload})
	}

	data, err := h.client.postJSON(ctx, "/location/batch", map[string]any{"points": points})
	if err != nil {
		return nil, err
	}

	var br batchResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("decode batch response: %w", err)}
	}

	accepted := make(map[int64]string, len(br.IDs))
	for _, rec := range recs {
		if id, ok := br.IDs[rec.UUID]; ok {
			accepted[rec.ID] = id
		}
	}
	return accepted, nil
}
