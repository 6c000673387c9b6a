package gateway

import (
	"context"

	"idv/internal/flow/record"
	flowservice "idv/internal/flow/service"
)

// SubmitterClient implements the data submission boundary over HTTP.
type SubmitterClient struct {
	*Client
}

// NewSubmitterClient wraps a backend client as a data submitter.
func NewSubmitterClient(c *Client) *SubmitterClient {
	return &SubmitterClient{Client: c}
}

type submitRequest struct {
	Fields map[string]any `json:"fields"`
}

func (c *SubmitterClient) SubmitData(ctx context.Context, authToken string, payload map[record.FieldID]record.Value) error {
	fields := make(map[string]any, len(payload))
	for fid, v := range payload {
		if v.IsList() {
			fields[string(fid)] = v.Items()
			continue
		}
		fields[string(fid)] = v.Scalar()
	}
	return c.post(ctx, "/hosted/user/vault", authToken, submitRequest{Fields: fields}, nil)
}

var _ flowservice.Submitter = (*SubmitterClient)(nil)
