package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/validation"
)

// BIMGateway talks to the BIM server holding the IFC building models.
// The model summary feeds the bim_analysis category; file transfer is
// an opaque byte-in/byte-out side channel for the viewer and runs on
// its own retrying client, outside the aggregation retry path.
type BIMGateway struct {
	baseURL  string
	http     *HTTPClient
	transfer *http.Client
}

// NewBIMGateway creates a BIM gateway client from configuration.
func NewBIMGateway(cfg config.Config) *BIMGateway {
	return &BIMGateway{
		baseURL:  cfg.BIMServerURL,
		http:     NewHTTPClient(cfg.RequestTimeout),
		transfer: newTransferClient(),
	}
}

// newTransferClient creates the retrying HTTP client used for file
// up/downloads. Transfers are large and infrequent, so a longer wait
// window is acceptable here.
func newTransferClient() *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c.StandardClient()
}

var summarySchema = validation.Schema{
	{Name: "element_count", Kind: validation.KindInt, Required: true},
	{Name: "floor_count", Kind: validation.KindInt, Default: int64(0)},
	{Name: "total_area_sqm", Kind: validation.KindFloat, Default: 0.0},
	{Name: "model_name", Kind: validation.KindString, Default: "unnamed"},
	{Name: "schema_version", Kind: validation.KindString, Default: "IFC4"},
}

// ModelSummary fetches the element inventory of the active building
// model, the numeric input of the bim_analysis category.
func (c *BIMGateway) ModelSummary(ctx context.Context) model.Result {
	res := c.http.GetJSON(ctx, c.baseURL, "/api/v1/models/active/summary", nil)
	if !res.OK() {
		return res
	}

	raw, ok := validation.Dig(res.Payload, "data")
	if !ok {
		raw = any(res.Payload)
	}
	summary, ok := raw.(map[string]any)
	if !ok {
		return malformed("bim summary", fmt.Errorf("summary is not an object"))
	}

	fields, err := validation.Coerce(summary, summarySchema)
	if err != nil {
		return malformed("bim summary", err)
	}
	return model.Success(fields)
}

// DownloadModel streams a stored IFC model. The caller owns closing
// the returned reader.
func (c *BIMGateway) DownloadModel(ctx context.Context, modelID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/models/"+modelID+"/file", nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading model %s: %w", modelID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading model %s: status %d", modelID, resp.StatusCode)
	}
	return resp.Body, nil
}

// UploadModel stores an IFC model and returns its server-side ID.
func (c *BIMGateway) UploadModel(ctx context.Context, name string, data io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/models", data)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ifc")
	req.Header.Set("X-Model-Name", name)

	resp, err := c.transfer.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading model %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("uploading model %s: status %d", name, resp.StatusCode)
	}

	id, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}

	logrus.Infof("Uploaded BIM model %s (%d byte id)", name, len(id))
	return string(id), nil
}
