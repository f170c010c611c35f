package nft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/baedrik/skulls2/internal/model"
)

// HTTPService queries a JSON gateway that fronts the NFT collections.
//
//	POST {base}/collections/{collection}/query  {"image_info":{"token_id":"1"}}
type HTTPService struct {
	baseURL string
	client  *http.Client
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a gateway client. A nil client gets a 10s timeout.
func NewHTTPService(baseURL string, client *http.Client) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type tokenQuery struct {
	TokenID string `json:"token_id"`
}

// ImageInfo implements Service.
func (h *HTTPService) ImageInfo(ctx context.Context, collection, tokenID string) (model.ImageInfoResponse, error) {
	var out model.ImageInfoResponse
	err := h.query(ctx, collection, map[string]tokenQuery{"image_info": {TokenID: tokenID}}, &out)
	return out, err
}

// NftInfo implements Service.
func (h *HTTPService) NftInfo(ctx context.Context, collection, tokenID string) (model.NftInfo, error) {
	var out model.NftInfo
	err := h.query(ctx, collection, map[string]tokenQuery{"nft_info": {TokenID: tokenID}}, &out)
	return out, err
}

func (h *HTTPService) query(ctx context.Context, collection string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode nft query: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s/query", h.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build nft query: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("nft query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownToken
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nft gateway returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode nft response: %w", err)
	}
	return nil
}
