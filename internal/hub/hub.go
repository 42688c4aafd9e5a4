// Package hub talks to the shade hub's REST API.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type shadeList struct {
	ShadeIDs  []int `json:"shadeIds"`
	ShadeData []struct {
		ID   int    `json:"id"`
		Name string `json:"name"` // base64
	} `json:"shadeData"`
}

type shadeDetail struct {
	Shade struct {
		ID       int `json:"id"`
		Firmware struct {
			Revision    int `json:"revision"`
			SubRevision int `json:"subRevision"`
			Build       int `json:"build"`
		} `json:"firmware"`
	} `json:"shade"`
}

type otaRequest struct {
	Shade struct {
		ID             int `json:"id"`
		FirmwareUpdate struct {
			Index int `json:"index"`
		} `json:"firmwareUpdate"`
	} `json:"shade"`
}

// New returns a client for the hub at address (host or host:port).
func New(address string) *Client {
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimSuffix(base, "/") + "/api/",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RunScene asks the hub to start a scene. It returns once the hub accepts
// the command, long before the shade stops moving.
func (c *Client) RunScene(ctx context.Context, sceneID string) error {
	q := url.Values{"sceneId": {sceneID}}
	if err := c.do(ctx, http.MethodGet, "scenes?"+q.Encode(), nil, nil); err != nil {
		return fmt.Errorf("run scene %s: %w", sceneID, err)
	}
	log.Debug().Str("scene_id", sceneID).Msg("Hub accepted scene")
	return nil
}

// GetShadeList returns the shades paired with the hub with their names decoded.
func (c *Client) GetShadeList(ctx context.Context) ([]model.Shade, error) {
	var list shadeList
	if err := c.do(ctx, http.MethodGet, "shades", nil, &list); err != nil {
		return nil, fmt.Errorf("get shade list: %w", err)
	}

	shades := make([]model.Shade, 0, len(list.ShadeData))
	for _, s := range list.ShadeData {
		name, err := base64.StdEncoding.DecodeString(s.Name)
		if err != nil {
			return nil, fmt.Errorf("decode name of shade %d: %w", s.ID, err)
		}
		shades = append(shades, model.Shade{ID: s.ID, Name: string(name)})
	}
	return shades, nil
}

func (c *Client) GetFirmwareRevision(ctx context.Context, shadeID int) (string, error) {
	var detail shadeDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("shades/%d", shadeID), nil, &detail); err != nil {
		return "", fmt.Errorf("get firmware revision of shade %d: %w", shadeID, err)
	}
	fw := detail.Shade.Firmware
	return fmt.Sprintf("%d.%d.%d", fw.Revision, fw.SubRevision, fw.Build), nil
}

// StartOTAUpdate kicks off a firmware update. The hub gives no completion
// signal; callers wait a fixed time before reading the revision again.
func (c *Client) StartOTAUpdate(ctx context.Context, shadeID, firmwareIndex int) error {
	var req otaRequest
	req.Shade.ID = shadeID
	req.Shade.FirmwareUpdate.Index = firmwareIndex
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("shades/%d", shadeID), req, nil); err != nil {
		return fmt.Errorf("start OTA update of shade %d: %w", shadeID, err)
	}
	return nil
}

// FindShadeID returns the id of the last shade whose name contains name.
func FindShadeID(shades []model.Shade, name string) (int, bool) {
	id, found := model.DefaultShadeID, false
	for _, s := range shades {
		if strings.Contains(s.Name, name) {
			id, found = s.ID, true
		}
	}
	return id, found
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hub returned non-success status: %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode hub response: %w", err)
	}
	return nil
}
