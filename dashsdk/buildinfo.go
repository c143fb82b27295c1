package dashsdk

import (
	"context"
	"encoding/json"
	"net/http"
)

// BuildInfoResponse contains build information for this instance of livedash.
type BuildInfoResponse struct {
	// ExternalURL is a URL referencing the current livedash version. For
	// production builds, this will link directly to a release. For
	// development builds, this will link to a commit.
	ExternalURL string `json:"external_url"`
	// Version returns the semantic version of the build.
	Version string `json:"version"`
}

// BuildInfo returns build information for this instance of livedash.
func (c *Client) BuildInfo(ctx context.Context) (BuildInfoResponse, error) {
	res, err := c.Request(ctx, http.MethodGet, "/api/buildinfo", nil)
	if err != nil {
		return BuildInfoResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return BuildInfoResponse{}, ReadBodyAsError(res)
	}

	var buildInfo BuildInfoResponse
	return buildInfo, json.NewDecoder(res.Body).Decode(&buildInfo)
}

// HealthResponse reports whether the poller is running and how much data
// the server currently retains.
type HealthResponse struct {
	PollerState string `json:"poller_state"`
	Samples     int    `json:"samples"`
	Subscribers int    `json:"subscribers"`
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	res, err := c.Request(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return HealthResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return HealthResponse{}, ReadBodyAsError(res)
	}

	var health HealthResponse
	return health, json.NewDecoder(res.Body).Decode(&health)
}
