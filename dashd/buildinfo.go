package dashd

import (
	"net/http"

	"github.com/livedash/livedash/buildinfo"
	"github.com/livedash/livedash/dashd/httpapi"
	"github.com/livedash/livedash/dashsdk"
)

func (*API) buildInfo(rw http.ResponseWriter, r *http.Request) {
	httpapi.Write(r.Context(), rw, http.StatusOK, dashsdk.BuildInfoResponse{
		ExternalURL: buildinfo.ExternalURL(),
		Version:     buildinfo.Version(),
	})
}

func (api *API) healthz(rw http.ResponseWriter, r *http.Request) {
	httpapi.Write(r.Context(), rw, http.StatusOK, dashsdk.HealthResponse{
		PollerState: string(api.PollerState()),
		Samples:     api.Store.Len(),
		Subscribers: api.Hub.Count(),
	})
}
