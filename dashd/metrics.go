package dashd

import (
	"context"
	"net/http"

	"cdr.dev/slog/v3"
	"github.com/livedash/livedash/dashd/httpapi"
)

// metrics returns every retained sample, oldest first.
func (api *API) metrics(rw http.ResponseWriter, r *http.Request) {
	httpapi.Write(r.Context(), rw, http.StatusOK, api.Store.Snapshot())
}

// liveEvents streams each new sample as a server sent event until the client
// goes away or the API is closed.
func (api *API) liveEvents(rw http.ResponseWriter, r *http.Request) {
	api.streamsWaitMutex.Lock()
	api.streamsWaitGroup.Add(1)
	api.streamsWaitMutex.Unlock()
	defer api.streamsWaitGroup.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(api.ctx, cancel)
	defer stop()
	r = r.WithContext(ctx)

	records, unsubscribe := api.Hub.Subscribe(ctx)
	defer unsubscribe()

	sendEvent, closed, err := httpapi.ServerSentEventSender(api.Clock, rw, r)
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	defer func() {
		cancel()
		<-closed
	}()

	logger := api.Logger.With(slog.F("remote_addr", r.RemoteAddr))
	logger.Debug(ctx, "live event stream opened")
	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "live event stream closed")
			return
		case <-closed:
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			if err := sendEvent(ctx, record); err != nil {
				logger.Debug(ctx, "send live event", slog.Error(err))
				return
			}
		}
	}
}
