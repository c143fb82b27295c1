package cli_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livedash/livedash/dashd/poller"
	"github.com/livedash/livedash/dashsdk"
	"github.com/livedash/livedash/testutil"
)

func TestServer(t *testing.T) {
	t.Parallel()

	t.Run("Random", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitLong)
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		inv, lines := newInvocation(t, "server",
			"--random",
			"--host", "127.0.0.1",
			"--port", "0",
			"--random-backlog", "5",
			"--max-samples", "20",
			"--poll-interval", "50ms",
		)
		errC := make(chan error, 1)
		go func() { errC <- inv.WithContext(runCtx).Run() }()

		rawURL := waitForLine(ctx, t, lines, "View the dashboard at ")
		serverURL, err := url.Parse(rawURL)
		require.NoError(t, err)
		client := dashsdk.New(serverURL)

		records, err := client.Metrics(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(records), 5)

		// The poller keeps appending until the retention limit.
		testutil.Eventually(ctx, t, func(ctx context.Context) bool {
			records, err := client.Metrics(ctx)
			return err == nil && len(records) == 20
		}, testutil.IntervalFast)

		health, err := client.Health(ctx)
		require.NoError(t, err)
		require.Equal(t, string(poller.StatePolling), health.PollerState)

		live, err := client.LiveEvents(ctx)
		require.NoError(t, err)
		record := testutil.RequireReceive(ctx, t, live)
		require.GreaterOrEqual(t, record.ActiveUsers, int64(0))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"/browsers", nil)
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "<html")

		cancel()
		require.NoError(t, testutil.RequireReceive(ctx, t, errC))
		// Open streams are ended by shutdown.
		for range live {
		}
	})

	t.Run("StaticDir", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitLong)
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>custom bundle</html>"), 0o600))

		inv, lines := newInvocation(t, "server",
			"--random",
			"--host", "127.0.0.1",
			"--port", "0",
			"--static-dir", dir,
		)
		errC := make(chan error, 1)
		go func() { errC <- inv.WithContext(runCtx).Run() }()
		rawURL := waitForLine(ctx, t, lines, "View the dashboard at ")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"/os", nil)
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "custom bundle")

		// Edits are served without a restart.
		testutil.Eventually(ctx, t, func(ctx context.Context) bool {
			_ = os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>edited bundle</html>"), 0o600)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"/os", nil)
			if err != nil {
				return false
			}
			res, err := http.DefaultClient.Do(req)
			if err != nil {
				return false
			}
			defer res.Body.Close()
			body, err := io.ReadAll(res.Body)
			return err == nil && strings.Contains(string(body), "edited bundle")
		}, testutil.IntervalMedium)

		cancel()
		require.NoError(t, testutil.RequireReceive(ctx, t, errC))
	})

	t.Run("RequiresSource", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, _ := newInvocation(t, "server", "--port", "0")
		err := inv.WithContext(ctx).Run()
		require.ErrorContains(t, err, "required unless --random")
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, _ := newInvocation(t, "server",
			"--port", "0",
			"--google-credentials-file", filepath.Join(t.TempDir(), "missing.json"),
			"--google-property-id", "123",
		)
		err := inv.WithContext(ctx).Run()
		require.ErrorContains(t, err, "load google credentials")
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"type":"authorized_user"}`), 0o600))
		inv, _ := newInvocation(t, "server",
			"--port", "0",
			"--google-credentials-file", path,
			"--google-property-id", "123",
		)
		err := inv.WithContext(ctx).Run()
		require.Error(t, err)
		require.True(t, strings.Contains(err.Error(), "load google credentials"), err.Error())
	})

	t.Run("InvalidMaxSamples", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, _ := newInvocation(t, "server", "--random", "--port", "0", "--max-samples", "0")
		err := inv.WithContext(ctx).Run()
		require.ErrorContains(t, err, "--max-samples must be positive")
	})
}
