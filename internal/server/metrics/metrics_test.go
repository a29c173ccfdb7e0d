package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	c := New()

	c.Request("GET")
	c.Request("GET")
	c.Request("PUT")
	c.Response(200)
	c.Response(404)
	c.Response(500)
	c.AuthFailure()
	c.RateLimitHit()
	c.IPDenied()
	c.DavRequest()
	c.AddUploadBytes(100)
	c.AddDownloadBytes(250)

	snap := c.Snapshot()

	requests := snap["requests"].(map[string]any)
	require.Equal(t, int64(3), requests["total"])
	require.Equal(t, int64(0), requests["active"])
	require.Equal(t, map[string]int64{"GET": 2, "PUT": 1}, requests["by_method"])
	require.Equal(t, map[int]int64{200: 1, 404: 1, 500: 1}, requests["by_status"])

	errs := snap["errors"].(map[string]any)
	require.Equal(t, int64(1), errs["total"]) // only the 500
	require.Equal(t, int64(1), errs["auth_failures"])
	require.Equal(t, int64(1), errs["rate_limit_hits"])
	require.Equal(t, int64(1), errs["ip_denied"])

	transfer := snap["transfer"].(map[string]any)
	require.Equal(t, int64(100), transfer["upload_bytes"])
	require.Equal(t, int64(250), transfer["download_bytes"])

	require.Equal(t, int64(1), snap["webdav"].(map[string]any)["requests"])
}

func TestActiveTracksInFlight(t *testing.T) {
	c := New()
	c.Request("GET")
	require.Equal(t, int64(1), c.Snapshot()["requests"].(map[string]any)["active"])
	c.Response(200)
	require.Equal(t, int64(0), c.Snapshot()["requests"].(map[string]any)["active"])
}

func TestConcurrentUse(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Request("GET")
				c.AddUploadBytes(1)
				c.Response(200)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Equal(t, int64(1000), snap["requests"].(map[string]any)["total"])
	require.Equal(t, int64(1000), snap["transfer"].(map[string]any)["upload_bytes"])
}
