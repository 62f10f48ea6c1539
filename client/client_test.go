package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/source"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithPollInterval(time.Millisecond),
	)
}

func TestCreateJobFromFile(t *testing.T) {
	upload := filepath.Join(t.TempDir(), "input.mp4")
	require.NoError(t, os.WriteFile(upload, []byte("video-bytes"), 0o644))

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jobs", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("video")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "input.mp4", header.Filename)

		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: StatusQueued})
	}))

	job, err := c.CreateJobFromFile(context.Background(), upload)
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, StatusQueued, job.Status)
}

func TestCreateJobFromURL(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "https://example.com/in.mp4", payload["video_url"])
		json.NewEncoder(w).Encode(Job{ID: "job-2", Status: StatusQueued})
	}))

	job, err := c.CreateJobFromURL(context.Background(), "https://example.com/in.mp4")
	require.NoError(t, err)
	require.Equal(t, "job-2", job.ID)
}

func TestStartJobParams(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/job-3/start", r.URL.Path)
		var params map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		require.Equal(t, "transparent", params["background_type"])
		require.Equal(t, "alpha-webm", params["format"])
		require.Equal(t, "https://example.com/hook", params["webhook_url"])
		json.NewEncoder(w).Encode(Job{ID: "job-3", Status: StatusProcessing})
	}))

	job, err := c.StartJob(context.Background(), "job-3", StartOptions{
		BackgroundType: "transparent",
		Format:         "alpha-webm",
		WebhookURL:     "https://example.com/hook",
	})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, job.Status)
}

func TestWaitForJobPollsToCompletion(t *testing.T) {
	states := []Job{
		{ID: "job-4", Status: StatusQueued, Progress: 0},
		{ID: "job-4", Status: StatusProcessing, Progress: 50},
		{ID: "job-4", Status: StatusDone, Progress: 100, ResultURL: "https://example.com/result.webm"},
	}
	var call int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/job-4", r.URL.Path)
		state := states[call]
		if call < len(states)-1 {
			call++
		}
		json.NewEncoder(w).Encode(state)
	}))

	var seen []int
	job, err := c.WaitForJob(context.Background(), "job-4", func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	require.Equal(t, StatusDone, job.Status)
	require.Equal(t, []int{0, 50, 100}, seen)
}

func TestWaitForJobSurfacesFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Job{ID: "job-5", Status: StatusError, Error: "no person detected"})
	}))

	job, err := c.WaitForJob(context.Background(), "job-5", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no person detected")
	require.Equal(t, StatusError, job.Status)
}

func TestCredits(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/credits", r.URL.Path)
		json.NewEncoder(w).Encode(CreditBalance{Total: 12.5, Subscription: 10, PayAsYouGo: 2.5})
	}))

	balance, err := c.Credits(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12.5, balance.Total)
}

func TestWebhookDeliveries(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/job-6/webhook_deliveries", r.URL.Path)
		json.NewEncoder(w).Encode([]WebhookDelivery{
			{ID: "d-1", JobID: "job-6", ResponseCode: 200},
			{ID: "d-2", JobID: "job-6", ResponseCode: 500},
		})
	}))

	deliveries, err := c.WebhookDeliveries(context.Background(), "job-6")
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	require.Equal(t, 500, deliveries[1].ResponseCode)
}

func TestAPIErrorDecoding(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"errors":[{"title":"insufficient credits","detail":"balance is 0"}]}`))
	}))

	_, err := c.GetJob(context.Background(), "job-7")
	require.Error(t, err)
	require.Contains(t, err.Error(), "402")
	require.Contains(t, err.Error(), "insufficient credits")
	require.Contains(t, err.Error(), "balance is 0")
}

func TestFetchResult(t *testing.T) {
	mc := mediactx.New("/nonexistent/ffmpeg", "/nonexistent/ffprobe", t.TempDir(), zerolog.Nop())
	mediactx.SetCurrent(mc)
	t.Cleanup(func() { mediactx.SetCurrent(nil) })

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("webm-bytes"))
	}))
	t.Cleanup(files.Close)

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	job := &Job{ID: "job-8", Status: StatusDone, ResultURL: files.URL + "/result.webm"}
	fg, err := c.FetchResult(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, source.FormatAlphaWebM, fg.Format)

	_, err = c.FetchResult(context.Background(), &Job{ID: "job-9", Status: StatusProcessing})
	require.Error(t, err)
}
