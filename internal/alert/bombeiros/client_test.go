package bombeiros_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firealert/firealert/internal/alert"
	"github.com/firealert/firealert/internal/alert/bombeiros"
	"github.com/firealert/firealert/internal/media"
	"github.com/firealert/firealert/internal/provider/resilience"
)

// singleAttemptClient avoids retry delays in failure tests.
func singleAttemptClient(name string) *resilience.Client {
	bc := resilience.DefaultBreakerConfig(name)
	bc.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      -1,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		Breaker:         &bc,
	})
}

func newTestClient(t *testing.T, serverURL string) *bombeiros.Client {
	t.Helper()
	return bombeiros.NewClient(bombeiros.ClientConfig{
		BaseURL:    serverURL,
		HTTPClient: singleAttemptClient("bombeiros-test"),
		Logger:     zerolog.Nop(),
	})
}

func validDraft() *alert.Draft {
	return alert.NewDraft("Ana", "+258841234567", "Incêndio no mercado", alert.Location{
		Latitude:  -25.9655,
		Longitude: 32.5832,
		Address:   "Av. Julius Nyerere, Maputo",
	})
}

func TestClient_Submit_Success(t *testing.T) {
	var gotFields map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/alerts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotFields = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotFields[name] = values[0]
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"alert":{"id":42}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	serverID, err := client.Submit(context.Background(), validDraft())
	require.NoError(t, err)

	assert.Equal(t, int64(42), serverID)
	assert.Equal(t, "Ana", gotFields["user_name"])
	assert.Equal(t, "+258841234567", gotFields["user_phone"])
	assert.Equal(t, "Incêndio no mercado", gotFields["message"])
	assert.Equal(t, "Av. Julius Nyerere, Maputo", gotFields["location"])
	assert.Equal(t, "-25.9655", gotFields["latitude"])
	assert.Equal(t, "32.5832", gotFields["longitude"])
}

func TestClient_Submit_TopLevelID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"id":7}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	serverID, err := client.Submit(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, int64(7), serverID)
}

func TestClient_Submit_CoordinateFallbackLocation(t *testing.T) {
	var gotLocation string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLocation = r.MultipartForm.Value["location"][0]
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"id":1}`))
	}))
	defer server.Close()

	d := alert.NewDraft("Ana", "841234567", "help", alert.Location{Latitude: -25.9655, Longitude: 32.5832})

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, "-25.965500, 32.583200", gotLocation)
}

func TestClient_Submit_MediaParts(t *testing.T) {
	dir := t.TempDir()
	photoPath := filepath.Join(dir, "p.jpg")
	audioPath := filepath.Join(dir, "a.m4a")
	require.NoError(t, os.WriteFile(photoPath, []byte("jpegbytes"), 0o600))
	require.NoError(t, os.WriteFile(audioPath, []byte("audiobytes"), 0o600))

	type part struct {
		filename string
		mime     string
		content  string
	}
	var gotParts map[string]part

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotParts = map[string]part{}
		for name, headers := range r.MultipartForm.File {
			fh := headers[0]
			f, err := fh.Open()
			require.NoError(t, err)
			content, err := io.ReadAll(f)
			require.NoError(t, err)
			f.Close()
			gotParts[name] = part{
				filename: fh.Filename,
				mime:     fh.Header.Get("Content-Type"),
				content:  string(content),
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"id":1}`))
	}))
	defer server.Close()

	d := validDraft()
	d.Photo = &alert.MediaRef{URI: "file://" + photoPath, MimeType: media.MimePhoto}
	d.Audio = &alert.MediaRef{URI: audioPath, MimeType: media.MimeAudio}

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, gotParts, 2)
	assert.Equal(t, "alert_photo.jpg", gotParts["photo"].filename)
	assert.Equal(t, media.MimePhoto, gotParts["photo"].mime)
	assert.Equal(t, "jpegbytes", gotParts["photo"].content)
	assert.Equal(t, "alert_audio.m4a", gotParts["audio"].filename)
	assert.Equal(t, media.MimeAudio, gotParts["audio"].mime)
	assert.Equal(t, "audiobytes", gotParts["audio"].content)
}

func TestClient_Submit_RejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"phone invalid"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), validDraft())
	require.Error(t, err)

	var subErr *alert.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.IsRejected())
	assert.Equal(t, http.StatusUnprocessableEntity, subErr.StatusCode)
	assert.Contains(t, subErr.Body, "phone invalid")
}

func TestClient_Submit_SuccessFalseIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":false,"error":"duplicate"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), validDraft())

	var subErr *alert.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.IsRejected())
	assert.Contains(t, subErr.Body, "duplicate")
}

func TestClient_Submit_MalformedBodyIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), validDraft())

	var subErr *alert.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.IsRejected())
}

func TestClient_Submit_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), validDraft())

	var subErr *alert.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.True(t, subErr.IsTransport())
}

func TestClient_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/alerts", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[
			{"id":1,"user_phone":"841234567","message":"fire","location":"Maputo","status":"pending","created_at":"2026-08-01T10:00:00Z"},
			{"id":2,"user_phone":"829999999","message":"smoke","location":"Matola","status":"resolved","created_at":"2026-08-02T11:30:00Z"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.List(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, "841234567", records[0].UserPhone)
	assert.Equal(t, alert.StatusPending, records[0].DisplayStatus())
	assert.Equal(t, alert.StatusResolved, records[1].DisplayStatus())
}

func TestClient_List_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.List(context.Background())
	assert.Error(t, err)
}
