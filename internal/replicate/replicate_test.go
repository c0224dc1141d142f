package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCartoonifyValidation(t *testing.T) {
	assert.NoError(t, Cartoonify.Validate(decode(t, `{"seed": 42, "image": "https://img/face.png"}`)))

	err := Cartoonify.Validate(decode(t, `{"image": "https://img/face.png"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"seed"`)

	err = Cartoonify.Validate(decode(t, `{"seed": "42", "image": "https://img/face.png"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number")

	err = Cartoonify.Validate(decode(t, `{"seed": 1, "image": "   "}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestValidateRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`null`, `[]`, `"x"`, `3`} {
		assert.Error(t, PhotoToAnime.Validate(decode(t, raw)), raw)
	}
}

func TestTooncrafterValidationTypes(t *testing.T) {
	valid := `{"loop": false, "prompt": "", "image_1": "a", "image_2": "b", "image_3": "",
		"max_width": 512, "max_height": 512, "interpolate": false, "negative_prompt": "", "color_correction": true}`
	assert.NoError(t, Tooncrafter.Validate(decode(t, valid)))

	invalid := `{"loop": "no", "prompt": "", "image_1": "a", "image_2": "b", "image_3": "",
		"max_width": 512, "max_height": 512, "interpolate": false, "negative_prompt": "", "color_correction": true}`
	assert.Error(t, Tooncrafter.Validate(decode(t, invalid)))
}

func TestModelCatalogCredits(t *testing.T) {
	for _, m := range StableDiffusionModels {
		assert.Equal(t, 1, m.Credits, m.Slug)
	}
	for _, m := range AnimationModels {
		assert.Zero(t, m.Credits, m.Slug)
	}
}

func TestRunPollsUntilSucceeded(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer r8_test", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "f109015d60170dfb20460f17da8cb863155823c85ece1115e1e9e4ec7ef51d3b", body["version"])
			assert.Equal(t, "wait", r.Header.Get("Prefer"))
			_, _ = w.Write([]byte(`{"id": "p1", "status": "processing"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"id": "p1", "status": "processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id": "p1", "status": "succeeded", "output": "https://replicate.delivery/out.png"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient("r8_test", srv.URL, time.Second, nil, WithPolling(time.Millisecond, 10))
	out, err := client.Run(context.Background(), Cartoonify.Ref, map[string]any{"seed": 1, "image": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `"https://replicate.delivery/out.png"`, string(out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestRunReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "p2", "status": "failed", "error": "NSFW content detected"}`))
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, time.Second, nil)
	_, err := client.Run(context.Background(), "owner/model:abc", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPredictionFailed))
	assert.Contains(t, err.Error(), "NSFW")
}

func TestRunHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Invalid token"}`))
	}))
	defer srv.Close()

	client := NewClient("bad", srv.URL, time.Second, nil)
	_, err := client.Run(context.Background(), "owner/model:abc", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestRunTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "p3", "status": "starting"}`))
	}))
	defer srv.Close()

	client := NewClient("tok", srv.URL, time.Second, nil, WithPolling(time.Millisecond, 2))
	_, err := client.Run(context.Background(), "owner/model:abc", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
