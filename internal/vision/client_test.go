package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sticker-album-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer returns a fake chat-completions endpoint whose model reply
// is the given content string.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(baseURL string) *Client {
	return NewClient(config.VisionConfig{
		Enabled:           true,
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Model:             "test-model",
		RequestsPerMinute: 600,
	})
}

func TestValidateSubmissionApprovedAboveThreshold(t *testing.T) {
	srv := chatServer(t, `{"match_score": 0.8, "is_match": true, "reason": "same car"}`)
	defer srv.Close()

	outcome := testClient(srv.URL).ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "Classic Cars", "")
	assert.Empty(t, outcome.Err)
	assert.True(t, outcome.Approved)
	assert.Equal(t, 0.8, outcome.MatchScore)
}

func TestValidateSubmissionMatchBelowThreshold(t *testing.T) {
	srv := chatServer(t, fmt.Sprintf(`{"match_score": %v, "is_match": true, "reason": "maybe"}`, ApprovalThreshold-0.1))
	defer srv.Close()

	outcome := testClient(srv.URL).ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "", "")
	assert.False(t, outcome.Approved)
	assert.True(t, outcome.IsMatch)
}

func TestValidateSubmissionHighScoreButNoMatch(t *testing.T) {
	srv := chatServer(t, `{"match_score": 0.9, "is_match": false, "reason": "different model"}`)
	defer srv.Close()

	outcome := testClient(srv.URL).ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "", "")
	assert.False(t, outcome.Approved)
}

func TestValidateSubmissionInvalidJSON(t *testing.T) {
	srv := chatServer(t, `the car looks great!`)
	defer srv.Close()

	outcome := testClient(srv.URL).ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "", "")
	assert.False(t, outcome.Approved)
	assert.NotEmpty(t, outcome.Err)
}

func TestValidateSubmissionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	outcome := testClient(srv.URL).ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "", "")
	assert.False(t, outcome.Approved)
	assert.NotEmpty(t, outcome.Err)
}

func TestValidateSubmissionNoPhoto(t *testing.T) {
	outcome := testClient("http://unused").ValidateSubmission(context.Background(),
		Image{}, nil, "911 Turbo", "", "")
	assert.False(t, outcome.Approved)
	assert.Empty(t, outcome.Err)
}

func TestValidateSubmissionDisabledAutoApproves(t *testing.T) {
	client := NewClient(config.VisionConfig{Enabled: false, RequestsPerMinute: 60})
	require.False(t, client.Enabled())

	outcome := client.ValidateSubmission(context.Background(),
		Image{URL: "https://cdn/photo.jpg"}, nil, "911 Turbo", "", "")
	assert.True(t, outcome.Approved)
}

func TestMatchPhotoParsesDecision(t *testing.T) {
	srv := chatServer(t, `{
		"recognized": true,
		"make": "Porsche",
		"model": "911",
		"generation": "992",
		"year_range": "2019-2024",
		"confidence": 0.87,
		"sticker_id": "sticker-1",
		"reason": "clear rear view",
		"fun_fact": "Air-cooled until 1998."
	}`)
	defer srv.Close()

	decision := testClient(srv.URL).MatchPhoto(context.Background(),
		Image{URL: "https://cdn/photo.jpg"},
		[]Candidate{{ID: "sticker-1", Name: "911", Description: "Rear-engined icon"}})

	assert.Empty(t, decision.Err)
	assert.True(t, decision.Recognized)
	assert.Equal(t, "Porsche", decision.Make)
	assert.Equal(t, "sticker-1", decision.StickerID)
	assert.Equal(t, 0.87, decision.Confidence)
}

func TestMatchPhotoDisabled(t *testing.T) {
	client := NewClient(config.VisionConfig{Enabled: false, RequestsPerMinute: 60})
	decision := client.MatchPhoto(context.Background(), Image{URL: "x"}, nil)
	assert.NotEmpty(t, decision.Err)
}

func TestImagePayloadURL(t *testing.T) {
	assert.Equal(t, "https://cdn/p.jpg", Image{URL: "https://cdn/p.jpg"}.payloadURL())

	data := Image{Data: []byte{0xff, 0xd8}}
	assert.Contains(t, data.payloadURL(), "data:image/jpeg;base64,")
	assert.True(t, Image{}.IsZero())
	assert.False(t, data.IsZero())
}
