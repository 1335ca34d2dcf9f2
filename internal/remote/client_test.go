package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feveroracle-chatbot/pkg"
)

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chatbot/start-session", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(pkg.StartSessionResponse{
			SessionID: pkg.RemoteSessionPrefix + "1",
			Message:   "Session started",
			NextQuestion: &pkg.Question{
				Key:    pkg.StepStart,
				Type:   pkg.TypeYesNo,
				Prompt: "Do you currently have a fever?",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	resp, err := c.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pkg.RemoteSessionPrefix+"1", resp.SessionID)
	require.NotNil(t, resp.NextQuestion)
	assert.Equal(t, pkg.StepStart, resp.NextQuestion.Key)
}

func TestSubmitAnswerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req pkg.MessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fever_duration", req.CurrentStep)
		assert.Equal(t, "1-3 days", req.Message)
		json.NewEncoder(w).Encode(pkg.MessageResponse{
			SessionID:    req.SessionID,
			NextQuestion: &pkg.Question{Key: "temperature", Type: pkg.TypeNumeric},
			Answers:      map[string]any{"fever_duration": req.Message},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	resp, err := c.SubmitAnswer(context.Background(), pkg.MessageRequest{
		SessionID:   pkg.RemoteSessionPrefix + "1",
		Message:     "1-3 days",
		CurrentStep: "fever_duration",
		Answers:     map[string]any{"has_fever": true},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.NextQuestion)
	assert.Equal(t, "temperature", resp.NextQuestion.Key)
	assert.Equal(t, "1-3 days", resp.Answers["fever_duration"])
}

func TestNonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown step"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.SubmitAnswer(context.Background(), pkg.MessageRequest{CurrentStep: "travel_history"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSubmitReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chatbot/submit-report", r.URL.Path)
		var req pkg.ReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 75, req.Analysis.RiskScore)
		json.NewEncoder(w).Encode(map[string]string{"report_id": "r1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	err := c.SubmitReport(context.Background(), pkg.ReportRequest{
		SessionID: pkg.RemoteSessionPrefix + "1",
		Analysis:  pkg.NewAnalysis(75, "Viral Fever"),
	})
	require.NoError(t, err)
}

func TestTimeoutSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 20*time.Millisecond)
	_, err := c.StartSession(context.Background())
	require.Error(t, err)
}
