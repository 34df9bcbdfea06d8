package cmd

import (
	"bytes"
	"cirelay/pkg/api"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RelayClient handles API calls to the cirelay controller.
type RelayClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewRelayClient creates a new client with the given base URL and token.
func NewRelayClient(baseURL, token string) *RelayClient {
	return &RelayClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *RelayClient) newRequest(method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	req.Header.Add("Content-Type", "application/json")
	return req, nil
}

// ScheduleJob sends POST /jobs/schedule to request a new job against a topic.
func (c *RelayClient) ScheduleJob(req api.ScheduleJobRequest) (*api.ScheduleJobResponse, error) {
	httpReq, err := c.newRequest(http.MethodPost, "/jobs/schedule", req)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ScheduleJobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// UpgradeJob sends POST /jobs/{id}/upgrade to schedule a successor on the next topic.
func (c *RelayClient) UpgradeJob(jobID string) (*api.ScheduleJobResponse, error) {
	return c.scheduleFrom(jobID, "upgrade")
}

// UpdateJob sends POST /jobs/{id}/update to re-resolve components on the same topic.
func (c *RelayClient) UpdateJob(jobID string) (*api.ScheduleJobResponse, error) {
	return c.scheduleFrom(jobID, "update")
}

func (c *RelayClient) scheduleFrom(jobID, action string) (*api.ScheduleJobResponse, error) {
	httpReq, err := c.newRequest(http.MethodPost, fmt.Sprintf("/jobs/%s/%s", jobID, action), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ScheduleJobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// GetJob sends GET /jobs/{id} to retrieve job details.
func (c *RelayClient) GetJob(jobID string) (*api.JobResponse, error) {
	httpReq, err := c.newRequest(http.MethodGet, fmt.Sprintf("/jobs/%s", jobID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.JobResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// ListJobs sends GET /jobs to list the team's jobs, newest first.
func (c *RelayClient) ListJobs(where string, limit int) ([]api.JobResponse, error) {
	path := fmt.Sprintf("/jobs?limit=%d", limit)
	if where != "" {
		path += "&where=" + url.QueryEscape(where)
	}
	httpReq, err := c.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ListJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Jobs, nil
}

// CreateJobState sends POST /jobs/{id}/jobstates to record a status change.
// A nil response with a nil error means the job was already finished with the
// same status and nothing was recorded.
func (c *RelayClient) CreateJobState(jobID string, req api.CreateJobStateRequest) (*api.JobStateResponse, error) {
	httpReq, err := c.newRequest(http.MethodPost, fmt.Sprintf("/jobs/%s/jobstates", jobID), req)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.JobStateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// ListJobStates sends GET /jobs/{id}/jobstates to retrieve the status trail.
func (c *RelayClient) ListJobStates(jobID string) ([]api.JobStateResponse, error) {
	httpReq, err := c.newRequest(http.MethodGet, fmt.Sprintf("/jobs/%s/jobstates", jobID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ListJobStatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.States, nil
}
