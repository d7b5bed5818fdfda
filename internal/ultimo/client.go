// Package ultimo is a client for the Ultimo ERP REST API. All calls are
// addressed per tenant: https://{domain}/api/v1/... with a static ApiKey
// header. Failures are surfaced to the caller; nothing is retried.
package ultimo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pontifexx/supplier-portal/internal/constants"
)

const (
	// ExpandAll requests the nested objects the portal consumes alongside
	// each job.
	ExpandAll = "Vendor/ObjectContacts/Employee,Equipment,ProcessFunction"

	// applicationElementID identifies the REST_AttachImageToJob action in
	// Ultimo's application model.
	applicationElementID = "D1FB01D577C248DFB95A2ADA578578DF"
)

type Client struct {
	httpClient *http.Client
}

// NewClient creates an Ultimo API client. Pass nil to use a default client
// with a generous timeout suitable for bulk job fetches.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		}
	}
	return &Client{httpClient: httpClient}
}

// TestConnection checks that the tenant's domain and API key are usable. It
// uses a short timeout so admin forms stay responsive.
func (c *Client) TestConnection(ctx context.Context, domain, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, domain, "object/ProgressStatus", nil, nil, apiKey)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", domain, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// ProgressStatuses fetches the tenant's progress status catalog.
func (c *Client) ProgressStatuses(ctx context.Context, domain, apiKey string) ([]ProgressStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, domain, "object/ProgressStatus", nil, nil, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress statuses: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result struct {
		Items []ProgressStatus `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Items, nil
}

// Jobs fetches the tenant's jobs. filter is an optional Ultimo filter
// expression such as "RecordChangeDate gt 2025-01-02T15:04:05Z"; expand is an
// optional comma-separated expansion list (see ExpandAll).
func (c *Client) Jobs(ctx context.Context, domain, apiKey, filter, expand string) ([]Job, error) {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	if expand != "" {
		params.Set("expand", expand)
	}

	req, err := c.newRequest(ctx, http.MethodGet, domain, "object/Job", params, nil, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := make([]Job, 0, len(result.Items))
	for _, raw := range result.Items {
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		job.Raw = raw
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Job fetches a single job by id.
func (c *Client) Job(ctx context.Context, domain, apiKey, jobID string) (*Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, domain, jobPath(jobID), nil, nil, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	job.Raw = raw
	return &job, nil
}

// UpdateJobStatus sends a partial update moving the job to newStatus.
// Feedback is truncated to the upstream limit; a blank or whitespace-only
// feedback is omitted from the payload entirely since Ultimo may reject an
// empty string.
func (c *Client) UpdateJobStatus(ctx context.Context, domain, apiKey, jobID, newStatus, feedback string) error {
	feedback = TruncateFeedback(feedback)

	patch := jobPatch{ProgressStatus: newStatus}
	if strings.TrimSpace(feedback) != "" {
		patch.FeedbackText = feedback
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPatch, domain, jobPath(jobID), nil, bytes.NewReader(body), apiKey)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Ultimo answers 204 No Content or 200 OK with the updated job; both
	// mean the update took.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Image is one file to attach to a job.
type Image struct {
	Name string
	Data []byte
}

// AttachImages posts up to four images to a job as a single action call.
// Files beyond the fourth are silently dropped.
func (c *Client) AttachImages(ctx context.Context, domain, apiKey, jobID string, images []Image) error {
	payload := map[string]string{"JobId": jobID}
	for i, img := range images {
		if i >= constants.MaxImagesPerJob {
			break
		}
		encoded := base64.StdEncoding.EncodeToString(img.Data)
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(img.Name), "."))
		if i == 0 {
			payload["ImageFileBase64"] = encoded
			payload["ImageFileBase64Extension"] = ext
		} else {
			payload[fmt.Sprintf("ImageFile%dBase64", i+1)] = encoded
			payload[fmt.Sprintf("ImageFile%dBase64Extension", i+1)] = ext
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, domain, "action/REST_AttachImageToJob", nil, bytes.NewReader(body), apiKey)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApplicationElementId", applicationElementID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to attach images to job %s: %w", jobID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, domain, path string, params url.Values, body io.Reader, apiKey string) (*http.Request, error) {
	u := fmt.Sprintf("https://%s/api/v1/%s", domain, path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("ApiKey", apiKey)
	return req, nil
}

// TruncateFeedback caps feedback text at the upstream limit. The limit counts
// characters, not bytes, so multi-byte text is never cut mid-rune.
func TruncateFeedback(feedback string) string {
	if utf8.RuneCountInString(feedback) <= constants.MaxFeedbackLength {
		return feedback
	}
	return string([]rune(feedback)[:constants.MaxFeedbackLength])
}

// jobPath addresses a single job; the id goes in single quotes per Ultimo's
// object syntax.
func jobPath(jobID string) string {
	return fmt.Sprintf("object/Job('%s')", jobID)
}

// apiError turns a non-2xx response into an error carrying the upstream
// message when the body is JSON, or a truncated body text otherwise.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return fmt.Errorf("ultimo returned status %d: %s", resp.StatusCode, parsed.Message)
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return fmt.Errorf("ultimo returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("ultimo returned status %d: %s", resp.StatusCode, text)
}

type jobPatch struct {
	ProgressStatus string `json:"ProgressStatus"`
	FeedbackText   string `json:"FeedbackText,omitempty"`
}

// ProgressStatus is one entry of a tenant's status catalog, opaque beyond its
// identifier and description.
type ProgressStatus struct {
	ID          string `json:"Id"`
	Description string `json:"Description"`
}

type Employee struct {
	ID           string `json:"Id,omitempty"`
	Description  string `json:"Description,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

type ObjectContact struct {
	Employee *Employee `json:"Employee,omitempty"`
}

type Vendor struct {
	ID             string          `json:"Id,omitempty"`
	Description    string          `json:"Description,omitempty"`
	ObjectContacts []ObjectContact `json:"ObjectContacts,omitempty"`
}

type Equipment struct {
	ID          string `json:"Id,omitempty"`
	Description string `json:"Description,omitempty"`
}

type ProcessFunction struct {
	ID          string `json:"Id,omitempty"`
	Description string `json:"Description,omitempty"`
}

// Job is an upstream job record. The typed fields cover what the portal
// consumes; Raw preserves the full payload for the cache.
type Job struct {
	ID               string           `json:"Id"`
	Description      string           `json:"Description"`
	ProgressStatus   string           `json:"ProgressStatus"`
	FeedbackText     string           `json:"FeedbackText,omitempty"`
	RecordChangeDate string           `json:"RecordChangeDate,omitempty"`
	Vendor           *Vendor          `json:"Vendor,omitempty"`
	Equipment        *Equipment       `json:"Equipment,omitempty"`
	ProcessFunction  *ProcessFunction `json:"ProcessFunction,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ContactEmails collects the non-empty vendor contact email addresses on the
// job, defensively skipping missing nested objects.
func (j *Job) ContactEmails() []Employee {
	if j.Vendor == nil {
		return nil
	}
	var employees []Employee
	for _, contact := range j.Vendor.ObjectContacts {
		if contact.Employee == nil || contact.Employee.EmailAddress == "" {
			continue
		}
		employees = append(employees, *contact.Employee)
	}
	return employees
}
