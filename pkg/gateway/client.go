package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"bluecast/pkg/constants"
	"bluecast/pkg/gateway/types"

	"github.com/sirupsen/logrus"
)

// Client talks to the remote gateway's HTTP surface. One instance is safe for
// concurrent use; each call carries its own timeout budget.
type Client struct {
	baseURL           string
	password          string
	httpClient        *http.Client
	textTimeout       time.Duration
	attachmentTimeout time.Duration
	logger            *logrus.Logger
}

func NewClient(config types.ClientConfig) *Client {
	return NewClientWithLogger(config, logrus.New())
}

func NewClientWithLogger(config types.ClientConfig, logger *logrus.Logger) *Client {
	textTimeout := config.TextTimeout
	if textTimeout <= 0 {
		textTimeout = time.Duration(constants.DefaultTextTimeoutSec) * time.Second
	}
	attachmentTimeout := config.AttachmentTimeout
	if attachmentTimeout <= 0 {
		attachmentTimeout = time.Duration(constants.DefaultAttachmentTimeoutSec) * time.Second
	}

	return &Client{
		baseURL:           strings.TrimRight(config.BaseURL, "/"),
		password:          config.Password,
		httpClient:        &http.Client{},
		textTimeout:       textTimeout,
		attachmentTimeout: attachmentTimeout,
		logger:            logger,
	}
}

func (c *Client) SendText(ctx context.Context, chatGUID, tempGUID, text string) types.Outcome {
	payload := types.TextRequest{
		ChatGUID: chatGUID,
		Message:  text,
		TempGUID: tempGUID,
	}
	return c.submitJSON(ctx, "/api/v1/message/text", payload, c.textTimeout)
}

func (c *Client) SendReply(ctx context.Context, chatGUID, tempGUID, text, targetGUID string, partIndex int) types.Outcome {
	payload := types.TextRequest{
		ChatGUID:            chatGUID,
		Message:             text,
		TempGUID:            tempGUID,
		SelectedMessageGUID: targetGUID,
		PartIndex:           partIndex,
	}
	return c.submitJSON(ctx, "/api/v1/message/text", payload, c.textTimeout)
}

func (c *Client) SendReaction(ctx context.Context, chatGUID, targetGUID, reaction string, partIndex int) types.Outcome {
	payload := types.ReactionRequest{
		ChatGUID:            chatGUID,
		SelectedMessageGUID: targetGUID,
		Reaction:            reaction,
		PartIndex:           partIndex,
	}
	return c.submitJSON(ctx, "/api/v1/message/react", payload, c.textTimeout)
}

func (c *Client) SendAttachment(ctx context.Context, chatGUID, tempGUID string, data []byte, filename, mimeType, caption string) types.Outcome {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, filename))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to create form part: %v", err)}
	}
	if _, err := part.Write(data); err != nil {
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to write attachment data: %v", err)}
	}

	fields := map[string]string{
		"chatGuid": chatGUID,
		"tempGuid": tempGUID,
		"name":     filename,
	}
	if caption != "" {
		fields["message"] = caption
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to write form field: %v", err)}
		}
	}

	if err := writer.Close(); err != nil {
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to close multipart writer: %v", err)}
	}

	return c.submit(ctx, "/api/v1/message/attachment", body, writer.FormDataContentType(), c.attachmentTimeout)
}

func (c *Client) CreateChat(ctx context.Context, address, service string) (string, error) {
	payload := types.ChatCreateRequest{
		Addresses: []string{address},
		Service:   service,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat create request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/v1/chat/new"), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	defer resp.Body.Close()

	var result types.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// Accepted but no parseable body; the caller synthesizes a GUID.
			return "", nil
		}
		return "", fmt.Errorf("chat creation failed with status %d", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (result.Status != 0 && result.Status != http.StatusOK) {
		return "", &responseError{status: resp.StatusCode, apiError: result.Error, message: result.Message}
	}

	if result.Data != nil {
		return result.Data.GUID, nil
	}
	return "", nil
}

func (c *Client) submitJSON(ctx context.Context, path string, payload interface{}, budget time.Duration) types.Outcome {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to marshal payload: %v", err)}
	}
	return c.submit(ctx, path, bytes.NewReader(jsonData), "application/json", budget)
}

// submit runs one HTTP exchange under the given budget and classifies the
// result. An aborted wait after the budget is a soft timeout, never a
// failure: the gateway queues and processes requests asynchronously.
func (c *Client) submit(ctx context.Context, path string, body io.Reader, contentType string, budget time.Duration) types.Outcome {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.WithFields(logrus.Fields{
				"endpoint": path,
				"budget":   budget.String(),
			}).Info("Gateway call aborted after timeout budget, treating as likely accepted")
			return types.Outcome{Kind: types.OutcomeSoftTimeout}
		}
		return types.Outcome{Kind: types.OutcomeHardFailure, Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return types.Outcome{Kind: types.OutcomeAcknowledgedNoID, StatusCode: resp.StatusCode}
		}
		return types.Outcome{Kind: types.OutcomeHardFailure, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("failed to read response: %v", err)}
	}

	var result types.APIResponse
	parseErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if parseErr == nil && result.Error != nil {
			reason = fmt.Sprintf("status %d: %s", resp.StatusCode, result.Error.Message)
		}
		return types.Outcome{Kind: types.OutcomeHardFailure, StatusCode: resp.StatusCode, Reason: reason}
	}

	if parseErr != nil {
		// Network success with an unparseable body still counts as accepted.
		c.logger.WithField("endpoint", path).Warn("Gateway returned unparseable success body")
		return types.Outcome{Kind: types.OutcomeAcknowledgedNoID, StatusCode: resp.StatusCode}
	}

	if result.Status != 0 && result.Status != http.StatusOK {
		reason := result.Message
		if result.Error != nil {
			reason = result.Error.Message
		}
		return types.Outcome{Kind: types.OutcomeHardFailure, StatusCode: result.Status, Reason: reason}
	}

	if result.Data != nil && result.Data.GUID != "" {
		return types.Outcome{Kind: types.OutcomeAcknowledged, GUID: result.Data.GUID, StatusCode: resp.StatusCode}
	}
	return types.Outcome{Kind: types.OutcomeAcknowledgedNoID, StatusCode: resp.StatusCode}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?password=" + url.QueryEscape(c.password)
}

type responseError struct {
	status   int
	apiError *types.APIError
	message  string
}

func (e *responseError) Error() string {
	if e.apiError != nil {
		return fmt.Sprintf("gateway error (status %d): %s", e.status, e.apiError.Message)
	}
	return fmt.Sprintf("gateway error (status %d): %s", e.status, e.message)
}
