package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sublingo/internal/config"
	"sublingo/internal/logging"
)

const hostedAPIBase = "https://api.telegram.org"

const userAgent = "sublingo/0.1.0"

// Client is a thin Telegram Bot API client covering the handful of methods
// the daemon needs: long polling, status messages, file download, and video
// upload. When a local Bot API server is configured, all traffic (and the
// larger 2 GB file ceiling) goes through it.
type Client struct {
	token      string
	baseURL    string
	local      bool
	httpClient *http.Client
	pollClient *http.Client
	upClient   *http.Client
	pollSecs   int
	logger     *slog.Logger
}

// NewClient constructs a Bot API client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.Telegram.LocalAPIURL), "/")
	local := base != ""
	if base == "" {
		base = hostedAPIBase
	}
	requestTimeout := time.Duration(cfg.Telegram.RequestTimeout) * time.Second
	pollSecs := cfg.Telegram.PollTimeout
	uploadTimeout := time.Duration(cfg.Telegram.UploadTimeout) * time.Second

	return &Client{
		token:      strings.TrimSpace(cfg.Telegram.Token),
		baseURL:    base,
		local:      local,
		httpClient: &http.Client{Timeout: requestTimeout},
		// Long polls hold the connection open for pollSecs, so that client
		// needs headroom on top of the ordinary request timeout.
		pollClient: &http.Client{Timeout: requestTimeout + time.Duration(pollSecs)*time.Second},
		upClient:   &http.Client{Timeout: uploadTimeout},
		pollSecs:   pollSecs,
		logger:     logging.NewComponentLogger(logger, "telegram"),
	}
}

// LocalMode reports whether a local Bot API server is in use.
func (c *Client) LocalMode() bool {
	return c.local
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) fileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
}

type apiError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: api error %d: %s", e.Method, e.Code, e.Description)
}

func (c *Client) invoke(ctx context.Context, client *http.Client, method string, payload any, result any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("telegram %s: new request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: http error: %w", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read body: %w", method, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		apiErr := &apiError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for new messages starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         c.pollSecs,
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.invoke(ctx, c.pollClient, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts a plain-text message and returns the created message,
// whose ID is later used for in-place status edits.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	var message Message
	if err := c.invoke(ctx, c.httpClient, "sendMessage", payload, &message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// EditMessageText rewrites a previously sent message in place. Editing a
// message to its current text is an API error (400, "message is not
// modified"); callers treat that as success.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	err := c.invoke(ctx, c.httpClient, "editMessageText", payload, nil)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
			return nil
		}
	}
	return err
}

func asAPIError(err error, target **apiError) bool {
	if e, ok := err.(*apiError); ok {
		*target = e
		return true
	}
	return false
}

// GetFile resolves a file_id into a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	payload := map[string]any{"file_id": fileID}
	var file File
	if err := c.invoke(ctx, c.httpClient, "getFile", payload, &file); err != nil {
		return File{}, err
	}
	return file, nil
}

// DownloadFile streams the resolved file to dest. A local Bot API server
// reports absolute filesystem paths; when that path is readable it is copied
// directly instead of re-fetched over HTTP.
func (c *Client) DownloadFile(ctx context.Context, file File, dest string) error {
	filePath := file.FilePath
	if c.local && filepath.IsAbs(filePath) {
		if err := copyLocalFile(filePath, dest); err == nil {
			return nil
		}
		// The server runs on another host. Its absolute path embeds the bot
		// token ("/var/lib/telegram-bot-api/<token>/videos/..."); the download
		// endpoint wants only the portion after it.
		filePath = c.relativeFilePath(filePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(filePath), nil)
	if err != nil {
		return fmt.Errorf("telegram download: new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.upClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram download: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram download: http %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("telegram download: create dest: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("telegram download: stream body: %w", err)
	}
	return out.Close()
}

func (c *Client) relativeFilePath(absPath string) string {
	marker := "/" + c.token + "/"
	if idx := strings.Index(absPath, marker); idx >= 0 {
		return absPath[idx+len(marker):]
	}
	return strings.TrimPrefix(absPath, "/")
}

func copyLocalFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// SendVideo uploads a video file with an optional caption. The body is
// streamed through a pipe so multi-gigabyte files never load into memory.
func (c *Client) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram sendVideo: open file: %w", err)
	}
	defer in.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		if err := writer.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
			pw.CloseWithError(err)
			return
		}
		if caption != "" {
			if err := writer.WriteField("caption", caption); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := writer.CreateFormFile("video", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, in); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendVideo"), pr)
	if err != nil {
		return fmt.Errorf("telegram sendVideo: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.upClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendVideo: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram sendVideo: read body: %w", err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("telegram sendVideo: decode response: %w", err)
	}
	if !envelope.OK {
		return &apiError{Method: "sendVideo", Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if c.logger != nil {
		c.logger.Debug("video uploaded",
			logging.Int64("chat_id", chatID),
			logging.String("file", filepath.Base(path)),
		)
	}
	return nil
}
