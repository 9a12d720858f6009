package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.Default()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.LocalAPIURL = server.URL
	return NewClient(&cfg, logging.NewNop())
}

func TestSendMessageReturnsMessageID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bot123:abc/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["text"] != "hello" {
			t.Errorf("text = %v", payload["text"])
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":55,"chat":{"id":9}}}`))
	}))

	message, err := client.SendMessage(context.Background(), 9, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if message.MessageID != 55 {
		t.Fatalf("message id = %d", message.MessageID)
	}
}

func TestEditMessageTextTreatsNotModifiedAsSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`))
	}))

	if err := client.EditMessageText(context.Background(), 9, 55, "same text"); err != nil {
		t.Fatalf("edit should tolerate not-modified: %v", err)
	}
}

func TestAPIErrorsSurfaceDescription(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked"}`))
	}))

	_, err := client.SendMessage(context.Background(), 9, "hello")
	if err == nil || !strings.Contains(err.Error(), "bot was blocked") {
		t.Fatalf("err = %v", err)
	}
}

func TestGetUpdatesDecodesMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["offset"] != float64(7) {
			t.Errorf("offset = %v", payload["offset"])
		}
		w.Write([]byte(`{"ok":true,"result":[
            {"update_id":8,"message":{"message_id":1,"chat":{"id":9},"text":"/start"}},
            {"update_id":9,"message":{"message_id":2,"chat":{"id":9},"video":{"file_id":"vid1","file_name":"clip.mp4","duration":30,"file_size":1024}}}
        ]}`))
	}))

	updates, err := client.GetUpdates(context.Background(), 7)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d", len(updates))
	}
	if updates[0].Message.Text != "/start" {
		t.Fatalf("text = %q", updates[0].Message.Text)
	}
	video := updates[1].Message.Video
	if video == nil || video.FileID != "vid1" || video.Duration != 30 {
		t.Fatalf("video = %+v", video)
	}
}

func TestDownloadFileStreamsBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/file/bot123:abc/videos/clip.mp4") {
			w.Write([]byte("video-bytes"))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"file_id":"vid1","file_path":"videos/clip.mp4","file_size":11}}`))
	}))

	file, err := client.GetFile(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := client.DownloadFile(context.Background(), file, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("dest content = %q, err = %v", data, err)
	}
}

func TestDownloadFileCopiesLocalPath(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "clip.mp4")
	if err := os.WriteFile(src, []byte("local-bytes"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("local file should not hit HTTP")
	}))

	dest := filepath.Join(t.TempDir(), "out.mp4")
	if err := client.DownloadFile(context.Background(), File{FilePath: src}, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "local-bytes" {
		t.Fatalf("dest content = %q, err = %v", data, err)
	}
}

func TestDownloadFileStripsRemoteLocalPrefix(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("remote-bytes"))
	}))

	// The local server on another host reports its own absolute path; only
	// the portion after the token segment belongs in the download URL.
	file := File{FilePath: "/var/lib/telegram-bot-api/123:abc/videos/file_1.mp4"}
	dest := filepath.Join(t.TempDir(), "file_1.mp4")
	if err := client.DownloadFile(context.Background(), file, dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	if gotPath != "/file/bot123:abc/videos/file_1.mp4" {
		t.Fatalf("request path = %q", gotPath)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "remote-bytes" {
		t.Fatalf("dest content = %q, err = %v", data, err)
	}
}

func TestSendVideoUploadsMultipart(t *testing.T) {
	var gotCaption, gotChatID string
	var gotFile []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCaption = r.FormValue("caption")
		gotChatID = r.FormValue("chat_id")
		file, _, err := r.FormFile("video")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			buf := make([]byte, 32)
			n, _ := file.Read(buf)
			gotFile = buf[:n]
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))

	path := filepath.Join(t.TempDir(), "clip_subtitled.mp4")
	if err := os.WriteFile(path, []byte("muxed"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if err := client.SendVideo(context.Background(), 42, path, "done"); err != nil {
		t.Fatalf("send video: %v", err)
	}
	if gotChatID != "42" || gotCaption != "done" || string(gotFile) != "muxed" {
		t.Fatalf("chat=%s caption=%s file=%s", gotChatID, gotCaption, gotFile)
	}
}
