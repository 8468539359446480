package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/sticker/internal/pipeline"
	"github.com/MeKo-Tech/sticker/internal/server"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// HTTPTestServerWrapper wraps the sticker handler in an httptest server.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// startTestHTTPServer serves the real sticker handler on a random port.
func (testCtx *TestContext) startTestHTTPServer(rl server.RateLimitConfig) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	srv, err := server.NewServer(server.Config{
		Host:           "127.0.0.1",
		Port:           8080,
		CORSOrigin:     "*",
		MaxUploadMB:    1,
		TimeoutSec:     30,
		PipelineConfig: pipeline.DefaultConfig(),
		RateLimit:      rl,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	testCtx.HTTPTestServer.Server.Close()
	testCtx.HTTPTestServer = nil
}

func (testCtx *TestContext) theStickerServerIsRunning() error {
	return testCtx.startTestHTTPServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theStickerServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startTestHTTPServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.Server.URL + path, nil
}

// recordResponse stores status, headers and body of resp.
func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	resp, err := http.Get(url) //nolint:noctx
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// iUploadTo posts name as the multipart "image" field. The optional table
// holds extra form fields as key/value rows.
func (testCtx *TestContext) iUploadTo(name, path string, fields *godog.Table) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if fields != nil {
		for _, row := range fields.Rows {
			if len(row.Cells) != 2 {
				return errors.New("form field rows need a key and a value")
			}
			if err := w.WriteField(row.Cells[0].Value, row.Cells[1].Value); err != nil {
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(url, w.FormDataContentType(), &body) //nolint:noctx
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUploadToWithoutFields(name, path string) error {
	return testCtx.iUploadTo(name, path, nil)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("response status %d, expected %d\nBody: %s",
			testCtx.LastHTTPStatusCode, status, truncate(testCtx.LastHTTPResponse))
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(header, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(header)]; got != value {
		return fmt.Errorf("header %s = %q, expected %q", header, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseImageShouldBe(width, height int) error {
	img, _, err := image.Decode(bytes.NewReader(testCtx.LastHTTPResponse))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("response image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// iSendOverTheWebSocket sends name as a sticker request and keeps the
// final frame as the last response.
func (testCtx *TestContext) iSendOverTheWebSocket(name, style string) error {
	url, err := testCtx.serverURL("/ws")
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	req := server.WebSocketStickerRequest{Image: data, Filename: filepath.Base(name), Style: style}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		var frame server.WebSocketStickerResponse
		if err := json.Unmarshal(msg, &frame); err != nil {
			return fmt.Errorf("invalid frame: %w", err)
		}
		if frame.Status != "processing" {
			testCtx.LastHTTPResponse = msg
			return nil
		}
	}
}

func truncate(b []byte) string {
	const limit = 500
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// theResponseJSONImageShouldBe decodes a base64 PNG field of the JSON body.
func (testCtx *TestContext) theResponseJSONImageShouldBe(path string, width, height int) error {
	v, err := jsonValue(testCtx.LastHTTPResponse, path)
	if err != nil {
		return err
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("JSON field %s is not a string", path)
	}
	var raw []byte
	if err := json.Unmarshal([]byte(`"`+s+`"`), &raw); err != nil {
		return fmt.Errorf("JSON field %s is not base64: %w", path, err)
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("JSON field %s is not an image: %w", path, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("%s is %dx%d, expected %dx%d", path, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the sticker server is running$`, testCtx.theStickerServerIsRunning)
	sc.Step(`^the sticker server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theStickerServerIsRunningWithRateLimit)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with:$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadToWithoutFields)
	sc.Step(`^I send "([^"]*)" over the WebSocket with style "([^"]*)"$`, testCtx.iSendOverTheWebSocket)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response image should be (\d+)x(\d+)$`, testCtx.theResponseImageShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, func(path, expected string) error {
		return theJSONFieldShouldBe(testCtx.LastHTTPResponse, path, expected)
	})
	sc.Step(`^the response JSON field "([^"]*)" should be positive$`, func(path string) error {
		return theJSONFieldShouldBePositive(testCtx.LastHTTPResponse, path)
	})
	sc.Step(`^the response JSON image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theResponseJSONImageShouldBe)
}
