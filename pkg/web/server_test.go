package web

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-fer/pkg/capture"
	"github.com/teslashibe/go-fer/pkg/detection"
	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/protocol"
	"github.com/teslashibe/go-fer/pkg/region"
)

var quiet = slog.New(slog.DiscardHandler)

type fixture struct {
	srv  *Server
	ctrl *pipeline.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := emotion.NewMockNetwork(48, 48, 0.2, 0.7, 0.1)
	load := pipeline.LoadModel(
		emotion.DefaultConfig().WithModelPath("mock.onnx").WithLabels("angry", "happy", "sad").WithLogger(quiet),
		emotion.MockOpener(mock),
	)
	det := detection.NewMock(detection.Detection{
		Box:        region.Box{Right: 48, Bottom: 48},
		Confidence: 0.9,
	})
	src := capture.NewLoop(image.NewGray(image.Rect(0, 0, 48, 48)))

	f := &fixture{}
	sink := pipeline.SinkFunc(func(r pipeline.Result) { f.srv.Emit(r) })
	f.ctrl = pipeline.NewController(pipeline.DefaultConfig().WithLogger(quiet), load, det, src, sink)

	cfg := DefaultConfig()
	cfg.Logger = quiet
	f.srv = NewServer(cfg, f.ctrl)

	t.Cleanup(func() { f.ctrl.Close() })
	return f
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	resp, err := f.srv.App().Test(httptest.NewRequest(method, path, nil), 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, body, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) waitResults(t *testing.T, n int) []protocol.ResultData {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rs := f.srv.Results(); len(rs) >= n {
			return rs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d results, want %d", len(f.srv.Results()), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_StatusWhilePaused(t *testing.T) {
	f := newFixture(t)

	var st protocol.StatusData
	if code := f.do(t, http.MethodGet, "/api/status", &st); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if st.Active || st.Session != nil {
		t.Errorf("status = %+v, want paused", st)
	}
}

func TestServer_CaptureWhilePaused(t *testing.T) {
	f := newFixture(t)

	var body map[string]string
	if code := f.do(t, http.MethodPost, "/api/capture", &body); code != http.StatusConflict {
		t.Errorf("status code = %d, want 409", code)
	}
	if body["error"] == "" {
		t.Error("error message missing")
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	f := newFixture(t)

	var st protocol.StatusData
	if code := f.do(t, http.MethodPost, "/api/session/resume", &st); code != http.StatusOK {
		t.Fatalf("resume code = %d", code)
	}
	if !st.Active || st.Session == nil {
		t.Fatalf("status after resume = %+v", st)
	}
	if st.Session.Backend != "cpu" || st.Session.InputWidth != 48 {
		t.Errorf("session = %+v", st.Session)
	}

	var accepted map[string]string
	if code := f.do(t, http.MethodPost, "/api/capture", &accepted); code != http.StatusAccepted {
		t.Fatalf("capture code = %d", code)
	}
	if accepted["job_id"] == "" {
		t.Error("job_id missing")
	}

	f.waitResults(t, 1)

	var results []protocol.ResultData
	if code := f.do(t, http.MethodGet, "/api/results", &results); code != http.StatusOK {
		t.Fatalf("results code = %d", code)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.JobID != accepted["job_id"] || r.State != "done" {
		t.Errorf("result = %+v", r)
	}
	if len(r.Faces) != 1 || r.Faces[0].Label != "happy" {
		t.Fatalf("faces = %+v", r.Faces)
	}
	if r.Faces[0].Box != (protocol.Box{Right: 48, Bottom: 48}) {
		t.Errorf("box = %+v", r.Faces[0].Box)
	}

	if code := f.do(t, http.MethodPost, "/api/session/pause", &st); code != http.StatusOK {
		t.Fatalf("pause code = %d", code)
	}
	if st.Active {
		t.Error("still active after pause")
	}
}

func TestServer_ResultsLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.srv.Emit(pipeline.Result{JobID: pipeline.JobID(rune('a' + i)), State: pipeline.StateDone})
	}

	var results []protocol.ResultData
	f.do(t, http.MethodGet, "/api/results?limit=2", &results)
	if len(results) != 2 || results[0].JobID != "d" || results[1].JobID != "e" {
		t.Errorf("results = %+v, want jobs d,e", results)
	}
}

func TestServer_HistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History = 3
	cfg.Logger = quiet
	srv := NewServer(cfg, nil)
	for i := 0; i < 10; i++ {
		srv.Emit(pipeline.Result{State: pipeline.StateDone})
	}
	if n := len(srv.Results()); n != 3 {
		t.Errorf("retained %d results, want 3", n)
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	if code := f.do(t, http.MethodGet, "/ws/results", nil); code != http.StatusUpgradeRequired {
		t.Errorf("status code = %d, want 426", code)
	}
}

func TestServer_IndexPage(t *testing.T) {
	f := newFixture(t)
	resp, err := f.srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse %q: %v", data, err)
	}
	return msg
}

func TestServer_MountedApp(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go f.srv.App().Listener(ln)
	t.Cleanup(func() { f.srv.Shutdown() })

	dial := func(path string) *websocket.Conn {
		t.Helper()
		url := "ws://" + ln.Addr().String() + path
		var conn *websocket.Conn
		for i := 0; i < 50; i++ {
			if conn, _, err = websocket.DefaultDialer.Dial(url, nil); err == nil {
				t.Cleanup(func() { conn.Close() })
				return conn
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatalf("dial %s: %v", path, err)
		return nil
	}

	results := dial("/ws/results")
	if msg := readMessage(t, results); msg.Type != protocol.TypeStatus {
		t.Errorf("first message = %s, want status", msg.Type)
	}

	dial("/ws/camera")
	deadline := time.Now().Add(2 * time.Second)
	for f.srv.cameraHub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("camera clients = %d, want 1", f.srv.cameraHub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_ResultStream(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go f.srv.Serve(ln)
	t.Cleanup(func() { f.srv.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/ws/results"
	var conn *websocket.Conn
	for i := 0; i < 50; i++ {
		if conn, _, err = websocket.DefaultDialer.Dial(url, nil); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if msg := readMessage(t, conn); msg.Type != protocol.TypeStatus {
		t.Fatalf("first message = %s, want status", msg.Type)
	}

	f.srv.Emit(pipeline.Result{
		JobID: "job-1",
		State: pipeline.StateFailed,
		Err:   &pipeline.DetectionError{Err: errors.New("service down")},
	})

	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeResult {
		t.Fatalf("message = %s, want result", msg.Type)
	}
	res, err := msg.GetResultData()
	if err != nil {
		t.Fatal(err)
	}
	if res.State != "failed" || res.Error == "" {
		t.Errorf("result = %+v", res)
	}

	msg = readMessage(t, conn)
	if msg.Type != protocol.TypeNotice {
		t.Fatalf("message = %s, want notice", msg.Type)
	}
	notice, _ := msg.GetNoticeData()
	if notice.Level != protocol.NoticeWarn || notice.Text != "Face detection failed" || notice.JobID != "job-1" {
		t.Errorf("notice = %+v", notice)
	}

	ping, _ := protocol.NewPingMessage("p1")
	raw, _ := ping.Bytes()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}
	msg = readMessage(t, conn)
	if msg.Type != protocol.TypePong {
		t.Fatalf("message = %s, want pong", msg.Type)
	}
	if pong, _ := msg.GetPongData(); pong.ID != "p1" {
		t.Errorf("pong id = %q", pong.ID)
	}
}
