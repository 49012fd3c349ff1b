package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "result message",
			msgType: TypeResult,
			data:    ResultData{JobID: "j1", State: "done"},
		},
		{
			name:    "notice message",
			msgType: TypeNotice,
			data:    NoticeData{Level: NoticeWarn, Text: "face detection failed"},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeStatus,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestResultMessage(t *testing.T) {
	msg, err := NewResultMessage(ResultData{
		JobID:     "job-1",
		SessionID: "sess-1",
		State:     "done",
		Faces: []Face{{
			Box:    Box{Left: 0, Top: 0, Right: 48, Bottom: 48},
			Label:  "happy",
			Scores: map[string]float32{"happy": 0.7, "sad": 0.1, "angry": 0.2},
		}},
		Timing: Timing{TotalMs: 12.5},
	})
	if err != nil {
		t.Fatalf("NewResultMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeResult {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeResult)
	}

	data, err := parsed.GetResultData()
	if err != nil {
		t.Fatalf("GetResultData() error = %v", err)
	}
	if len(data.Faces) != 1 {
		t.Fatalf("Faces = %d, want 1", len(data.Faces))
	}
	f := data.Faces[0]
	if f.Label != "happy" || f.Box != (Box{Right: 48, Bottom: 48}) {
		t.Errorf("face = %+v", f)
	}
	if f.Scores["sad"] != 0.1 {
		t.Errorf("Scores[sad] = %v, want 0.1", f.Scores["sad"])
	}
	if data.Timing.TotalMs != 12.5 {
		t.Errorf("TotalMs = %v, want 12.5", data.Timing.TotalMs)
	}
}

func TestResultMessage_EmptyFacesIsArray(t *testing.T) {
	msg, err := NewResultMessage(ResultData{JobID: "j"})
	if err != nil {
		t.Fatalf("NewResultMessage() error = %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(payload["faces"]) != "[]" {
		t.Errorf("faces = %s, want []", payload["faces"])
	}
}

func TestNoticeMessage(t *testing.T) {
	msg, err := NewNoticeMessage(NoticeWarn, "face detection failed", "job-9")
	if err != nil {
		t.Fatalf("NewNoticeMessage() error = %v", err)
	}

	notice, err := msg.GetNoticeData()
	if err != nil {
		t.Fatalf("GetNoticeData() error = %v", err)
	}
	if notice.Level != NoticeWarn || notice.JobID != "job-9" {
		t.Errorf("notice = %+v", notice)
	}
}

func TestStatusMessage(t *testing.T) {
	msg, err := NewStatusMessage(StatusData{
		Active:  true,
		Session: &SessionData{ID: "s", Backend: "cpu", InputWidth: 48, InputHeight: 48},
		Jobs:    3,
	})
	if err != nil {
		t.Fatalf("NewStatusMessage() error = %v", err)
	}

	status, err := msg.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData() error = %v", err)
	}
	if !status.Active || status.Session == nil || status.Session.Backend != "cpu" {
		t.Errorf("status = %+v", status)
	}
	if status.Jobs != 3 {
		t.Errorf("Jobs = %d, want 3", status.Jobs)
	}
}

func TestPingPongMessage(t *testing.T) {
	pingMsg, err := NewPingMessage("test-123")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}

	pingData, err := pingMsg.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}
	if pingData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pingData.ID)
	}

	now := time.Now().UnixMilli()
	pongMsg, err := NewPongMessage("test-123", pingData.Timestamp, now)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}

	pongData, err := pongMsg.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}
	if pongData.LatencyMs < 0 {
		t.Errorf("LatencyMs = %v, should be >= 0", pongData.LatencyMs)
	}
}

func TestParseMessage_Invalid(t *testing.T) {
	for _, in := range []string{"", "{", `{"ts":1}`} {
		if _, err := ParseMessage([]byte(in)); err == nil {
			t.Errorf("ParseMessage(%q) succeeded, want error", in)
		}
	}
}

func TestMillis(t *testing.T) {
	if got := Millis(1500 * time.Microsecond); got != 1.5 {
		t.Errorf("Millis = %v, want 1.5", got)
	}
}
