package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-fer/pkg/protocol"
)

// format renders one message as a single line. Unknown types render as "".
func format(msg *protocol.Message) string {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05.000")

	switch msg.Type {
	case protocol.TypeResult:
		r, err := msg.GetResultData()
		if err != nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s %-6s job=%s", ts, r.State, shortID(r.JobID))
		if r.Error != "" {
			fmt.Fprintf(&b, " error=%q", r.Error)
		}
		if len(r.Faces) == 0 && r.Error == "" {
			b.WriteString(" no faces")
		}
		for _, f := range r.Faces {
			fmt.Fprintf(&b, " [%d,%d,%d,%d %s %.2f]",
				f.Box.Left, f.Box.Top, f.Box.Right, f.Box.Bottom, f.Label, f.Scores[f.Label])
		}
		fmt.Fprintf(&b, " %.1fms", r.Timing.TotalMs)
		return b.String()

	case protocol.TypeNotice:
		n, err := msg.GetNoticeData()
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%s %s: %s", ts, strings.ToUpper(n.Level), n.Text)

	case protocol.TypeStatus:
		s, err := msg.GetStatusData()
		if err != nil {
			return ""
		}
		state := "paused"
		if s.Active {
			state = "active"
		}
		line := fmt.Sprintf("%s status %s jobs=%d failed=%d faces=%d", ts, state, s.Jobs, s.Failed, s.Faces)
		if s.Session != nil {
			line += fmt.Sprintf(" session=%s backend=%s", shortID(s.Session.ID), s.Session.Backend)
		}
		return line

	case protocol.TypePong:
		p, err := msg.GetPongData()
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%s pong %s %dms", ts, p.ID, p.LatencyMs)
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
