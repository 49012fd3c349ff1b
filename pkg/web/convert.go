package web

import (
	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/protocol"
)

func resultData(r pipeline.Result) protocol.ResultData {
	data := protocol.ResultData{
		JobID:     string(r.JobID),
		SessionID: r.SessionID,
		State:     r.State.String(),
		Faces:     make([]protocol.Face, 0, len(r.Overlays)),
		Timing:    timing(r.Timing),
	}
	if r.Frame != nil {
		b := r.Frame.Bounds()
		data.Width, data.Height = b.Dx(), b.Dy()
	}
	if r.Err != nil {
		data.Error = r.Err.Error()
	}
	for _, o := range r.Overlays {
		data.Faces = append(data.Faces, protocol.Face{
			Box: protocol.Box{
				Left:   o.Box.Left,
				Top:    o.Box.Top,
				Right:  o.Box.Right,
				Bottom: o.Box.Bottom,
			},
			Label:      o.Label,
			Confidence: o.Confidence,
			Scores:     o.Scores.Map(),
		})
	}
	return data
}

func timing(jm pipeline.JobMetrics) protocol.Timing {
	return protocol.Timing{
		DetectMs:     protocol.Millis(jm.Detect),
		PreprocessMs: protocol.Millis(jm.Preprocess),
		InferMs:      protocol.Millis(jm.Infer),
		TotalMs:      protocol.Millis(jm.Total),
	}
}

func sessionData(info pipeline.SessionInfo) *protocol.SessionData {
	return &protocol.SessionData{
		ID:          info.ID,
		Started:     info.Started.UnixMilli(),
		Backend:     info.Backend.String(),
		InputWidth:  info.InputWidth,
		InputHeight: info.InputHeight,
		Labels:      info.Labels,
	}
}
