package wayland

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/bryanchriswhite/wincap/internal/imagebuf"
	"github.com/bryanchriswhite/wincap/internal/wincap"
	"github.com/bryanchriswhite/wincap/internal/wincapconfig"
)

// pipewirePull pulls a single decoded frame from a PipeWire node through a
// short-lived GStreamer pipeline. Samples are retrieved by polling
// TryPullSample rather than by registering an emit-signals callback: the
// go-gst CGO callback bridge is unstable under concurrent teardown.
type pipewirePull struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink

	mu    sync.Mutex
	frame *imagebuf.Buffer
}

func newPipewirePull(nodeID uint32) (*pipewirePull, error) {
	gst.Init(nil)

	pipelineStr := fmt.Sprintf(
		"pipewiresrc path=%d do-timestamp=true ! "+
			"videoconvert ! video/x-raw,format=RGBA ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		nodeID,
	)

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "wayland", err, "create pipewire pipeline for node %d", nodeID)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "wayland", err, "find appsink element")
	}

	p := &pipewirePull{pipeline: pipeline, appsink: app.SinkFromElement(sinkElement)}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "wayland", err, "start pipewire pipeline")
	}
	return p, nil
}

// pullOne blocks (bounded by ctx and frameTimeout) until a frame is
// available, then returns it; the caller tears the pipeline down with
// stop. Each capture
// call gets a fresh pipeline rather than a long-lived stream: the portal
// session persists across calls via the restore token, but keeping
// GStreamer resident between captures is unnecessary for a
// request/response capture API.
func (p *pipewirePull) pullOne(ctx context.Context, frameTimeout time.Duration) (*imagebuf.Buffer, error) {
	deadline := time.Now().Add(frameTimeout)
	ticker := time.NewTicker(wincapconfig.PipewireLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return nil, wincap.NewError(wincap.ErrCaptureTimeout, "wayland", "no pipewire frame received within %s", frameTimeout)
			}
			sample := p.appsink.TryPullSample(time.Millisecond)
			if sample == nil {
				continue
			}
			buf, err := sampleToBuffer(sample)
			if err != nil || buf == nil {
				continue
			}
			return buf, nil
		}
	}
}

func (p *pipewirePull) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pipeline != nil {
		p.pipeline.SetState(gst.StateNull)
		p.pipeline = nil
	}
}

func sampleToBuffer(sample *gst.Sample) (*imagebuf.Buffer, error) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("sample has no buffer")
	}
	caps := sample.GetCaps()
	if caps == nil {
		return nil, fmt.Errorf("sample has no caps")
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return nil, fmt.Errorf("caps have no structure")
	}

	rawW, err := structure.GetValue("width")
	if err != nil {
		return nil, err
	}
	rawH, err := structure.GetValue("height")
	if err != nil {
		return nil, err
	}
	w, ok := rawW.(int)
	if !ok {
		return nil, fmt.Errorf("width has unexpected type %T", rawW)
	}
	h, ok := rawH.(int)
	if !ok {
		return nil, fmt.Errorf("height has unexpected type %T", rawH)
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, fmt.Errorf("failed to map buffer")
	}
	// go-gst manages the buffer's lifetime; do not call Unref here.
	defer buffer.Unmap()

	out := imagebuf.New(w, h)
	data := mapInfo.Bytes()
	expected := w * h * 4
	if len(data) < expected {
		return nil, fmt.Errorf("short buffer: got %d bytes, want %d", len(data), expected)
	}
	copy(out.Pix, data[:expected])
	return out, nil
}
