package rpcbridge

import (
	"context"
	"io"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/megascops/megascops/internal/model"
)

// Bridge drives the detect stream: an outbound half turns the encoded
// frame queue into a lazy request stream, an inbound half reads
// responses and merges them into the PendingMap's skeleton records
// before forwarding to the export queue.
type Bridge struct {
	client   *Client
	pending  *PendingMap
	iou      float64
	score    float64
}

// NewBridge builds a Bridge over an authenticated Client.
func NewBridge(client *Client, iou, score float64) *Bridge {
	return &Bridge{client: client, pending: NewPendingMap(), iou: iou, score: score}
}

// Run consumes in (MediaItems from the frame producer) and produces
// completed FrameRecords on the returned channel. Per-file errors
// bypass the PendingMap and pass straight through. The returned channel
// closes when in is drained and every in-flight response has been
// received or the stream has terminated.
func (b *Bridge) Run(ctx context.Context, in <-chan model.MediaItem) (<-chan model.FrameRecord, <-chan error) {
	out := make(chan model.FrameRecord)
	streamErr := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(streamErr)

		stream, err := b.client.OpenDetectStream(ctx)
		if err != nil {
			streamErr <- model.NewError(model.KindStream, "failed to open detect stream", err)
			return
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return b.outbound(gctx, in, stream, out)
		})
		g.Go(func() error {
			return b.inbound(stream, out)
		})

		if err := g.Wait(); err != nil {
			streamErr <- model.NewError(model.KindStream, "detect stream terminated", err)
		}
	}()

	return out, streamErr
}

func (b *Bridge) outbound(ctx context.Context, in <-chan model.MediaItem, stream interface {
	SendMsg(m any) error
	CloseSend() error
}, out chan<- model.FrameRecord) error {
	defer stream.CloseSend()

	for item := range in {
		switch v := item.(type) {
		case model.FrameItem:
			id := uuid.NewString()
			skeleton := model.SuccessRecord(v.Frame.File.SourcePath, v.Frame.FrameIndex, v.Frame.TotalFrames, v.Frame.ShootTime, v.Frame.IFrame)
			b.pending.Insert(id, skeleton)

			req := &DetectRequest{
				UUID:   id,
				Image:  v.Frame.WebP,
				Width:  int32(v.Frame.Width),
				Height: int32(v.Frame.Height),
				IOU:    b.iou,
				Score:  b.score,
				IFrame: v.Frame.IFrame,
			}
			if err := stream.SendMsg(req); err != nil {
				return err
			}

		case model.ErrorItem:
			select {
			case out <- v.Record:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (b *Bridge) inbound(stream interface{ RecvMsg(m any) error }, out chan<- model.FrameRecord) error {
	for {
		resp := &DetectResponse{}
		if err := stream.RecvMsg(resp); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		skeleton, ok := b.pending.Remove(resp.UUID)
		if !ok {
			continue
		}

		skeleton.Bboxes = toModelBboxes(resp.Bboxes)
		skeleton.Label = resp.Label
		out <- skeleton
	}
}

func toModelBboxes(boxes []Bbox) []model.Bbox {
	result := make([]model.Bbox, 0, len(boxes))
	for _, b := range boxes {
		cls := b.Class
		if cls < 0 {
			cls = 0
		}
		result = append(result, model.Bbox{
			X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2,
			Class: cls,
			Score: b.Score,
		})
	}
	return result
}
