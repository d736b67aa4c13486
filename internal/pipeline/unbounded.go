package pipeline

import "github.com/megascops/megascops/internal/model"

// unbounded adapts a send-side that must never block into a normal
// receive channel: a goroutine buffers every send in a growing slice
// and forwards to the consumer as fast as it can keep up. Used for the
// exporter's input queue, which must never apply backpressure to the
// RPC bridge.
func unbounded(in <-chan model.FrameRecord) <-chan model.FrameRecord {
	out := make(chan model.FrameRecord)
	go func() {
		defer close(out)
		var buf []model.FrameRecord
		outCh := func() chan<- model.FrameRecord {
			if len(buf) == 0 {
				return nil
			}
			return out
		}

		inOpen := true
		for inOpen || len(buf) > 0 {
			if len(buf) == 0 {
				record, ok := <-in
				if !ok {
					inOpen = false
					continue
				}
				buf = append(buf, record)
				continue
			}

			select {
			case record, ok := <-in:
				if !ok {
					inOpen = false
					continue
				}
				buf = append(buf, record)
			case outCh() <- buf[0]:
				buf = buf[1:]
			}
		}
	}()
	return out
}
