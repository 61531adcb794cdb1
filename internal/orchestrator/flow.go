package orchestrator

import (
	"context"
	"reflect"

	"go.opentelemetry.io/otel/attribute"

	"github.com/loomlabs/loom/internal/memory"
	"github.com/loomlabs/loom/internal/types"
)

// queueItem pairs flow data with the handler name it came from.
type queueItem struct {
	data   any
	source string
}

// RunAutonomousFlow drains a FIFO work queue seeded with initialData: each
// entry is processed into zero or more results, each result's suggested
// outputs are dispatched (outputs terminally, action results re-enqueued),
// and the loop continues until the queue is empty. Processing is strictly
// sequential within one call, which keeps suggested-output ordering equal
// to discovery order and keeps room-memory access race-free per item.
//
// Failures of individual queue items or suggestions are logged and
// isolated; one bad downstream action cannot abort the whole cascade. The
// returned slice holds every output dispatched, in dispatch order.
func (o *Orchestrator) RunAutonomousFlow(ctx context.Context, initialData any, source string) ([]DispatchedOutput, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.autonomous_flow")
	defer span.End()

	queue := enqueue(nil, initialData, source)
	outputs := make([]DispatchedOutput, 0)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		results, err := o.processContent(ctx, item.data, item.source)
		if err != nil {
			o.logger.Error("failed to process queue item", "source", item.source, "error", err)
			continue
		}

		for _, res := range results {
			if res == nil || res.AlreadyProcessed {
				continue
			}

			for _, sug := range res.SuggestedOutputs {
				h, ok := o.Handler(sug.Name)
				if !ok {
					o.logger.Warn("suggested handler not registered", "handler", sug.Name)
					continue
				}

				switch h.Role() {
				case RoleOutput:
					out, err := o.executeHandler(ctx, h, sug.Data)
					if err != nil {
						continue
					}
					outputs = append(outputs, DispatchedOutput{Name: sug.Name, Data: sug.Data, Result: out})

				case RoleAction:
					out, err := o.executeHandler(ctx, h, sug.Data)
					if err != nil {
						continue
					}
					if out != nil {
						queue = enqueue(queue, out, sug.Name)
					}

				default:
					o.logger.Warn("suggested handler has unsupported role",
						"handler", sug.Name, "role", h.Role().String())
				}
			}
		}
	}

	span.SetAttributes(attribute.Int("flow.outputs", len(outputs)))
	return outputs, nil
}

// processContent runs content through the first matching processor. Array
// content is processed element by element, each item only after the prior
// completes, with an inter-item delay throttling downstream load. Per-item
// errors are logged and skipped.
func (o *Orchestrator) processContent(ctx context.Context, content any, source string) ([]*ProcessedResult, error) {
	items, isSlice := asSlice(content)
	if !isSlice {
		res, err := o.processContentItem(ctx, content, source)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, nil
		}
		return []*ProcessedResult{res}, nil
	}

	results := make([]*ProcessedResult, 0, len(items))
	for i, item := range items {
		if i > 0 && o.itemDelay > 0 {
			o.sleep(o.itemDelay)
		}

		res, err := o.processContentItem(ctx, item, source)
		if err != nil {
			o.logger.Error("failed to process content item", "source", source, "error", err)
			continue
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return results, nil
}

// processContentItem processes a single piece of content: normalize,
// dedup against room memory, hand to the first matching processor with a
// memory snapshot and the current capabilities, then record the result in
// room memory and mark the content processed. The room's flow mutex is
// held across the read-process-write so concurrent flows touching the same
// room cannot interleave.
func (o *Orchestrator) processContentItem(ctx context.Context, content any, source string) (*ProcessedResult, error) {
	msg := normalizeMessage(content, source)

	unlock := o.rooms.LockRoom(msg.Room)
	defer unlock()

	if o.rooms.WasProcessed(msg.Room, msg.ID) {
		o.logger.Debug("content already processed in room", "room", msg.Room, "content", msg.ID)
		return &ProcessedResult{AlreadyProcessed: true}, nil
	}

	proc := o.selectProcessor(msg)
	if proc == nil {
		o.logger.Debug("no processor can handle content", "room", msg.Room, "content", msg.ID)
		return nil, nil
	}

	memories, err := o.rooms.Snapshot(msg.Room)
	if err != nil {
		o.logger.Warn("failed to snapshot room memories", "room", msg.Room, "error", err)
		memories = "[]"
	}

	res, err := proc.Process(ctx, msg, memories, o.capabilities())
	if err != nil {
		return nil, types.WrapError(types.HANDLER_EXECUTION_FAILED,
			"processor failed for content "+msg.ID, err)
	}
	if res == nil {
		// A processor may decide there is nothing to do with the content.
		o.logger.Debug("processor produced no result", "room", msg.Room, "content", msg.ID)
		return nil, nil
	}

	o.rooms.Append(msg.Room, memory.Entry{
		ID:      msg.ID,
		Source:  msg.Source,
		Content: res.Content,
	})
	o.rooms.MarkProcessed(msg.Room, msg.ID)

	return res, nil
}

// selectProcessor returns the first registered processor that can handle
// the message.
func (o *Orchestrator) selectProcessor(msg Message) Processor {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, p := range o.processors {
		if p.CanHandle(msg) {
			return p
		}
	}
	return nil
}

// enqueue appends data to the queue, flattening slices into one entry per
// element.
func enqueue(queue []queueItem, data any, source string) []queueItem {
	items, isSlice := asSlice(data)
	if !isSlice {
		return append(queue, queueItem{data: data, source: source})
	}

	for _, item := range items {
		queue = append(queue, queueItem{data: item, source: source})
	}
	return queue
}

// asSlice flattens slice-kinded data into []any. Strings and byte slices
// are treated as scalar content.
func asSlice(data any) ([]any, bool) {
	switch t := data.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []Message:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case string, []byte:
		return nil, false
	}

	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, false
	}

	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}
