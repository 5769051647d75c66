// Package stream replays a completed chat response to the client as
// Server-Sent Events. Dispatch itself is not streamed: retry and fallback
// must finish before the first byte, so the client never sees a half answer
// from a model that is about to be abandoned.
package stream

import (
	"bufio"
	"encoding/json"
	"strings"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
)

const chunkDelay = 15 * time.Millisecond

// Chunk is one SSE data payload
type Chunk struct {
	SessionID string               `json:"session_id"`
	Delta     string               `json:"delta,omitzero"`
	Done      bool                 `json:"done,omitzero"`
	Final     *models.ChatResponse `json:"final,omitzero"`
}

// WriteChatResponse streams resp's content word by word, then a final event
// carrying the full response metadata, then [DONE].
func WriteChatResponse(c *fiber.Ctx, resp *models.ChatResponse, requestID string) error {
	fasthttpCtx := c.Context()

	fasthttpCtx.Response.Header.Set("Content-Type", "text/event-stream")
	fasthttpCtx.Response.Header.Set("Cache-Control", "no-cache")
	fasthttpCtx.Response.Header.Set("Connection", "keep-alive")

	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		startTime := time.Now()
		words := strings.Fields(resp.Message.Content)

		for i, word := range words {
			select {
			case <-fasthttpCtx.Done():
				fiberlog.Infof("[%s] client disconnected during stream", requestID)
				return
			default:
			}

			delta := word
			if i < len(words)-1 {
				delta += " "
			}
			if err := writeEvent(w, Chunk{SessionID: resp.SessionID, Delta: delta}); err != nil {
				fiberlog.Errorf("[%s] failed to write stream chunk %d: %v", requestID, i, err)
				return
			}

			time.Sleep(chunkDelay)
		}

		if err := writeEvent(w, Chunk{SessionID: resp.SessionID, Done: true, Final: resp}); err != nil {
			fiberlog.Errorf("[%s] failed to write final chunk: %v", requestID, err)
			return
		}

		if _, err := w.WriteString("data: [DONE]\n\n"); err != nil {
			fiberlog.Errorf("[%s] failed to write [DONE]: %v", requestID, err)
			return
		}
		if err := w.Flush(); err != nil {
			fiberlog.Errorf("[%s] failed to flush [DONE]: %v", requestID, err)
			return
		}

		fiberlog.Debugf("[%s] stream completed: %d words in %v", requestID, len(words), time.Since(startTime))
	}))

	return nil
}

func writeEvent(w *bufio.Writer, chunk Chunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	buf := utils.Get()
	defer utils.Put(buf)

	buf.WriteString("data: ") //nolint:errcheck // ByteBuffer writes cannot fail
	buf.Write(payload)        //nolint:errcheck
	buf.WriteString("\n\n")   //nolint:errcheck

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}
