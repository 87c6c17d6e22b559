package server

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	log "github.com/sirupsen/logrus"

	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/prewarm"
	"github.com/galleriad/immich-cache/utils"
)

// handlePrewarm starts (or joins) a prewarm job for an album and streams
// its progress as server-sent events. Closing the connection detaches
// the observer only; the job keeps warming the cache in the background.
func (server *Server) handlePrewarm(c *fiber.Ctx) error {
	logger := log.WithFields(log.Fields{
		"package":  "server",
		"struct":   "Server",
		"function": "handlePrewarm",
	})

	albumID := c.Params("albumID")
	size := c.Query("size", immich.SizePreview)

	job, joined := server.engine.Start(albumID, size)
	if joined {
		logger.Debugf("observer joined prewarm job %s", job.GetID())
	}

	events, cancel := job.Subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx: disable buffering if present

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer utils.StackTraceFromPanic(logger)
		defer cancel()

		for event := range events {
			err := writeEvent(w, event)
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				// observer went away, the job carries on without us
				logger.WithError(err).Debugf("observer of prewarm job %s disconnected", job.GetID())
				return
			}

			if event.IsTerminal() {
				return
			}
		}
	}))

	return nil
}

// writeEvent frames one job event as a server-sent event
func writeEvent(w *bufio.Writer, event prewarm.Event) error {
	var payload interface{}

	switch event.Type {
	case prewarm.EventMeta:
		payload = map[string]int{"total": event.Total}
	case prewarm.EventProgress:
		payload = map[string]int{"done": event.Done, "total": event.Total}
	case prewarm.EventError:
		payload = map[string]string{"message": event.Message}
	default:
		payload = map[string]string{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
