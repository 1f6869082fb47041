package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/songbranch/api/internal/client"
	"github.com/songbranch/api/internal/model"
	"github.com/songbranch/api/internal/service"
	"github.com/songbranch/api/internal/store"
	"github.com/songbranch/api/pkg/response"
)

const keepAliveInterval = 15 * time.Second

type SearchHandler struct {
	service   *service.SearchService
	validator *validator.Validate
}

func NewSearchHandler(svc *service.SearchService, v *validator.Validate) *SearchHandler {
	return &SearchHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/start-search
func (h *SearchHandler) Start(c *fiber.Ctx) error {
	var req model.StartSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartSearch(c.Context(), req.SeedIdentifier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return response.ValidationError(c, "Seed identifier must not be empty", nil)
		case errors.Is(err, client.ErrArtistNotFound):
			return response.NotFound(c, "Artist not found")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, result)
}

// Updates handles GET /api/search-updates/:jobId as a server-sent event
// stream. The stream ends right after the terminal event; a client
// disconnect only stops delivery, never the build.
func (h *SearchHandler) Updates(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Search not found")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	if job.Status.Terminal() {
		// Finished before the client connected: replay the outcome and end.
		event := h.service.TerminalEvent(c.Context(), job)
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			writeSSE(w, event)
		}))
		return nil
	}

	events, cancel := h.service.Subscribe(jobID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		// The searching transition was published when the job was
		// created, before this subscriber existed; open with it.
		if err := writeSSE(w, model.StatusEvent{Status: model.JobStatusSearching}); err != nil {
			return
		}

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeSSE(w, event); err != nil {
					return
				}
			case <-keepAlive.C:
				// Comment frame so idle proxies keep the stream open.
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleWS bridges a job's status stream onto a WebSocket connection,
// for clients that prefer it over SSE.
func (h *SearchHandler) HandleWS(c *websocket.Conn, jobID string) {
	events, cancel := h.service.Subscribe(jobID)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					log.Printf("Failed to marshal status event: %v", err)
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}

			case <-ticker.C:
				// Keep-alive ping
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: consume control messages until the client hangs up or
	// the writer finishes.
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			c.WriteMessage(websocket.TextMessage, pong)
		}
	}

	cancel()
	<-done
}

func writeSSE(w *bufio.Writer, event model.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
