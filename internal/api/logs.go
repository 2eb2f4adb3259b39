package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/stillcam/internal/api/models"
	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/logging"
)

// recentLogs returns up to limit buffered entries, oldest first, optionally
// restricted to one module.
func recentLogs(limit int, module string) []logging.LogEntry {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return []logging.LogEntry{}
	}
	if module == "" {
		return buffer.Tail(limit)
	}

	all := buffer.ReadAll()
	if limit <= 0 {
		limit = len(all)
	}
	out := make([]logging.LogEntry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].Module == module {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get recent log entries from the in-memory buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := recentLogs(input.Limit, input.Module)
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/level",
		Summary:     "Log Levels",
		Description: "Get the current level of every module logger",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LogLevelsResponse, error) {
		resp := &models.LogLevelsResponse{}
		resp.Body.Levels = logging.ModuleLevels()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/level",
		Summary:     "Set Log Level",
		Description: "Change the level of one module, or the global level when module is empty",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelsResponse, error) {
		if err := logging.SetModuleLevel(input.Body.Module, input.Body.Level); err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid log level", err)
		}
		s.logger.Info("Log level changed", "module", input.Body.Module, "level", input.Body.Level)
		resp := &models.LogLevelsResponse{}
		resp.Body.Levels = logging.ModuleLevels()
		return resp, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(events.NewLogEntryEvent(entry)); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
