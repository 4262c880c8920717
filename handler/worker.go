package handler

import (
	"context"
	"errors"
	"log/slog"

	"campus-assistant/internal/worker"
)

// WorkerHandler serves the remote worker protocol with an in-process
// dispatcher. Failures travel in the reply, never as a Lambda error, so the
// caller can tell a lookup miss from an outage.
type WorkerHandler struct {
	dispatcher worker.Dispatcher
	logger     *slog.Logger
}

func NewWorkerHandler(d worker.Dispatcher, logger *slog.Logger) (*WorkerHandler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerHandler{dispatcher: d, logger: logger}, nil
}

func (h *WorkerHandler) Handle(ctx context.Context, req worker.Request) (worker.Reply, error) {
	res := h.dispatcher.Dispatch(ctx, req)
	if res.Failed() {
		h.logger.WarnContext(ctx, "worker request failed", "capability", req.Capability, "error", res.ErrorCode)
	}
	return worker.NewReply(res), nil
}
