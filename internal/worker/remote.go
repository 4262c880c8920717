package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// lambdaAPI is the minimal Lambda interface required by Remote.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Remote invokes one Lambda function per capability. A capability without a
// configured function answers with the unavailable envelope.
type Remote struct {
	api       lambdaAPI
	functions map[Capability]string
	logger    *slog.Logger
}

func NewRemote(api lambdaAPI, functions map[Capability]string, logger *slog.Logger) (*Remote, error) {
	if api == nil {
		return nil, errors.New("worker: api must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fns := make(map[Capability]string, len(functions))
	for c, name := range functions {
		if name = strings.TrimSpace(name); name != "" {
			fns[c] = name
		}
	}
	return &Remote{api: api, functions: fns, logger: logger}, nil
}

func (r *Remote) Dispatch(ctx context.Context, req Request) Result {
	fn, ok := r.functions[req.Capability]
	if !ok {
		r.logger.WarnContext(ctx, "worker function not configured", "capability", req.Capability)
		return unavailableResult()
	}

	payload, err := json.Marshal(trimRequest(req))
	if err != nil {
		r.logger.ErrorContext(ctx, "worker payload marshal failed", "capability", req.Capability, "err", err)
		return unavailableResult()
	}

	out, err := r.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(fn),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "worker invoke failed", "capability", req.Capability, "function", fn, "err", err)
		return unavailableResult()
	}
	if out == nil || out.FunctionError != nil {
		r.logger.WarnContext(ctx, "worker function error", "capability", req.Capability, "function", fn,
			"function_error", functionError(out))
		return unavailableResult()
	}

	reply, err := decodeReply(out.Payload)
	if err != nil || strings.TrimSpace(reply.Message) == "" {
		r.logger.WarnContext(ctx, "worker reply unusable", "capability", req.Capability, "function", fn, "err", err)
		return unavailableResult()
	}
	return reply.Result()
}

func functionError(out *lambda.InvokeOutput) string {
	if out == nil {
		return "empty response"
	}
	return aws.ToString(out.FunctionError)
}
