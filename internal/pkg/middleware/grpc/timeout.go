package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/autopeer-io/skycourier/pkg/log"
)

const DefaultRPCTimeout = 10 * time.Second

// UnaryTimeoutInterceptor applies DefaultRPCTimeout to calls whose context
// carries no deadline.
func UnaryTimeoutInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRPCTimeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// WithTimeout returns a unary client interceptor that bounds calls without a
// deadline by d instead of DefaultRPCTimeout.
func WithTimeout(d time.Duration) grpc.UnaryClientInterceptor {
	if d <= 0 {
		return UnaryTimeoutInterceptor
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerLoggingInterceptor logs every served call at debug level and
// failed calls at warn level.
func UnaryServerLoggingInterceptor(logger log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		if err != nil {
			logger.Warn("gRPC call failed", "method", method, "duration", time.Since(start), "error", err.Error())
			return resp, err
		}
		logger.Debug("gRPC call served", "method", method, "duration", time.Since(start))
		return resp, nil
	}
}

// methodName returns the last element of "/pkg.Service/Method".
func methodName(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '/' {
			return full[i+1:]
		}
	}
	return full
}
