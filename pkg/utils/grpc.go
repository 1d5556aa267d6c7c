package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// ServeGRPC listens on port and serves s in the background. The returned
// channel receives the result of Serve and is then closed.
func ServeGRPC(s *grpc.Server, port int, log logger.Logger) (<-chan error, net.Addr, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port)) //nolint:noctx // listener lifetime is owned by the gRPC server
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		log.Info("Starting gRPC server", logger.StringField("address", lis.Addr().String()))
		errs <- s.Serve(lis)
	}()

	return errs, lis.Addr(), nil
}
