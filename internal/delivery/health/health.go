package health

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService reports SERVING while the engine subprocess is alive.
type HealthService struct {
	log    *zap.SugaredLogger
	server *grpchealth.Server
	grpc   *grpc.Server
}

func NewHealthService(log *zap.SugaredLogger) *HealthService {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &HealthService{
		log:    log,
		server: hs,
		grpc:   s,
	}
}

// Watch flips the status to NOT_SERVING once done is closed.
func (h *HealthService) Watch(done <-chan struct{}) {
	go func() {
		<-done
		h.log.Warn("engine exited, health is NOT_SERVING")
		h.server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}()
}

func (h *HealthService) Serve(lis net.Listener) error {
	h.log.Infof("gRPC health service is listening on %s", lis.Addr())
	return h.grpc.Serve(lis)
}

func (h *HealthService) Stop() {
	h.server.Shutdown()
	h.grpc.GracefulStop()
}
