package asr

import (
	"bytes"
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/quranlocator/verse-engine/internal/audio"
)

const (
	// TranscriberService is the gRPC service name of the remote engine.
	TranscriberService = "verseengine.asr.v1.Transcriber"

	// TranscribeMethod takes a BytesValue holding a WAV file and returns a
	// StringValue transcript.
	TranscribeMethod = "/" + TranscriberService + "/Transcribe"
)

// TranscriberServer is the server side of the Transcriber service.
type TranscriberServer interface {
	Transcribe(ctx context.Context, wav *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
}

func transcribeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranscriberServer).Transcribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TranscribeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TranscriberServer).Transcribe(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var transcriberServiceDesc = grpc.ServiceDesc{
	ServiceName: TranscriberService,
	HandlerType: (*TranscriberServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Transcribe",
			Handler:    transcribeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verseengine/asr/v1/transcriber.proto",
}

// RegisterTranscriberServer registers srv and a SERVING health status for
// the Transcriber service on s.
func RegisterTranscriberServer(s *grpc.Server, srv TranscriberServer) *health.Server {
	s.RegisterService(&transcriberServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(TranscriberService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// EngineServer exposes a local engine as a Transcriber.
type EngineServer struct {
	Engine     Engine
	SampleRate int
}

// Transcribe implements TranscriberServer.
func (s *EngineServer) Transcribe(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	clip, err := audio.DecodeWAV(bytes.NewReader(in.GetValue()))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode wav: %v", err)
	}
	if err := clip.RequireRate(s.SampleRate); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	text, err := s.Engine.Transcribe(ctx, clip.Samples)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(text), nil
}
