package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"plant-disease-service/logger"
	"plant-disease-service/service"
)

// FilenameMetadataKey carries the upload's filename on AnalyzeLeaf calls.
const FilenameMetadataKey = "x-filename"

const analyzeLeafMethod = "/leafdiag.v1.LeafDiagnosisService/AnalyzeLeaf"

// LeafDiagnosisServer is the server API for leafdiag.v1.LeafDiagnosisService.
//
// AnalyzeLeaf is client streaming: the client sends the image as a
// sequence of google.protobuf.BytesValue chunks and receives one
// google.protobuf.Struct with the prediction.
type LeafDiagnosisServer interface {
	AnalyzeLeaf(stream grpc.ServerStream) error
}

var LeafDiagnosisServiceDesc = grpc.ServiceDesc{
	ServiceName: "leafdiag.v1.LeafDiagnosisService",
	HandlerType: (*LeafDiagnosisServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "AnalyzeLeaf",
			Handler:       analyzeLeafHandler,
			ClientStreams: true,
		},
	},
	Metadata: "leafdiag/v1/leafdiag.proto",
}

func analyzeLeafHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(LeafDiagnosisServer).AnalyzeLeaf(stream)
}

func RegisterLeafDiagnosisServer(s grpc.ServiceRegistrar, srv LeafDiagnosisServer) {
	s.RegisterService(&LeafDiagnosisServiceDesc, srv)
}

type LeafDiagnosisGRPCServer struct {
	analyzer       Analyzer
	maxUploadBytes int64
	logger         logger.Logger
}

func NewLeafDiagnosisServer(analyzer Analyzer, maxUploadBytes int64, log logger.Logger) *LeafDiagnosisGRPCServer {
	return &LeafDiagnosisGRPCServer{
		analyzer:       analyzer,
		maxUploadBytes: maxUploadBytes,
		logger:         log,
	}
}

func (s *LeafDiagnosisGRPCServer) AnalyzeLeaf(stream grpc.ServerStream) error {
	analysisID := uuid.New().String()
	ctx := logger.WithRequestID(stream.Context(), analysisID)

	var filename string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(FilenameMetadataKey); len(v) > 0 {
			filename = v[0]
		}
	}

	// Keep one byte past the limit so the size check still sees an oversize upload.
	var imageData bytes.Buffer
	for {
		chunk := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if room := s.maxUploadBytes + 1 - int64(imageData.Len()); room > 0 {
			b := chunk.GetValue()
			if int64(len(b)) > room {
				b = b[:room]
			}
			imageData.Write(b)
		}
	}

	result, err := s.analyzer.Analyze(ctx, filename, &imageData)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return status.Error(codes.InvalidArgument, verr.Message)
		}
		s.logger.Errorf(ctx, "grpc analyze %s failed: %v", filename, err)
		return status.Error(codes.Internal, err.Error())
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"analysis_id":        analysisID,
		"analysis_timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"filename":           result.Filename,
		"predicted_class":    result.PredictedClass,
		"confidence":         result.Confidence,
		"severity":           result.Severity,
		"diagnosis":          result.Diagnosis,
		"treatment":          result.Treatment,
	})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}

	return stream.SendMsg(resp)
}

// AnalyzeLeaf is the client side of the AnalyzeLeaf call. It streams r in
// chunkSize pieces.
func AnalyzeLeaf(ctx context.Context, cc grpc.ClientConnInterface, filename string, r io.Reader, chunkSize int) (*structpb.Struct, error) {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}

	ctx = metadata.AppendToOutgoingContext(ctx, FilenameMetadataKey, filename)
	stream, err := cc.NewStream(ctx, &LeafDiagnosisServiceDesc.Streams[0], analyzeLeafMethod)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := stream.SendMsg(wrapperspb.Bytes(bytes.Clone(buf[:n]))); err != nil {
				// io.EOF means the server already answered; the status comes from RecvMsg.
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	resp := new(structpb.Struct)
	if err := stream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
