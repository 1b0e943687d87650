package inference

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"track-bot/internal/domain/entity"
	"track-bot/internal/domain/port"
)

const (
	serviceName  = "nanotrack.v1.Inference"
	embedMethod  = "/" + serviceName + "/Embed"
	inferMethod  = "/" + serviceName + "/Infer"
	maxTensorMsg = 64 << 20
)

// GRPCClient удалённый бэкенд: кропы и тензоры передаются сообщениями structpb
type GRPCClient struct {
	conn   grpc.ClientConnInterface
	closer func() error
	logger *zap.Logger
}

// DialGRPC подключается к серверу вывода по адресу addr без TLS
func DialGRPC(addr string, logger *zap.Logger) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxTensorMsg),
			grpc.MaxCallSendMsgSize(maxTensorMsg),
		),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "dial inference server %s", addr)
	}
	c := NewGRPCClient(conn, logger)
	c.closer = conn.Close
	return c, nil
}

// NewGRPCClient оборачивает готовое соединение
func NewGRPCClient(conn grpc.ClientConnInterface, logger *zap.Logger) *GRPCClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCClient{conn: conn, logger: logger}
}

// Close закрывает соединение, если клиент создан через DialGRPC
func (c *GRPCClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Embed отправляет кроп в формате NCHW (B,G,R) и получает эмбеддинг
func (c *GRPCClient) Embed(ctx context.Context, patch entity.Patch) (entity.Tensor, error) {
	if patch.Image == nil {
		return entity.Tensor{}, errors.New("patch has no image")
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":  structpb.NewStringValue(string(patch.Kind)),
		"patch": tensorToValue(patch.NCHW()),
	}}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, embedMethod, req, resp); err != nil {
		c.logger.Warn("remote embed failed", zap.String("kind", string(patch.Kind)), zap.Error(err))
		return entity.Tensor{}, errors.Wrap(err, "remote embed")
	}
	return tensorField(resp, "embedding")
}

// Infer отправляет эмбеддинги шаблона и поиска, получает cls и reg
func (c *GRPCClient) Infer(ctx context.Context, template, search entity.Tensor) (entity.Tensor, entity.Tensor, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"template": tensorToValue(template),
		"search":   tensorToValue(search),
	}}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, inferMethod, req, resp); err != nil {
		c.logger.Warn("remote infer failed", zap.Error(err))
		return entity.Tensor{}, entity.Tensor{}, errors.Wrap(err, "remote infer")
	}
	cls, err := tensorField(resp, "cls")
	if err != nil {
		return entity.Tensor{}, entity.Tensor{}, err
	}
	reg, err := tensorField(resp, "reg")
	if err != nil {
		return entity.Tensor{}, entity.Tensor{}, err
	}
	return cls, reg, nil
}

// inferenceServer обработчики сервиса; методы неэкспортируемые, реализация только в этом пакете
type inferenceServer interface {
	embed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	infer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	embedder port.Embedder
	head     port.Head
	logger   *zap.Logger
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*inferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Embed", Handler: embedHandler},
		{MethodName: "Infer", Handler: inferHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nanotrack/v1/inference.proto",
}

// ServerOptions лимиты сообщений, рассчитанные на тензоры поискового кропа
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxTensorMsg),
		grpc.MaxSendMsgSize(maxTensorMsg),
	}
}

// RegisterInferenceServer публикует пару эмбеддер/голова как сервис nanotrack.v1.Inference
func RegisterInferenceServer(r grpc.ServiceRegistrar, embedder port.Embedder, head port.Head, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.RegisterService(&serviceDesc, &server{embedder: embedder, head: head, logger: logger})
}

func (s *server) embed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kind := entity.PatchKind(req.GetFields()["kind"].GetStringValue())
	if kind != entity.PatchTemplate && kind != entity.PatchSearch {
		return nil, status.Errorf(codes.InvalidArgument, "unknown patch kind %q", kind)
	}
	t, err := tensorField(req, "patch")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	patch, err := entity.PatchFromNCHW(kind, t)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	emb, err := s.embedder.Embed(ctx, patch)
	if err != nil {
		s.logger.Error("embed failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"embedding": tensorToValue(emb),
	}}, nil
}

func (s *server) infer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	template, err := tensorField(req, "template")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	search, err := tensorField(req, "search")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cls, reg, err := s.head.Infer(ctx, template, search)
	if err != nil {
		s.logger.Error("infer failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"cls": tensorToValue(cls),
		"reg": tensorToValue(reg),
	}}, nil
}

func embedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(inferenceServer).embed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: embedMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(inferenceServer).embed(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func inferHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(inferenceServer).infer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: inferMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(inferenceServer).infer(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// tensorToValue кодирует тензор как {shape: [...], data: base64(float32 LE)}
func tensorToValue(t entity.Tensor) *structpb.Value {
	shape := make([]*structpb.Value, len(t.Shape))
	for i, d := range t.Shape {
		shape[i] = structpb.NewNumberValue(float64(d))
	}
	raw := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"shape": structpb.NewListValue(&structpb.ListValue{Values: shape}),
		"data":  structpb.NewStringValue(base64.StdEncoding.EncodeToString(raw)),
	}})
}

func tensorField(s *structpb.Struct, name string) (entity.Tensor, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return entity.Tensor{}, errors.Errorf("message has no %q tensor", name)
	}
	fields := v.GetStructValue().GetFields()
	shapeList := fields["shape"].GetListValue().GetValues()
	if len(shapeList) == 0 {
		return entity.Tensor{}, errors.Errorf("tensor %q has no shape", name)
	}

	t := entity.Tensor{Shape: make([]int, len(shapeList))}
	for i, d := range shapeList {
		n := d.GetNumberValue()
		if n != math.Trunc(n) {
			return entity.Tensor{}, errors.Errorf("tensor %q has fractional dimension %v", name, n)
		}
		if n < 1 || n > math.MaxInt32 {
			return entity.Tensor{}, errors.Errorf("tensor %q has dimension %v out of range", name, n)
		}
		t.Shape[i] = int(n)
	}

	raw, err := base64.StdEncoding.DecodeString(fields["data"].GetStringValue())
	if err != nil {
		return entity.Tensor{}, errors.Wrapf(err, "tensor %q data", name)
	}
	if len(raw)%4 != 0 {
		return entity.Tensor{}, errors.Errorf("tensor %q data has %d bytes, not a multiple of 4", name, len(raw))
	}
	t.Data = make([]float32, len(raw)/4)
	for i := range t.Data {
		t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	if err := t.Validate(); err != nil {
		return entity.Tensor{}, errors.Wrapf(err, "tensor %q", name)
	}
	return t, nil
}

var _ port.InferenceBackend = (*GRPCClient)(nil)
