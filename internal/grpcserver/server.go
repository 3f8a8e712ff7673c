// Package grpcserver implements RecruitService over gRPC.
//
// It delegates all business logic to recruit.Service and handles only the
// transport concerns: metadata identity, error mapping, and conversion
// between domain types and google.protobuf.Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kibanana/geteam-http-api/internal/auth"
	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// ErrorDomain is the ErrorInfo domain attached to every domain error.
const ErrorDomain = "geteam"

// Server implements RecruitServiceServer.
type Server struct {
	svc  *recruit.Service
	auth *auth.Verifier
}

// NewServer constructs a Server backed by svc.
func NewServer(svc *recruit.Service, verifier *auth.Verifier) *Server {
	return &Server{svc: svc, auth: verifier}
}

// ─── Request shapes ──────────────────────────────────────────────────────────

type boardRef struct {
	BoardID string `json:"boardId"`
}

type applicationRef struct {
	BoardID       string `json:"boardId"`
	ApplicationID string `json:"applicationId"`
}

type listBoardsRequest struct {
	Kind       string `json:"kind"`
	Category   string `json:"category"`
	SearchText string `json:"searchText"`
	Order      string `json:"order"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
}

type updateBoardRequest struct {
	BoardID string `json:"boardId"`
	recruit.BoardInput
}

type createTeamRequest struct {
	BoardID string `json:"boardId"`
	recruit.TeamInput
}

type listApplicationsRequest struct {
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	IsAccepted *bool  `json:"isAccepted"`
	Active     *bool  `json:"active"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
}

type idResponse struct {
	ID string `json:"id"`
}

// ─── Boards ──────────────────────────────────────────────────────────────────

// ListBoards returns one page of open boards. Identity is optional.
func (s *Server) ListBoards(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listBoardsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	page, err := s.svc.ListBoards(ctx, recruit.BoardQuery{
		Kind:       req.Kind,
		Category:   req.Category,
		SearchText: req.SearchText,
		Order:      req.Order,
		Offset:     req.Offset,
		Limit:      req.Limit,
		ViewerID:   s.viewer(ctx),
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(page)
}

// GetBoard returns one board and the viewer's flags.
func (s *Server) GetBoard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req boardRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	view, err := s.svc.GetBoard(ctx, req.BoardID, s.viewer(ctx))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(view)
}

// CreateBoard opens a board owned by the caller.
func (s *Server) CreateBoard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req recruit.BoardInput
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	b, err := s.svc.CreateBoard(ctx, me, req)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(idResponse{ID: b.ID})
}

// UpdateBoard replaces a board's content.
func (s *Server) UpdateBoard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req updateBoardRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.UpdateBoard(ctx, me, req.BoardID, req.BoardInput); err != nil {
		return nil, toGRPCError(err)
	}
	return encode(nil)
}

// DeleteBoard soft-deletes a board.
func (s *Server) DeleteBoard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req boardRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.DeleteBoard(ctx, me, req.BoardID); err != nil {
		return nil, toGRPCError(err)
	}
	return encode(nil)
}

// CreateTeam completes a board and returns the formed team.
func (s *Server) CreateTeam(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req createTeamRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	team, err := s.svc.CreateTeam(ctx, me, req.BoardID, req.TeamInput)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(team)
}

// ─── Applications ────────────────────────────────────────────────────────────

// CreateApplication files an application from the caller.
func (s *Server) CreateApplication(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req recruit.ApplicationInput
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	a, err := s.svc.CreateApplication(ctx, me, req)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(idResponse{ID: a.ID})
}

// AcceptApplication accepts an application on one of the caller's boards.
func (s *Server) AcceptApplication(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req applicationRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.svc.AcceptApplication(ctx, me, req.BoardID, req.ApplicationID); err != nil {
		return nil, toGRPCError(err)
	}
	return encode(nil)
}

// DeleteApplication withdraws or removes an application.
func (s *Server) DeleteApplication(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req applicationRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.svc.DeleteApplication(ctx, me, req.BoardID, req.ApplicationID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	switch res {
	case recruit.DeleteBlocked:
		return nil, withReason(codes.FailedPrecondition, recruit.CodeWithdrawalBlocked,
			"applications can no longer be withdrawn from this board")
	case recruit.DeleteNotFound:
		return nil, toGRPCError(recruit.ErrNotFound)
	}
	return encode(nil)
}

// ListApplications lists the caller's sent or received applications.
func (s *Server) ListApplications(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req listApplicationsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	page, err := s.svc.ListApplications(ctx, me, recruit.ApplicationQuery{
		Kind:       req.Kind,
		Status:     req.Status,
		IsAccepted: req.IsAccepted,
		Active:     req.Active,
		Offset:     req.Offset,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(page)
}

// ListBoardApplications lists applications on one of the caller's boards.
func (s *Server) ListBoardApplications(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req boardRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	page, err := s.svc.ListBoardApplications(ctx, me, req.BoardID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return encode(page)
}

// GetStats records a visit and returns the tallies.
func (s *Server) GetStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(s.svc.Stats(ctx))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func fromMetadata(ctx context.Context) (authorization, forwarded string) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ""
	}
	if v := md.Get("authorization"); len(v) > 0 {
		authorization = v[0]
	}
	if v := md.Get(auth.UserIDHeader); len(v) > 0 {
		forwarded = v[0]
	}
	return authorization, forwarded
}

// caller resolves the authenticated account or fails with Unauthenticated.
func (s *Server) caller(ctx context.Context) (string, error) {
	me, err := s.auth.Identify(fromMetadata(ctx))
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	if me == "" {
		return "", status.Error(codes.Unauthenticated, "missing credentials")
	}
	return me, nil
}

// viewer resolves the caller for public methods; bad credentials read as
// anonymous.
func (s *Server) viewer(ctx context.Context) string {
	me, err := s.auth.Identify(fromMetadata(ctx))
	if err != nil {
		return ""
	}
	return me
}

// decode copies a Struct into a typed request through its JSON form.
func decode(in *structpb.Struct, v any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return withReason(codes.InvalidArgument, "ERR_INVALID_PARAM", "invalid request: "+err.Error())
	}
	return nil
}

// encode converts a response value into a Struct through its JSON form.
// A nil value yields an empty Struct.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors carrying the stable
// code as an ErrorInfo reason.
func toGRPCError(err error) error {
	var c codes.Code
	switch recruit.Classify(err) {
	case recruit.OutcomeValidation:
		c = codes.InvalidArgument
	case recruit.OutcomeNotFound:
		c = codes.NotFound
	case recruit.OutcomeConflict:
		switch recruit.Code(err) {
		case recruit.CodeAlreadyApplied, recruit.CodeAlreadyCompleted:
			c = codes.AlreadyExists
		case recruit.CodeExceedLimit:
			c = codes.ResourceExhausted
		default:
			c = codes.FailedPrecondition
		}
	default:
		c = codes.Internal
	}
	return withReason(c, recruit.Code(err), recruit.Description(err))
}

func withReason(c codes.Code, reason, msg string) error {
	st := status.New(c, msg)
	if detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}); err == nil {
		st = detailed
	}
	return st.Err()
}

// Reason returns the stable error code carried by a status error, or "".
func Reason(err error) string {
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.Reason
		}
	}
	return ""
}
