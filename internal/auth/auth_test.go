package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

func TestTokenRoundTrip(t *testing.T) {
	d := NewJWTDirectory("s3cret", "triplelock", time.Hour)
	tok, err := d.GenerateToken(entity.Actor{ID: "ngo-7", Role: constants.RoleNGO}, 0)
	require.NoError(t, err)

	actor, err := d.Resolve(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, entity.Actor{ID: "ngo-7", Role: constants.RoleNGO}, actor)
}

func TestGenerateTokenRejectsBadActor(t *testing.T) {
	d := NewJWTDirectory("s3cret", "", 0)
	_, err := d.GenerateToken(entity.Actor{Role: constants.RoleNGO}, 0)
	require.Error(t, err)
	_, err = d.GenerateToken(entity.Actor{ID: "x", Role: "auditor"}, 0)
	require.Error(t, err)
}

func TestResolveRejects(t *testing.T) {
	d := NewJWTDirectory("s3cret", "triplelock", time.Hour)
	actor := entity.Actor{ID: "b1", Role: constants.RoleBeneficiary}

	other := NewJWTDirectory("other", "triplelock", time.Hour)
	forged, err := other.GenerateToken(actor, 0)
	require.NoError(t, err)
	_, err = d.Resolve(context.Background(), forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTDirectory("s3cret", "elsewhere", time.Hour)
	tok, err := wrongIssuer.GenerateToken(actor, 0)
	require.NoError(t, err)
	_, err = d.Resolve(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	past := NewJWTDirectory("s3cret", "triplelock", time.Hour)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.GenerateToken(actor, 0)
	require.NoError(t, err)
	_, err = d.Resolve(context.Background(), expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Subject: "a", Issuer: "triplelock", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = d.Resolve(context.Background(), unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = d.Resolve(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestInterceptor(t *testing.T) {
	d := NewJWTDirectory("s3cret", "triplelock", time.Hour)
	icpt := UnaryServerInterceptor(d, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/triplelock.v1.ExpenditureService/GetExpenditure"}

	var seen entity.Actor
	var seenReqID string
	handler := func(ctx context.Context, req any) (any, error) {
		seen, _ = common.ActorFromContext(ctx)
		seenReqID = common.RequestIDFromContext(ctx)
		return "ok", nil
	}

	_, err := icpt(context.Background(), nil, info, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope"))
	_, err = icpt(bad, nil, info, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	tok, err := d.GenerateToken(entity.Actor{ID: "v1", Role: constants.RoleVendor}, 0)
	require.NoError(t, err)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok, "x-request-id", "req-42"))
	out, err := icpt(ctx, nil, info, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, "v1", seen.ID)
	require.Equal(t, constants.RoleVendor, seen.Role)
	require.Equal(t, "req-42", seenReqID)

	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err = icpt(context.Background(), nil, health, handler)
	require.NoError(t, err)
}
