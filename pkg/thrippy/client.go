// Package thrippy reads Slack app-level tokens from [Thrippy] links over
// gRPC, so they don't need to be stored in the application's configuration.
//
// [Thrippy]: https://github.com/tzrikka/thrippy
package thrippy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	thrippypb "github.com/tzrikka/thrippy-api/thrippy/v1"
)

const (
	timeout = 3 * time.Second

	// AppTokenKey is the name of the app-level token
	// in the credentials of Slack Socket Mode links.
	AppTokenKey = "app_token"
)

var ErrLinkNotFound = errors.New("Thrippy link not found")

// Connection creates a gRPC client connection to the given Thrippy server address.
// It supports both secure and insecure connections, based on the given credentials.
func Connection(addr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// LinkSecrets returns the saved secrets of a given Thrippy link.
// This function reports gRPC errors, but if the link is not found it returns nothing.
func LinkSecrets(ctx context.Context, grpcAddr string, creds credentials.TransportCredentials, linkID string) (map[string]string, error) {
	l := zerolog.Ctx(ctx)

	conn, err := Connection(grpcAddr, creds)
	if err != nil {
		l.Error().Stack().Err(err).Send()
		return nil, err
	}
	defer conn.Close()

	c := thrippypb.NewThrippyServiceClient(conn)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.GetCredentials(ctx, thrippypb.GetCredentialsRequest_builder{
		LinkId: proto.String(linkID),
	}.Build())
	if err != nil {
		if status.Code(err) != codes.NotFound {
			l.Error().Stack().Err(err).Send()
			return nil, err
		}
		return nil, nil
	}

	return resp.GetCredentials(), nil
}

// AppToken returns a function that reads a Slack app-level token from the
// secrets of a Thrippy link, every time it's called. This lets reconnecting
// clients pick up rotated tokens without restarting.
func AppToken(grpcAddr string, creds credentials.TransportCredentials, linkID string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		m, err := LinkSecrets(ctx, grpcAddr, creds, linkID)
		if err != nil {
			return "", fmt.Errorf("failed to get Thrippy link secrets: %w", err)
		}
		if m == nil {
			return "", fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
		}

		token := m[AppTokenKey]
		if token == "" {
			return "", fmt.Errorf("Thrippy link %s doesn't have a %q secret", linkID, AppTokenKey)
		}
		return token, nil
	}
}
