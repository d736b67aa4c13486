package rpcbridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/megascops/megascops/internal/model"
)

const (
	authMethod   = "/megascops.detector.Detector/Auth"
	healthMethod = "/megascops.detector.Detector/Health"
	detectMethod = "/megascops.detector.Detector/Detect"
)

var detectStreamDesc = &grpc.StreamDesc{
	StreamName:    "Detect",
	ClientStreams: true,
	ServerStreams: true,
}

// Client wraps an authenticated connection to the detection service.
type Client struct {
	conn         *grpc.ClientConn
	sessionToken string
}

// Dial parses serviceURL, builds a TLS channel with CA pinning and SNI
// when the scheme calls for TLS, and opens the connection. Any failure
// here is fatal to the run.
func Dial(ctx context.Context, serviceURL string) (*grpc.ClientConn, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, model.NewError(model.KindConnect, "invalid service url", err)
	}

	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "https", "grpcs", "tls":
		creds, err = pinnedTransportCredentials(u.Host)
		if err != nil {
			return nil, model.NewError(model.KindTLS, "failed to pin server certificate", err)
		}
	default:
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(u.Host, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, model.NewError(model.KindConnect, "failed to dial service", err)
	}
	return conn, nil
}

// pinnedTransportCredentials fetches the server's leaf certificate and
// builds TransportCredentials that trust only that certificate, with
// SNI set to the host (IP-literal hosts keep SNI set to the literal).
func pinnedTransportCredentials(hostport string) (credentials.TransportCredentials, error) {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}

	rawConn, err := tls.Dial("tcp", hostport, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return nil, fmt.Errorf("fetch server certificate: %w", err)
	}
	defer rawConn.Close()

	state := rawConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("server presented no certificate")
	}
	leaf := state.PeerCertificates[0]

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	return credentials.NewTLS(&tls.Config{
		RootCAs:    pool,
		ServerName: host,
	}), nil
}

// Auth presents the user access token to the service's auth call. On
// success it stores the returned session token for use on subsequent
// calls.
func Auth(ctx context.Context, conn *grpc.ClientConn, token string) (*Client, error) {
	req := &AuthRequest{Token: token}
	resp := &AuthResponse{}

	if err := conn.Invoke(ctx, authMethod, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, model.NewError(model.KindAuth, "auth rpc failed", err)
	}
	if !resp.Success {
		return nil, model.NewError(model.KindAuth, "service rejected access token", nil)
	}
	return &Client{conn: conn, sessionToken: resp.SessionToken}, nil
}

// Quota returns the quota value the auth response carried, if any.
func Quota(ctx context.Context, conn *grpc.ClientConn, token string) (*int, error) {
	req := &AuthRequest{Token: token}
	resp := &AuthResponse{}
	if err := conn.Invoke(ctx, authMethod, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, model.NewError(model.KindAuth, "auth rpc failed", err)
	}
	return resp.Quota, nil
}

// Health probes the service's standalone health RPC.
func Health(ctx context.Context, conn *grpc.ClientConn) (bool, error) {
	req := &HealthRequest{}
	resp := &HealthResponse{}
	if err := conn.Invoke(ctx, healthMethod, req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return false, model.NewError(model.KindConnect, "health rpc failed", err)
	}
	return resp.Status, nil
}

// authContext attaches the session token as an authorization header.
func (c *Client) authContext(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", c.sessionToken)
}

// OpenDetectStream opens the bidirectional detect RPC with the session
// token attached.
func (c *Client) OpenDetectStream(ctx context.Context) (grpc.ClientStream, error) {
	ctx = c.authContext(ctx)
	return c.conn.NewStream(ctx, detectStreamDesc, detectMethod, grpc.CallContentSubtype(jsonCodecName))
}
