package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.BaseURL == "" {
		s.T().Skip("PICKROLL_URL not set")
	}
	s.Config.BaseURL = strings.TrimSuffix(s.Config.BaseURL, "/")
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request, logs it and decodes the answer into out when given.
func (s *BaseSuite) Call(method, path, token string, body, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req, err := http.NewRequest(method, s.Config.BaseURL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "request to %s failed", path)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logLine := fmt.Sprintf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		logLine += fmt.Sprintf("\nREQUEST: %s\nRESPONSE: %s", payload, raw)
	}
	s.T().Log(logLine)

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Websocket opens a realtime subscription authenticated with the token query parameter.
func (s *BaseSuite) Websocket(path, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.Config.BaseURL, "http") + path + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "websocket %s refused", path)
	_ = resp.Body.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

// CheckHealth asks the gRPC health service whether the server is serving.
func (s *BaseSuite) CheckHealth() healthpb.HealthCheckResponse_ServingStatus {
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)
	return resp.GetStatus()
}
