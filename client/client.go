// Package client implements the agency side of the lottery protocol: one
// connection per request, mirroring how agencies submit their bet streams.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"tombola/models"
	"tombola/protocol"
)

// ErrServerRejected reports an ERROR response from the server.
var ErrServerRejected = errors.New("server rejected request")

// Client submits lottery requests to a server
type Client struct {
	addr   string
	dialer net.Dialer
}

// New creates a client for the server at addr
func New(addr string) *Client {
	return &Client{addr: addr}
}

// SubmitBet sends a single bet and waits for acknowledgement
func (c *Client) SubmitBet(ctx context.Context, bet models.Bet) error {
	return c.expectOK(ctx, protocol.SerializeBet(bet))
}

// SubmitBatch sends a batch of bets and waits for acknowledgement
func (c *Client) SubmitBatch(ctx context.Context, bets []models.Bet) error {
	return c.expectOK(ctx, protocol.SerializeBatch(bets))
}

// FinishBets signals that the agency has no more bets to send
func (c *Client) FinishBets(ctx context.Context, agency string) error {
	return c.expectOK(ctx, protocol.SerializeFinish(agency))
}

// QueryWinners asks for the agency's winner documents. The call blocks until
// the server answers, which may be deferred until the draw completes; bound
// the wait through ctx.
func (c *Client) QueryWinners(ctx context.Context, agency string) ([]string, error) {
	response, err := c.roundTrip(ctx, protocol.SerializeQueryWinners(agency))
	if err != nil {
		return nil, err
	}
	if response == "ERROR" {
		return nil, ErrServerRejected
	}
	return protocol.ParseWinners(response)
}

func (c *Client) expectOK(ctx context.Context, payload string) error {
	response, err := c.roundTrip(ctx, payload)
	if err != nil {
		return err
	}
	switch response {
	case "OK":
		return nil
	case "ERROR":
		return ErrServerRejected
	default:
		return fmt.Errorf("%w: unexpected response %q", protocol.ErrInvalidFormat, response)
	}
}

// roundTrip performs one request on a fresh connection and reads the single
// newline-terminated response.
func (c *Client) roundTrip(ctx context.Context, payload string) (string, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	data := []byte(payload)
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			return "", fmt.Errorf("failed to send request: %w", err)
		}
		if n == 0 {
			return "", protocol.ErrConnectionBroken
		}
		total += n
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return strings.TrimRight(line, " \t\r\n"), nil
}

// SubmitAll sends every bet of an agency followed by the finish signal,
// pausing between submissions like a real agency trickling in its stream.
func (c *Client) SubmitAll(ctx context.Context, agency string, bets []models.Bet, pause time.Duration) error {
	for _, bet := range bets {
		if err := c.SubmitBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to submit bet for document %s: %w", bet.Document, err)
		}
		if pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return c.FinishBets(ctx, agency)
}
