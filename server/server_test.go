package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"tombola/client"
	"tombola/models"
	"tombola/repository"
	"tombola/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, winningNumber string) (addr string, shutdown func()) {
	t.Helper()

	store := repository.NewMemoryBetStore()
	lottery := service.NewLotteryService(store, service.NumberPredicate(winningNumber), nil)
	srv := New(Config{Port: 0, ListenBacklog: 8, ShutdownTimeout: 2 * time.Second}, lottery)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()

	shutdown = func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	}
	t.Cleanup(shutdown)
	return srv.Addr().String(), shutdown
}

func serverBet(agency, document, number string) models.Bet {
	return models.Bet{
		Agency:    agency,
		FirstName: "Juan",
		LastName:  "Perez",
		Document:  document,
		Birthdate: time.Date(1999, 3, 15, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestServer_EndToEndSingleAgency(t *testing.T) {
	addr, _ := startTestServer(t, "7744")
	cl := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, cl.SubmitBet(ctx, serverBet("7", "30904465", "7744")))
	require.NoError(t, cl.FinishBets(ctx, "7"))

	// Agency 7 is the only contributor, so the draw completed on its finish
	// and a fresh-connection query is answered immediately.
	winners, err := cl.QueryWinners(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"30904465"}, winners)
}

func TestServer_LosingBetYieldsEmptyWinners(t *testing.T) {
	addr, _ := startTestServer(t, "7574")
	cl := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, cl.SubmitBet(ctx, serverBet("7", "30904465", "7744")))
	require.NoError(t, cl.FinishBets(ctx, "7"))

	winners, err := cl.QueryWinners(ctx, "7")
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestServer_BatchSubmission(t *testing.T) {
	addr, _ := startTestServer(t, "7574")
	cl := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, cl.SubmitBatch(ctx, []models.Bet{
		serverBet("3", "111", "7574"),
		serverBet("3", "222", "9999"),
		serverBet("3", "333", "7574"),
	}))
	require.NoError(t, cl.FinishBets(ctx, "3"))

	winners, err := cl.QueryWinners(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333"}, winners)
}

func TestServer_MalformedMessageGetsError(t *testing.T) {
	addr, _ := startTestServer(t, "7574")

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("HELLO#1\n"))
	require.NoError(t, err)

	response, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERROR\n", response)
}

func TestServer_BatchCountMismatchGetsError(t *testing.T) {
	addr, _ := startTestServer(t, "7574")

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// Two bets where three were declared; half-close so the server stops
	// waiting for the missing line and parses what it has.
	_, err = conn.Write([]byte("BATCH#3\nBET#A#a#b#c#2020-01-01#5\nBET#A#d#e#f#2021-02-02#7\n"))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	response, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERROR\n", response)
}

func TestServer_QueryBeforeDrawIsParkedUntilAllFinish(t *testing.T) {
	addr, _ := startTestServer(t, "7574")
	cl := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, cl.SubmitBet(ctx, serverBet("1", "111", "7574")))
	require.NoError(t, cl.SubmitBet(ctx, serverBet("2", "222", "7574")))
	require.NoError(t, cl.FinishBets(ctx, "1"))

	// Agency 2 has not finished, so this query parks server-side.
	type result struct {
		winners []string
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		winners, err := cl.QueryWinners(ctx, "1")
		resCh <- result{winners, err}
	}()

	select {
	case <-resCh:
		t.Fatal("query was answered before the draw completed")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, cl.FinishBets(ctx, "2"))

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, []string{"111"}, res.winners)
	case <-time.After(5 * time.Second):
		t.Fatal("parked query was not released by the draw")
	}
}

func TestServer_ShutdownClosesParkedQuery(t *testing.T) {
	addr, shutdown := startTestServer(t, "7574")
	cl := client.New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One agency bets but never finishes, so the draw never completes and
	// the query below stays parked.
	require.NoError(t, cl.SubmitBet(ctx, serverBet("1", "111", "7574")))

	errCh := make(chan error, 1)
	go func() {
		_, err := cl.QueryWinners(ctx, "1")
		errCh <- err
	}()

	// Let the query reach the server and park.
	time.Sleep(300 * time.Millisecond)

	shutdown()

	select {
	case err := <-errCh:
		assert.Error(t, err, "parked connection must be closed by the shutdown sweep")
	case <-time.After(5 * time.Second):
		t.Fatal("parked connection leaked through shutdown")
	}
}

func TestServer_ServesConnectionsConcurrently(t *testing.T) {
	addr, _ := startTestServer(t, "7574")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencies := []string{"1", "2", "3", "4"}
	errCh := make(chan error, len(agencies))
	for _, agency := range agencies {
		go func(a string) {
			cl := client.New(addr)
			if err := cl.SubmitBet(ctx, serverBet(a, "doc-"+a, "7574")); err != nil {
				errCh <- err
				return
			}
			errCh <- cl.FinishBets(ctx, a)
		}(agency)
	}
	for range agencies {
		require.NoError(t, <-errCh)
	}

	cl := client.New(addr)
	winners, err := cl.QueryWinners(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2"}, winners)
}
