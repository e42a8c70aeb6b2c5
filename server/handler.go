package server

import (
	"context"

	"tombola/models"
	"tombola/protocol"

	log "github.com/sirupsen/logrus"
)

// handleConnection serves one complete message on an accepted connection.
// Unless the message is a winner query that had to be parked, the connection
// is answered and closed before returning.
func (s *Server) handleConnection(ctx context.Context, cc *clientConn) {
	owned := true
	defer func() {
		s.removeActive(cc)
		if owned {
			if err := cc.Close(); err != nil {
				log.WithError(err).Warn("failed to close client connection")
			}
		}
	}()

	raw, err := recvMessage(cc.conn)
	if err != nil {
		log.WithError(err).WithField("ip", cc.RemoteAddr().String()).Error("failed to receive message")
		return
	}

	msg, err := protocol.Parse(raw)
	if err != nil {
		log.WithError(err).WithField("ip", cc.RemoteAddr().String()).Warn("received malformed message")
		s.respond(cc, protocol.ResponseError)
		return
	}

	switch m := msg.(type) {
	case protocol.BetMessage:
		s.recordBets(ctx, cc, []models.Bet{m.Bet})
	case protocol.BatchMessage:
		s.recordBets(ctx, cc, m.Bets)
	case protocol.FinishMessage:
		if err := s.lottery.RecordFinish(ctx, m.Agency); err != nil {
			log.WithError(err).WithField("agency", m.Agency).Error("failed to record finish")
			s.respond(cc, protocol.ResponseError)
			return
		}
		s.respond(cc, protocol.ResponseOK)
	case protocol.QueryWinnersMessage:
		queued, winners, err := s.lottery.QueryWinners(ctx, m.Agency, cc)
		if err != nil {
			log.WithError(err).WithField("agency", m.Agency).Error("failed to query winners")
			s.respond(cc, protocol.ResponseError)
			return
		}
		if queued {
			// Ownership of the connection has passed to the coordinator;
			// it will answer and close on the draw, or the shutdown sweep
			// will close it.
			owned = false
			return
		}
		if err := cc.SendWinners(winners); err != nil {
			log.WithError(err).WithField("agency", m.Agency).Error("failed to send winners")
		}
	}
}

func (s *Server) recordBets(ctx context.Context, cc *clientConn, bets []models.Bet) {
	if err := s.lottery.RecordBets(ctx, bets); err != nil {
		log.WithError(err).WithField("count", len(bets)).Error("failed to record bets")
		s.respond(cc, protocol.ResponseError)
		return
	}
	s.respond(cc, protocol.ResponseOK)
}

func (s *Server) respond(cc *clientConn, response string) {
	if err := sendMessage(cc.conn, response); err != nil {
		log.WithError(err).WithField("ip", cc.RemoteAddr().String()).Error("failed to send response")
	}
}
