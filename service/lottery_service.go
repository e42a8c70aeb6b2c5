package service

import (
	"context"
	"fmt"
	"sync"

	"tombola/events"
	"tombola/models"

	log "github.com/sirupsen/logrus"
)

type pendingQuery struct {
	agency string
	conn   ResponseConn
}

type lotteryService struct {
	store     BetStore
	isWinner  WinPredicate
	publisher events.Publisher

	// mu guards the lottery state below. The barrier check-and-drain in
	// RecordFinish runs entirely under it so the drawCompleted flip cannot
	// interleave with a concurrent QueryWinners enqueue.
	mu               sync.Mutex
	agenciesWithBets map[string]struct{}
	agenciesFinished map[string]struct{}
	drawCompleted    bool
	pendingQueries   []pendingQuery
}

// NewLotteryService creates a new lottery coordinator
func NewLotteryService(store BetStore, isWinner WinPredicate, publisher events.Publisher) LotteryService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &lotteryService{
		store:            store,
		isWinner:         isWinner,
		publisher:        publisher,
		agenciesWithBets: make(map[string]struct{}),
		agenciesFinished: make(map[string]struct{}),
	}
}

func (s *lotteryService) RecordBets(ctx context.Context, bets []models.Bet) error {
	if len(bets) == 0 {
		return nil
	}

	// The store append completes before any agency is counted as a
	// contributor, so a finish signal observed later on the same connection
	// is guaranteed to see these bets in the draw.
	if err := s.store.Append(ctx, bets); err != nil {
		return fmt.Errorf("failed to append bets: %w", err)
	}

	agencies := make([]string, 0, 1)
	s.mu.Lock()
	for _, bet := range bets {
		if _, seen := s.agenciesWithBets[bet.Agency]; !seen {
			s.agenciesWithBets[bet.Agency] = struct{}{}
			agencies = append(agencies, bet.Agency)
		}
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"count":       len(bets),
		"newAgencies": agencies,
	}).Info("bets recorded")

	s.publisher.Emit(ctx, events.BetsRecordedEvent{Agencies: agencies, Count: len(bets)})
	return nil
}

func (s *lotteryService) RecordFinish(ctx context.Context, agency string) error {
	s.mu.Lock()
	s.agenciesFinished[agency] = struct{}{}

	var released int
	triggered := false
	if !s.drawCompleted && len(s.agenciesWithBets) > 0 && setsEqual(s.agenciesFinished, s.agenciesWithBets) {
		s.drawCompleted = true
		triggered = true

		// Drain in the same critical section that flipped the barrier: a
		// query parked after this point would already observe drawCompleted.
		pending := s.pendingQueries
		s.pendingQueries = nil
		released = len(pending)
		for _, pq := range pending {
			s.answerAndClose(ctx, pq)
		}
	}
	agencies := s.finishedAgencies()
	s.mu.Unlock()

	log.WithField("agency", agency).Info("agency finished betting")
	s.publisher.Emit(ctx, events.AgencyFinishedEvent{Agency: agency})

	if triggered {
		log.WithFields(log.Fields{
			"agencies":        agencies,
			"releasedQueries": released,
		}).Info("draw completed")
		s.publisher.Emit(ctx, events.DrawCompletedEvent{Agencies: agencies, ReleasedQueries: released})
	}
	return nil
}

func (s *lotteryService) QueryWinners(ctx context.Context, agency string, conn ResponseConn) (bool, []string, error) {
	s.mu.Lock()
	if !s.drawCompleted {
		s.pendingQueries = append(s.pendingQueries, pendingQuery{agency: agency, conn: conn})
		queued := len(s.pendingQueries)
		s.mu.Unlock()
		log.WithFields(log.Fields{
			"agency": agency,
			"queued": queued,
		}).Info("winner query parked until draw")
		return true, nil, nil
	}
	s.mu.Unlock()

	winners, err := s.winnersFor(ctx, agency)
	if err != nil {
		return false, nil, err
	}
	return false, winners, nil
}

func (s *lotteryService) DrawCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawCompleted
}

// Shutdown force-closes every parked connection. Each entry leaves the queue
// before its connection is closed, so a concurrent drain cannot close it a
// second time.
func (s *lotteryService) Shutdown() {
	s.mu.Lock()
	pending := s.pendingQueries
	s.pendingQueries = nil
	s.mu.Unlock()

	for _, pq := range pending {
		if err := pq.conn.Close(); err != nil {
			log.WithError(err).WithField("agency", pq.agency).Warn("failed to close parked connection")
		}
	}
	if len(pending) > 0 {
		log.WithField("count", len(pending)).Info("closed parked winner queries on shutdown")
	}
}

// answerAndClose resolves one parked query. Called with mu held.
func (s *lotteryService) answerAndClose(ctx context.Context, pq pendingQuery) {
	winners, err := s.winnersFor(ctx, pq.agency)
	if err != nil {
		log.WithError(err).WithField("agency", pq.agency).Error("failed to compute winners for parked query")
	} else if err := pq.conn.SendWinners(winners); err != nil {
		log.WithError(err).WithField("agency", pq.agency).Error("failed to send winners to parked query")
	} else {
		log.WithFields(log.Fields{
			"agency":  pq.agency,
			"winners": len(winners),
		}).Info("released parked winner query")
	}
	if err := pq.conn.Close(); err != nil {
		log.WithError(err).WithField("agency", pq.agency).Warn("failed to close drained connection")
	}
}

// winnersFor returns the winning documents of an agency in store insertion
// order.
func (s *lotteryService) winnersFor(ctx context.Context, agency string) ([]string, error) {
	bets, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bets: %w", err)
	}
	winners := make([]string, 0)
	for _, bet := range bets {
		if bet.Agency == agency && s.isWinner(bet) {
			winners = append(winners, bet.Document)
		}
	}
	return winners, nil
}

// finishedAgencies returns the finished set as a slice. Called with mu held.
func (s *lotteryService) finishedAgencies() []string {
	agencies := make([]string, 0, len(s.agenciesFinished))
	for agency := range s.agenciesFinished {
		agencies = append(agencies, agency)
	}
	return agencies
}

// setsEqual reports membership equality. Cardinality alone is not enough: an
// agency that finished without betting must not cancel out one that bet
// without finishing.
func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
