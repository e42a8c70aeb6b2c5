package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tombola/models"
)

// Message tags and responses as they appear on the wire.
const (
	TagBet          = "BET"
	TagBatch        = "BATCH"
	TagFinishBets   = "FINISH_BETS"
	TagQueryWinners = "QUERY_WINNERS"
	TagWinners      = "WINNERS"

	ResponseOK    = "OK\n"
	ResponseError = "ERROR\n"

	// DateLayout is the ISO-8601 calendar form used for birthdates.
	DateLayout = "2006-01-02"
)

// Separator is the field delimiter of the wire protocol.
const Separator = '#'

// Message is a parsed client request.
type Message interface {
	message()
}

// BetMessage carries a single bet.
type BetMessage struct {
	Bet models.Bet
}

// BatchMessage carries all bets of a BATCH submission.
type BatchMessage struct {
	Bets []models.Bet
}

// FinishMessage signals that an agency has finished sending bets.
type FinishMessage struct {
	Agency string
}

// QueryWinnersMessage asks for the winner documents of an agency.
type QueryWinnersMessage struct {
	Agency string
}

func (BetMessage) message()          {}
func (BatchMessage) message()        {}
func (FinishMessage) message()       {}
func (QueryWinnersMessage) message() {}

// Parse decodes a complete, whitespace-trimmed message into its typed form.
// The message kind is decided by the tag before the first unescaped separator
// of the first line.
func Parse(raw string) (Message, error) {
	firstLine, _, _ := strings.Cut(raw, "\n")
	tokens := SplitEscaped(firstLine, Separator)
	switch tokens[0] {
	case TagBet:
		bet, err := ParseBet(raw)
		if err != nil {
			return nil, err
		}
		return BetMessage{Bet: bet}, nil
	case TagBatch:
		bets, err := ParseBatch(raw)
		if err != nil {
			return nil, err
		}
		return BatchMessage{Bets: bets}, nil
	case TagFinishBets:
		if len(tokens) != 2 || raw != firstLine {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFinishBetsFormat, firstLine)
		}
		return FinishMessage{Agency: tokens[1]}, nil
	case TagQueryWinners:
		if len(tokens) != 2 || raw != firstLine {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQueryWinnersFormat, firstLine)
		}
		return QueryWinnersMessage{Agency: tokens[1]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, tokens[0])
	}
}

// ParseBet decodes a single BET line. The line must split into exactly seven
// tokens with the BET tag first; the birthdate must be a valid calendar date.
func ParseBet(line string) (models.Bet, error) {
	parts := SplitEscaped(line, Separator)
	if len(parts) != 7 || parts[0] != TagBet {
		return models.Bet{}, fmt.Errorf("%w: expected 7 fields, got %d", ErrInvalidFormat, len(parts))
	}
	birth, err := time.Parse(DateLayout, parts[5])
	if err != nil {
		return models.Bet{}, fmt.Errorf("%w: bad birthdate %q", ErrInvalidFormat, parts[5])
	}
	return models.Bet{
		Agency:    parts[1],
		FirstName: parts[2],
		LastName:  parts[3],
		Document:  parts[4],
		Birthdate: birth,
		Number:    parts[6],
	}, nil
}

// ParseBatch decodes a BATCH message: a BATCH#count header line followed by
// exactly count BET lines. Blank lines between bets are tolerated.
func ParseBatch(raw string) ([]models.Bet, error) {
	lines := strings.Split(raw, "\n")
	header := SplitEscaped(lines[0], Separator)
	if len(header) != 2 || header[0] != TagBatch {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBatchHeader, lines[0])
	}
	count, err := strconv.Atoi(header[1])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBatchCount, header[1])
	}

	bets := make([]models.Bet, 0, count)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, TagBet+string(Separator)) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBetLine, line)
		}
		bet, err := ParseBet(line)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	if len(bets) != count {
		return nil, &BetCountMismatchError{Expected: count, Actual: len(bets)}
	}
	return bets, nil
}

// SerializeBet encodes a bet as a newline-terminated BET line with all
// free-text fields escaped.
func SerializeBet(b models.Bet) string {
	return fmt.Sprintf("BET#%s#%s#%s#%s#%s#%s\n",
		Escape(b.Agency),
		Escape(b.FirstName),
		Escape(b.LastName),
		Escape(b.Document),
		Escape(b.Birthdate.Format(DateLayout)),
		Escape(b.Number),
	)
}

// SerializeBatch encodes a batch submission: the count header followed by one
// BET line per bet.
func SerializeBatch(bets []models.Bet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BATCH#%d\n", len(bets))
	for _, b := range bets {
		sb.WriteString(SerializeBet(b))
	}
	return sb.String()
}

// SerializeFinish encodes a FINISH_BETS signal for an agency.
func SerializeFinish(agency string) string {
	return fmt.Sprintf("FINISH_BETS#%s\n", Escape(agency))
}

// SerializeQueryWinners encodes a QUERY_WINNERS request for an agency.
func SerializeQueryWinners(agency string) string {
	return fmt.Sprintf("QUERY_WINNERS#%s\n", Escape(agency))
}

// SerializeWinners encodes a winner list response. Each document is escaped
// independently; an empty list serializes as WINNERS#0# with no documents.
func SerializeWinners(documents []string) string {
	escaped := make([]string, len(documents))
	for i, doc := range documents {
		escaped[i] = Escape(doc)
	}
	return fmt.Sprintf("WINNERS#%d#%s\n", len(documents), strings.Join(escaped, "#"))
}

// ParseWinners decodes a WINNERS response line into its document list.
func ParseWinners(line string) ([]string, error) {
	tokens := SplitEscaped(line, Separator)
	if len(tokens) < 2 || tokens[0] != TagWinners {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, line)
	}
	count, err := strconv.Atoi(tokens[1])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad winner count %q", ErrInvalidFormat, tokens[1])
	}
	if count == 0 {
		return nil, nil
	}
	if len(tokens) != count+2 {
		return nil, fmt.Errorf("%w: expected %d documents, got %d", ErrInvalidFormat, count, len(tokens)-2)
	}
	return tokens[2:], nil
}
