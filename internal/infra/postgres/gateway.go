package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle/internal/domain"
)

const battleColumns = `id, challenger_id, opponent_id, coin_bet, status,
	challenger_score, opponent_score, challenger_time_ms, opponent_time_ms, winner_id, created_at`

// Error codes raised by the settlement functions in the migrations.
var sqlErrors = map[string]error{
	"QB001": domain.ErrInvalidWager,
	"QB002": domain.ErrInsufficientFunds,
	"QB003": domain.ErrBattleNotFound,
	"QB004": domain.ErrNotParticipant,
	"QB005": domain.ErrBattleNotPending,
	"QB006": domain.ErrAlreadyJoined,
	"QB008": domain.ErrBattleNotActive,
	"QB009": domain.ErrInvalidResult,
}

// Gateway is the Postgres settlement backend. All coin movement happens
// inside the SQL functions so each call is one transaction.
type Gateway struct {
	pool      *pgxpool.Pool
	inviteTTL time.Duration
	maxScore  int
}

// NewGateway returns a gateway over pool. maxScore is the battle question
// count; submitted scores above it are rejected by the database.
func NewGateway(pool *pgxpool.Pool, inviteTTL time.Duration, maxScore int) *Gateway {
	return &Gateway{pool: pool, inviteTTL: inviteTTL, maxScore: maxScore}
}

func (g *Gateway) CreateBattle(ctx context.Context, challengerID, opponentID string, coinBet int, seed string) (domain.Battle, error) {
	id := seed
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := g.pool.Exec(ctx, `SELECT create_quiz_battle($1, $2, $3, $4)`, id, challengerID, opponentID, coinBet); err != nil {
		return domain.Battle{}, mapError("create battle", err)
	}
	return g.battle(ctx, id)
}

func (g *Gateway) JoinBattle(ctx context.Context, battleID, userID string) (domain.Battle, error) {
	var status string
	err := g.pool.QueryRow(ctx, `SELECT join_quiz_battle($1, $2, $3)`,
		battleID, userID, int(g.inviteTTL/time.Second)).Scan(&status)
	if err != nil {
		return domain.Battle{}, mapError("join battle", err)
	}
	if domain.BattleStatus(status) == domain.BattleStatusExpired {
		return domain.Battle{}, domain.ErrInviteExpired
	}
	return g.battle(ctx, battleID)
}

func (g *Gateway) SubmitResult(ctx context.Context, battleID, userID string, score int, timeMs int64) (domain.Settlement, error) {
	row := g.pool.QueryRow(ctx, `SELECT `+battleColumns+` FROM submit_quiz_battle_result($1, $2, $3, $4, $5)`,
		battleID, userID, score, timeMs, g.maxScore)
	b, err := scanBattle(row)
	if err != nil {
		return domain.Settlement{}, mapError("submit result", err)
	}
	return b.Settlement(), nil
}

func (g *Gateway) BattleStatus(ctx context.Context, battleID string) (domain.Settlement, error) {
	b, err := g.battle(ctx, battleID)
	if err != nil {
		return domain.Settlement{}, err
	}
	return b.Settlement(), nil
}

func (g *Gateway) PendingChallenges(ctx context.Context, userID string, since time.Time) ([]domain.Battle, error) {
	rows, err := g.pool.Query(ctx, `SELECT `+battleColumns+` FROM quiz_battles
		WHERE opponent_id = $1 AND status = 'pending' AND created_at >= $2
		ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, mapError("pending challenges", err)
	}
	defer rows.Close()
	var out []domain.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, mapError("pending challenges", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("pending challenges", err)
	}
	return out, nil
}

// DebitCoins fails with ErrInsufficientFunds rather than going negative.
func (g *Gateway) DebitCoins(ctx context.Context, userID string, amount int, reason, reference string) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidWager
	}
	var balance int
	err := g.pool.QueryRow(ctx, `SELECT debit_coins($1, $2, $3, $4)`, userID, amount, reason, reference).Scan(&balance)
	if err != nil {
		return 0, mapError("debit coins", err)
	}
	if balance < 0 {
		return 0, domain.ErrInsufficientFunds
	}
	return balance, nil
}

func (g *Gateway) CreditCoins(ctx context.Context, userID string, amount int, reason, reference string) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidWager
	}
	var balance int
	err := g.pool.QueryRow(ctx, `SELECT credit_coins($1, $2, $3, $4)`, userID, amount, reason, reference).Scan(&balance)
	if err != nil {
		return 0, mapError("credit coins", err)
	}
	return balance, nil
}

func (g *Gateway) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := g.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT balance FROM coin_balances WHERE user_id = $1), 0)`, userID).Scan(&balance)
	if err != nil {
		return 0, mapError("balance", err)
	}
	return balance, nil
}

func (g *Gateway) battle(ctx context.Context, battleID string) (domain.Battle, error) {
	row := g.pool.QueryRow(ctx, `SELECT `+battleColumns+` FROM quiz_battles WHERE id = $1`, battleID)
	b, err := scanBattle(row)
	if err != nil {
		return domain.Battle{}, mapError("load battle", err)
	}
	return b, nil
}

func scanBattle(row pgx.Row) (domain.Battle, error) {
	var (
		b      domain.Battle
		status string
	)
	err := row.Scan(&b.ID, &b.ChallengerID, &b.OpponentID, &b.CoinBet, &status,
		&b.ChallengerScore, &b.OpponentScore, &b.ChallengerTimeMs, &b.OpponentTimeMs,
		&b.WinnerID, &b.CreatedAt)
	if err != nil {
		return domain.Battle{}, err
	}
	b.Status = domain.BattleStatus(status)
	return b, nil
}

// mapError turns no-rows and the functions' custom SQLSTATEs into domain
// errors; anything else is wrapped as a transport failure.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrBattleNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := sqlErrors[pgErr.Code]; ok {
			return fmt.Errorf("%s: %w", op, mapped)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
