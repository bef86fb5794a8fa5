package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/mentor-queue/internal/domain"
)

// TicketRepository encapsulates ticket persistence and the claim lifecycle.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	Claim(ctx context.Context, id int64, mentorID, mentorName string) (*domain.Ticket, error)
	Unclaim(ctx context.Context, id int64) (*domain.Ticket, error)
	Resolve(ctx context.Context, id int64, actor ResolveActor) (*domain.ResolveResult, error)
	SubmitFeedback(ctx context.Context, id int64, rating float64, review string) (*domain.Ticket, error)
	ClaimedBy(ctx context.Context, mentorID string) (*int64, error)
}

// ResolveActor identifies who is resolving a ticket.
type ResolveActor struct {
	ID   string
	Name string
	// Creditable is true when the actor may be credited for resolving an
	// unclaimed ticket.
	Creditable bool
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.creator_id, t.creator_name, t.creator_email, t.claimant_id, t.claimant_name, t.resolved_by_id,
        t.question, t.content, t.location, t.tags, t.images, t.active, t.status,
        t.created_at, t.claimed_at, t.resolved_at, t.feedback_at,
        u.id, u.discord, u.phone, u.preferred
        FROM tickets t LEFT JOIN users u ON u.id = t.creator_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (creator_id, creator_name, creator_email, question, content, location, tags, images, active, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE,'unclaimed')
        RETURNING id, active, status, created_at`
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}
	if ticket.Images == nil {
		ticket.Images = []string{}
	}
	var status string
	if err := r.pool.QueryRow(ctx, query,
		ticket.CreatorID,
		ticket.CreatorName,
		ticket.CreatorEmail,
		ticket.Question,
		ticket.Content,
		ticket.Location,
		ticket.Tags,
		ticket.Images,
	).Scan(&ticket.ID, &ticket.Active, &status, &ticket.CreatedAt); err != nil {
		return err
	}
	ticket.Status = domain.StatusPtr(domain.TicketStatus(status))
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return fetchTicket(ctx, r.pool, id)
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        WHERE t.status IS DISTINCT FROM 'awaiting_feedback'
        ORDER BY t.created_at ASC, t.id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Claim assigns the ticket to the mentor with a single conditional update, so
// that concurrent claims of the same ticket have exactly one winner.
func (r *ticketRepository) Claim(ctx context.Context, id int64, mentorID, mentorName string) (*domain.Ticket, error) {
	const claimTicket = `
        UPDATE tickets SET claimant_id=$2, claimant_name=$3, claimed_at=NOW(), active=FALSE, status='claimed'
        WHERE id=$1 AND claimant_id IS NULL AND status IS DISTINCT FROM 'awaiting_feedback'`
	const pointMentor = `UPDATE users SET claimed_ticket_id=$1, updated_at=NOW() WHERE id=$2`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, claimTicket, id, mentorID, mentorName)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return classifyClaimMiss(ctx, tx, id)
		}
		_, err = tx.Exec(ctx, pointMentor, id, mentorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fetchTicket(ctx, r.pool, id)
}

func (r *ticketRepository) Unclaim(ctx context.Context, id int64) (*domain.Ticket, error) {
	const unclaimTicket = `
        WITH prev AS (
            SELECT id, claimant_id FROM tickets WHERE id=$1 AND claimant_id IS NOT NULL FOR UPDATE
        )
        UPDATE tickets t SET claimant_id=NULL, claimant_name=NULL, claimed_at=NULL, active=TRUE, status='unclaimed'
        FROM prev WHERE t.id = prev.id
        RETURNING prev.claimant_id`
	const clearMentor = `UPDATE users SET claimed_ticket_id=NULL, updated_at=NOW() WHERE id=$1 AND claimed_ticket_id=$2`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var previous string
		if err := tx.QueryRow(ctx, unclaimTicket, id).Scan(&previous); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if _, err := lockState(ctx, tx, id); err != nil {
					return err
				}
				return domain.ErrNotClaimed
			}
			return err
		}
		_, err := tx.Exec(ctx, clearMentor, previous, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fetchTicket(ctx, r.pool, id)
}

// Resolve moves the ticket to awaiting_feedback and credits the claimant, or
// a creditable actor when nobody had claimed it.
func (r *ticketRepository) Resolve(ctx context.Context, id int64, actor ResolveActor) (*domain.ResolveResult, error) {
	const resolveTicket = `
        UPDATE tickets SET status='awaiting_feedback', active=FALSE, resolved_at=NOW(),
            resolved_by_id=$2, claimant_name=COALESCE(claimant_name, $3), claimant_id=NULL
        WHERE id=$1`
	const creditMentor = `UPDATE users SET resolved_tickets=resolved_tickets+1, updated_at=NOW() WHERE id=$1`
	const clearPointers = `UPDATE users SET claimed_ticket_id=NULL, updated_at=NOW() WHERE claimed_ticket_id=$1`

	var credited *string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		state, err := lockState(ctx, tx, id)
		if err != nil {
			return err
		}
		if state.status != nil && *state.status == string(domain.TicketStatusAwaitingFeedback) {
			return domain.ErrAlreadyResolved
		}

		var creditedName *string
		switch {
		case state.claimantID != nil:
			credited = state.claimantID
		case actor.Creditable && actor.ID != "":
			credited = &actor.ID
			creditedName = &actor.Name
		}

		if _, err := tx.Exec(ctx, resolveTicket, id, credited, creditedName); err != nil {
			return err
		}
		if credited != nil {
			if _, err := tx.Exec(ctx, creditMentor, *credited); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, clearPointers, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	ticket, err := fetchTicket(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return &domain.ResolveResult{Ticket: ticket, CreditedTo: credited}, nil
}

// SubmitFeedback records feedback once per resolved ticket and appends the
// rating and review to the resolving mentor.
func (r *ticketRepository) SubmitFeedback(ctx context.Context, id int64, rating float64, review string) (*domain.Ticket, error) {
	const markTicket = `
        UPDATE tickets SET feedback_at=NOW()
        WHERE id=$1 AND status='awaiting_feedback' AND feedback_at IS NULL
        RETURNING resolved_by_id`
	const rateMentor = `
        UPDATE users SET ratings=array_append(ratings, $2::numeric(2,1)),
            reviews=CASE WHEN $3::text = '' THEN reviews ELSE array_append(reviews, $3::text) END,
            updated_at=NOW()
        WHERE id=$1`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var mentorID *string
		if err := tx.QueryRow(ctx, markTicket, id).Scan(&mentorID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyFeedbackMiss(ctx, tx, id)
			}
			return err
		}
		if mentorID == nil {
			return nil
		}
		_, err := tx.Exec(ctx, rateMentor, *mentorID, rating, review)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fetchTicket(ctx, r.pool, id)
}

func (r *ticketRepository) ClaimedBy(ctx context.Context, mentorID string) (*int64, error) {
	const query = `
        SELECT id FROM tickets WHERE claimant_id=$1 AND status='claimed'
        ORDER BY claimed_at DESC LIMIT 1`
	var id int64
	if err := r.pool.QueryRow(ctx, query, mentorID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

type ticketState struct {
	claimantID  *string
	status      *string
	hasFeedback bool
}

func lockState(ctx context.Context, tx pgx.Tx, id int64) (*ticketState, error) {
	const query = `SELECT claimant_id, status, feedback_at IS NOT NULL FROM tickets WHERE id=$1 FOR UPDATE`
	var state ticketState
	if err := tx.QueryRow(ctx, query, id).Scan(&state.claimantID, &state.status, &state.hasFeedback); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return &state, nil
}

func classifyClaimMiss(ctx context.Context, tx pgx.Tx, id int64) error {
	state, err := lockState(ctx, tx, id)
	if err != nil {
		return err
	}
	if state.status != nil && *state.status == string(domain.TicketStatusAwaitingFeedback) {
		return domain.ErrAlreadyResolved
	}
	return domain.ErrAlreadyClaimed
}

func classifyFeedbackMiss(ctx context.Context, tx pgx.Tx, id int64) error {
	state, err := lockState(ctx, tx, id)
	if err != nil {
		return err
	}
	if state.hasFeedback {
		return domain.ErrFeedbackSubmitted
	}
	return domain.ErrNotResolved
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func fetchTicket(ctx context.Context, db querier, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` WHERE t.id=$1`
	ticket, err := scanTicket(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket    domain.Ticket
		status    *string
		contactID *string
		discord   *string
		phone     *string
		preferred *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CreatorID,
		&ticket.CreatorName,
		&ticket.CreatorEmail,
		&ticket.ClaimantID,
		&ticket.ClaimantName,
		&ticket.ResolvedByID,
		&ticket.Question,
		&ticket.Content,
		&ticket.Location,
		&ticket.Tags,
		&ticket.Images,
		&ticket.Active,
		&status,
		&ticket.CreatedAt,
		&ticket.ClaimedAt,
		&ticket.ResolvedAt,
		&ticket.FeedbackAt,
		&contactID,
		&discord,
		&phone,
		&preferred,
	); err != nil {
		return nil, err
	}
	if status != nil {
		ticket.Status = domain.StatusPtr(domain.TicketStatus(*status))
	}
	if contactID != nil {
		ticket.Creator = &domain.UserContact{
			Discord:   deref(discord),
			Phone:     deref(phone),
			Preferred: preferredPtr(preferred),
		}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func preferredPtr(s *string) *domain.PreferredContact {
	if s == nil || *s == "" {
		return nil
	}
	p := domain.PreferredContact(*s)
	return &p
}
