package telemetry

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// TransitionModel is one row of the append-only transition audit trail.
// It is a record of what happened, not a resumable snapshot — SPEC_FULL.md
// explicitly scopes crash recovery out; replaying a plan from this table
// would need the full expression graph, which this table does not carry.
type TransitionModel struct {
	bun.BaseModel `bun:"table:node_transitions,alias:nt"`

	ID        uuid.UUID `bun:"id,pk"`
	PlanID    string    `bun:"plan_id"`
	NodeID    string    `bun:"node_id"`
	State     string    `bun:"state"`
	Outcome   string    `bun:"outcome"`
	Failure   string    `bun:"failure"`
	EnteredAt time.Time `bun:"entered_at"`
}

// AuditStore persists TransitionEvents to Postgres via bun, one row per
// committed transition. It implements TransitionObserver so a Scheduler
// can be wired straight to it without knowing it exists.
type AuditStore struct {
	db *bun.DB
}

// NewAuditStore opens a pgdriver connection and wraps it in bun with the
// Postgres dialect.
func NewAuditStore(dsn string) *AuditStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &AuditStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the transition table if it does not already exist.
func (a *AuditStore) InitSchema(ctx context.Context) error {
	_, err := a.db.NewCreateTable().Model((*TransitionModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// ObserveTransition appends one row. An insert error is discarded: it is
// neither returned nor logged, so an audit write failure never blocks
// the scheduler's drain loop.
func (a *AuditStore) ObserveTransition(e TransitionEvent) {
	row := &TransitionModel{
		ID:        uuid.New(),
		PlanID:    e.PlanID,
		NodeID:    e.NodeID,
		State:     e.State.String(),
		Outcome:   e.Outcome.String(),
		Failure:   e.Failure.String(),
		EnteredAt: e.Timestamp,
	}
	_, _ = a.db.NewInsert().Model(row).Exec(context.Background())
}

// History returns every recorded transition for planID, oldest first.
func (a *AuditStore) History(ctx context.Context, planID string) ([]TransitionModel, error) {
	var rows []TransitionModel
	err := a.db.NewSelect().Model(&rows).Where("plan_id = ?", planID).Order("entered_at ASC").Scan(ctx)
	return rows, err
}
