// Package sqlite persists allocation records per semester.
//
// Records come in two flavours. Pinned records were confirmed by an operator and survive every later run;
// unpinned records are the last engine output and are replaced wholesale by the next one. Promoting a record
// to pinned is done with Pin.
package sqlite

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/limaJavier/roomallocation/pkg/model"
)

const memory = ":memory:"

type Store struct {
	db *sqlx.DB
}

type recordRow struct {
	Semester  string `db:"semester"`
	Demand    uint64 `db:"demand_id"`
	Room      uint64 `db:"room_id"`
	Professor uint64 `db:"professor_id"`
	Pinned    bool   `db:"pinned"`
}

type slotRow struct {
	Semester string `db:"semester"`
	Demand   uint64 `db:"demand_id"`
	Day      uint64 `db:"day"`
	Block    uint64 `db:"block"`
}

// Open connects to the database at path, creating the schema when missing. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == memory {
		// Every connection to ":memory:" sees its own database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

func (store *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS allocation_records (
		semester TEXT NOT NULL,
		demand_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		professor_id INTEGER NOT NULL,
		pinned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (semester, demand_id)
	);

	CREATE TABLE IF NOT EXISTS allocation_slots (
		semester TEXT NOT NULL,
		demand_id INTEGER NOT NULL,
		day INTEGER NOT NULL,
		block INTEGER NOT NULL,
		PRIMARY KEY (semester, demand_id, day, block),
		FOREIGN KEY (semester, demand_id)
			REFERENCES allocation_records(semester, demand_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_allocation_records_pinned
		ON allocation_records(semester, pinned);
	`
	_, err := store.db.Exec(schema)
	return err
}

// Records returns every record of the semester ordered by demand
func (store *Store) Records(ctx context.Context, semester string) ([]model.AllocationRecord, error) {
	return store.records(ctx, semester, false)
}

// Pinned returns the pinned records of the semester ordered by demand
func (store *Store) Pinned(ctx context.Context, semester string) ([]model.AllocationRecord, error) {
	return store.records(ctx, semester, true)
}

func (store *Store) records(ctx context.Context, semester string, pinnedOnly bool) ([]model.AllocationRecord, error) {
	query := `SELECT semester, demand_id, room_id, professor_id, pinned
FROM allocation_records WHERE semester = ?`
	if pinnedOnly {
		query += ` AND pinned = 1`
	}
	query += ` ORDER BY demand_id ASC`

	var rows []recordRow
	if err := store.db.SelectContext(ctx, &rows, query, semester); err != nil {
		return nil, fmt.Errorf("list allocation records: %w", err)
	}

	const slotsQuery = `SELECT semester, demand_id, day, block
FROM allocation_slots WHERE semester = ? ORDER BY demand_id ASC, day ASC, block ASC`
	var slots []slotRow
	if err := store.db.SelectContext(ctx, &slots, slotsQuery, semester); err != nil {
		return nil, fmt.Errorf("list allocation slots: %w", err)
	}
	slotsByDemand := lo.GroupBy(slots, func(slot slotRow) uint64 { return slot.Demand })

	return lo.Map(rows, func(row recordRow, _ int) model.AllocationRecord {
		return model.AllocationRecord{
			Demand:    row.Demand,
			Room:      row.Room,
			Professor: row.Professor,
			Pinned:    row.Pinned,
			Slots: lo.Map(slotsByDemand[row.Demand], func(slot slotRow, _ int) model.TimeSlot {
				return model.TimeSlot{Day: slot.Day, Block: slot.Block}
			}),
		}
	}), nil
}

// Replace swaps the unpinned records of the semester for records. Pinned records already stored are kept
// untouched, and records for a demand that is pinned in the database are skipped. Records flagged as pinned
// are stored as pinned. It returns the number of records written.
func (store *Store) Replace(ctx context.Context, semester string, records []model.AllocationRecord) (int, error) {
	tx, err := store.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_records WHERE semester = ? AND pinned = 0`, semester); err != nil {
		return 0, fmt.Errorf("delete unpinned records: %w", err)
	}

	var kept []uint64
	if err := tx.SelectContext(ctx, &kept, `SELECT demand_id FROM allocation_records WHERE semester = ?`, semester); err != nil {
		return 0, fmt.Errorf("list pinned demands: %w", err)
	}

	const recordQuery = `
INSERT INTO allocation_records (semester, demand_id, room_id, professor_id, pinned)
VALUES (:semester, :demand_id, :room_id, :professor_id, :pinned)`
	const slotQuery = `
INSERT INTO allocation_slots (semester, demand_id, day, block)
VALUES (:semester, :demand_id, :day, :block)`

	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b model.AllocationRecord) int { return cmp.Compare(a.Demand, b.Demand) })

	written := 0
	for _, record := range sorted {
		if slices.Contains(kept, record.Demand) {
			continue
		}
		row := recordRow{
			Semester:  semester,
			Demand:    record.Demand,
			Room:      record.Room,
			Professor: record.Professor,
			Pinned:    record.Pinned,
		}
		if _, err := tx.NamedExecContext(ctx, recordQuery, row); err != nil {
			return 0, fmt.Errorf("insert allocation record %v: %w", record.Demand, err)
		}
		for _, slot := range record.Slots {
			slotRow := slotRow{Semester: semester, Demand: record.Demand, Day: slot.Day, Block: slot.Block}
			if _, err := tx.NamedExecContext(ctx, slotQuery, slotRow); err != nil {
				return 0, fmt.Errorf("insert allocation slot %v: %w", record.Demand, err)
			}
		}
		kept = append(kept, record.Demand)
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace transaction: %w", err)
	}
	return written, nil
}

// Pin promotes stored records of the semester to pinned and returns how many changed
func (store *Store) Pin(ctx context.Context, semester string, demands ...uint64) (int64, error) {
	if len(demands) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE allocation_records SET pinned = 1
WHERE semester = ? AND pinned = 0 AND demand_id IN (?)`, semester, demands)
	if err != nil {
		return 0, fmt.Errorf("build pin query: %w", err)
	}
	result, err := store.db.ExecContext(ctx, store.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("pin allocation records: %w", err)
	}
	return result.RowsAffected()
}
