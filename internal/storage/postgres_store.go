package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/last-mile-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveOrder(ctx context.Context, o models.Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders(id, pickup_id, pickup_lon, pickup_lat, dropoff_lon, dropoff_lat, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.PickupID, o.Pickup.Lon, o.Pickup.Lat, o.Dropoff.Lon, o.Dropoff.Lat, o.Status, o.CreatedAt)
	return err
}

func (p *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	_, err := p.db.ExecContext(ctx, `UPDATE orders SET status=$1, updated_at=$2 WHERE id=$3`,
		status, time.Now().UTC(), orderID)
	return err
}

func (p *PostgresStore) SaveJob(ctx context.Context, j models.Job) error {
	stops, err := json.Marshal(j.Stops)
	if err != nil {
		return err
	}
	orderIDs, err := json.Marshal(j.OrderIDs)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO jobs(id, job_type, order_ids, stops, total_time_seconds, eta_seconds, detour_factor, savings_seconds, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,'OFFERING',$9)`,
		j.ID, j.JobType, orderIDs, stops, j.TotalTimeSeconds, j.ETA, j.DetourFactor, j.SavingsSeconds, j.CreatedAt)
	return err
}

func (p *PostgresStore) GetJob(ctx context.Context, jobID string) (models.Job, bool, error) {
	var j models.Job
	var orderIDs, stops []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT id, job_type, order_ids, stops, total_time_seconds, eta_seconds, detour_factor, savings_seconds, created_at
		FROM jobs WHERE id=$1`, jobID).
		Scan(&j.ID, &j.JobType, &orderIDs, &stops, &j.TotalTimeSeconds, &j.ETA, &j.DetourFactor, &j.SavingsSeconds, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, err
	}
	if err := json.Unmarshal(orderIDs, &j.OrderIDs); err != nil {
		return models.Job{}, false, err
	}
	if err := json.Unmarshal(stops, &j.Stops); err != nil {
		return models.Job{}, false, err
	}
	return j, true, nil
}

// TryClaimJob is the conditional-update flavor of the job lock: the WHERE
// clause makes the claim atomic across every process sharing the database.
func (p *PostgresStore) TryClaimJob(ctx context.Context, jobID, driverID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET assigned_driver_id=$1, status='ASSIGNED', updated_at=$2
		WHERE id=$3 AND assigned_driver_id IS NULL`,
		driverID, time.Now().UTC(), jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) UpdateDriver(ctx context.Context, d models.Driver) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO drivers(id, lon, lat, status, max_capacity, push_token, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			lon=EXCLUDED.lon, lat=EXCLUDED.lat, status=EXCLUDED.status,
			max_capacity=EXCLUDED.max_capacity, push_token=EXCLUDED.push_token,
			updated_at=EXCLUDED.updated_at`,
		d.ID, d.Location.Lon, d.Location.Lat, d.Status, d.MaxCapacity, d.PushToken, time.Now().UTC())
	return err
}
