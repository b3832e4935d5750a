package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/signal"
)

// ClickHouseConfig holds connection settings for the ClickHouse store.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouse implements SnapshotStore and AlertStore on a ClickHouse
// cluster. Snapshots are stored one row per contract.
type ClickHouse struct {
	db     *sql.DB
	logger *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS option_snapshots (
		symbol            String,
		snapshot_time     DateTime64(3, 'UTC'),
		underlying_price  Float64,
		strike            Float64,
		type              String,
		bid               Float64,
		ask               Float64,
		last              Float64,
		volume            Int64,
		open_interest     Int64,
		delta             Float64,
		gamma             Float64,
		theta             Float64,
		vega              Float64,
		implied_volatility Float64,
		expiration_date   String
	) ENGINE = MergeTree()
	ORDER BY (symbol, snapshot_time, strike, type)`,

	`CREATE TABLE IF NOT EXISTS trade_alerts (
		id               String,
		strategy         String,
		underlying       String,
		generated_at     DateTime64(3, 'UTC'),
		status           String,
		alert_data       String,
		quality_score    Int32,
		quality_level    String,
		risk_level       String,
		quality_metadata String,
		exit_criteria    String,
		result           String DEFAULT '',
		realized_pnl     Float64 DEFAULT 0,
		closed_at_price  Float64 DEFAULT 0
	) ENGINE = MergeTree()
	ORDER BY id`,
}

// NewClickHouse opens a connection pool, pings it and ensures the schema
// exists.
func NewClickHouse(cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouse, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?dial_timeout=5s&read_timeout=10s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	s := &ClickHouse{db: db, logger: logger}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ClickHouse) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouse) Close() error {
	return s.db.Close()
}

func (s *ClickHouse) SaveSnapshot(ctx context.Context, at time.Time, ch *chain.Chain) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO option_snapshots (
		symbol, snapshot_time, underlying_price, strike, type, bid, ask, last,
		volume, open_interest, delta, gamma, theta, vega, implied_volatility,
		expiration_date) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ct := range ch.Contracts {
		if _, err := stmt.ExecContext(ctx,
			ch.Symbol, at, ch.UnderlyingPrice,
			ct.Strike, string(ct.Type), ct.Bid, ct.Ask, ct.Last,
			ct.Volume, ct.OpenInterest, ct.Delta, ct.Gamma, ct.Theta, ct.Vega,
			ct.ImpliedVolatility, ct.ExpirationDate,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert contract row: %w", err)
		}
	}
	return tx.Commit()
}

func (s *ClickHouse) SnapshotTimes(ctx context.Context, symbol string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT snapshot_time FROM option_snapshots WHERE symbol = ? ORDER BY snapshot_time ASC`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("query snapshot times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan snapshot time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *ClickHouse) ChainAt(ctx context.Context, symbol string, at time.Time) (*chain.Chain, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT underlying_price, strike, type, bid, ask, last, volume,
		        open_interest, delta, gamma, theta, vega, implied_volatility,
		        expiration_date
		 FROM option_snapshots
		 WHERE symbol = ? AND snapshot_time = ?
		 ORDER BY strike ASC, type ASC`,
		symbol, at)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	ch := &chain.Chain{Symbol: symbol}
	for rows.Next() {
		var ct chain.Contract
		var typ string
		if err := rows.Scan(&ch.UnderlyingPrice, &ct.Strike, &typ, &ct.Bid,
			&ct.Ask, &ct.Last, &ct.Volume, &ct.OpenInterest, &ct.Delta,
			&ct.Gamma, &ct.Theta, &ct.Vega, &ct.ImpliedVolatility,
			&ct.ExpirationDate); err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		ct.Type = chain.OptionType(typ)
		ch.Contracts = append(ch.Contracts, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ch.Contracts) == 0 {
		return nil, ErrNoSnapshots
	}
	return ch, nil
}

func (s *ClickHouse) InsertIfAbsent(ctx context.Context, alert signal.Alert) (bool, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT count() FROM trade_alerts WHERE id = ?`, alert.ID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check alert existence: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	alertData, err := json.Marshal(alert)
	if err != nil {
		return false, fmt.Errorf("marshal alert: %w", err)
	}
	metadata, _ := json.Marshal(map[string]any{
		"qualityScore": alert.QualityScore,
		"qualityLevel": alert.QualityLevel,
		"riskLevel":    alert.RiskLevel,
		"tag":          alert.Tag,
	})
	exitCriteria, _ := json.Marshal(map[string]any{
		"shortPut":   alert.ShortStrikeFor("PUT"),
		"shortCall":  alert.ShortStrikeFor("CALL"),
		"validUntil": alert.ValidUntil,
	})

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trade_alerts (id, strategy, underlying, generated_at,
		 status, alert_data, quality_score, quality_level, risk_level,
		 quality_metadata, exit_criteria) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, string(alert.Strategy), alert.Symbol, alert.GeneratedAt,
		string(alert.Status), string(alertData), int32(alert.QualityScore),
		string(alert.QualityLevel), string(alert.RiskLevel),
		string(metadata), string(exitCriteria))
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

func (s *ClickHouse) Settle(ctx context.Context, id, result string, realizedPnl, closedAtPrice float64) (bool, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT count() FROM trade_alerts WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check alert existence: %w", err)
	}
	if count == 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`ALTER TABLE trade_alerts UPDATE
		 result = ?, realized_pnl = ?, closed_at_price = ?, status = ?
		 WHERE id = ?`,
		result, realizedPnl, closedAtPrice, string(signal.StatusExpired), id)
	if err != nil {
		return false, fmt.Errorf("settle alert: %w", err)
	}
	return true, nil
}

func (s *ClickHouse) Get(ctx context.Context, id string) (*signal.Alert, error) {
	var alertData string
	err := s.db.QueryRowContext(ctx,
		`SELECT alert_data FROM trade_alerts WHERE id = ? LIMIT 1`, id).Scan(&alertData)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query alert: %w", err)
	}

	var alert signal.Alert
	if err := json.Unmarshal([]byte(alertData), &alert); err != nil {
		return nil, fmt.Errorf("unmarshal alert: %w", err)
	}
	return &alert, nil
}
