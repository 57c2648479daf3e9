package db

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"stockboard/market"
)

var database *sql.DB

// InitDB opens the SQLite database and creates the schema
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS bars (
        id INTEGER PRIMARY KEY,
        symbol VARCHAR(20),
        interval VARCHAR(10),
        timestamp INTEGER,
        label TEXT,
        date TEXT,
        open REAL,
        high REAL,
        low REAL,
        close REAL,
        open_adj REAL,
        high_adj REAL,
        low_adj REAL,
        close_adj REAL,
        volume INTEGER,
        change REAL,
        change_pct REAL,
        flow_inst REAL,
        flow_retail REAL,
        UNIQUE(symbol, interval, timestamp)
    );
    CREATE TABLE IF NOT EXISTS indicators (
        id INTEGER PRIMARY KEY,
        symbol VARCHAR(20),
        interval VARCHAR(10),
        timestamp INTEGER,
        basis VARCHAR(10),
        ma5 REAL,
        ma10 REAL,
        ma20 REAL,
        ma60 REAL,
        rsi REAL,
        macd REAL,
        macd_signal REAL,
        macd_hist REAL,
        k REAL,
        d REAL,
        j REAL,
        UNIQUE(symbol, interval, timestamp, basis)
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close closes the underlying handle. Safe to call before InitDB.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// SaveSeries writes one enriched series, replacing any previously stored rows
// for the same (symbol, interval, timestamp)
func SaveSeries(symbol string, iv market.Interval, bars []market.EnrichedBar) error {
	if database == nil {
		return errors.New("database not initialized")
	}

	tx, err := database.Begin()
	if err != nil {
		return err
	}

	barStmt, err := tx.Prepare(`
        INSERT OR REPLACE INTO bars (
            symbol, interval, timestamp, label, date,
            open, high, low, close,
            open_adj, high_adj, low_adj, close_adj,
            volume, change, change_pct, flow_inst, flow_retail
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer barStmt.Close()

	indStmt, err := tx.Prepare(`
        INSERT OR REPLACE INTO indicators (
            symbol, interval, timestamp, basis,
            ma5, ma10, ma20, ma60, rsi,
            macd, macd_signal, macd_hist, k, d, j
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer indStmt.Close()

	for _, b := range bars {
		_, err = barStmt.Exec(
			symbol, string(iv), b.Timestamp, b.Label, b.Date,
			b.Open, b.High, b.Low, b.Close,
			b.OpenAdj, b.HighAdj, b.LowAdj, b.CloseAdj,
			b.Volume, b.Change, b.ChangePct, b.Flow.Institutional, b.Flow.Retail,
		)
		if err != nil {
			tx.Rollback()
			return err
		}

		for basis, set := range map[string]market.IndicatorSet{"raw": b.Raw, "adjusted": b.Adjusted} {
			_, err = indStmt.Exec(
				symbol, string(iv), b.Timestamp, basis,
				nullable(set.MA5), nullable(set.MA10), nullable(set.MA20), nullable(set.MA60),
				nullable(set.RSI),
				nullable(set.MACD), nullable(set.MACDSignal), nullable(set.MACDHist),
				nullable(set.K), nullable(set.D), nullable(set.J),
			)
			if err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	return tx.Commit()
}

// QuerySeries reads back the most recent limit bars for a symbol/interval in
// ascending timestamp order, with the raw-basis indicators joined on.
func QuerySeries(symbol string, iv market.Interval, limit int) ([]market.EnrichedBar, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 250
	}

	rows, err := database.Query(`
        SELECT b.timestamp, b.label, b.date,
               b.open, b.high, b.low, b.close,
               b.open_adj, b.high_adj, b.low_adj, b.close_adj,
               b.volume, b.change, b.change_pct, b.flow_inst, b.flow_retail,
               i.ma5, i.ma10, i.ma20, i.ma60, i.rsi,
               i.macd, i.macd_signal, i.macd_hist, i.k, i.d, i.j
        FROM bars b
        LEFT JOIN indicators i
            ON b.symbol = i.symbol AND b.interval = i.interval
           AND b.timestamp = i.timestamp AND i.basis = 'raw'
        WHERE b.symbol = ? AND b.interval = ?
        ORDER BY b.timestamp DESC
        LIMIT ?`, symbol, string(iv), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []market.EnrichedBar
	for rows.Next() {
		var b market.EnrichedBar
		var ma5, ma10, ma20, ma60, rsi sql.NullFloat64
		var macd, macdSignal, macdHist, k, d, j sql.NullFloat64
		err := rows.Scan(&b.Timestamp, &b.Label, &b.Date,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.OpenAdj, &b.HighAdj, &b.LowAdj, &b.CloseAdj,
			&b.Volume, &b.Change, &b.ChangePct, &b.Flow.Institutional, &b.Flow.Retail,
			&ma5, &ma10, &ma20, &ma60, &rsi,
			&macd, &macdSignal, &macdHist, &k, &d, &j)
		if err != nil {
			return nil, err
		}
		b.Raw.MA5 = optional(ma5)
		b.Raw.MA10 = optional(ma10)
		b.Raw.MA20 = optional(ma20)
		b.Raw.MA60 = optional(ma60)
		b.Raw.RSI = optional(rsi)
		b.Raw.MACD = optional(macd)
		b.Raw.MACDSignal = optional(macdSignal)
		b.Raw.MACDHist = optional(macdHist)
		b.Raw.K = optional(k)
		b.Raw.D = optional(d)
		b.Raw.J = optional(j)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stored newest-first for the LIMIT; callers expect chronological order.
	for i, jj := 0, len(bars)-1; i < jj; i, jj = i+1, jj-1 {
		bars[i], bars[jj] = bars[jj], bars[i]
	}
	return bars, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func optional(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Store adapts the package-level persistence functions to the pipeline's
// sink interface.
type Store struct{}

func (Store) SaveSeries(symbol string, iv market.Interval, bars []market.EnrichedBar) error {
	return SaveSeries(symbol, iv, bars)
}
