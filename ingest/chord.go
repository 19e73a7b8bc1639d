package ingest

import (
	"database/sql"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
)

// chordQuery reads the successor pointers a Chord peer stores about the ring.
const chordQuery = `SELECT self, successor FROM chord`

// LoadChordTable reads links from the chord(self, successor) table of a
// SQLite database. Rows with a NULL or empty successor are skipped, as a
// peer that has not yet joined the ring has none.
func LoadChordTable(path string) ([]models.Link, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "database %s", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open %s", path)
	}
	defer db.Close()

	rows, err := db.Query(chordQuery)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "query chord table in %s", path)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var self, successor sql.NullString
		if err := rows.Scan(&self, &successor); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "scan chord row")
		}
		if !self.Valid || !successor.Valid || successor.String == "" {
			continue
		}
		links = append(links, models.Link{Source: self.String, Target: successor.String})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read chord table")
	}
	return links, nil
}
