// Package testutil provides shared test utilities and fixtures.
//
// LMTFixture builds small Live Mouse Tracker databases on disk with the
// tables the reconstruct and confirm passes read: ANIMAL, DETECTION, FRAME
// and EVENT.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// lmtSchema is the subset of the LMT database layout used here. EVENT has
// no METADATA column, as in databases written by older LMT versions.
const lmtSchema = `
CREATE TABLE ANIMAL (
	ID       INTEGER PRIMARY KEY,
	RFID     TEXT,
	GENOTYPE TEXT,
	NAME     TEXT
);
CREATE TABLE DETECTION (
	ID          INTEGER PRIMARY KEY AUTOINCREMENT,
	FRAMENUMBER INTEGER,
	ANIMALID    INTEGER,
	MASS_X      REAL,
	MASS_Y      REAL,
	MASS_Z      REAL,
	REARING     INTEGER
);
CREATE TABLE FRAME (
	FRAMENUMBER INTEGER PRIMARY KEY,
	TIMESTAMP   INTEGER,
	NUMPARTICLE INTEGER,
	PAUSED      INTEGER
);
CREATE TABLE EVENT (
	ID          INTEGER PRIMARY KEY AUTOINCREMENT,
	NAME        TEXT,
	DESCRIPTION TEXT,
	STARTFRAME  INTEGER,
	ENDFRAME    INTEGER,
	IDANIMALA   INTEGER,
	IDANIMALB   INTEGER,
	IDANIMALC   INTEGER,
	IDANIMALD   INTEGER
);`

// LMTFixture is a writable LMT database for one test.
type LMTFixture struct {
	t    *testing.T
	Path string
	DB   *sql.DB
}

// NewLMTFixture creates name inside t.TempDir() with the LMT tables. The
// connection is closed when the test ends.
func NewLMTFixture(t *testing.T, name string) *LMTFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open fixture database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(lmtSchema); err != nil {
		t.Fatalf("Failed to create LMT schema: %v", err)
	}
	return &LMTFixture{t: t, Path: path, DB: db}
}

// AddAnimal inserts one ANIMAL row.
func (f *LMTFixture) AddAnimal(id int, rfid string) *LMTFixture {
	f.t.Helper()
	f.exec(`INSERT INTO ANIMAL (ID, RFID, GENOTYPE, NAME) VALUES (?, ?, ?, ?)`,
		id, rfid, "WT", "mouse"+rfid)
	return f
}

// AddFrames inserts frames [from, to] one camera period apart, starting at
// startMs epoch milliseconds. A zero startMs leaves TIMESTAMP NULL.
func (f *LMTFixture) AddFrames(from, to int, startMs int64) *LMTFixture {
	f.t.Helper()
	f.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO FRAME (FRAMENUMBER, TIMESTAMP, NUMPARTICLE, PAUSED) VALUES (?, ?, 0, 0)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for fr := from; fr <= to; fr++ {
			var ts interface{}
			if startMs != 0 {
				// 30 fps, rounded to whole milliseconds
				ts = startMs + int64(fr-from)*1000/30
			}
			if _, err := stmt.Exec(fr, ts); err != nil {
				return err
			}
		}
		return nil
	})
	return f
}

// Point is one positioned detection.
type Point struct {
	Frame int
	X, Y  float64
}

// AddDetections inserts positioned DETECTION rows for animalID.
func (f *LMTFixture) AddDetections(animalID int, points []Point) *LMTFixture {
	f.t.Helper()
	f.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO DETECTION (FRAMENUMBER, ANIMALID, MASS_X, MASS_Y, MASS_Z, REARING) VALUES (?, ?, ?, ?, 0, 0)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range points {
			if _, err := stmt.Exec(p.Frame, animalID, p.X, p.Y); err != nil {
				return err
			}
		}
		return nil
	})
	return f
}

// AddUnpositionedDetection inserts a DETECTION row with NULL mass
// coordinates. animalID 0 stores a NULL identity.
func (f *LMTFixture) AddUnpositionedDetection(frame, animalID int) *LMTFixture {
	f.t.Helper()
	var id interface{}
	if animalID != 0 {
		id = animalID
	}
	f.exec(`INSERT INTO DETECTION (FRAMENUMBER, ANIMALID) VALUES (?, ?)`, frame, id)
	return f
}

// AddEvent inserts an EVENT row for one animal.
func (f *LMTFixture) AddEvent(name string, animalID, start, end int) *LMTFixture {
	f.t.Helper()
	f.exec(`INSERT INTO EVENT (NAME, DESCRIPTION, STARTFRAME, ENDFRAME, IDANIMALA) VALUES (?, ?, ?, ?, ?)`,
		name, name, start, end, animalID)
	return f
}

// Walk returns points for frames [from, to) moving one unit per frame along
// x from x0.
func Walk(from, to int, x0 float64) []Point {
	var out []Point
	for fr := from; fr < to; fr++ {
		out = append(out, Point{Frame: fr, X: x0 + float64(fr-from), Y: 0})
	}
	return out
}

// Rest returns points for frames [from, to) jittering by 0.2 units around
// (x, y).
func Rest(from, to int, x, y float64) []Point {
	var out []Point
	for fr := from; fr < to; fr++ {
		p := Point{Frame: fr, X: x, Y: y}
		if fr%2 == 1 {
			p.Y += 0.2
		}
		out = append(out, p)
	}
	return out
}

func (f *LMTFixture) exec(query string, args ...interface{}) {
	f.t.Helper()
	if _, err := f.DB.Exec(query, args...); err != nil {
		f.t.Fatalf("fixture exec failed: %v\n%s", err, query)
	}
}

func (f *LMTFixture) inTx(fn func(*sql.Tx) error) {
	f.t.Helper()
	tx, err := f.DB.Begin()
	if err != nil {
		f.t.Fatalf("fixture begin failed: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		f.t.Fatalf("fixture write failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		f.t.Fatalf("fixture commit failed: %v", err)
	}
}
