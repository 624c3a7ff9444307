/*
Package database uses SQLite to keep a catalogue of known FD1094 global keys
along with the boot vectors they were found with, and the results of key
searches run against each game.
*/
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/bodgit/fd1094/fd1094"
	"github.com/bodgit/fd1094/keysearch"

	// Database driver
	_ "github.com/mattn/go-sqlite3"
)

// Kinds of recorded match
const (
	KindGlobalKey = "gkey"
	KindSequence  = "sequence"
)

var errNoFile = errors.New("database: no file")

// Database holds the SQLite database handle
type Database struct {
	db *sql.DB
}

// Key is a known global key and the initial SP and PC it decodes the
// boot vectors to
type Key struct {
	Name   string
	Global fd1094.GlobalKey
	SP, PC uint32
}

// Match is a recorded search result. Generator is nil for a global key
// match
type Match struct {
	ID        int64
	Game      string
	Kind      string
	Global    fd1094.GlobalKey
	Generator *keysearch.Generator
	Seed      uint32
	BasePC    uint32
}

// NewDatabase opens an existing database or returns a new empty one
func NewDatabase(file string) (*Database, error) {
	if file == "" {
		return nil, errNoFile
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS global_key (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, global INTEGER NOT NULL, sp INTEGER NOT NULL, pc INTEGER NOT NULL)"); err != nil {
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS search_match (id INTEGER PRIMARY KEY NOT NULL, game TEXT NOT NULL, kind TEXT NOT NULL, global INTEGER NOT NULL, shift INTEGER, additive INTEGER, seed INTEGER, base_pc INTEGER)"); err != nil {
		return nil, err
	}

	return &Database{
		db: db,
	}, nil
}

// Close closes the database rendering it unusable
func (db *Database) Close() error {
	return db.db.Close()
}

// AddKey adds or replaces a known key
func (db *Database) AddKey(k Key) error {
	if _, err := db.db.Exec("INSERT OR REPLACE INTO global_key (name, global, sp, pc) VALUES (?, ?, ?, ?)", k.Name, k.Global.Uint32(), k.SP, k.PC); err != nil {
		return err
	}
	return nil
}

// FindKey returns the key stored under name
func (db *Database) FindKey(name string) (Key, bool, error) {
	var global, sp, pc int64
	switch err := db.db.QueryRow("SELECT global, sp, pc FROM global_key WHERE name = ?", name).Scan(&global, &sp, &pc); err {
	case sql.ErrNoRows:
		return Key{}, false, nil
	case nil:
		return Key{
			Name:   name,
			Global: fd1094.GlobalKeyFromUint32(uint32(global)),
			SP:     uint32(sp),
			PC:     uint32(pc),
		}, true, nil
	default:
		return Key{}, false, err
	}
}

// Keys returns every known key ordered by name
func (db *Database) Keys() ([]Key, error) {
	rows, err := db.db.Query("SELECT name, global, sp, pc FROM global_key ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var name string
		var global, sp, pc int64
		if err := rows.Scan(&name, &global, &sp, &pc); err != nil {
			return nil, err
		}
		keys = append(keys, Key{
			Name:   name,
			Global: fd1094.GlobalKeyFromUint32(uint32(global)),
			SP:     uint32(sp),
			PC:     uint32(pc),
		})
	}

	return keys, rows.Err()
}

func nullInt64(v int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}

// AddMatch records a search result and returns its ID
func (db *Database) AddMatch(m Match) (int64, error) {
	var shift, add, seed, basePC sql.NullInt64
	if m.Generator != nil {
		shift = nullInt64(int64(m.Generator.Shift), true)
		add = nullInt64(int64(m.Generator.Add), true)
		seed = nullInt64(int64(m.Seed), true)
		basePC = nullInt64(int64(m.BasePC), true)
	}

	result, err := db.db.Exec("INSERT INTO search_match (game, kind, global, shift, additive, seed, base_pc) VALUES (?, ?, ?, ?, ?, ?, ?)", m.Game, m.Kind, m.Global.Uint32(), shift, add, seed, basePC)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Matches returns the recorded results for game in the order they were
// added
func (db *Database) Matches(game string) ([]Match, error) {
	rows, err := db.db.Query("SELECT id, kind, global, shift, additive, seed, base_pc FROM search_match WHERE game = ? ORDER BY id", game)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var global int64
		var shift, add, seed, basePC sql.NullInt64
		m := Match{Game: game}
		if err := rows.Scan(&m.ID, &m.Kind, &global, &shift, &add, &seed, &basePC); err != nil {
			return nil, err
		}
		m.Global = fd1094.GlobalKeyFromUint32(uint32(global))

		if shift.Valid && add.Valid {
			m.Generator = &keysearch.Generator{
				Shift: int(shift.Int64),
				Add:   uint32(add.Int64),
			}
		}
		if seed.Valid {
			m.Seed = uint32(seed.Int64)
		}
		if basePC.Valid {
			m.BasePC = uint32(basePC.Int64)
		}

		matches = append(matches, m)
	}

	return matches, rows.Err()
}
