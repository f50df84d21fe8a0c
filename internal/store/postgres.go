package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"gitea.kood.tech/petrkubec/genre-match/internal/similarity"
)

//go:embed schema.sql
var Schema string

const userColumns = `id, username, email, password_hash, COALESCE(avatar_hash, ''), interviewed, created_at, last_online`

var (
	genreColumns = lo.Map(similarity.Genres(), func(g similarity.Genre, _ int) string { return g.String() })

	// i.action, i.adventure, ...
	qualifiedGenreColumns = strings.Join(lo.Map(genreColumns, func(c string, _ int) string { return "i." + c }), ", ")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres is the lib/pq backed Store.
type Postgres struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // set on the copy handed out by InTx
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "open postgres")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "ping postgres")
	}
	return NewPostgres(db), nil
}

// NewPostgres wraps an already opened handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, q: db}
}

// DB exposes the underlying handle.
func (p *Postgres) DB() *sql.DB { return p.db }

// EnsureSchema creates the tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return errors.Annotate(err, "apply schema")
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u    User
		last sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarHash, &u.Interviewed, &u.CreatedAt, &last); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		u.LastOnline = &t
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	row := p.q.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		nu.Username, nu.Email, nu.PasswordHash)
	u, err := scanUser(row)
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return u, nil
}

// uniqueViolation maps 23505 on the users constraints to the exported conflicts.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		}
	}
	return errors.Annotate(err, "insert user")
}

func (p *Postgres) userBy(ctx context.Context, column string, value any) (*User, error) {
	row := p.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, userNotFound(column, value)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "select user by %s", column)
	}
	return u, nil
}

func (p *Postgres) UserByID(ctx context.Context, id int64) (*User, error) {
	return p.userBy(ctx, "id", id)
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*User, error) {
	return p.userBy(ctx, "email", email)
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (*User, error) {
	return p.userBy(ctx, "username", username)
}

func (p *Postgres) UsersByUsernames(ctx context.Context, usernames []string) (map[string]*User, error) {
	out := make(map[string]*User, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ANY($1)`, pq.Array(usernames))
	if err != nil {
		return nil, errors.Annotate(err, "select users")
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out[u.Username] = u
	}
	return out, errors.Trace(rows.Err())
}

func (p *Postgres) SubmitPoll(ctx context.Context, userID int64, v similarity.Vector) error {
	placeholders := make([]string, similarity.NumGenres)
	updates := make([]string, similarity.NumGenres)
	args := make([]any, 0, similarity.NumGenres+1)
	args = append(args, userID)
	for i, col := range genreColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		updates[i] = col + " = EXCLUDED." + col
		args = append(args, v[i])
	}
	upsert := fmt.Sprintf(`
		INSERT INTO interests (user_id, %s) VALUES ($1, %s)
		ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(genreColumns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	write := func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET interviewed = TRUE WHERE id = $1`, userID)
		if err != nil {
			return errors.Annotate(err, "mark interviewed")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return userNotFound("id", userID)
		}
		if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
			return errors.Annotate(err, "upsert interests")
		}
		return nil
	}
	if p.tx != nil {
		return write(p.tx)
	}
	return withTx(ctx, p.db, write)
}

// scanRatings fills a vector from nullable columns and reports which were NULL.
func scanRatings(ratings []sql.NullFloat64) (similarity.Vector, []similarity.Genre) {
	var (
		v       similarity.Vector
		missing []similarity.Genre
	)
	for i, r := range ratings {
		if !r.Valid {
			missing = append(missing, similarity.Genre(i))
			continue
		}
		v[i] = r.Float64
	}
	return v, missing
}

func ratingDests(ratings []sql.NullFloat64) []any {
	return lo.Map(ratings, func(_ sql.NullFloat64, i int) any { return &ratings[i] })
}

func (p *Postgres) Preferences(ctx context.Context, userID int64) (*similarity.Vector, error) {
	var (
		interviewed, hasPrefs bool
		ratings               = make([]sql.NullFloat64, similarity.NumGenres)
	)
	dest := append([]any{&interviewed, &hasPrefs}, ratingDests(ratings)...)
	err := p.q.QueryRowContext(ctx,
		`SELECT u.interviewed, i.user_id IS NOT NULL, `+qualifiedGenreColumns+`
		FROM users u LEFT JOIN interests i ON i.user_id = u.id
		WHERE u.id = $1`, userID).
		Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, userNotFound("id", userID)
	}
	if err != nil {
		return nil, errors.Annotate(err, "select preferences")
	}
	if !hasPrefs {
		if interviewed {
			return nil, errors.NotValidf("preferences of interviewed user %d (none stored)", userID)
		}
		return nil, errors.NotFoundf("preferences of user %d", userID)
	}
	v, missing := scanRatings(ratings)
	if len(missing) > 0 {
		return nil, errors.NotValidf("preferences of user %d (%d NULL ratings)", userID, len(missing))
	}
	return &v, nil
}

func (p *Postgres) TouchLastOnline(ctx context.Context, userID int64) error {
	_, err := p.q.ExecContext(ctx, `UPDATE users SET last_online = NOW() WHERE id = $1`, userID)
	return errors.Annotate(err, "touch last_online")
}

const profileSelect = `
	SELECT u.id, u.username, u.interviewed, i.user_id IS NOT NULL, `

func scanProfile(row rowScanner) (similarity.Profile, error) {
	var (
		pr       similarity.Profile
		hasPrefs bool
		ratings  = make([]sql.NullFloat64, similarity.NumGenres)
	)
	dest := append([]any{&pr.UserID, &pr.Username, &pr.Interviewed, &hasPrefs}, ratingDests(ratings)...)
	if err := row.Scan(dest...); err != nil {
		return pr, err
	}
	if hasPrefs {
		v, missing := scanRatings(ratings)
		pr.Vector = &v
		pr.Missing = missing
	}
	return pr, nil
}

// Profile implements similarity.Source.
func (p *Postgres) Profile(ctx context.Context, username string) (similarity.Profile, error) {
	row := p.q.QueryRowContext(ctx, profileSelect+qualifiedGenreColumns+`
		FROM users u LEFT JOIN interests i ON i.user_id = u.id
		WHERE u.username = $1`, username)
	pr, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return pr, userNotFound("username", username)
	}
	return pr, errors.Annotate(err, "select profile")
}

// Profiles implements similarity.Source.
func (p *Postgres) Profiles(ctx context.Context, excludeUserID int64) ([]similarity.Profile, error) {
	rows, err := p.q.QueryContext(ctx, profileSelect+qualifiedGenreColumns+`
		FROM users u LEFT JOIN interests i ON i.user_id = u.id
		WHERE u.id <> $1 AND (i.user_id IS NOT NULL OR u.interviewed)
		ORDER BY u.username`, excludeUserID)
	if err != nil {
		return nil, errors.Annotate(err, "select profiles")
	}
	defer rows.Close()

	var out []similarity.Profile
	for rows.Next() {
		pr, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, pr)
	}
	return out, errors.Trace(rows.Err())
}

var _ Store = (*Postgres)(nil)
