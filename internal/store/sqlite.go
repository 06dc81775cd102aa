package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB

	// Serializes the count+insert quota admission so two concurrent
	// questions cannot both pass the monthly cap check.
	quotaMu sync.Mutex
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        is_premium BOOLEAN DEFAULT FALSE,
        trial_start DATETIME NOT NULL,
        trial_days INTEGER NOT NULL,
        subscription_type TEXT,
        active_child_id TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS children (
        id TEXT PRIMARY KEY, -- UUID
        parent_id TEXT NOT NULL,
        name TEXT NOT NULL,
        gender TEXT NOT NULL CHECK (gender IN ('boy', 'girl')),
        birth_month INTEGER NOT NULL,
        birth_year INTEGER NOT NULL,
        complexity_level INTEGER NOT NULL DEFAULT 0 CHECK (complexity_level BETWEEN -2 AND 2),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (parent_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS responses (
        id TEXT PRIMARY KEY, -- UUID
        child_id TEXT NOT NULL,
        parent_id TEXT NOT NULL,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        child_name TEXT NOT NULL,
        child_age_months INTEGER NOT NULL,
        created_at DATETIME NOT NULL,
        feedback TEXT,
        regenerated BOOLEAN DEFAULT FALSE,
        FOREIGN KEY (child_id) REFERENCES children (id),
        FOREIGN KEY (parent_id) REFERENCES users (id)
    );

    CREATE INDEX IF NOT EXISTS idx_responses_parent_created ON responses (parent_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_responses_child_created ON responses (child_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(email, passwordHash, firstName, lastName string, trialDays int) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		TrialStart:   time.Now().UTC(),
		TrialDays:    trialDays,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.Exec(
		"INSERT INTO users (id, email, password_hash, first_name, last_name, is_premium, trial_start, trial_days, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, false, user.TrialStart, user.TrialDays, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, email, password_hash, first_name, last_name, is_premium, trial_start, trial_days, subscription_type, active_child_id, created_at FROM users WHERE email = ?", email))
}

func (s *SQLiteStore) GetUserByID(userID string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, email, password_hash, first_name, last_name, is_premium, trial_start, trial_days, subscription_type, active_child_id, created_at FROM users WHERE id = ?", userID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var subscriptionType, activeChildID sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.IsPremium, &user.TrialStart, &user.TrialDays, &subscriptionType, &activeChildID, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if subscriptionType.Valid {
		user.SubscriptionType = &subscriptionType.String
	}
	if activeChildID.Valid {
		user.ActiveChildID = &activeChildID.String
	}
	return &user, nil
}

// SetUserPremium flips the account to premium and clears the active child
// restriction so a later downgrade cannot resurrect a stale selection.
func (s *SQLiteStore) SetUserPremium(userID, subscriptionType string) error {
	res, err := s.db.Exec(
		"UPDATE users SET is_premium = TRUE, subscription_type = ?, active_child_id = NULL WHERE id = ?",
		subscriptionType, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, subscription not updated")
	}
	return nil
}

func (s *SQLiteStore) SetActiveChild(userID, childID string) error {
	res, err := s.db.Exec("UPDATE users SET active_child_id = ? WHERE id = ?", childID, userID)
	if err != nil {
		return fmt.Errorf("failed to update active child: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, active child not updated")
	}
	return nil
}

// Child methods

func (s *SQLiteStore) CreateChild(child *Child) error {
	child.ID = uuid.NewString()
	child.CreatedAt = time.Now().UTC()

	stmt, err := s.db.Prepare("INSERT INTO children (id, parent_id, name, gender, birth_month, birth_year, complexity_level, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare child insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(child.ID, child.ParentID, child.Name, child.Gender, child.BirthMonth, child.BirthYear, child.ComplexityLevel, child.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute child insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChild(childID, parentID string) (*Child, error) {
	var child Child
	err := s.db.QueryRow(
		"SELECT id, parent_id, name, gender, birth_month, birth_year, complexity_level, created_at FROM children WHERE id = ? AND parent_id = ?",
		childID, parentID,
	).Scan(&child.ID, &child.ParentID, &child.Name, &child.Gender, &child.BirthMonth, &child.BirthYear, &child.ComplexityLevel, &child.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return &child, nil
}

func (s *SQLiteStore) GetChildrenByParent(parentID string) ([]Child, error) {
	rows, err := s.db.Query(
		"SELECT id, parent_id, name, gender, birth_month, birth_year, complexity_level, created_at FROM children WHERE parent_id = ? ORDER BY created_at ASC",
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []Child
	for rows.Next() {
		var child Child
		if err := rows.Scan(&child.ID, &child.ParentID, &child.Name, &child.Gender, &child.BirthMonth, &child.BirthYear, &child.ComplexityLevel, &child.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child row: %w", err)
		}
		children = append(children, child)
	}
	return children, nil
}

func (s *SQLiteStore) CountChildren(parentID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM children WHERE parent_id = ?", parentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) DeleteChild(childID, parentID string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM children WHERE id = ? AND parent_id = ?", childID, parentID)
	if err != nil {
		return false, fmt.Errorf("failed to delete child: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// AdjustChildComplexity applies delta to the child's complexity level in a
// single statement so concurrent feedback events cannot race the
// read-modify-write, and the [-2, 2] clamp always holds. Returns the new level.
func (s *SQLiteStore) AdjustChildComplexity(childID string, delta int) (int, error) {
	res, err := s.db.Exec(
		"UPDATE children SET complexity_level = MAX(-2, MIN(2, complexity_level + ?)) WHERE id = ?",
		delta, childID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust complexity level: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return 0, fmt.Errorf("child not found, complexity not adjusted")
	}

	var level int
	err = s.db.QueryRow("SELECT complexity_level FROM children WHERE id = ?", childID).Scan(&level)
	if err != nil {
		return 0, fmt.Errorf("failed to read complexity level: %w", err)
	}
	return level, nil
}

// Response methods

func (s *SQLiteStore) CreateResponse(resp *Response) error {
	resp.ID = uuid.NewString()
	resp.CreatedAt = time.Now().UTC()

	stmt, err := s.db.Prepare("INSERT INTO responses (id, child_id, parent_id, question, answer, child_name, child_age_months, created_at, regenerated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare response insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(resp.ID, resp.ChildID, resp.ParentID, resp.Question, resp.Answer, resp.ChildName, resp.ChildAgeMonths, resp.CreatedAt, resp.Regenerated)
	if err != nil {
		return fmt.Errorf("failed to execute response insert: %w", err)
	}
	return nil
}

// CreateResponseCapped inserts the response only if the account has logged
// fewer than limit responses since the given instant. Count and insert run
// under one transaction so the monthly quota cannot be oversubscribed by
// concurrent requests. Returns false when the cap is already reached.
func (s *SQLiteStore) CreateResponseCapped(resp *Response, since time.Time, limit int) (bool, error) {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin quota transaction: %w", err)
	}

	var count int
	err = tx.QueryRow("SELECT COUNT(*) FROM responses WHERE parent_id = ? AND created_at >= ?", resp.ParentID, since).Scan(&count)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to count responses for quota: %w", err)
	}
	if count >= limit {
		tx.Rollback()
		return false, nil
	}

	resp.ID = uuid.NewString()
	resp.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(
		"INSERT INTO responses (id, child_id, parent_id, question, answer, child_name, child_age_months, created_at, regenerated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		resp.ID, resp.ChildID, resp.ParentID, resp.Question, resp.Answer, resp.ChildName, resp.ChildAgeMonths, resp.CreatedAt, resp.Regenerated,
	)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to execute capped response insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit capped response insert: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) CountResponsesSince(parentID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM responses WHERE parent_id = ? AND created_at >= ?", parentID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) GetResponse(responseID, parentID string) (*Response, error) {
	row := s.db.QueryRow(
		"SELECT id, child_id, parent_id, question, answer, child_name, child_age_months, created_at, feedback, regenerated FROM responses WHERE id = ? AND parent_id = ?",
		responseID, parentID,
	)
	return s.scanResponse(row)
}

func (s *SQLiteStore) scanResponse(row *sql.Row) (*Response, error) {
	var resp Response
	var feedback sql.NullString
	err := row.Scan(&resp.ID, &resp.ChildID, &resp.ParentID, &resp.Question, &resp.Answer,
		&resp.ChildName, &resp.ChildAgeMonths, &resp.CreatedAt, &feedback, &resp.Regenerated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	if feedback.Valid {
		resp.Feedback = &feedback.String
	}
	return &resp, nil
}

func (s *SQLiteStore) GetResponsesByChild(childID, parentID string, limit int) ([]Response, error) {
	rows, err := s.db.Query(
		"SELECT id, child_id, parent_id, question, answer, child_name, child_age_months, created_at, feedback, regenerated FROM responses WHERE child_id = ? AND parent_id = ? ORDER BY created_at DESC LIMIT ?",
		childID, parentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var resp Response
		var feedback sql.NullString
		if err := rows.Scan(&resp.ID, &resp.ChildID, &resp.ParentID, &resp.Question, &resp.Answer,
			&resp.ChildName, &resp.ChildAgeMonths, &resp.CreatedAt, &feedback, &resp.Regenerated); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		if feedback.Valid {
			resp.Feedback = &feedback.String
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *SQLiteStore) UpdateResponseFeedback(responseID, feedback string) error {
	res, err := s.db.Exec("UPDATE responses SET feedback = ? WHERE id = ?", feedback, responseID)
	if err != nil {
		return fmt.Errorf("failed to update response feedback: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("response not found, feedback not updated")
	}
	return nil
}

func (s *SQLiteStore) UpdateResponseAnswer(responseID, answer string) error {
	res, err := s.db.Exec("UPDATE responses SET answer = ?, regenerated = TRUE WHERE id = ?", answer, responseID)
	if err != nil {
		return fmt.Errorf("failed to update response answer: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("response not found, answer not updated")
	}
	return nil
}
