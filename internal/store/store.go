package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wacli/wacli/internal/errs"
)

type DB struct {
	path       string
	sql        *sql.DB
	ftsEnabled bool
}

func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &DB{path: path, sql: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *DB) init() error {
	// Pragmas: keep consistent for writers/readers.
	_, _ = d.sql.Exec("PRAGMA journal_mode=WAL;")
	_, _ = d.sql.Exec("PRAGMA synchronous=NORMAL;")
	_, _ = d.sql.Exec("PRAGMA temp_store=MEMORY;")
	_, _ = d.sql.Exec("PRAGMA foreign_keys=ON;")

	if err := d.ensureSchema(); err != nil {
		return err
	}
	// The FTS migration only runs on the first open; detect the index on
	// every open so reopened stores keep using it.
	if ok, err := d.tableExists("messages_fts"); err == nil && ok {
		d.ftsEnabled = true
	}
	return nil
}

// --- domain types + helpers

type Chat struct {
	JID           string
	Kind          string
	Name          string
	LastMessageTS time.Time
}

type Group struct {
	JID       string
	Name      string
	OwnerJID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GroupParticipant struct {
	GroupJID  string
	UserJID   string
	Role      string
	UpdatedAt time.Time
}

type MediaDownloadInfo struct {
	ChatJID       string
	ChatName      string
	MsgID         string
	MediaType     string
	Filename      string
	MimeType      string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
	LocalPath     string
	DownloadedAt  time.Time
}

type Message struct {
	ChatJID       string
	ChatName      string
	MsgID         string
	SenderJID     string
	Timestamp     time.Time
	FromMe        bool
	Text          string
	DisplayText   string
	MediaType     string
	ReactionToID  string
	ReactionEmoji string
	Snippet       string
}

// IsReaction reports whether this row is a reaction rather than a message:
// a reaction carries empty text/media and points at its target via
// ReactionToID.
func (m Message) IsReaction() bool { return m.ReactionToID != "" }

// Reaction is a single reaction row read back against the message it
// targets, used by `messages show` to list who reacted and with what.
type Reaction struct {
	SenderJID  string
	SenderName string
	Emoji      string
	Timestamp  time.Time
}

type MessageInfo struct {
	ChatJID    string
	MsgID      string
	Timestamp  time.Time
	FromMe     bool
	SenderJID  string
	SenderName string
}

type Contact struct {
	JID       string
	Phone     string
	Name      string
	Alias     string
	Tags      []string
	UpdatedAt time.Time
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *DB) UpsertChat(jid, kind, name string, lastTS time.Time) error {
	if strings.TrimSpace(kind) == "" {
		kind = "unknown"
	}
	_, err := d.sql.Exec(`
		INSERT INTO chats(jid, kind, name, last_message_ts)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			kind=excluded.kind,
			name=CASE WHEN excluded.name IS NOT NULL AND excluded.name != '' THEN excluded.name ELSE chats.name END,
			last_message_ts=CASE WHEN excluded.last_message_ts > COALESCE(chats.last_message_ts, 0) THEN excluded.last_message_ts ELSE chats.last_message_ts END
	`, jid, kind, name, unix(lastTS))
	return err
}

func nullIfEmpty(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

type SearchMessagesParams struct {
	Query            string
	ChatJID          string
	From             string
	Limit            int
	Before           *time.Time
	After            *time.Time
	Type             string
	IncludeReactions bool
}

func (d *DB) SearchMessages(p SearchMessagesParams) ([]Message, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, errs.New(errs.InvalidArgument, "query is required")
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}

	if d.ftsEnabled {
		return d.searchFTS(p)
	}
	return d.searchLIKE(p)
}

func (d *DB) searchLIKE(p SearchMessagesParams) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `, ''
		` + messageFromClause + `
		WHERE (LOWER(m.text) LIKE LOWER(?) OR LOWER(m.media_caption) LIKE LOWER(?) OR LOWER(m.filename) LIKE LOWER(?) OR LOWER(COALESCE(m.chat_name,'')) LIKE LOWER(?) OR LOWER(COALESCE(m.sender_name,'')) LIKE LOWER(?) OR LOWER(COALESCE(c.name,'')) LIKE LOWER(?))`
	needle := "%" + p.Query + "%"
	args := []interface{}{needle, needle, needle, needle, needle, needle}
	query, args = applyMessageFilters(query, args, p)
	query += " ORDER BY m.ts DESC LIMIT ?"
	args = append(args, p.Limit)
	return d.scanMessages(query, args...)
}

func (d *DB) searchFTS(p SearchMessagesParams) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `,
		       snippet(messages_fts, 0, '[', ']', 'â€¦', 12)
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE messages_fts MATCH ?`
	args := []interface{}{p.Query}
	query, args = applyMessageFilters(query, args, p)
	query += " ORDER BY bm25(messages_fts) LIMIT ?"
	args = append(args, p.Limit)
	return d.scanMessages(query, args...)
}

// applyMessageFilters layers the shared chat/sender/time/type filters onto
// a search query. Type == "reaction" switches the search from messages to
// reactions left on them; any other non-empty Type filters by media_type
// as before. Reaction rows are otherwise excluded unless IncludeReactions
// or an explicit reaction Type asks for them.
func applyMessageFilters(query string, args []interface{}, p SearchMessagesParams) (string, []interface{}) {
	if strings.TrimSpace(p.ChatJID) != "" {
		query += " AND m.chat_jid = ?"
		args = append(args, p.ChatJID)
	}
	if strings.TrimSpace(p.From) != "" {
		query += " AND m.sender_jid = ?"
		args = append(args, p.From)
	}
	if p.After != nil {
		query += " AND m.ts > ?"
		args = append(args, unix(*p.After))
	}
	if p.Before != nil {
		query += " AND m.ts < ?"
		args = append(args, unix(*p.Before))
	}
	wantsReactions := strings.EqualFold(strings.TrimSpace(p.Type), "reaction")
	switch {
	case wantsReactions:
		query += " AND COALESCE(m.reaction_to_id,'') != ''"
	case strings.TrimSpace(p.Type) != "":
		query += " AND COALESCE(m.media_type,'') = ?"
		args = append(args, p.Type)
	}
	if !wantsReactions {
		query = reactionFilter(query, p.IncludeReactions)
	}
	return query, args
}

func (d *DB) GetMediaDownloadInfo(chatJID, msgID string) (MediaDownloadInfo, error) {
	row := d.sql.QueryRow(`
		SELECT m.chat_jid,
		       COALESCE(c.name,''),
		       m.msg_id,
		       COALESCE(m.media_type,''),
		       COALESCE(m.filename,''),
		       COALESCE(m.mime_type,''),
		       COALESCE(m.direct_path,''),
		       m.media_key,
		       m.file_sha256,
		       m.file_enc_sha256,
		       COALESCE(m.file_length,0),
		       COALESCE(m.local_path,''),
		       COALESCE(m.downloaded_at,0)
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE m.chat_jid = ? AND m.msg_id = ?
	`, chatJID, msgID)

	var info MediaDownloadInfo
	var fileLen sql.NullInt64
	var downloadedAt int64
	if err := row.Scan(
		&info.ChatJID,
		&info.ChatName,
		&info.MsgID,
		&info.MediaType,
		&info.Filename,
		&info.MimeType,
		&info.DirectPath,
		&info.MediaKey,
		&info.FileSHA256,
		&info.FileEncSHA256,
		&fileLen,
		&info.LocalPath,
		&downloadedAt,
	); err != nil {
		return MediaDownloadInfo{}, err
	}
	if fileLen.Valid && fileLen.Int64 > 0 {
		info.FileLength = uint64(fileLen.Int64)
	}
	info.DownloadedAt = fromUnix(downloadedAt)
	return info, nil
}

func (d *DB) MarkMediaDownloaded(chatJID, msgID, localPath string, downloadedAt time.Time) error {
	_, err := d.sql.Exec(`
		UPDATE messages
		SET local_path = ?, downloaded_at = ?
		WHERE chat_jid = ? AND msg_id = ?
	`, localPath, unix(downloadedAt), chatJID, msgID)
	return err
}

func (d *DB) ListChats(query string, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT jid, kind, COALESCE(name,''), COALESCE(last_message_ts,0) FROM chats WHERE 1=1`
	var args []interface{}
	if strings.TrimSpace(query) != "" {
		q += ` AND (LOWER(name) LIKE LOWER(?) OR LOWER(jid) LIKE LOWER(?))`
		needle := "%" + query + "%"
		args = append(args, needle, needle)
	}
	q += ` ORDER BY last_message_ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.sql.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chat
	for rows.Next() {
		var c Chat
		var ts int64
		if err := rows.Scan(&c.JID, &c.Kind, &c.Name, &ts); err != nil {
			return nil, err
		}
		c.LastMessageTS = fromUnix(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetChat(jid string) (Chat, error) {
	row := d.sql.QueryRow(`SELECT jid, kind, COALESCE(name,''), COALESCE(last_message_ts,0) FROM chats WHERE jid = ?`, jid)
	var c Chat
	var ts int64
	if err := row.Scan(&c.JID, &c.Kind, &c.Name, &ts); err != nil {
		return Chat{}, err
	}
	c.LastMessageTS = fromUnix(ts)
	return c, nil
}

func (d *DB) SearchContacts(query string, limit int) ([]Contact, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.New(errs.InvalidArgument, "query is required")
	}
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT c.jid,
		       COALESCE(c.phone,''),
		       COALESCE(NULLIF(a.alias,''), ''),
		       COALESCE(NULLIF(c.full_name,''), NULLIF(c.push_name,''), NULLIF(c.business_name,''), NULLIF(c.first_name,''), ''),
		       c.updated_at
		FROM contacts c
		LEFT JOIN contact_aliases a ON a.jid = c.jid
		WHERE LOWER(COALESCE(a.alias,'')) LIKE LOWER(?) OR LOWER(COALESCE(c.full_name,'')) LIKE LOWER(?) OR LOWER(COALESCE(c.push_name,'')) LIKE LOWER(?) OR LOWER(COALESCE(c.phone,'')) LIKE LOWER(?) OR LOWER(c.jid) LIKE LOWER(?)
		ORDER BY COALESCE(NULLIF(a.alias,''), NULLIF(c.full_name,''), NULLIF(c.push_name,''), c.jid)
		LIMIT ?`
	needle := "%" + query + "%"
	rows, err := d.sql.Query(q, needle, needle, needle, needle, needle, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		var c Contact
		var updated int64
		if err := rows.Scan(&c.JID, &c.Phone, &c.Alias, &c.Name, &updated); err != nil {
			return nil, err
		}
		c.UpdatedAt = fromUnix(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetContact(jid string) (Contact, error) {
	row := d.sql.QueryRow(`
		SELECT c.jid,
		       COALESCE(c.phone,''),
		       COALESCE(NULLIF(a.alias,''), ''),
		       COALESCE(NULLIF(c.full_name,''), NULLIF(c.push_name,''), NULLIF(c.business_name,''), NULLIF(c.first_name,''), ''),
		       c.updated_at
		FROM contacts c
		LEFT JOIN contact_aliases a ON a.jid = c.jid
		WHERE c.jid = ?
	`, jid)
	var c Contact
	var updated int64
	if err := row.Scan(&c.JID, &c.Phone, &c.Alias, &c.Name, &updated); err != nil {
		return Contact{}, err
	}
	c.UpdatedAt = fromUnix(updated)
	tags, _ := d.ListTags(jid)
	c.Tags = tags
	return c, nil
}

func (d *DB) ListTags(jid string) ([]string, error) {
	rows, err := d.sql.Query(`SELECT tag FROM contact_tags WHERE jid = ? ORDER BY tag`, jid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (d *DB) UpsertContact(jid, phone, pushName, fullName, firstName, businessName string) error {
	now := time.Now().UTC().Unix()
	_, err := d.sql.Exec(`
		INSERT INTO contacts(jid, phone, push_name, full_name, first_name, business_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			phone=COALESCE(NULLIF(excluded.phone,''), contacts.phone),
			push_name=COALESCE(NULLIF(excluded.push_name,''), contacts.push_name),
			full_name=COALESCE(NULLIF(excluded.full_name,''), contacts.full_name),
			first_name=COALESCE(NULLIF(excluded.first_name,''), contacts.first_name),
			business_name=COALESCE(NULLIF(excluded.business_name,''), contacts.business_name),
			updated_at=excluded.updated_at
	`, jid, phone, pushName, fullName, firstName, businessName, now)
	return err
}

func (d *DB) UpsertGroup(jid, name, ownerJID string, created time.Time) error {
	now := time.Now().UTC().Unix()
	_, err := d.sql.Exec(`
		INSERT INTO groups(jid, name, owner_jid, created_ts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name=COALESCE(NULLIF(excluded.name,''), groups.name),
			owner_jid=COALESCE(NULLIF(excluded.owner_jid,''), groups.owner_jid),
			created_ts=COALESCE(NULLIF(excluded.created_ts,0), groups.created_ts),
			updated_at=excluded.updated_at
	`, jid, name, ownerJID, unix(created), now)
	return err
}

func (d *DB) ReplaceGroupParticipants(groupJID string, participants []GroupParticipant) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM group_participants WHERE group_jid = ?`, groupJID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO group_participants(group_jid, user_jid, role, updated_at) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, p := range participants {
		role := strings.TrimSpace(p.Role)
		if role == "" {
			role = "member"
		}
		if _, err = stmt.Exec(groupJID, p.UserJID, role, unix(now)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListGroups(query string, limit int) ([]Group, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT jid, COALESCE(name,''), COALESCE(owner_jid,''), COALESCE(created_ts,0), updated_at FROM groups WHERE 1=1`
	var args []interface{}
	if strings.TrimSpace(query) != "" {
		needle := "%" + query + "%"
		q += ` AND (LOWER(name) LIKE LOWER(?) OR LOWER(jid) LIKE LOWER(?))`
		args = append(args, needle, needle)
	}
	q += ` ORDER BY COALESCE(created_ts,0) DESC LIMIT ?`
	args = append(args, limit)
	rows, err := d.sql.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		var g Group
		var created, updated int64
		if err := rows.Scan(&g.JID, &g.Name, &g.OwnerJID, &created, &updated); err != nil {
			return nil, err
		}
		g.CreatedAt = fromUnix(created)
		g.UpdatedAt = fromUnix(updated)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (d *DB) SetAlias(jid, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("alias is required")
	}
	now := time.Now().UTC().Unix()
	_, err := d.sql.Exec(`
		INSERT INTO contact_aliases(jid, alias, notes, updated_at)
		VALUES (?, ?, NULL, ?)
		ON CONFLICT(jid) DO UPDATE SET alias=excluded.alias, updated_at=excluded.updated_at
	`, jid, alias, now)
	return err
}

func (d *DB) RemoveAlias(jid string) error {
	_, err := d.sql.Exec(`DELETE FROM contact_aliases WHERE jid = ?`, jid)
	return err
}

func (d *DB) AddTag(jid, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("tag is required")
	}
	now := time.Now().UTC().Unix()
	_, err := d.sql.Exec(`
		INSERT INTO contact_tags(jid, tag, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(jid, tag) DO UPDATE SET updated_at=excluded.updated_at
	`, jid, tag, now)
	return err
}

func (d *DB) RemoveTag(jid, tag string) error {
	_, err := d.sql.Exec(`DELETE FROM contact_tags WHERE jid = ? AND tag = ?`, jid, tag)
	return err
}

func (d *DB) ListGroupParticipants(groupJID string) ([]GroupParticipant, error) {
	rows, err := d.sql.Query(`
		SELECT group_jid, user_jid, COALESCE(role,'member'), updated_at
		FROM group_participants WHERE group_jid = ?
		ORDER BY CASE role WHEN 'superadmin' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, user_jid
	`, groupJID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GroupParticipant
	for rows.Next() {
		var p GroupParticipant
		var updated int64
		if err := rows.Scan(&p.GroupJID, &p.UserJID, &p.Role, &updated); err != nil {
			return nil, err
		}
		p.UpdatedAt = fromUnix(updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) HasFTS() bool { return d.ftsEnabled }

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
