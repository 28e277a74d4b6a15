package folders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	outboxDir      = "Outbox"
	quotationsDir  = "Quotations"
	attachmentsDir = "Attachments"
	ownerFile      = ".owner"

	// maxPathLength is the longest message path produced before the file
	// name is shortened.
	maxPathLength = 240
	shortStemLen  = 80

	timestampLayout = "20060102_150405"
	messageExt      = ".msg"
)

// VendorFolder is the set of directories belonging to one
// (supplier, vendor email) pair.
type VendorFolder struct {
	Key        string
	Base       string
	Outbox     string
	Quotations string

	// SharedWith is set when the folder was first created for a different
	// supplier/address pair that sanitizes to the same key.
	SharedWith string
}

// Attachments returns the directory used for separately saved outbound
// attachments.
func (f VendorFolder) Attachments() string {
	return filepath.Join(f.Outbox, attachmentsDir)
}

// Router maps vendors to folders under Root.
type Router struct {
	Root string
}

// NewRouter creates a router rooted at root.
func NewRouter(root string) *Router {
	return &Router{Root: root}
}

// Key returns the folder name for a supplier and vendor address:
// "<supplier>_<localpart>" when a supplier is given, otherwise the local
// part alone, sanitized. The address is compared case-insensitively.
func Key(supplier, email string) string {
	local := strings.ToLower(strings.TrimSpace(email))
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	if supplier != "" {
		return Sanitize(supplier+"_"+local, DefaultMaxLength)
	}
	return Sanitize(local, DefaultMaxLength)
}

// FolderFor returns the vendor's folders, creating them when absent. It is
// safe to call repeatedly and concurrently for the same pair.
func (r *Router) FolderFor(supplier, email string) (VendorFolder, error) {
	key := Key(supplier, email)
	base := filepath.Join(r.Root, key)
	f := VendorFolder{
		Key:        key,
		Base:       base,
		Outbox:     filepath.Join(base, outboxDir),
		Quotations: filepath.Join(base, quotationsDir),
	}

	for _, dir := range []string{f.Base, f.Outbox, f.Quotations} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return VendorFolder{}, fmt.Errorf("creating folder %s: %w", dir, err)
		}
	}

	owner := ownerLine(supplier, email)
	existing, err := claimOwner(filepath.Join(base, ownerFile), owner)
	if err == nil && existing != "" && existing != owner {
		f.SharedWith = existing
	}
	return f, nil
}

// Path returns the folder path for a pair without touching the filesystem.
func (r *Router) Path(supplier, email string) string {
	return filepath.Join(r.Root, Key(supplier, email))
}

func ownerLine(supplier, email string) string {
	return supplier + " <" + strings.ToLower(strings.TrimSpace(email)) + ">"
}

// claimOwner records owner in path if the file does not exist yet and
// returns the owner already recorded otherwise.
func claimOwner(path, owner string) (string, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		defer f.Close()
		_, err = f.WriteString(owner + "\n")
		return "", err
	}
	if !errors.Is(err, os.ErrExist) {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// MessagePath builds "<dir>/<prefix><YYYYMMDD_HHMMSS>.msg". When the full
// path would exceed 240 characters the file name is cut to 80 characters
// before the extension.
func MessagePath(dir, prefix string, now time.Time) string {
	name := Sanitize(prefix+now.Format(timestampLayout)+messageExt, DefaultMaxLength)
	path := filepath.Join(dir, name)
	if len(path) > maxPathLength {
		stem := strings.TrimSuffix(name, messageExt)
		if len(stem) > shortStemLen {
			stem = stem[:shortStemLen]
		}
		path = filepath.Join(dir, Sanitize(stem+messageExt, DefaultMaxLength))
	}
	return path
}

// UniqueMessagePath is MessagePath with a numeric suffix added when a file
// with the same name already exists in dir.
func UniqueMessagePath(dir, prefix string, now time.Time) string {
	return UniquePath(MessagePath(dir, prefix, now))
}

// UniquePath returns path if nothing exists there, otherwise the first of
// "<stem>_2<ext>", "<stem>_3<ext>", ... that is free.
func UniquePath(path string) string {
	if !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if !exists(candidate) {
			return candidate
		}
	}
}

// WithExt replaces the extension of path.
func WithExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
