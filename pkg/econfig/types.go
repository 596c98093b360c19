// Package econfig parses the enforcer's own configuration file: a flat
// key=value format where each recognized key has a specific value grammar
// (spec §4.G) and the DB preserves line order and kind end-to-end.
package econfig

import "fmt"

// Key enumerates the recognized configuration keys.
type Key int

const (
	Permissive Key = iota
	NiceVal
	QSize
	UID
	GID
	DoStatReport
	DetailedReport
	DbMaxSize
	SubjCacheSize
	ObjCacheSize
	WatchFs
	Trust
	Integrity
	SyslogFormat
	RpmSha256Only
	AllowFilesystemMark
)

var keyText = map[Key]string{
	Permissive:          "permissive",
	NiceVal:             "nice_val",
	QSize:               "q_size",
	UID:                 "uid",
	GID:                 "gid",
	DoStatReport:        "do_stat_report",
	DetailedReport:      "detailed_report",
	DbMaxSize:           "db_max_size",
	SubjCacheSize:       "subj_cache_size",
	ObjCacheSize:        "obj_cache_size",
	WatchFs:             "watch_fs",
	Trust:               "trust",
	Integrity:           "integrity",
	SyslogFormat:        "syslog_format",
	RpmSha256Only:       "rpm_sha256_only",
	AllowFilesystemMark: "allow_filesystem_mark",
}

var textKey = func() map[string]Key {
	out := make(map[string]Key, len(keyText))
	for k, v := range keyText {
		out[v] = k
	}
	return out
}()

func (k Key) String() string { return keyText[k] }

// ParseKey parses a recognized key name.
func ParseKey(s string) (Key, bool) {
	k, ok := textKey[s]
	return k, ok
}

var keyDescriptions = map[Key]string{
	Permissive:          "run in permissive (log-only) mode instead of enforcing",
	NiceVal:             "scheduling niceness of the daemon process",
	QSize:               "size of the internal fanotify event queue",
	UID:                 "user the daemon drops privileges to",
	GID:                 "group the daemon drops privileges to",
	DoStatReport:        "log a startup report of trust database statistics",
	DetailedReport:      "include per-file detail in the startup report",
	DbMaxSize:           "maximum size in MB of the trust key/value store",
	SubjCacheSize:       "number of subject entries kept in the decision cache",
	ObjCacheSize:        "number of object entries kept in the decision cache",
	WatchFs:             "filesystem types to monitor for file events",
	Trust:               "trust sources consulted when building the trust database",
	Integrity:           "what to check before trusting a cache entry: none, size, or hash",
	SyslogFormat:        "fields emitted in each syslog audit line, in order",
	RpmSha256Only:       "require SHA-256 digests from rpm, rejecting packages without one",
	AllowFilesystemMark: "allow fanotify marks on whole filesystems, not just files",
}

// KeyDescription returns a short human description of key, for diagnostics
// output; the grammar table in spec §4.G carries no such metadata itself.
func KeyDescription(key Key) string { return keyDescriptions[key] }

// TrustBackend is one source a trust= line may list.
type TrustBackend int

const (
	Rpm TrustBackend = iota
	FileBackend
	Deb
)

var trustBackendText = map[TrustBackend]string{Rpm: "rpm", FileBackend: "file", Deb: "deb"}

func (b TrustBackend) String() string { return trustBackendText[b] }

// ParseTrustBackend parses one of "rpm", "file", "deb".
func ParseTrustBackend(s string) (TrustBackend, bool) {
	for k, v := range trustBackendText {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

// IntegritySource is the value of an integrity= line.
type IntegritySource int

const (
	IntegrityNone IntegritySource = iota
	IntegritySize
	IntegrityHash
)

var integrityText = map[IntegritySource]string{IntegrityNone: "none", IntegritySize: "size", IntegrityHash: "hash"}

func (s IntegritySource) String() string { return integrityText[s] }

// ParseIntegritySource parses one of "none", "size", "hash".
func ParseIntegritySource(s string) (IntegritySource, bool) {
	for k, v := range integrityText {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

// ValueKind discriminates which field of Value is meaningful.
type ValueKind int

const (
	VBool ValueKind = iota
	VUint
	VString
	VStringList
	VTrustList
	VIntegrity
)

// Value is the typed RHS of a recognized configuration key.
type Value struct {
	Kind      ValueKind
	Bool      bool
	Uint      uint64
	Str       string
	List      []string
	Trust     []TrustBackend
	Integrity IntegritySource
}

func (v Value) String() string {
	switch v.Kind {
	case VBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case VUint:
		return fmt.Sprintf("%d", v.Uint)
	case VString:
		return v.Str
	case VStringList:
		return joinComma(v.List)
	case VTrustList:
		s := make([]string, len(v.Trust))
		for i, t := range v.Trust {
			s[i] = t.String()
		}
		return joinComma(s)
	case VIntegrity:
		return v.Integrity.String()
	default:
		return ""
	}
}

func joinComma(xs []string) string {
	out := ""
	for i, x := range xs {
		if i > 0 {
			out += ","
		}
		out += x
	}
	return out
}
