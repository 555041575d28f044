package config

import (
	"fmt"

	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/intake"
	"github.com/Veraticus/sortie/internal/renamer"
	"github.com/spf13/viper"
)

// Log store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Paths locates the inputs and outputs of a run.
type Paths struct {
	Download string
	Rules    string
	Catalog  string
	Log      string
	Database string
	Outbox   string
}

// LockFile is the run lock, kept next to the log so it never sits in the
// directory being renamed.
func (p Paths) LockFile(backend string) string {
	if backend == BackendSQLite {
		return p.Database + ".lock"
	}
	return p.Log + ".lock"
}

// Rename configures the renamer.
type Rename struct {
	ClassifiedDir   string
	UnclassifiedDir string
	Ignore          []string
	Lowercase       bool
}

// Upload configures the object store.
type Upload struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Configured reports whether enough is set to connect.
func (u Upload) Configured() bool {
	return u.Endpoint != "" && u.Bucket != ""
}

// Settings is the resolved configuration.
type Settings struct {
	Paths         Paths
	Rename        Rename
	Upload        Upload
	LogBackend    string
	SubjectFilter string
	NotifyFrom    string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.download", "$HOME/sortie/descargas")
	v.SetDefault("paths.rules", "$HOME/.config/sortie/rules.yaml")
	v.SetDefault("paths.catalog", "$HOME/.config/sortie/catalog.json")
	v.SetDefault("paths.log", "$HOME/.local/share/sortie/upload_log.json")
	v.SetDefault("paths.database", "$HOME/.local/share/sortie/sortie.db")
	v.SetDefault("paths.outbox", "$HOME/.local/share/sortie/outbox")
	v.SetDefault("log.backend", BackendJSON)
	v.SetDefault("rename.lowercase", true)
	v.SetDefault("rename.classified_dir", renamer.DefaultClassifiedDir)
	v.SetDefault("rename.unclassified_dir", renamer.DefaultUnclassifiedDir)
	v.SetDefault("intake.subject_filter", intake.DefaultSubjectFilter)
	v.SetDefault("upload.use_ssl", true)
}

// Load reads settings from v. Paths are expanded.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		Paths: Paths{
			Download: ExpandPath(v.GetString("paths.download")),
			Rules:    ExpandPath(v.GetString("paths.rules")),
			Catalog:  ExpandPath(v.GetString("paths.catalog")),
			Log:      ExpandPath(v.GetString("paths.log")),
			Database: ExpandPath(v.GetString("paths.database")),
			Outbox:   ExpandPath(v.GetString("paths.outbox")),
		},
		Rename: Rename{
			ClassifiedDir:   v.GetString("rename.classified_dir"),
			UnclassifiedDir: v.GetString("rename.unclassified_dir"),
			Ignore:          v.GetStringSlice("rename.ignore"),
			Lowercase:       v.GetBool("rename.lowercase"),
		},
		Upload: Upload{
			Endpoint:  v.GetString("upload.endpoint"),
			Bucket:    v.GetString("upload.bucket"),
			Prefix:    v.GetString("upload.prefix"),
			AccessKey: v.GetString("upload.access_key"),
			SecretKey: v.GetString("upload.secret_key"),
			UseSSL:    v.GetBool("upload.use_ssl"),
		},
		LogBackend:    v.GetString("log.backend"),
		SubjectFilter: v.GetString("intake.subject_filter"),
		NotifyFrom:    v.GetString("notify.from"),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks values that have no safe fallback.
func (s Settings) Validate() error {
	switch s.LogBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("%w: log.backend must be %q or %q, got %q",
			common.ErrInvalidConfig, BackendJSON, BackendSQLite, s.LogBackend)
	}
	if s.Rename.ClassifiedDir == s.Rename.UnclassifiedDir {
		return fmt.Errorf("%w: rename partitions must differ", common.ErrInvalidConfig)
	}
	return nil
}
