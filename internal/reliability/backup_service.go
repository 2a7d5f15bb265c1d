package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

const (
	archivePrefix    = "folio-backup-"
	archiveTimestamp = "2006-01-02-150405"
)

// BackupMetadata describes the database snapshot inside an archive
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo summarizes one stored archive
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	Uploaded  bool      `json:"uploaded"`
}

// objectStore is the slice of the S3 client the backup service needs
type objectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupService snapshots the SQLite database into timestamped tar.gz
// archives under backupDir, prunes old ones, and optionally uploads each
// archive to object storage. A nil S3 client disables uploads.
type BackupService struct {
	db        *database.DB
	backupDir string
	remote    objectStore
	keep      int
	log       zerolog.Logger
}

// NewBackupService creates a backup service. keep is the number of archives
// retained after each run, locally and remotely.
func NewBackupService(db *database.DB, backupDir string, s3 *S3Client, keep int, log zerolog.Logger) *BackupService {
	if keep < 1 {
		keep = 1
	}
	svc := &BackupService{
		db:        db,
		backupDir: backupDir,
		keep:      keep,
		log:       log.With().Str("service", "backup").Logger(),
	}
	if s3 != nil {
		svc.remote = s3
	}
	return svc
}

// CreateBackup snapshots the database into a new archive. The WAL is
// checkpointed first so the main database file is complete on its own.
// An upload failure is logged and reflected in the result but does not
// fail the backup: the local archive already exists.
func (s *BackupService) CreateBackup(ctx context.Context) (*BackupInfo, error) {
	started := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint database: %w", err)
	}

	dbPath := s.db.Path()
	dbInfo, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	checksum, err := fileChecksum(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum database: %w", err)
	}

	now := time.Now()
	metadata := BackupMetadata{
		Timestamp: now.UTC(),
		Filename:  filepath.Base(dbPath),
		SizeBytes: dbInfo.Size(),
		Checksum:  checksum,
	}

	archiveName := archivePrefix + now.Format(archiveTimestamp) + ".tar.gz"
	archivePath := filepath.Join(s.backupDir, archiveName)
	if err := s.writeArchive(archivePath, dbPath, metadata); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	info := &BackupInfo{
		Filename:  archiveName,
		Timestamp: now,
		SizeBytes: archiveInfo.Size(),
	}

	if s.remote != nil {
		if err := s.upload(ctx, archivePath, archiveName); err != nil {
			s.log.Error().Err(err).Str("archive", archiveName).Msg("Backup upload failed")
		} else {
			info.Uploaded = true
			if err := s.pruneRemote(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Remote backup pruning failed")
			}
		}
	}

	if err := s.pruneLocal(); err != nil {
		s.log.Warn().Err(err).Msg("Backup pruning failed")
	}

	s.log.Info().
		Str("archive", archiveName).
		Int64("size_bytes", info.SizeBytes).
		Dur("duration", time.Since(started)).
		Msg("Backup created")

	return info, nil
}

// ListBackups returns local archives, newest first
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), ".tar.gz")
		ts, err := time.Parse(archiveTimestamp, raw)
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  name,
			Timestamp: ts,
			SizeBytes: fi.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// pruneLocal removes local archives beyond the retention count
func (s *BackupService) pruneLocal() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	for _, old := range backups[min(s.keep, len(backups)):] {
		if err := os.Remove(filepath.Join(s.backupDir, old.Filename)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", old.Filename, err)
		}
		s.log.Debug().Str("archive", old.Filename).Msg("Old backup removed")
	}
	return nil
}

func (s *BackupService) upload(ctx context.Context, archivePath, archiveName string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return s.remote.Upload(ctx, archiveName, f)
}

// pruneRemote removes uploaded archives beyond the retention count
func (s *BackupService) pruneRemote(ctx context.Context) error {
	objects, err := s.remote.List(ctx, archivePrefix)
	if err != nil {
		return err
	}

	type remoteArchive struct {
		key string
		ts  time.Time
	}
	archives := make([]remoteArchive, 0, len(objects))
	for _, obj := range objects {
		key := aws.ToString(obj.Key)
		raw := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), ".tar.gz")
		ts, err := time.Parse(archiveTimestamp, raw)
		if err != nil {
			continue
		}
		archives = append(archives, remoteArchive{key: key, ts: ts})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ts.After(archives[j].ts)
	})
	for _, old := range archives[min(s.keep, len(archives)):] {
		if err := s.remote.Delete(ctx, old.key); err != nil {
			return fmt.Errorf("failed to delete remote archive %s: %w", old.key, err)
		}
		s.log.Debug().Str("key", old.key).Msg("Old remote backup removed")
	}
	return nil
}

// writeArchive builds a tar.gz holding the database file and its metadata
func (s *BackupService) writeArchive(archivePath, dbPath string, metadata BackupMetadata) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	metaJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writeTarEntry(tw, "backup-metadata.json", metaJSON, metadata.Timestamp); err != nil {
		return err
	}

	return addFileToArchive(tw, dbPath, metadata.Filename)
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(data)),
		Mode:    0o644,
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, filePath, nameInArchive string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", nameInArchive, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to copy %s into archive: %w", nameInArchive, err)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}
