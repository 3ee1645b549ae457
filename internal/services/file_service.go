package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kwiatekh/docpanel-be/internal/models"
)

// FileServiceProvider defines the interface for file tracking services.
type FileServiceProvider interface {
	AddOrUpdate(username, filename, filepath string, size int64, fileHash string) error
	Delete(filepath string) error
	GetUserFiles(username string) ([]models.File, error)
	GetAllUsersWithStats(page, perPage int) (models.UserStatsPage, error)
	GetOverallStats() (models.OverallStats, error)
}

// FileService tracks generated documents and aggregates usage statistics.
// The backing content lives outside the store; only metadata is kept here.
type FileService struct {
	db *sql.DB
}

// NewFileService creates a new FileService.
func NewFileService(db *sql.DB) *FileService {
	return &FileService{db: db}
}

// AddOrUpdate upserts a tracked file keyed by its unique filepath.
func (s *FileService) AddOrUpdate(username, filename, filepath string, size int64, fileHash string) error {
	var hash *string
	if fileHash != "" {
		hash = &fileHash
	}

	// The upsert keeps ownership stable: a path stays with the user who
	// first produced it.
	_, err := s.db.Exec(`
		INSERT INTO files (id, username, filename, filepath, size, modified_at, file_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			modified_at = excluded.modified_at,
			file_hash = excluded.file_hash`,
		uuid.New().String(), username, filename, filepath, size, time.Now(), hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Delete removes a tracked file record by path. Unknown paths are a no-op.
func (s *FileService) Delete(filepath string) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE filepath = ?", filepath); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// GetUserFiles retrieves a user's tracked files, most recently modified
// first.
func (s *FileService) GetUserFiles(username string) ([]models.File, error) {
	rows, err := s.db.Query(`
		SELECT id, username, filename, filepath, size, modified_at, file_hash
		FROM files WHERE username = ? ORDER BY modified_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.Username, &f.Filename, &f.Filepath, &f.Size, &f.ModifiedAt, &f.FileHash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetAllUsersWithStats returns one page of users with their file counts and
// total sizes, ordered by most recent activity.
func (s *FileService) GetAllUsersWithStats(page, perPage int) (models.UserStatsPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var totalUsers int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&totalUsers); err != nil {
		return models.UserStatsPage{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	totalPages := (totalUsers + perPage - 1) / perPage

	rows, err := s.db.Query(`
		SELECT u.username, u.created_at, u.last_login,
			COUNT(f.id), COALESCE(SUM(f.size), 0)
		FROM users u
		LEFT JOIN files f ON f.username = u.username
		GROUP BY u.username
		ORDER BY u.last_login DESC
		LIMIT ? OFFSET ?`, perPage, (page-1)*perPage)
	if err != nil {
		return models.UserStatsPage{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	result := models.UserStatsPage{
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
	for rows.Next() {
		var st models.UserStats
		if err := rows.Scan(&st.Name, &st.CreatedAt, &st.LastActivity, &st.FileCount, &st.TotalSize); err != nil {
			return models.UserStatsPage{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		result.Users = append(result.Users, st)
	}
	return result, rows.Err()
}

// GetOverallStats returns the store-wide user and file aggregates.
func (s *FileService) GetOverallStats() (models.OverallStats, error) {
	var stats models.OverallStats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		return models.OverallStats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files").
		Scan(&stats.TotalFiles, &stats.TotalSize)
	if err != nil {
		return models.OverallStats{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return stats, nil
}
