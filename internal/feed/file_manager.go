package feed

import (
	"os"
	"time"

	json "github.com/goccy/go-json"

	"mentiond/internal/feed/interfaces"
	"mentiond/internal/models"
	"mentiond/internal/providers"
	"mentiond/internal/services"
	"mentiond/internal/structures"
)

// FileManager persists the feed as a compressed snapshot for warm starts.
// Restored data is provisional: the first live init replaces it.
type FileManager struct {
	config     *structures.Config
	service    services.FeedServiceInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(config *structures.Config, compressor interfaces.CompressorInterface, service services.FeedServiceInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		config:     config,
		compressor: compressor,
		service:    service,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	snapshot := models.FeedSnapshot{
		Version: models.FeedSnapshotVersion,
		ScopeID: f.config.Backend.ScopeID,
		SavedAt: time.Now(),
		Records: f.service.GetFeed(),
	}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var snapshot models.FeedSnapshot
	if err := json.Unmarshal(decompressedData, &snapshot); err != nil {
		return err
	}
	if snapshot.Version != models.FeedSnapshotVersion {
		f.logger.Warnf(providers.TypeApp, "Ignoring feed snapshot with unknown version %d", snapshot.Version)
		return nil
	}
	if snapshot.ScopeID != f.config.Backend.ScopeID {
		// A scope switch invalidates warm-start data entirely.
		f.logger.Warnf(providers.TypeApp, "Ignoring feed snapshot for scope %q", snapshot.ScopeID)
		return nil
	}

	f.service.RestoreFeed(snapshot.Records)
	return nil
}

func (f *FileManager) Close() {
	f.compressor.Close()
}
