package session

import (
	"jamsync/internal/models"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/session/interfaces"
	"os"

	json "github.com/goccy/go-json"
)

// FileManager persists the reconciled state so a restart renders the last
// known queue instead of an empty list until the first poll lands.
type FileManager struct {
	service    services.SessionServiceInterface
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor interfaces.CompressorInterface, service services.SessionServiceInterface, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		service:    service,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	state := f.service.ExportState()

	jsonData, err := json.Marshal(state)
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

func (f *FileManager) Close() {
	f.compressor.Close()
}

func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		// Version 1 files were written without compression.
		decompressed = data
	}

	var state models.StateFile
	if err := json.Unmarshal(decompressed, &state); err == nil && state.Version >= models.StateFileVersion {
		f.service.RestoreState(&state)
		return nil
	}

	// Version 1 carried the entry list at the top level with no envelope.
	f.logger.Warnf(providers.TypeApp, "Inconsistent state file found, try to migrate from old data format")
	var entries []*models.Entry
	if err := json.Unmarshal(decompressed, &entries); err != nil {
		f.logger.Warnf(providers.TypeApp, "Migration failed")
		return err
	}
	f.logger.Warnf(providers.TypeApp, "Migration from v1 format successful")
	f.service.RestoreState(&models.StateFile{
		Version: models.StateFileVersion,
		Entries: entries,
	})

	return nil
}
