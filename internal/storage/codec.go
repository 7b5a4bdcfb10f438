package storage

import (
	"encoding/json"
	"errors"

	"github.com/sumeru-26/axelrod-dojo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the schema and codec this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGeneration(row model.GenerationRow) ([]byte, error) {
	return json.Marshal(row)
}

func DecodeGeneration(data []byte) (model.GenerationRow, error) {
	var row model.GenerationRow
	if err := json.Unmarshal(data, &row); err != nil {
		return model.GenerationRow{}, err
	}
	return row, nil
}

func EncodeTopGenomes(records []model.TopGenomeRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeTopGenomes(data []byte) ([]model.TopGenomeRecord, error) {
	var records []model.TopGenomeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
